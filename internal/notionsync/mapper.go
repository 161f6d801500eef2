package notionsync

import (
	"time"

	"github.com/dvloznov/psp-ledger/internal/ledger"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
)

// Property names of the rollover database. The title column holds the PSP name.
const (
	PropPSP          = "PSP"
	PropDeposits     = "Deposits"
	PropWithdrawals  = "Withdrawals"
	PropCommission   = "Commission"
	PropNet          = "Net"
	PropAllocation   = "Allocation"
	PropRollover     = "Rollover"
	PropTransactions = "Transactions"
	PropActiveDays   = "Active Days"
	PropPeriod       = "Period"
	PropSyncedAt     = "Synced At"
)

// SummaryToNotionProperties converts a PSP rollover summary to Notion properties.
// period is a free-text description of the reported date range.
func SummaryToNotionProperties(s ledger.PSPSummary, period string, syncedAt time.Time) notionapi.Properties {
	props := notionapi.Properties{
		PropPSP: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: s.PSP,
					},
				},
			},
		},
		PropDeposits:     number(s.DepositTotal),
		PropWithdrawals:  number(s.WithdrawalTotal),
		PropCommission:   number(s.CommissionTotal),
		PropNet:          number(s.NetTotal),
		PropAllocation:   number(s.Allocation),
		PropRollover:     number(s.Rollover),
		PropTransactions: notionapi.NumberProperty{Number: float64(s.TransactionCount)},
		PropActiveDays:   notionapi.NumberProperty{Number: float64(s.ActiveDays)},
		PropSyncedAt: notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: func() *notionapi.Date {
					d := notionapi.Date(syncedAt.UTC())
					return &d
				}(),
			},
		},
	}

	if period != "" {
		props[PropPeriod] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: period,
					},
				},
			},
		}
	}

	return props
}

// number rounds to cents before handing the value to Notion, which stores floats.
func number(d decimal.Decimal) notionapi.NumberProperty {
	return notionapi.NumberProperty{Number: d.Round(2).InexactFloat64()}
}

// extractPSP extracts the PSP name from a Notion page's title property.
// Returns empty string if not found.
func extractPSP(page notionapi.Page) string {
	if prop, ok := page.Properties[PropPSP]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}
