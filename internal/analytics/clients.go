package analytics

import (
	"sort"
	"strings"

	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Segment names, by share of the window's total volume.
const (
	SegmentVIP      = "VIP"
	SegmentPremium  = "Premium"
	SegmentRegular  = "Regular"
	SegmentStandard = "Standard"
)

var (
	vipShare     = decimal.NewFromInt(10)
	premiumShare = decimal.NewFromInt(5)
	regularShare = decimal.NewFromInt(2)
)

// Segment classifies a client holding pct percent of total volume.
func Segment(pct decimal.Decimal) string {
	switch {
	case pct.GreaterThanOrEqual(vipShare):
		return SegmentVIP
	case pct.GreaterThanOrEqual(premiumShare):
		return SegmentPremium
	case pct.GreaterThanOrEqual(regularShare):
		return SegmentRegular
	default:
		return SegmentStandard
	}
}

// Client is one client's activity in the window.
type Client struct {
	Name         string          `json:"client_name"`
	Transactions int             `json:"transaction_count"`
	Volume       decimal.Decimal `json:"total_volume"`
	Average      decimal.Decimal `json:"avg_transaction"`
	Share        decimal.Decimal `json:"volume_share"`
	Segment      string          `json:"segment"`
}

// SegmentStats aggregate the clients of one segment.
type SegmentStats struct {
	Count      int             `json:"count"`
	Volume     decimal.Decimal `json:"volume"`
	Percentage decimal.Decimal `json:"percentage"`
}

// ClientMetrics summarise the client base.
type ClientMetrics struct {
	TotalClients       int             `json:"total_clients"`
	TotalVolume        decimal.Decimal `json:"total_volume"`
	AvgVolumePerClient decimal.Decimal `json:"avg_volume_per_client"`
	TopClient          string          `json:"top_client,omitempty"`
}

// ClientSegmentation is the clients view.
type ClientSegmentation struct {
	Clients      []Client                `json:"clients"`
	Distribution map[string]SegmentStats `json:"segment_distribution"`
	Metrics      ClientMetrics           `json:"metrics"`
}

// ComputeClientSegmentation groups txs by client, ordered by volume then name.
// Transactions without a client name are grouped under "Unknown".
func ComputeClientSegmentation(txs []domain.Transaction) ClientSegmentation {
	byName := make(map[string]*Client)
	var total decimal.Decimal

	for _, tx := range txs {
		a, ok := resolve(tx)
		if !ok {
			continue
		}
		name := strings.TrimSpace(tx.ClientName)
		if name == "" {
			name = "Unknown"
		}
		c, ok := byName[name]
		if !ok {
			c = &Client{Name: name}
			byName[name] = c
		}
		c.Transactions++
		c.Volume = c.Volume.Add(a.Amount)
		total = total.Add(a.Amount)
	}

	out := ClientSegmentation{
		Clients:      make([]Client, 0, len(byName)),
		Distribution: make(map[string]SegmentStats),
	}
	for _, c := range byName {
		c.Average = average(c.Volume, c.Transactions)
		c.Share = share(c.Volume, total)
		c.Segment = Segment(c.Share)
		out.Clients = append(out.Clients, *c)

		s := out.Distribution[c.Segment]
		s.Count++
		s.Volume = s.Volume.Add(c.Volume)
		out.Distribution[c.Segment] = s
	}
	for name, s := range out.Distribution {
		s.Percentage = share(s.Volume, total)
		out.Distribution[name] = s
	}

	sort.Slice(out.Clients, func(i, j int) bool {
		if c := out.Clients[i].Volume.Cmp(out.Clients[j].Volume); c != 0 {
			return c > 0
		}
		return out.Clients[i].Name < out.Clients[j].Name
	})

	out.Metrics = ClientMetrics{
		TotalClients:       len(out.Clients),
		TotalVolume:        total,
		AvgVolumePerClient: average(total, len(out.Clients)),
	}
	if len(out.Clients) > 0 {
		out.Metrics.TopClient = out.Clients[0].Name
	}
	return out
}
