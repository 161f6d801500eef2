package analytics

import (
	"sort"
	"time"

	"github.com/dvloznov/psp-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Bucket is a count and volume for one hour, weekday or PSP.
type Bucket struct {
	Count   int             `json:"count"`
	Volume  decimal.Decimal `json:"volume"`
	Average decimal.Decimal `json:"average"`
}

func (b *Bucket) add(amount decimal.Decimal) {
	b.Count++
	b.Volume = b.Volume.Add(amount)
}

func (b *Bucket) finish() {
	b.Average = average(b.Volume, b.Count)
}

// HourVolume is the volume ingested during one UTC hour of the day.
type HourVolume struct {
	Hour int `json:"hour"`
	Bucket
}

// WeekdayVolume is the volume by business-date weekday, 0 being Sunday.
type WeekdayVolume struct {
	Weekday int    `json:"weekday"`
	Name    string `json:"name"`
	Bucket
}

// PSPVolume is the volume routed through one PSP.
type PSPVolume struct {
	PSP string `json:"psp"`
	Bucket
}

// VolumeInsights point at the busiest hour and weekday. They are nil when the
// window is empty.
type VolumeInsights struct {
	PeakHour          *int            `json:"peak_hour"`
	PeakDay           *int            `json:"peak_day"`
	TotalTransactions int             `json:"total_transactions"`
	TotalVolume       decimal.Decimal `json:"total_volume"`
}

// VolumeAnalysis is the volume view.
type VolumeAnalysis struct {
	Hourly   []HourVolume    `json:"hourly"`
	Weekday  []WeekdayVolume `json:"weekday"`
	PSP      []PSPVolume     `json:"psp"`
	Insights VolumeInsights  `json:"insights"`
}

// ComputeVolumeAnalysis distributes the window's volume over hours (0-23), weekdays
// and PSPs. PSPs are ordered by volume, largest first.
func ComputeVolumeAnalysis(txs []domain.Transaction) VolumeAnalysis {
	var v VolumeAnalysis
	v.Hourly = make([]HourVolume, 24)
	for h := range v.Hourly {
		v.Hourly[h].Hour = h
	}
	v.Weekday = make([]WeekdayVolume, 7)
	for d := range v.Weekday {
		v.Weekday[d].Weekday = d
	}
	byPSP := make(map[string]*PSPVolume)

	for _, tx := range txs {
		a, ok := resolve(tx)
		if !ok {
			continue
		}
		v.Hourly[tx.CreatedAt.UTC().Hour()].add(a.Amount)

		weekday := tx.CreatedAt.UTC().Weekday()
		if tx.Date.IsValid() {
			weekday = tx.Date.In(time.UTC).Weekday()
		}
		v.Weekday[weekday].add(a.Amount)

		p, ok := byPSP[tx.PSPName()]
		if !ok {
			p = &PSPVolume{PSP: tx.PSPName()}
			byPSP[tx.PSPName()] = p
		}
		p.add(a.Amount)

		v.Insights.TotalTransactions++
		v.Insights.TotalVolume = v.Insights.TotalVolume.Add(a.Amount)
	}

	peakHour, peakDay := -1, -1
	for h := range v.Hourly {
		v.Hourly[h].finish()
		if v.Hourly[h].Count > 0 && (peakHour < 0 || v.Hourly[h].Count > v.Hourly[peakHour].Count) {
			peakHour = h
		}
	}
	for d := range v.Weekday {
		v.Weekday[d].Name = weekdayName(d)
		v.Weekday[d].finish()
		if v.Weekday[d].Count > 0 && (peakDay < 0 || v.Weekday[d].Count > v.Weekday[peakDay].Count) {
			peakDay = d
		}
	}
	if peakHour >= 0 {
		v.Insights.PeakHour = &peakHour
	}
	if peakDay >= 0 {
		v.Insights.PeakDay = &peakDay
	}

	v.PSP = make([]PSPVolume, 0, len(byPSP))
	for _, p := range byPSP {
		p.finish()
		v.PSP = append(v.PSP, *p)
	}
	sort.Slice(v.PSP, func(i, j int) bool {
		if c := v.PSP[i].Volume.Cmp(v.PSP[j].Volume); c != 0 {
			return c > 0
		}
		return v.PSP[i].PSP < v.PSP[j].PSP
	})

	return v
}

var weekdayNames = [...]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

func weekdayName(d int) string {
	return weekdayNames[d]
}
