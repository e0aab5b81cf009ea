package dashboard

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"routesheet-backend/internal/apperr"
	"routesheet-backend/internal/store"
)

type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

const maxChartPoints = 366

type ChartPoint struct {
	Label    string          `json:"label"` // day, week start (Monday) or month start
	Sheets   int             `json:"sheets"`
	Earnings decimal.Decimal `json:"earnings"`
}

type EarningsChart struct {
	Period     Period          `json:"period"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	Points     []ChartPoint    `json:"points"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return PeriodDaily, nil
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return p, nil
	}
	return "", apperr.Invalid("period", "period must be daily, weekly or monthly")
}

func defaultCount(p Period) int {
	switch p {
	case PeriodWeekly:
		return 8
	case PeriodMonthly:
		return 12
	default:
		return 7
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// bucketStart maps t to the first instant of its bucket.
func bucketStart(p Period, t time.Time) time.Time {
	d := startOfDay(t)
	switch p {
	case PeriodWeekly:
		offset := (int(d.Weekday()) + 6) % 7 // Monday = 0
		return d.AddDate(0, 0, -offset)
	case PeriodMonthly:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
	default:
		return d
	}
}

func nextBucket(p Period, t time.Time) time.Time {
	switch p {
	case PeriodWeekly:
		return t.AddDate(0, 0, 7)
	case PeriodMonthly:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// EarningsChart buckets route sheet totals into the last count periods,
// the current one included. Empty periods are reported with zero.
func (s *Service) EarningsChart(ctx context.Context, period Period, count int) (*EarningsChart, error) {
	if count == 0 {
		count = defaultCount(period)
	}
	if count < 0 || count > maxChartPoints {
		return nil, apperr.Invalid("count", "count must be between 1 and %d", maxChartPoints)
	}

	current := bucketStart(period, s.now())
	start := current
	for i := 1; i < count; i++ {
		switch period {
		case PeriodWeekly:
			start = start.AddDate(0, 0, -7)
		case PeriodMonthly:
			start = start.AddDate(0, -1, 0)
		default:
			start = start.AddDate(0, 0, -1)
		}
	}
	end := nextBucket(period, current)

	sheets, err := s.store.ListRouteSheets(ctx, store.RouteSheetFilter{From: start, To: end})
	if err != nil {
		return nil, err
	}

	points := make([]ChartPoint, 0, count)
	index := make(map[string]int, count)
	for b := start; b.Before(end); b = nextBucket(period, b) {
		label := b.Format(dateLayout)
		index[label] = len(points)
		points = append(points, ChartPoint{Label: label, Earnings: decimal.Zero})
	}

	grand := decimal.Zero
	for _, rs := range sheets {
		i, ok := index[bucketStart(period, rs.CreatedAt.In(start.Location())).Format(dateLayout)]
		if !ok {
			continue
		}
		points[i].Sheets++
		points[i].Earnings = points[i].Earnings.Add(rs.TotalAmount)
		grand = grand.Add(rs.TotalAmount)
	}

	return &EarningsChart{
		Period:     period,
		From:       start.Format(dateLayout),
		To:         end.AddDate(0, 0, -1).Format(dateLayout),
		Points:     points,
		GrandTotal: grand,
	}, nil
}
