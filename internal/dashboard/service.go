// Package dashboard aggregates route sheets and stock into the figures shown
// on the dashboard and analytics screens.
package dashboard

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"routesheet-backend/internal/models"
	"routesheet-backend/internal/store"
)

const latestSheets = 5

var hundred = decimal.NewFromInt(100)

type EmployeeEarnings struct {
	EmployeeID uint            `json:"employee_id"`
	Name       string          `json:"name"`
	Sheets     int             `json:"sheets"`
	Earnings   decimal.Decimal `json:"earnings"`
}

type Stats struct {
	TotalSheets   int                 `json:"total_sheets"`
	WeekSheets    int                 `json:"week_sheets"`
	TotalEarnings decimal.Decimal     `json:"total_earnings"`
	WeekEarnings  decimal.Decimal     `json:"week_earnings"`
	TotalDefects  int                 `json:"total_defects"`
	CriticalItems int                 `json:"critical_items"`
	LowItems      int                 `json:"low_items"`
	Employees     []EmployeeEarnings  `json:"employees"`
	Latest        []models.RouteSheet `json:"latest"`
}

type EmployeeWeek struct {
	EmployeeID uint            `json:"employee_id"`
	Name       string          `json:"name"`
	Sheets     int             `json:"sheets"`
	Earnings   decimal.Decimal `json:"earnings"`
	Units      int             `json:"units"`
	Defects    int             `json:"defects"`
	// defects per 100 units, one decimal
	DefectRate decimal.Decimal `json:"defect_rate"`
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

type Service struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewService(s store.Store, log *zap.Logger, opts ...Option) *Service {
	svc := &Service{store: s, log: log, now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type snapshot struct {
	employees []models.Employee
	sheets    []models.RouteSheet
	items     []models.InventoryItem
}

// load reads the three tables concurrently and waits for all of them.
func (s *Service) load(ctx context.Context, f store.RouteSheetFilter, withItems bool) (*snapshot, error) {
	var snap snapshot
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		snap.employees, err = s.store.ListEmployees(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.sheets, err = s.store.ListRouteSheets(ctx, f)
		return err
	})
	if withItems {
		g.Go(func() error {
			var err error
			snap.items, err = s.store.ListInventoryItems(ctx)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Service) weekAgo() time.Time {
	return s.now().Add(-7 * 24 * time.Hour)
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	snap, err := s.load(ctx, store.RouteSheetFilter{}, true)
	if err != nil {
		return nil, err
	}

	weekAgo := s.weekAgo()
	st := &Stats{
		TotalEarnings: decimal.Zero,
		WeekEarnings:  decimal.Zero,
		Employees:     make([]EmployeeEarnings, 0, len(snap.employees)),
		Latest:        make([]models.RouteSheet, 0, latestSheets),
	}

	byEmployee := make(map[uint]*EmployeeEarnings, len(snap.employees))
	for _, e := range snap.employees {
		st.Employees = append(st.Employees, EmployeeEarnings{EmployeeID: e.ID, Name: e.Name, Earnings: decimal.Zero})
	}
	for i := range st.Employees {
		byEmployee[st.Employees[i].EmployeeID] = &st.Employees[i]
	}

	// sheets arrive newest first
	for _, rs := range snap.sheets {
		st.TotalSheets++
		st.TotalEarnings = st.TotalEarnings.Add(rs.TotalAmount)
		st.TotalDefects += rs.DefectCount
		if !rs.CreatedAt.Before(weekAgo) {
			st.WeekSheets++
			st.WeekEarnings = st.WeekEarnings.Add(rs.TotalAmount)
		}
		if e, ok := byEmployee[rs.EmployeeID]; ok {
			e.Sheets++
			e.Earnings = e.Earnings.Add(rs.TotalAmount)
		}
		if len(st.Latest) < latestSheets {
			st.Latest = append(st.Latest, rs)
		}
	}

	for _, it := range snap.items {
		switch it.Status() {
		case models.StockCritical:
			st.CriticalItems++
		case models.StockLow:
			st.LowItems++
		}
	}
	return st, nil
}

// Weekly summarizes the rolling last seven days per employee.
func (s *Service) Weekly(ctx context.Context) ([]EmployeeWeek, error) {
	snap, err := s.load(ctx, store.RouteSheetFilter{From: s.weekAgo()}, false)
	if err != nil {
		return nil, err
	}

	out := make([]EmployeeWeek, 0, len(snap.employees))
	idx := make(map[uint]int, len(snap.employees))
	for i, e := range snap.employees {
		out = append(out, EmployeeWeek{EmployeeID: e.ID, Name: e.Name, Earnings: decimal.Zero})
		idx[e.ID] = i
	}

	for _, rs := range snap.sheets {
		i, ok := idx[rs.EmployeeID]
		if !ok {
			continue
		}
		w := &out[i]
		w.Sheets++
		w.Earnings = w.Earnings.Add(rs.TotalAmount)
		w.Units += rs.StageCounts.Units()
		w.Defects += rs.DefectCount
	}

	for i := range out {
		out[i].DefectRate = DefectRate(out[i].Defects, out[i].Units)
	}
	return out, nil
}

// DefectRate is defects per hundred units rounded to one decimal, zero when
// nothing was produced.
func DefectRate(defects, units int) decimal.Decimal {
	if units <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(defects)).Mul(hundred).Div(decimal.NewFromInt(int64(units))).Round(1)
}
