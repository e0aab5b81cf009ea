package dashboard

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"routesheet-backend/internal/models"
	"routesheet-backend/internal/pricing"
	"routesheet-backend/internal/store"
)

const (
	sheetRouteSheets = "Route sheets"
	sheetInventory   = "Inventory"
	sheetEmployees   = "Employees"
)

// Export writes the route sheets matching f, the current stock and a
// per-employee summary into an xlsx workbook.
func (s *Service) Export(ctx context.Context, f store.RouteSheetFilter) (*bytes.Buffer, error) {
	snap, err := s.load(ctx, f, true)
	if err != nil {
		return nil, err
	}

	wb := excelize.NewFile()
	defer wb.Close()

	if err := wb.SetSheetName(wb.GetSheetName(0), sheetRouteSheets); err != nil {
		return nil, err
	}
	for _, name := range []string{sheetInventory, sheetEmployees} {
		if _, err := wb.NewSheet(name); err != nil {
			return nil, err
		}
	}

	bold, err := wb.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	if err := writeRouteSheets(wb, bold, snap.sheets); err != nil {
		return nil, fmt.Errorf("route sheets: %w", err)
	}
	if err := writeInventory(wb, bold, snap.items); err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	if err := writeEmployees(wb, bold, snap.employees, snap.sheets); err != nil {
		return nil, fmt.Errorf("employees: %w", err)
	}

	return wb.WriteToBuffer()
}

func writeRows(wb *excelize.File, sheet string, headerStyle int, rows [][]any) error {
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(sheet, cellRef, &row); err != nil {
			return err
		}
	}
	if len(rows) == 0 {
		return nil
	}
	last, err := excelize.CoordinatesToCellName(len(rows[0]), 1)
	if err != nil {
		return err
	}
	if err := wb.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	return wb.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeRouteSheets(wb *excelize.File, style int, sheets []models.RouteSheet) error {
	header := []any{"ID", "Date", "Employee"}
	for _, st := range pricing.Stages() {
		header = append(header, st.Label())
	}
	header = append(header, "Defects", "Total")

	rows := [][]any{header}
	for _, rs := range sheets {
		name := ""
		if rs.Employee != nil {
			name = rs.Employee.Name
		}
		row := []any{rs.ID, rs.CreatedAt.Format("2006-01-02 15:04"), name}
		for _, st := range pricing.Stages() {
			row = append(row, rs.StageCounts.Count(st))
		}
		row = append(row, rs.DefectCount, rs.TotalAmount.InexactFloat64())
		rows = append(rows, row)
	}
	if err := writeRows(wb, sheetRouteSheets, style, rows); err != nil {
		return err
	}
	return wb.SetColWidth(sheetRouteSheets, "B", "C", 20)
}

func writeInventory(wb *excelize.File, style int, items []models.InventoryItem) error {
	rows := [][]any{{"ID", "Name", "Quantity", "Unit", "Min quantity", "Status"}}
	for _, it := range items {
		rows = append(rows, []any{it.ID, it.Name, it.Quantity, string(it.Unit), it.MinQuantity, string(it.Status())})
	}
	if err := writeRows(wb, sheetInventory, style, rows); err != nil {
		return err
	}
	return wb.SetColWidth(sheetInventory, "B", "B", 30)
}

func writeEmployees(wb *excelize.File, style int, employees []models.Employee, sheets []models.RouteSheet) error {
	type agg struct {
		sheets, units, defects int
		earnings               float64
	}
	totals := make(map[uint]*agg, len(employees))
	for _, rs := range sheets {
		a, ok := totals[rs.EmployeeID]
		if !ok {
			a = &agg{}
			totals[rs.EmployeeID] = a
		}
		a.sheets++
		a.units += rs.StageCounts.Units()
		a.defects += rs.DefectCount
		a.earnings += rs.TotalAmount.InexactFloat64()
	}

	rows := [][]any{{"ID", "Name", "Position", "Sheets", "Units", "Defects", "Defect rate %", "Earnings"}}
	for _, e := range employees {
		a := totals[e.ID]
		if a == nil {
			a = &agg{}
		}
		rate := DefectRate(a.defects, a.units).InexactFloat64()
		rows = append(rows, []any{e.ID, e.Name, e.Position, a.sheets, a.units, a.defects, rate, a.earnings})
	}
	if err := writeRows(wb, sheetEmployees, style, rows); err != nil {
		return err
	}
	return wb.SetColWidth(sheetEmployees, "B", "C", 24)
}
