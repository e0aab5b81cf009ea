package inventory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"routesheet-backend/internal/apperr"
	"routesheet-backend/internal/audit"
	"routesheet-backend/internal/models"
	"routesheet-backend/internal/store"
)

// ImportRow is one counted line of a stock count sheet:
// name | quantity | unit | min_quantity.
type ImportRow struct {
	Row         int
	Name        string
	Quantity    int
	Unit        models.Unit
	MinQuantity int
}

type ImportSkip struct {
	Row    int    `json:"row"`
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Created   []string     `json:"created"`
	Adjusted  []string     `json:"adjusted"`
	Unchanged int          `json:"unchanged"`
	Skipped   []ImportSkip `json:"skipped"`
}

// ParseImportSheet reads the first sheet of an xlsx workbook. A first row
// whose quantity cell is not a number is taken as the header. Rows that
// cannot be read are returned as skips, not errors.
func ParseImportSheet(r io.Reader) ([]ImportRow, []ImportSkip, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, apperr.Invalid("file", "cannot read workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, apperr.Invalid("file", "workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, apperr.Invalid("file", "cannot read sheet %q: %v", sheets[0], err)
	}

	var (
		out   []ImportRow
		skips []ImportSkip
	)
	for i, cells := range rows {
		line := i + 1
		name := strings.TrimSpace(cell(cells, 0))
		if name == "" {
			continue
		}

		qty, err := parseCount(cell(cells, 1))
		if err != nil {
			if i == 0 {
				continue
			}
			skips = append(skips, ImportSkip{Row: line, Name: name, Reason: "quantity: " + err.Error()})
			continue
		}

		unit := models.Unit(strings.ToLower(strings.TrimSpace(cell(cells, 2))))
		if unit == "" {
			unit = models.UnitPiece
		}
		if !unit.Valid() {
			skips = append(skips, ImportSkip{Row: line, Name: name, Reason: fmt.Sprintf("unknown unit %q", unit)})
			continue
		}

		minQty := 0
		if raw := strings.TrimSpace(cell(cells, 3)); raw != "" {
			minQty, err = parseCount(raw)
			if err != nil || minQty < 0 {
				skips = append(skips, ImportSkip{Row: line, Name: name, Reason: "invalid min_quantity"})
				continue
			}
		}

		out = append(out, ImportRow{Row: line, Name: name, Quantity: qty, Unit: unit, MinQuantity: minQty})
	}
	return out, skips, nil
}

func cell(cells []string, i int) string {
	if i < len(cells) {
		return cells[i]
	}
	return ""
}

// parseCount accepts whole numbers, including ones a spreadsheet wrote as "12.0".
// maxCount bounds imported quantities so a stray cell cannot overflow a delta.
const maxCount = math.MaxInt32

func parseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty")
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	if math.Abs(f) > maxCount {
		return 0, fmt.Errorf("%q is out of range", s)
	}
	return int(f), nil
}

// Import applies a stock count. Unknown names become new items, known items
// are adjusted by the difference between the counted and the stored
// quantity. Each row commits on its own.
func (s *Service) Import(ctx context.Context, rows []ImportRow, skips []ImportSkip) (*ImportResult, error) {
	ctx = WithOperation(ctx)
	res := &ImportResult{Created: []string{}, Adjusted: []string{}, Skipped: append([]ImportSkip{}, skips...)}

	for _, row := range rows {
		existing, err := s.store.FindInventoryItemByName(ctx, row.Name)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			_, err := s.Create(ctx, ItemInput{
				Name:        row.Name,
				Quantity:    row.Quantity,
				Unit:        row.Unit,
				MinQuantity: row.MinQuantity,
			})
			if err != nil {
				if apperr.IsValidation(err) || errors.Is(err, apperr.ErrConflict) {
					res.Skipped = append(res.Skipped, ImportSkip{Row: row.Row, Name: row.Name, Reason: err.Error()})
					continue
				}
				return nil, err
			}
			res.Created = append(res.Created, row.Name)

		case err != nil:
			return nil, err

		default:
			changed, err := s.recount(ctx, existing.ID, row.Quantity)
			if err != nil {
				return nil, err
			}
			if changed {
				res.Adjusted = append(res.Adjusted, existing.Name)
			} else {
				res.Unchanged++
			}
		}
	}

	s.log.Info("stock count imported",
		zap.Int("created", len(res.Created)),
		zap.Int("adjusted", len(res.Adjusted)),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

// recount holds the item row locked while it computes the delta, so a debit
// landing in between cannot move the result away from the counted value.
func (s *Service) recount(ctx context.Context, itemID uint, counted int) (bool, error) {
	changed := false
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		it, err := tx.LockInventoryItem(ctx, itemID)
		if err != nil {
			return err
		}
		delta := counted - it.Quantity
		if delta == 0 {
			return nil
		}
		if _, err := s.ledger.Bind(tx).AdjustQuantity(ctx, itemID, delta, ReasonStockCount, nil); err != nil {
			return err
		}
		changed = true
		return audit.Write(ctx, tx, audit.Entry{
			EntityType:  audit.EntityInventoryItem,
			EntityID:    itemID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("stock count of %q: %d -> %d", it.Name, it.Quantity, counted),
			Before:      map[string]int{"quantity": it.Quantity},
			After:       map[string]int{"quantity": counted},
		})
	})
	return changed, err
}
