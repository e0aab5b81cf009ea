// Package memory is an in-process implementation of store.Store. It backs the
// "memory" store driver and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"routesheet-backend/internal/apperr"
	"routesheet-backend/internal/models"
	"routesheet-backend/internal/store"
)

type data struct {
	seq       map[string]uint
	employees map[uint]models.Employee
	items     map[uint]models.InventoryItem
	logs      []models.InventoryLog
	sheets    map[uint]models.RouteSheet
	materials map[uint]models.StageMaterial
	audits    []models.AuditLog
	operators map[uint]models.Operator
}

func newData() *data {
	return &data{
		seq:       map[string]uint{},
		employees: map[uint]models.Employee{},
		items:     map[uint]models.InventoryItem{},
		sheets:    map[uint]models.RouteSheet{},
		materials: map[uint]models.StageMaterial{},
		operators: map[uint]models.Operator{},
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.seq {
		c.seq[k] = v
	}
	for k, v := range d.employees {
		c.employees[k] = v
	}
	for k, v := range d.items {
		c.items[k] = v
	}
	for k, v := range d.sheets {
		c.sheets[k] = v
	}
	for k, v := range d.materials {
		c.materials[k] = v
	}
	for k, v := range d.operators {
		c.operators[k] = v
	}
	c.logs = append([]models.InventoryLog(nil), d.logs...)
	c.audits = append([]models.AuditLog(nil), d.audits...)
	return c
}

func (d *data) next(table string) uint {
	d.seq[table]++
	return d.seq[table]
}

// Store guards all data with one mutex, so every method, IncrementQuantity
// included, is atomic with respect to the others. A transaction holds the
// mutex for its whole duration.
type Store struct {
	mu   *sync.Mutex
	d    *data
	inTx bool
	now  func() time.Time
}

type Option func(*Store)

// WithClock overrides the clock used for CreatedAt/UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{mu: &sync.Mutex{}, d: newData(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ store.Store = (*Store)(nil)

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	defer s.lock()()

	snapshot := s.d.clone()
	tx := &Store{mu: s.mu, d: s.d, inTx: true, now: s.now}
	if err := fn(tx); err != nil {
		*s.d = *snapshot
		return err
	}
	return nil
}

// --- employees ---

func (s *Store) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	defer s.lock()()
	out := make([]models.Employee, 0, len(s.d.employees))
	for _, e := range s.d.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) GetEmployee(ctx context.Context, id uint) (*models.Employee, error) {
	defer s.lock()()
	e, ok := s.d.employees[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &e, nil
}

func (s *Store) CreateEmployee(ctx context.Context, e *models.Employee) error {
	defer s.lock()()
	now := s.now()
	e.ID = s.d.next("employees")
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	s.d.employees[e.ID] = *e
	return nil
}

func (s *Store) UpdateEmployee(ctx context.Context, e *models.Employee) error {
	defer s.lock()()
	cur, ok := s.d.employees[e.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	cur.Name = e.Name
	cur.Position = e.Position
	cur.UpdatedAt = s.now()
	s.d.employees[e.ID] = cur
	*e = cur
	return nil
}

func (s *Store) DeleteEmployee(ctx context.Context, id uint) error {
	defer s.lock()()
	if _, ok := s.d.employees[id]; !ok {
		return apperr.ErrNotFound
	}
	for _, rs := range s.d.sheets {
		if rs.EmployeeID == id {
			return apperr.ErrConflict
		}
	}
	delete(s.d.employees, id)
	return nil
}

// --- inventory ---

func (s *Store) ListInventoryItems(ctx context.Context) ([]models.InventoryItem, error) {
	defer s.lock()()
	out := make([]models.InventoryItem, 0, len(s.d.items))
	for _, it := range s.d.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, id uint) (*models.InventoryItem, error) {
	defer s.lock()()
	it, ok := s.d.items[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &it, nil
}

// LockInventoryItem is GetInventoryItem: a transaction already holds the
// store mutex for its whole duration.
func (s *Store) LockInventoryItem(ctx context.Context, id uint) (*models.InventoryItem, error) {
	return s.GetInventoryItem(ctx, id)
}

func (s *Store) FindInventoryItemByName(ctx context.Context, name string) (*models.InventoryItem, error) {
	defer s.lock()()
	for _, it := range s.d.items {
		if strings.EqualFold(it.Name, name) {
			found := it
			return &found, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *Store) nameTaken(name string, except uint) bool {
	for _, it := range s.d.items {
		if it.ID != except && strings.EqualFold(it.Name, name) {
			return true
		}
	}
	return false
}

func (s *Store) CreateInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	defer s.lock()()
	if s.nameTaken(item.Name, 0) {
		return apperr.ErrConflict
	}
	now := s.now()
	item.ID = s.d.next("inventory_items")
	item.CreatedAt = now
	item.UpdatedAt = now
	s.d.items[item.ID] = *item
	return nil
}

func (s *Store) UpdateInventoryItem(ctx context.Context, item *models.InventoryItem) error {
	defer s.lock()()
	cur, ok := s.d.items[item.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	if s.nameTaken(item.Name, item.ID) {
		return apperr.ErrConflict
	}
	cur.Name = item.Name
	cur.Unit = item.Unit
	cur.MinQuantity = item.MinQuantity
	cur.UpdatedAt = s.now()
	s.d.items[item.ID] = cur
	*item = cur
	return nil
}

func (s *Store) DeleteInventoryItem(ctx context.Context, id uint) error {
	defer s.lock()()
	if _, ok := s.d.items[id]; !ok {
		return apperr.ErrNotFound
	}
	for _, m := range s.d.materials {
		if m.InventoryItemID == id {
			return apperr.ErrConflict
		}
	}
	delete(s.d.items, id)
	return nil
}

func (s *Store) IncrementQuantity(ctx context.Context, id uint, delta int) (int, error) {
	defer s.lock()()
	it, ok := s.d.items[id]
	if !ok {
		return 0, apperr.ErrNotFound
	}
	it.Quantity += delta
	it.UpdatedAt = s.now()
	s.d.items[id] = it
	return it.Quantity, nil
}

func (s *Store) AppendInventoryLog(ctx context.Context, entry *models.InventoryLog) error {
	defer s.lock()()
	entry.ID = s.d.next("inventory_logs")
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	s.d.logs = append(s.d.logs, *entry)
	return nil
}

func (s *Store) ListInventoryLogs(ctx context.Context, f store.LogFilter) ([]models.InventoryLog, error) {
	defer s.lock()()
	out := make([]models.InventoryLog, 0)
	for i := len(s.d.logs) - 1; i >= 0; i-- {
		l := s.d.logs[i]
		if f.InventoryItemID != 0 && l.InventoryItemID != f.InventoryItemID {
			continue
		}
		if f.RouteSheetID != 0 && (l.RouteSheetID == nil || *l.RouteSheetID != f.RouteSheetID) {
			continue
		}
		out = append(out, l)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// --- route sheets ---

func (s *Store) loadSheet(rs models.RouteSheet) models.RouteSheet {
	if e, ok := s.d.employees[rs.EmployeeID]; ok {
		rs.Employee = &e
	}
	rs.Materials = s.materialsOf(rs.ID)
	return rs
}

func (s *Store) materialsOf(routeSheetID uint) []models.StageMaterial {
	out := make([]models.StageMaterial, 0)
	for _, m := range s.d.materials {
		if m.RouteSheetID != routeSheetID {
			continue
		}
		if it, ok := s.d.items[m.InventoryItemID]; ok {
			m.InventoryItem = &it
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListRouteSheets(ctx context.Context, f store.RouteSheetFilter) ([]models.RouteSheet, error) {
	defer s.lock()()
	out := make([]models.RouteSheet, 0, len(s.d.sheets))
	for _, rs := range s.d.sheets {
		if f.EmployeeID != 0 && rs.EmployeeID != f.EmployeeID {
			continue
		}
		if !f.From.IsZero() && rs.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !rs.CreatedAt.Before(f.To) {
			continue
		}
		out = append(out, s.loadSheet(rs))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetRouteSheet(ctx context.Context, id uint) (*models.RouteSheet, error) {
	defer s.lock()()
	rs, ok := s.d.sheets[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	loaded := s.loadSheet(rs)
	return &loaded, nil
}

func (s *Store) CreateRouteSheet(ctx context.Context, rs *models.RouteSheet) error {
	defer s.lock()()
	if _, ok := s.d.employees[rs.EmployeeID]; !ok {
		return apperr.ErrConflict
	}
	now := s.now()
	rs.ID = s.d.next("route_sheets")
	if rs.CreatedAt.IsZero() {
		rs.CreatedAt = now
	}
	rs.UpdatedAt = now
	row := *rs
	row.Employee = nil
	row.Materials = nil
	s.d.sheets[rs.ID] = row
	return nil
}

func (s *Store) UpdateRouteSheet(ctx context.Context, rs *models.RouteSheet) error {
	defer s.lock()()
	cur, ok := s.d.sheets[rs.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	if _, ok := s.d.employees[rs.EmployeeID]; !ok {
		return apperr.ErrConflict
	}
	cur.EmployeeID = rs.EmployeeID
	cur.StageCounts = rs.StageCounts
	cur.DefectCount = rs.DefectCount
	cur.TotalAmount = rs.TotalAmount
	cur.UpdatedAt = s.now()
	s.d.sheets[rs.ID] = cur
	rs.CreatedAt = cur.CreatedAt
	rs.UpdatedAt = cur.UpdatedAt
	return nil
}

func (s *Store) DeleteRouteSheet(ctx context.Context, id uint) error {
	defer s.lock()()
	if _, ok := s.d.sheets[id]; !ok {
		return apperr.ErrNotFound
	}
	for mid, m := range s.d.materials {
		if m.RouteSheetID == id {
			delete(s.d.materials, mid)
		}
	}
	delete(s.d.sheets, id)
	return nil
}

func (s *Store) ListStageMaterials(ctx context.Context, routeSheetID uint) ([]models.StageMaterial, error) {
	defer s.lock()()
	return s.materialsOf(routeSheetID), nil
}

func (s *Store) GetStageMaterial(ctx context.Context, id uint) (*models.StageMaterial, error) {
	defer s.lock()()
	m, ok := s.d.materials[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if it, ok := s.d.items[m.InventoryItemID]; ok {
		m.InventoryItem = &it
	}
	return &m, nil
}

func (s *Store) CreateStageMaterial(ctx context.Context, m *models.StageMaterial) error {
	defer s.lock()()
	if _, ok := s.d.sheets[m.RouteSheetID]; !ok {
		return apperr.ErrConflict
	}
	if _, ok := s.d.items[m.InventoryItemID]; !ok {
		return apperr.ErrConflict
	}
	m.ID = s.d.next("stage_materials")
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	row := *m
	row.InventoryItem = nil
	s.d.materials[m.ID] = row
	return nil
}

func (s *Store) DeleteStageMaterial(ctx context.Context, id uint) error {
	defer s.lock()()
	if _, ok := s.d.materials[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(s.d.materials, id)
	return nil
}

// --- audit ---

func (s *Store) AppendAuditLog(ctx context.Context, entry *models.AuditLog) error {
	defer s.lock()()
	entry.ID = s.d.next("audit_logs")
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}
	s.d.audits = append(s.d.audits, *entry)
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, f store.AuditFilter) ([]models.AuditLog, error) {
	defer s.lock()()
	out := make([]models.AuditLog, 0)
	for i := len(s.d.audits) - 1; i >= 0; i-- {
		a := s.d.audits[i]
		if f.EntityType != "" && a.EntityType != f.EntityType {
			continue
		}
		if f.EntityID != 0 && a.EntityID != f.EntityID {
			continue
		}
		out = append(out, a)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// --- operators ---

func (s *Store) CountOperators(ctx context.Context) (int64, error) {
	defer s.lock()()
	return int64(len(s.d.operators)), nil
}

func (s *Store) GetOperator(ctx context.Context, id uint) (*models.Operator, error) {
	defer s.lock()()
	op, ok := s.d.operators[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &op, nil
}

func (s *Store) FindOperatorByEmail(ctx context.Context, email string) (*models.Operator, error) {
	defer s.lock()()
	for _, op := range s.d.operators {
		if op.Email == email {
			found := op
			return &found, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (s *Store) CreateOperator(ctx context.Context, op *models.Operator) error {
	defer s.lock()()
	for _, existing := range s.d.operators {
		if existing.Email == op.Email {
			return apperr.ErrConflict
		}
	}
	now := s.now()
	op.ID = s.d.next("operators")
	op.CreatedAt = now
	op.UpdatedAt = now
	s.d.operators[op.ID] = *op
	return nil
}

// LockOperators is a no-op, the transaction holds the store mutex.
func (s *Store) LockOperators(ctx context.Context) error {
	return nil
}
