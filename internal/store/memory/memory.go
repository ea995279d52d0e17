package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"cargodesk/backend/internal/domain"
	"cargodesk/backend/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	branches map[int64]domain.Branch
	staff    []domain.Staff
	drivers  []domain.Driver
	parties  []domain.Party
	options  map[string][]domain.Option
	cargos   map[int64]domain.PersistedCargo
	nextID   int64
	now      func() time.Time
}

func New() *Store {
	return &Store{
		branches: map[int64]domain.Branch{},
		options:  map[string][]domain.Option{},
		cargos:   map[int64]domain.PersistedCargo{},
		nextID:   1,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewSeeded returns a store with demo master data for local development.
func NewSeeded() *Store {
	s := New()
	for _, b := range []domain.Branch{
		{ID: 1, Name: "Dubai Main", Code: "BR", InvoiceStartNumber: 1},
		{ID: 2, Name: "Sharjah", Code: "SHJ", InvoiceStartNumber: 500},
		{ID: 3, Name: "Walk-in Counter", InvoiceStartNumber: 1},
	} {
		s.branches[b.ID] = b
	}
	s.staff = []domain.Staff{
		{ID: 10, Name: "Omar Haddad", BranchID: 1, Role: domain.StaffRoleOffice},
		{ID: 11, Name: "Leena Joseph", BranchID: 1, Role: domain.StaffRoleOffice},
		{ID: 12, Name: "Sameer Khan", BranchID: 2, Role: domain.StaffRoleOffice},
		{ID: 20, Name: "Ravi Kumar", BranchID: 1, Role: domain.StaffRoleDriver},
	}
	s.drivers = []domain.Driver{
		{ID: 20, Name: "Ravi Kumar", PhoneCode: "+971", PhoneNumber: "501234567"},
		{ID: 21, Name: "Jomon Varghese", PhoneCode: "+971", PhoneNumber: "559876543"},
	}
	s.parties = []domain.Party{
		{ID: 100, Name: "Ahmed Traders", Address: "Deira, Dubai", Phone: "+971 4 222 0101", RoleID: domain.PartyRoleSender},
		{ID: 101, Name: "Noor Textiles", Address: "Al Qusais, Dubai", Phone: "+971 4 222 0202", RoleID: domain.PartyRoleSender},
		{ID: 200, Name: "Fatima Beevi", Address: "Kozhikode, Kerala", Phone: "+91 98470 00001", RoleID: domain.PartyRoleReceiver},
		{ID: 201, Name: "Suresh Menon", Address: "Kochi, Kerala", Phone: "+91 98470 00002", RoleID: domain.PartyRoleReceiver},
	}
	s.options[store.KindShippingMethod] = []domain.Option{{ID: 1, Name: "Air"}, {ID: 2, Name: "Sea"}, {ID: 3, Name: "Road"}}
	s.options[store.KindPaymentMethod] = []domain.Option{{ID: 1, Name: "Cash"}, {ID: 2, Name: "Card"}, {ID: 3, Name: "Credit"}}
	s.options[store.KindDeliveryType] = []domain.Option{{ID: 1, Name: "Door to Door"}, {ID: 2, Name: "Branch Pickup"}}
	s.options[store.KindCollectedBy] = []domain.Option{{ID: 1, Name: domain.StaffRoleOffice}, {ID: 2, Name: domain.StaffRoleDriver}}
	s.options[store.KindStatus] = []domain.Option{{ID: 1, Name: "Booked"}, {ID: 2, Name: "In Transit"}, {ID: 3, Name: "Delivered"}}
	return s
}

func (s *Store) FetchBranches(_ context.Context) ([]domain.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Branch, 0, len(s.branches))
	for _, b := range s.branches {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b domain.Branch) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *Store) FetchBranchInvoiceCounter(_ context.Context, branchID int64) (domain.BranchCounter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	branch, ok := s.branches[branchID]
	if !ok {
		return domain.BranchCounter{}, fmt.Errorf("branch %d: %w", branchID, store.ErrNotFound)
	}
	counter := domain.BranchCounter{
		BranchID:    branch.ID,
		BranchCode:  branch.Code,
		StartNumber: branch.InvoiceStartNumber,
	}
	for _, cargo := range s.cargos {
		if cargo.BranchID != branchID {
			continue
		}
		if n, ok := store.BookingSequence(cargo.BookingNo); ok && n > counter.HighestObserved {
			counter.HighestObserved = n
		}
	}
	return counter, nil
}

func (s *Store) FetchBranchStaff(_ context.Context, branchID int64) ([]domain.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Staff, 0, len(s.staff))
	for _, st := range s.staff {
		if st.BranchID == branchID && st.Role == domain.StaffRoleOffice {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *Store) FetchDrivers(_ context.Context) ([]domain.Driver, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.drivers), nil
}

func (s *Store) FetchMasterLists(_ context.Context, req domain.MasterListRequest) (domain.MasterLists, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lists domain.MasterLists
	for _, kind := range store.RequestedKinds(req) {
		store.AssignList(&lists, kind, slices.Clone(s.options[kind]))
	}
	return lists, nil
}

func (s *Store) FetchPartiesByRole(_ context.Context, roleID int64) ([]domain.Party, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Party, 0, len(s.parties))
	for _, p := range s.parties {
		if p.RoleID == roleID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.Party) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func (s *Store) PersistCargo(_ context.Context, record domain.Payload) (domain.PersistedCargo, error) {
	bookingNo, branchID, err := store.RecordKeys(record)
	if err != nil {
		return domain.PersistedCargo{}, err
	}
	stored, err := cloneRecord(record)
	if err != nil {
		return domain.PersistedCargo{}, fmt.Errorf("%w: %v", store.ErrInvalidRecord, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.branches[branchID]; !ok {
		return domain.PersistedCargo{}, fmt.Errorf("%w: unknown branch %d", store.ErrInvalidRecord, branchID)
	}
	id := s.nextID
	s.nextID++
	stored["id"] = float64(id)

	cargo := domain.PersistedCargo{
		ID:        id,
		BookingNo: bookingNo,
		BranchID:  branchID,
		CreatedAt: s.now(),
		Record:    stored,
	}
	s.cargos[id] = cargo
	return copyCargo(cargo)
}

// PersistCargoUpdate merges record over the stored fields; keys absent from
// record keep their stored value.
func (s *Store) PersistCargoUpdate(_ context.Context, id int64, record domain.Payload) error {
	patch, err := cloneRecord(record)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidRecord, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cargo, ok := s.cargos[id]
	if !ok {
		return store.ErrNotFound
	}
	for k, v := range patch {
		if k == "id" {
			continue
		}
		cargo.Record[k] = v
	}
	if bookingNo, ok := patch["booking_no"].(string); ok && strings.TrimSpace(bookingNo) != "" {
		cargo.BookingNo = strings.TrimSpace(bookingNo)
	}
	s.cargos[id] = cargo
	return nil
}

func (s *Store) FetchCargoByID(_ context.Context, id int64) (domain.PersistedCargo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cargo, ok := s.cargos[id]
	if !ok {
		return domain.PersistedCargo{}, store.ErrNotFound
	}
	return copyCargo(cargo)
}

// cloneRecord round-trips through JSON so stored records look exactly like the
// ones a database hands back.
func cloneRecord(record domain.Payload) (domain.Payload, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	out := domain.Payload{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func copyCargo(cargo domain.PersistedCargo) (domain.PersistedCargo, error) {
	record, err := cloneRecord(cargo.Record)
	if err != nil {
		return domain.PersistedCargo{}, err
	}
	cargo.Record = record
	return cargo, nil
}
