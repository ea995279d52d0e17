package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"cargodesk/backend/internal/cargo"
	"cargodesk/backend/internal/domain"
	"cargodesk/backend/internal/money"
	"cargodesk/backend/internal/xid"
)

// draft is one operator's editable booking. Every access holds mu.
type draft struct {
	mu       sync.Mutex
	id       string
	owner    string
	form     *cargo.Form
	lookups  *domain.Lookups
	warnings []string
	loadSeq  uint64
	closed   bool
}

func (d *draft) view(extra ...string) domain.DraftView {
	warnings := append(append([]string(nil), d.warnings...), extra...)
	return domain.DraftView{
		ID:        d.id,
		Booking:   d.form.Booking(),
		Summary:   d.form.Summary(),
		ItemCount: d.form.ItemCount(),
		Lookups:   d.lookups,
		Warnings:  warnings,
	}
}

// CreateDraft starts a blank booking for a branch with the next booking number
// pre-filled and the lookups loaded.
func (s *Service) CreateDraft(ctx context.Context, req domain.CreateDraftRequest) (domain.DraftView, error) {
	branchID := s.branchFor(ctx, req.BranchID)
	now := s.now()

	booking := domain.Booking{
		Branch:        s.branchSelection(ctx, branchID),
		Date:          now.Format("2006-01-02"),
		Time:          now.Format("15:04"),
		Charges:       domain.NewCharges(),
		VATPercentage: s.defaultVAT,
	}

	var warnings []string
	if next, err := s.allocator.PeekNext(ctx, branchID); err != nil {
		log.Printf("[service] WARN: next booking number unavailable branch=%d: %v", branchID, err)
		warnings = append(warnings, "could not load the next booking number")
	} else {
		booking.BookingNo = next
	}

	d := s.register(ctx, cargo.NewForm(booking))
	d.warnings = warnings
	return s.RefreshLookups(ctx, d.id)
}

func (s *Service) register(ctx context.Context, form *cargo.Form) *draft {
	d := &draft{id: xid.New("drf"), form: form}
	if actor, ok := ActorFromContext(ctx); ok {
		d.owner = actor.StaffID
	}
	s.mu.Lock()
	s.drafts[d.id] = d
	s.mu.Unlock()
	return d
}

func (s *Service) lookupDraft(ctx context.Context, id string) (*draft, error) {
	if !xid.HasPrefix(id, "drf") {
		return nil, ErrDraftNotFound
	}
	s.mu.Lock()
	d, ok := s.drafts[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrDraftNotFound
	}
	if actor, ok := ActorFromContext(ctx); ok && d.owner != "" && actor.StaffID != d.owner {
		return nil, ErrDraftNotFound
	}
	return d, nil
}

func (s *Service) GetDraft(ctx context.Context, id string) (domain.DraftView, error) {
	d, err := s.lookupDraft(ctx, id)
	if err != nil {
		return domain.DraftView{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view(), nil
}

// DiscardDraft drops the draft. Lookups still in flight for it are ignored.
func (s *Service) DiscardDraft(ctx context.Context, id string) error {
	d, err := s.lookupDraft(ctx, id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.drafts, id)
	s.mu.Unlock()

	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

// mutate runs fn under the draft lock. Rejected mutations come back as view
// warnings rather than errors.
func (s *Service) mutate(ctx context.Context, id string, fn func(*draft) error) (domain.DraftView, error) {
	d, err := s.lookupDraft(ctx, id)
	if err != nil {
		return domain.DraftView{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := fn(d); err != nil {
		if cargo.IsWarning(err) {
			return d.view(err.Error()), nil
		}
		return domain.DraftView{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return d.view(), nil
}

func (s *Service) AddBox(ctx context.Context, id string) (domain.DraftView, error) {
	return s.mutate(ctx, id, func(d *draft) error { return d.form.AddBox() })
}

func (s *Service) RemoveBox(ctx context.Context, id string, boxIndex int) (domain.DraftView, error) {
	return s.mutate(ctx, id, func(d *draft) error { return d.form.RemoveBox(boxIndex) })
}

func (s *Service) SetBoxWeight(ctx context.Context, id string, boxIndex int, value any) (domain.DraftView, error) {
	return s.mutate(ctx, id, func(d *draft) error { return d.form.SetBoxWeight(boxIndex, value) })
}

func (s *Service) AddItem(ctx context.Context, id string, boxIndex int) (domain.DraftView, error) {
	return s.mutate(ctx, id, func(d *draft) error { return d.form.AddItemToBox(boxIndex) })
}

func (s *Service) RemoveItem(ctx context.Context, id string, boxIndex int, itemIndex int) (domain.DraftView, error) {
	return s.mutate(ctx, id, func(d *draft) error { return d.form.RemoveItemFromBox(boxIndex, itemIndex) })
}

func (s *Service) SetItem(ctx context.Context, id string, boxIndex int, itemIndex int, field string, value any) (domain.DraftView, error) {
	return s.mutate(ctx, id, func(d *draft) error {
		return d.form.SetItem(boxIndex, itemIndex, cargo.ItemField(field), value)
	})
}

func (s *Service) SetCharge(ctx context.Context, id string, key string, quantity any, rate any) (domain.DraftView, error) {
	return s.mutate(ctx, id, func(d *draft) error {
		return d.form.SetCharge(domain.ChargeKey(key), quantity, rate)
	})
}

// SetHeader applies the non-nil fields of update. Moving a new booking to
// another branch re-reads that branch's next number unless one is supplied.
func (s *Service) SetHeader(ctx context.Context, id string, update domain.HeaderUpdate) (domain.DraftView, error) {
	d, err := s.lookupDraft(ctx, id)
	if err != nil {
		return domain.DraftView{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	h := d.form.Header()
	branchChanged := update.Branch != nil && strings.TrimSpace(update.Branch.ID) != strings.TrimSpace(h.Branch.ID)

	apply := func(dst *domain.Selection, src *domain.Selection) {
		if src != nil {
			*dst = domain.Selection{ID: strings.TrimSpace(src.ID), Name: strings.TrimSpace(src.Name)}
		}
	}
	apply(&h.Branch, update.Branch)
	apply(&h.Sender, update.Sender)
	apply(&h.Receiver, update.Receiver)
	apply(&h.ShippingMethod, update.ShippingMethod)
	apply(&h.PaymentMethod, update.PaymentMethod)
	apply(&h.Status, update.Status)
	apply(&h.DeliveryType, update.DeliveryType)
	apply(&h.CollectedBy, update.CollectedBy)
	apply(&h.Staff, update.Staff)
	apply(&h.Driver, update.Driver)
	if update.Date != nil {
		h.Date = strings.TrimSpace(*update.Date)
	}
	if update.Time != nil {
		h.Time = strings.TrimSpace(*update.Time)
	}
	if update.SpecialRemarks != nil {
		h.SpecialRemarks = strings.TrimSpace(*update.SpecialRemarks)
	}
	if update.VATPercentage != nil {
		d.form.SetVATPercentage(update.VATPercentage)
	}

	var warnings []string
	switch {
	case update.BookingNo != nil:
		h.BookingNo = strings.TrimSpace(*update.BookingNo)
	case branchChanged && h.CargoID == 0:
		branchID := money.ToInt(h.Branch.ID)
		next, err := s.allocator.PeekNext(ctx, branchID)
		if err != nil {
			log.Printf("[service] WARN: next booking number unavailable branch=%d: %v", branchID, err)
			warnings = append(warnings, "could not load the next booking number")
		} else {
			h.BookingNo = next
		}
	}
	return d.view(warnings...), nil
}

// RefreshLookups reloads the option lists for the draft's branch. The result is
// applied only if no newer load was started and the draft still exists.
func (s *Service) RefreshLookups(ctx context.Context, id string) (domain.DraftView, error) {
	d, err := s.lookupDraft(ctx, id)
	if err != nil {
		return domain.DraftView{}, err
	}

	d.mu.Lock()
	d.loadSeq++
	seq := d.loadSeq
	branchID := money.ToInt(d.form.Header().Branch.ID)
	d.mu.Unlock()

	if branchID <= 0 {
		branchID = s.defaultBranchID
	}
	lookups, warnings := s.loader.Load(ctx, branchID)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return domain.DraftView{}, ErrDraftNotFound
	}
	if seq != d.loadSeq {
		log.Printf("[service] dropping stale lookups draft=%s seq=%d current=%d", d.id, seq, d.loadSeq)
		return d.view(), nil
	}
	d.lookups = &lookups
	d.warnings = mergeWarnings(d.warnings, warnings)
	return d.view(), nil
}

// mergeWarnings replaces earlier lookup warnings with the latest ones and keeps
// everything else.
func mergeWarnings(current []string, lookups []string) []string {
	out := make([]string, 0, len(current)+len(lookups))
	for _, w := range current {
		if !strings.HasPrefix(w, "could not load ") || w == "could not load the next booking number" {
			out = append(out, w)
		}
	}
	return append(out, lookups...)
}
