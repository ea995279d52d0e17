package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"cargodesk/backend/internal/cargo"
	"cargodesk/backend/internal/domain"
	"cargodesk/backend/internal/invoice"
	"cargodesk/backend/internal/ledger"
	"cargodesk/backend/internal/money"
	"cargodesk/backend/internal/normalize"
	"cargodesk/backend/internal/payload"
)

// validate returns the display names of the required fields that are empty.
func validate(b domain.Booking) []string {
	var missing []string
	if _, err := strconv.ParseInt(strings.TrimSpace(b.Branch.ID), 10, 64); err != nil {
		missing = append(missing, "Branch")
	}
	required := []struct {
		label string
		sel   domain.Selection
	}{
		{"Sender", b.Sender},
		{"Receiver", b.Receiver},
		{"Shipping method", b.ShippingMethod},
		{"Payment method", b.PaymentMethod},
		{"Delivery type", b.DeliveryType},
	}
	for _, r := range required {
		if strings.TrimSpace(r.sel.ID) == "" {
			missing = append(missing, r.label)
		}
	}
	if strings.TrimSpace(b.Date) == "" {
		missing = append(missing, "Date")
	}

	switch {
	case strings.EqualFold(b.CollectedBy.Name, domain.StaffRoleDriver) && strings.TrimSpace(b.Driver.ID) == "":
		missing = append(missing, "Driver")
	case strings.EqualFold(b.CollectedBy.Name, domain.StaffRoleOffice) && strings.TrimSpace(b.Staff.ID) == "":
		missing = append(missing, "Staff")
	}
	return missing
}

// Submit persists the draft. New bookings get their number re-checked first and
// the draft is soft-reset for the next entry; drafts opened from a stored cargo
// are written back as a sparse update.
func (s *Service) Submit(ctx context.Context, id string) (domain.SubmitResult, error) {
	d, err := s.lookupDraft(ctx, id)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.form.Header().CargoID > 0 {
		return s.updateLocked(ctx, d)
	}

	booking := d.form.Booking()
	if missing := validate(booking); len(missing) > 0 {
		return domain.SubmitResult{}, &ValidationError{Missing: missing}
	}

	branchID := money.ToInt(booking.Branch.ID)
	assignment := s.allocator.AssignAtSubmit(ctx, booking.BookingNo, branchID)
	booking.BookingNo = assignment.BookingNo

	record := payload.Build(booking, booking.Boxes, d.form.Summary())
	persisted, err := s.repo.PersistCargo(ctx, record)
	if err != nil {
		log.Printf("[service] WARN: persist cargo failed booking=%s: %v", booking.BookingNo, err)
		return domain.SubmitResult{}, &PersistenceError{Op: "create", Err: err}
	}

	next := invoice.IncrementForNextForm(assignment.BookingNo)
	d.form.ResetContent()
	h := d.form.Header()
	h.CargoID = 0
	h.BookingNo = next
	h.Sender = domain.Selection{}
	h.Receiver = domain.Selection{}
	h.SpecialRemarks = ""

	return domain.SubmitResult{
		Cargo:           persisted,
		BookingNo:       assignment.BookingNo,
		ShownBookingNo:  assignment.Candidate,
		NumberCorrected: assignment.Corrected,
		NextBookingNo:   next,
		Payload:         record,
	}, nil
}

// UpdateCargo writes an edit draft back to its stored cargo.
func (s *Service) UpdateCargo(ctx context.Context, id string) (domain.SubmitResult, error) {
	d, err := s.lookupDraft(ctx, id)
	if err != nil {
		return domain.SubmitResult{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.form.Header().CargoID <= 0 {
		return domain.SubmitResult{}, fmt.Errorf("%w: draft %s is not linked to a stored cargo", ErrInvalidInput, id)
	}
	return s.updateLocked(ctx, d)
}

func (s *Service) updateLocked(ctx context.Context, d *draft) (domain.SubmitResult, error) {
	booking := d.form.Booking()
	if missing := validate(booking); len(missing) > 0 {
		return domain.SubmitResult{}, &ValidationError{Missing: missing}
	}

	record := payload.Build(booking, booking.Boxes, d.form.Summary()).Sparse()
	if err := s.repo.PersistCargoUpdate(ctx, booking.CargoID, record); err != nil {
		log.Printf("[service] WARN: update cargo failed id=%d: %v", booking.CargoID, err)
		return domain.SubmitResult{}, &PersistenceError{Op: "update", Err: err}
	}

	persisted, err := s.repo.FetchCargoByID(ctx, booking.CargoID)
	if err != nil {
		log.Printf("[service] WARN: re-read cargo failed id=%d: %v", booking.CargoID, err)
		persisted = domain.PersistedCargo{ID: booking.CargoID, BookingNo: booking.BookingNo, Record: record}
	}

	return domain.SubmitResult{
		Cargo:          persisted,
		BookingNo:      booking.BookingNo,
		ShownBookingNo: booking.BookingNo,
		Payload:        record,
	}, nil
}

// OpenCargoForEdit loads a stored cargo into a new draft.
func (s *Service) OpenCargoForEdit(ctx context.Context, cargoID int64) (domain.DraftView, error) {
	persisted, err := s.GetCargo(ctx, cargoID)
	if err != nil {
		return domain.DraftView{}, err
	}

	lookups, warnings := s.loader.Load(ctx, persisted.BranchID)
	booking, err := payload.Reconstruct(persisted.Record, lookups)
	if err != nil {
		return domain.DraftView{}, fmt.Errorf("%w: cargo %d: %v", ErrInvalidInput, cargoID, err)
	}
	booking.CargoID = persisted.ID
	if booking.BookingNo == "" {
		booking.BookingNo = persisted.BookingNo
	}
	if booking.Branch.ID == "" {
		booking.Branch = s.branchSelection(ctx, persisted.BranchID)
	}

	d := s.register(ctx, cargo.NewForm(booking))
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups = &lookups
	d.warnings = warnings
	return d.view(), nil
}

// GetInvoice renders a stored cargo in its flat invoice form.
func (s *Service) GetInvoice(ctx context.Context, cargoID int64) (domain.InvoiceView, error) {
	persisted, err := s.GetCargo(ctx, cargoID)
	if err != nil {
		return domain.InvoiceView{}, err
	}
	booking, err := payload.Reconstruct(persisted.Record, domain.Lookups{})
	if err != nil {
		return domain.InvoiceView{}, fmt.Errorf("%w: cargo %d: %v", ErrInvalidInput, cargoID, err)
	}
	booking.CargoID = persisted.ID
	if booking.BookingNo == "" {
		booking.BookingNo = persisted.BookingNo
	}

	flat := normalize.Flatten(booking.Boxes)
	return domain.InvoiceView{
		CargoID:    persisted.ID,
		BookingNo:  booking.BookingNo,
		Booking:    booking,
		Items:      flat.Items,
		BoxWeights: flat.BoxWeights,
		Summary:    ledger.Compute(booking.Boxes, booking.Charges, booking.VATPercentage),
	}, nil
}

// ComputeCharges runs the ledger without a draft.
func (s *Service) ComputeCharges(req domain.ChargeComputeRequest) domain.LedgerSummary {
	form := cargo.NewForm(domain.Booking{
		Boxes:         req.Boxes,
		Charges:       req.Charges,
		VATPercentage: req.VATPercentage,
	})
	return form.Summary()
}

// Normalize reads a record in any supported shape and returns it both nested
// and flat.
func (s *Service) Normalize(raw any) (domain.NormalizedCargo, error) {
	booking, err := payload.Reconstruct(raw, domain.Lookups{})
	if err != nil {
		if errors.Is(err, payload.ErrUnreadableRecord) {
			return domain.NormalizedCargo{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return domain.NormalizedCargo{}, err
	}

	flat := normalize.Flatten(booking.Boxes)
	return domain.NormalizedCargo{
		Boxes:      booking.Boxes,
		Items:      flat.Items,
		BoxWeights: flat.BoxWeights,
		Summary:    ledger.Compute(booking.Boxes, booking.Charges, booking.VATPercentage),
	}, nil
}
