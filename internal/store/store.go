package store

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"cargodesk/backend/internal/domain"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidRecord = errors.New("invalid cargo record")
)

// Repository is the storage and master-data boundary of the booking engine.
// Booking numbers carry no uniqueness constraint; concurrent writers with the
// same number both succeed.
type Repository interface {
	FetchBranches(ctx context.Context) ([]domain.Branch, error)
	FetchBranchInvoiceCounter(ctx context.Context, branchID int64) (domain.BranchCounter, error)
	FetchBranchStaff(ctx context.Context, branchID int64) ([]domain.Staff, error)
	FetchDrivers(ctx context.Context) ([]domain.Driver, error)
	FetchMasterLists(ctx context.Context, req domain.MasterListRequest) (domain.MasterLists, error)
	FetchPartiesByRole(ctx context.Context, roleID int64) ([]domain.Party, error)
	PersistCargo(ctx context.Context, record domain.Payload) (domain.PersistedCargo, error)
	PersistCargoUpdate(ctx context.Context, id int64, record domain.Payload) error
	FetchCargoByID(ctx context.Context, id int64) (domain.PersistedCargo, error)
}

// Option list kinds as stored by the backends.
const (
	KindShippingMethod = "shipping_method"
	KindPaymentMethod  = "payment_method"
	KindDeliveryType   = "delivery_type"
	KindCollectedBy    = "collected_by"
	KindStatus         = "status"
)

// RequestedKinds lists the option kinds selected by req.
func RequestedKinds(req domain.MasterListRequest) []string {
	kinds := make([]string, 0, 5)
	if req.Methods {
		kinds = append(kinds, KindShippingMethod)
	}
	if req.PaymentMethods {
		kinds = append(kinds, KindPaymentMethod)
	}
	if req.DeliveryTypes {
		kinds = append(kinds, KindDeliveryType)
	}
	if req.CollectedByRoles {
		kinds = append(kinds, KindCollectedBy)
	}
	if req.Statuses {
		kinds = append(kinds, KindStatus)
	}
	return kinds
}

// AssignList stores options under the MasterLists field for kind.
func AssignList(lists *domain.MasterLists, kind string, options []domain.Option) {
	switch kind {
	case KindShippingMethod:
		lists.ShippingMethods = options
	case KindPaymentMethod:
		lists.PaymentMethods = options
	case KindDeliveryType:
		lists.DeliveryTypes = options
	case KindCollectedBy:
		lists.CollectedByRoles = options
	case KindStatus:
		lists.Statuses = options
	}
}

// BookingSequence parses the trailing digit run of a booking number.
func BookingSequence(bookingNo string) (int64, bool) {
	bookingNo = strings.TrimSpace(bookingNo)
	end := len(bookingNo)
	start := end
	for start > 0 && bookingNo[start-1] >= '0' && bookingNo[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, false
	}
	n, err := strconv.ParseInt(bookingNo[start:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// RecordKeys extracts and checks the indexed fields of a creation record.
func RecordKeys(record domain.Payload) (bookingNo string, branchID int64, err error) {
	bookingNo, _ = record["booking_no"].(string)
	bookingNo = strings.TrimSpace(bookingNo)
	switch v := record["branch_id"].(type) {
	case int64:
		branchID = v
	case int:
		branchID = int64(v)
	case float64:
		branchID = int64(v)
	}
	if bookingNo == "" || branchID <= 0 {
		return "", 0, ErrInvalidRecord
	}
	return bookingNo, branchID, nil
}
