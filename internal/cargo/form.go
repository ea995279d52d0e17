// Package cargo implements the editable box/item model of a booking.
//
// A Form always holds at least one box, every box holds at least one item and
// the total item count never exceeds domain.MaxItemsPerBooking. Operations that
// would break those rules leave the form untouched and return a warning error.
package cargo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"cargodesk/backend/internal/domain"
	"cargodesk/backend/internal/ledger"
	"cargodesk/backend/internal/money"
)

var (
	ErrItemLimit       = fmt.Errorf("a booking can hold at most %d items", domain.MaxItemsPerBooking)
	ErrLastBox         = errors.New("a booking must keep at least one box")
	ErrLastItem        = errors.New("a box must keep at least one item")
	ErrIndexOutOfRange = errors.New("box or item index out of range")
	ErrUnknownField    = errors.New("unknown item field")
	ErrUnknownCharge   = errors.New("unknown charge row")
)

// IsWarning reports whether err is a rejected mutation rather than a fault.
func IsWarning(err error) bool {
	return errors.Is(err, ErrItemLimit) || errors.Is(err, ErrLastBox) || errors.Is(err, ErrLastItem)
}

type ItemField string

const (
	FieldName   ItemField = "name"
	FieldPieces ItemField = "pieces"
	FieldWeight ItemField = "item_weight"
)

type Form struct {
	booking domain.Booking
}

// NewForm takes ownership of a copy of booking and repairs the cardinality
// invariants: missing boxes or items are replaced with placeholders and numeric
// fields are clamped.
func NewForm(booking domain.Booking) *Form {
	f := &Form{booking: cloneBooking(booking)}
	if f.booking.Charges == nil {
		f.booking.Charges = domain.NewCharges()
	}
	if len(f.booking.Boxes) == 0 {
		f.booking.Boxes = []domain.Box{newBox("1")}
	}
	for i := range f.booking.Boxes {
		box := &f.booking.Boxes[i]
		box.BoxWeight = money.NonNegative(box.BoxWeight)
		if strings.TrimSpace(box.BoxNumber) == "" {
			box.BoxNumber = strconv.Itoa(i + 1)
		}
		if len(box.Items) == 0 {
			box.Items = []domain.Item{domain.PlaceholderItem()}
		}
		for j := range box.Items {
			box.Items[j].Pieces = money.NonNegativeInt(box.Items[j].Pieces)
			box.Items[j].ItemWeight = money.NonNegative(box.Items[j].ItemWeight)
		}
	}
	f.booking.VATPercentage = money.NonNegative(f.booking.VATPercentage)
	f.syncTotalWeight()
	return f
}

func newBox(number string) domain.Box {
	return domain.Box{BoxNumber: number, Items: []domain.Item{domain.PlaceholderItem()}}
}

// Booking returns a deep copy of the current state.
func (f *Form) Booking() domain.Booking {
	return cloneBooking(f.booking)
}

func (f *Form) Boxes() []domain.Box {
	return cloneBoxes(f.booking.Boxes)
}

func (f *Form) ItemCount() int {
	count := 0
	for _, box := range f.booking.Boxes {
		count += len(box.Items)
	}
	return count
}

func (f *Form) TotalWeight() float64 {
	return ledger.TotalWeight(f.booking.Boxes)
}

// NextBoxNumber is max(numeric labels)+1, or count+1 when no label is numeric.
func (f *Form) NextBoxNumber() string {
	highest := int64(0)
	found := false
	for _, box := range f.booking.Boxes {
		n, err := strconv.ParseInt(strings.TrimSpace(box.BoxNumber), 10, 64)
		if err != nil {
			continue
		}
		if !found || n > highest {
			highest = n
			found = true
		}
	}
	if !found {
		return strconv.Itoa(len(f.booking.Boxes) + 1)
	}
	return strconv.FormatInt(highest+1, 10)
}

func (f *Form) AddBox() error {
	if f.ItemCount() >= domain.MaxItemsPerBooking {
		return ErrItemLimit
	}
	f.booking.Boxes = append(f.booking.Boxes, newBox(f.NextBoxNumber()))
	f.syncTotalWeight()
	return nil
}

// RemoveBox drops the box at index. Remaining boxes keep their labels.
func (f *Form) RemoveBox(index int) error {
	if index < 0 || index >= len(f.booking.Boxes) {
		return ErrIndexOutOfRange
	}
	if len(f.booking.Boxes) <= 1 {
		return ErrLastBox
	}
	f.booking.Boxes = append(f.booking.Boxes[:index], f.booking.Boxes[index+1:]...)
	f.syncTotalWeight()
	return nil
}

func (f *Form) SetBoxWeight(index int, value any) error {
	if index < 0 || index >= len(f.booking.Boxes) {
		return ErrIndexOutOfRange
	}
	f.booking.Boxes[index].BoxWeight = money.Round(money.NonNegative(money.ToFloat(value)), 3)
	f.syncTotalWeight()
	return nil
}

func (f *Form) AddItemToBox(boxIndex int) error {
	if boxIndex < 0 || boxIndex >= len(f.booking.Boxes) {
		return ErrIndexOutOfRange
	}
	if f.ItemCount() >= domain.MaxItemsPerBooking {
		return ErrItemLimit
	}
	box := &f.booking.Boxes[boxIndex]
	box.Items = append(box.Items, domain.PlaceholderItem())
	return nil
}

func (f *Form) RemoveItemFromBox(boxIndex int, itemIndex int) error {
	if boxIndex < 0 || boxIndex >= len(f.booking.Boxes) {
		return ErrIndexOutOfRange
	}
	box := &f.booking.Boxes[boxIndex]
	if itemIndex < 0 || itemIndex >= len(box.Items) {
		return ErrIndexOutOfRange
	}
	if len(box.Items) <= 1 {
		return ErrLastItem
	}
	box.Items = append(box.Items[:itemIndex], box.Items[itemIndex+1:]...)
	return nil
}

func (f *Form) SetItem(boxIndex int, itemIndex int, field ItemField, value any) error {
	if boxIndex < 0 || boxIndex >= len(f.booking.Boxes) {
		return ErrIndexOutOfRange
	}
	box := &f.booking.Boxes[boxIndex]
	if itemIndex < 0 || itemIndex >= len(box.Items) {
		return ErrIndexOutOfRange
	}
	item := &box.Items[itemIndex]

	switch field {
	case FieldName:
		name, _ := value.(string)
		item.Name = strings.TrimSpace(name)
	case FieldPieces:
		item.Pieces = money.NonNegativeInt(money.ToInt(value))
	case FieldWeight:
		item.ItemWeight = money.Round(money.NonNegative(money.ToFloat(value)), 3)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return nil
}

// SetCharge stores the quantity and rate of one ledger row. The total_weight
// quantity is derived from the boxes and cannot be overridden here.
func (f *Form) SetCharge(key domain.ChargeKey, quantity any, rate any) error {
	if !domain.IsChargeKey(string(key)) {
		return fmt.Errorf("%w: %q", ErrUnknownCharge, key)
	}
	row := f.booking.Charges[key]
	row.Quantity = money.NonNegative(money.ToFloat(quantity))
	row.Rate = money.NonNegative(money.ToFloat(rate))
	row.Amount = money.Mul2(row.Quantity, row.Rate)
	f.booking.Charges[key] = row
	f.syncTotalWeight()
	return nil
}

func (f *Form) SetVATPercentage(value any) {
	f.booking.VATPercentage = money.NonNegative(money.ToFloat(value))
}

// Header exposes the non-content fields for in-place edits.
func (f *Form) Header() *domain.Booking {
	return &f.booking
}

func (f *Form) Summary() domain.LedgerSummary {
	return ledger.Compute(f.booking.Boxes, f.booking.Charges, f.booking.VATPercentage)
}

// ResetContent clears the boxes back to one default box and zeroes every charge
// quantity while keeping the rates.
func (f *Form) ResetContent() {
	f.booking.Boxes = []domain.Box{newBox("1")}
	for key, row := range f.booking.Charges {
		f.booking.Charges[key] = domain.ChargeRow{Rate: row.Rate}
	}
	f.syncTotalWeight()
}

func (f *Form) syncTotalWeight() {
	row := f.booking.Charges[domain.ChargeTotalWeight]
	row.Quantity = f.TotalWeight()
	row.Amount = money.Mul2(row.Quantity, row.Rate)
	f.booking.Charges[domain.ChargeTotalWeight] = row
}

func cloneBooking(b domain.Booking) domain.Booking {
	out := b
	out.Boxes = cloneBoxes(b.Boxes)
	if b.Charges != nil {
		out.Charges = b.Charges.Clone()
	}
	return out
}

func cloneBoxes(boxes []domain.Box) []domain.Box {
	if boxes == nil {
		return nil
	}
	out := make([]domain.Box, len(boxes))
	for i, box := range boxes {
		out[i] = box
		out[i].Items = append([]domain.Item(nil), box.Items...)
	}
	return out
}
