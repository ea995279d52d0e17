package payload

import (
	"errors"
	"strconv"
	"strings"

	"cargodesk/backend/internal/domain"
	"cargodesk/backend/internal/money"
	"cargodesk/backend/internal/normalize"
)

var ErrUnreadableRecord = errors.New("record is not an object")

// Reconstruct rebuilds an editable booking from a stored record in any of the
// supported shapes. Selections resolve against lookups by ID first, then by
// case-insensitive name, and otherwise keep the record's own values.
func Reconstruct(raw any, lookups domain.Lookups) (domain.Booking, error) {
	record := normalize.UnwrapRecord(raw)
	if record == nil {
		return domain.Booking{}, ErrUnreadableRecord
	}

	booking := domain.Booking{
		CargoID:        money.ToInt(firstValue(record, "id", "cargo_id")),
		BookingNo:      text(firstValue(record, "booking_no", "invoice_no")),
		Date:           text(record["date"]),
		Time:           text(record["time"]),
		SpecialRemarks: text(record["special_remarks"]),
		VATPercentage:  money.NonNegative(money.ToFloat(record["vat_percentage"])),
	}

	options := map[string][]domain.Option{
		"branch":          lookups.Branches,
		"sender":          partyOptions(lookups.Senders),
		"receiver":        partyOptions(lookups.Receivers),
		"shipping_method": lookups.Lists.ShippingMethods,
		"payment_method":  lookups.Lists.PaymentMethods,
		"status":          lookups.Lists.Statuses,
		"delivery_type":   lookups.Lists.DeliveryTypes,
		"collected_by":    lookups.Lists.CollectedByRoles,
		"staff":           lookups.Staff,
		"driver":          driverOptions(lookups.Drivers),
	}
	for _, field := range selectionFields {
		id, name := selectionInput(record, field.prefix)
		*field.get(&booking) = Resolve(options[field.prefix], id, name)
	}

	booking.Boxes = normalize.Unflatten(record)
	booking.Charges = chargesFrom(record)
	return booking, nil
}

// Resolve matches a stored reference against an option list.
func Resolve(options []domain.Option, id string, name string) domain.Selection {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		for _, opt := range options {
			if opt.ID == n {
				return domain.Selection{ID: strconv.FormatInt(opt.ID, 10), Name: opt.Name}
			}
		}
	}
	if name != "" {
		for _, opt := range options {
			if strings.EqualFold(strings.TrimSpace(opt.Name), name) {
				return domain.Selection{ID: strconv.FormatInt(opt.ID, 10), Name: opt.Name}
			}
		}
	}
	return domain.Selection{ID: id, Name: name}
}

// selectionInput reads "<prefix>_id"/"<prefix>_name", a nested object under
// prefix, or a bare scalar under prefix.
func selectionInput(record map[string]any, prefix string) (string, string) {
	id := text(record[prefix+"_id"])
	name := text(record[prefix+"_name"])
	switch nested := record[prefix].(type) {
	case map[string]any:
		if id == "" {
			id = text(nested["id"])
		}
		if name == "" {
			name = text(firstValue(nested, "name", "label"))
		}
	case string, float64, int64:
		if id == "" && money.IsNumeric(nested) {
			id = text(nested)
		} else if name == "" {
			name = text(nested)
		}
	}
	return id, name
}

// chargesFrom restores the ledger inputs from a nested charges object or from
// the quantity_/unit_rate_ fields.
func chargesFrom(record map[string]any) domain.Charges {
	charges := domain.NewCharges()
	nested, _ := record["charges"].(map[string]any)
	for _, key := range domain.ChargeKeys {
		var qty, rate any
		if row, ok := nested[string(key)].(map[string]any); ok {
			qty, rate = row["quantity"], firstValue(row, "rate", "unit_rate")
		} else {
			qty = record["quantity_"+string(key)]
			rate = firstValue(record, "unit_rate_"+string(key), "rate_"+string(key))
		}
		row := domain.ChargeRow{
			Quantity: money.NonNegative(money.ToFloat(qty)),
			Rate:     money.NonNegative(money.ToFloat(rate)),
		}
		row.Amount = money.Mul2(row.Quantity, row.Rate)
		charges[key] = row
	}
	return charges
}

func partyOptions(parties []domain.Party) []domain.Option {
	out := make([]domain.Option, 0, len(parties))
	for _, p := range parties {
		out = append(out, domain.Option{ID: p.ID, Name: p.Name})
	}
	return out
}

func driverOptions(drivers []domain.Driver) []domain.Option {
	out := make([]domain.Option, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, domain.Option{ID: d.ID, Name: d.Name})
	}
	return out
}

func firstValue(m map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil && text(v) != "" {
			return v
		}
	}
	return nil
}

func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	}
	return ""
}
