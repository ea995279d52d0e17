// Package payload maps a booking to its persistence record and back.
package payload

import (
	"strconv"
	"strings"

	"cargodesk/backend/internal/domain"
	"cargodesk/backend/internal/money"
	"cargodesk/backend/internal/normalize"
)

// selectionFields pairs each header selection with its record field prefix.
var selectionFields = []struct {
	prefix string
	get    func(*domain.Booking) *domain.Selection
}{
	{"branch", func(b *domain.Booking) *domain.Selection { return &b.Branch }},
	{"sender", func(b *domain.Booking) *domain.Selection { return &b.Sender }},
	{"receiver", func(b *domain.Booking) *domain.Selection { return &b.Receiver }},
	{"shipping_method", func(b *domain.Booking) *domain.Selection { return &b.ShippingMethod }},
	{"payment_method", func(b *domain.Booking) *domain.Selection { return &b.PaymentMethod }},
	{"status", func(b *domain.Booking) *domain.Selection { return &b.Status }},
	{"delivery_type", func(b *domain.Booking) *domain.Selection { return &b.DeliveryType }},
	{"collected_by", func(b *domain.Booking) *domain.Selection { return &b.CollectedBy }},
	{"staff", func(b *domain.Booking) *domain.Selection { return &b.Staff }},
	{"driver", func(b *domain.Booking) *domain.Selection { return &b.Driver }},
}

// Build assembles the full creation record. Use Payload.Sparse for updates.
func Build(booking domain.Booking, boxes []domain.Box, summary domain.LedgerSummary) domain.Payload {
	out := domain.Payload{
		"booking_no":      strings.TrimSpace(booking.BookingNo),
		"date":            strings.TrimSpace(booking.Date),
		"time":            strings.TrimSpace(booking.Time),
		"special_remarks": strings.TrimSpace(booking.SpecialRemarks),
	}
	for _, field := range selectionFields {
		sel := field.get(&booking)
		out[field.prefix+"_id"] = CoerceID(sel.ID)
		out[field.prefix+"_name"] = strings.TrimSpace(sel.Name)
	}

	items, boxWeights := normalize.Flatten(boxes).Generic()
	out["items"] = items
	out["box_weight"] = boxWeights

	for _, line := range summary.Lines {
		places := int32(2)
		if line.Key == domain.ChargeTotalWeight {
			places = 3
		}
		out["quantity_"+string(line.Key)] = money.Fixed(line.Quantity, places)
		out["unit_rate_"+string(line.Key)] = money.Fixed(line.Rate, 2)
		out["amount_"+string(line.Key)] = money.Fixed(line.Amount, 2)
	}

	out["total_weight"] = money.Fixed(summary.TotalWeight, 3)
	out["sub_total"] = money.Fixed(summary.Subtotal, 2)
	out["bill_charges"] = money.Fixed(summary.BillCharges, 2)
	out["total_cost"] = money.Fixed(summary.TotalAmount, 2)
	out["vat_percentage"] = money.Fixed(summary.VATPercentage, 2)
	out["vat_cost"] = money.Fixed(summary.VATCost, 2)
	out["net_total"] = money.Fixed(summary.NetTotal, 2)
	out["no_of_pieces"] = summary.NoOfPieces
	return out
}

// CoerceID turns a form ID into an integer. Blank and non-numeric IDs become nil.
func CoerceID(id string) any {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		if !money.IsNumeric(id) {
			return nil
		}
		n = money.ToInt(id)
	}
	return n
}
