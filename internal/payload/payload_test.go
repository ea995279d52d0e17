package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cargodesk/backend/internal/domain"
	"cargodesk/backend/internal/ledger"
)

func sampleBooking() domain.Booking {
	charges := domain.NewCharges()
	charges[domain.ChargeTotalWeight] = domain.ChargeRow{Rate: 3}
	charges[domain.ChargeDuty] = domain.ChargeRow{Quantity: 1, Rate: 2}
	charges[domain.ChargeDiscount] = domain.ChargeRow{Quantity: 1, Rate: 5}
	return domain.Booking{
		BookingNo:      "BR:000007",
		Branch:         domain.Selection{ID: "1", Name: "Dubai Main"},
		Sender:         domain.Selection{ID: "12", Name: "Ahmed Traders"},
		Receiver:       domain.Selection{ID: "x-9", Name: "Fatima"},
		ShippingMethod: domain.Selection{ID: "2", Name: "Sea"},
		Date:           "2026-10-14",
		Boxes: []domain.Box{
			{BoxNumber: "1", BoxWeight: 10, Items: []domain.Item{{Name: "Rice", Pieces: 3}}},
			{BoxNumber: "2", BoxWeight: 5.5, Items: []domain.Item{{Name: "Oil", Pieces: 2, ItemWeight: 1.2}}},
		},
		Charges:       charges,
		VATPercentage: 15,
	}
}

func TestBuildFields(t *testing.T) {
	booking := sampleBooking()
	summary := ledger.Compute(booking.Boxes, booking.Charges, booking.VATPercentage)

	p := Build(booking, booking.Boxes, summary)

	assert.Equal(t, "BR:000007", p["booking_no"])
	assert.Equal(t, int64(1), p["branch_id"])
	assert.Equal(t, int64(12), p["sender_id"])
	assert.Nil(t, p["receiver_id"], "non-numeric IDs are not coerced")
	assert.Equal(t, "Fatima", p["receiver_name"])

	assert.Equal(t, "15.500", p["quantity_total_weight"])
	assert.Equal(t, "3.00", p["unit_rate_total_weight"])
	assert.Equal(t, "46.50", p["amount_total_weight"])
	assert.Equal(t, "1.00", p["quantity_duty"])
	assert.Equal(t, "5.00", p["amount_discount"])
	for _, key := range domain.ChargeKeys {
		assert.Contains(t, p, "quantity_"+string(key))
		assert.Contains(t, p, "unit_rate_"+string(key))
		assert.Contains(t, p, "amount_"+string(key))
	}

	assert.Equal(t, "15.500", p["total_weight"])
	assert.Equal(t, "46.50", p["sub_total"])
	assert.Equal(t, "-3.00", p["bill_charges"])
	assert.Equal(t, "43.50", p["total_cost"])
	assert.Equal(t, "6.98", p["vat_cost"])
	assert.Equal(t, "43.50", p["net_total"])
	assert.Equal(t, 2, p["no_of_pieces"])

	items, ok := p["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	second := items[1].(map[string]any)
	assert.Equal(t, "2", second["box_number"])
	assert.Equal(t, "2", second["piece_no"])
	assert.Equal(t, "1.200", second["weight"])
	assert.Equal(t, []any{"10.000", "5.500"}, p["box_weight"])
}

func TestSparseDropsEmptyFields(t *testing.T) {
	booking := sampleBooking()
	p := Build(booking, booking.Boxes, ledger.Compute(booking.Boxes, booking.Charges, 0))

	full := len(p)
	sparse := p.Sparse()

	assert.Contains(t, p, "special_remarks")
	assert.Contains(t, p, "receiver_id")
	assert.NotContains(t, sparse, "special_remarks")
	assert.NotContains(t, sparse, "receiver_id")
	assert.NotContains(t, sparse, "driver_name")
	assert.Equal(t, "BR:000007", sparse["booking_no"])
	assert.Less(t, len(sparse), full)
}

func TestCoerceID(t *testing.T) {
	assert.Equal(t, int64(42), CoerceID(" 42 "))
	assert.Equal(t, int64(7), CoerceID("7.0"))
	assert.Nil(t, CoerceID(""))
	assert.Nil(t, CoerceID("abc"))
}

func TestResolvePrefersIDThenName(t *testing.T) {
	options := []domain.Option{{ID: 1, Name: "Air"}, {ID: 2, Name: "Sea"}}

	assert.Equal(t, domain.Selection{ID: "2", Name: "Sea"}, Resolve(options, "2", "Air"))
	assert.Equal(t, domain.Selection{ID: "1", Name: "Air"}, Resolve(options, "99", " air "))
	assert.Equal(t, domain.Selection{ID: "99", Name: "Road"}, Resolve(options, "99", "Road"))
	assert.Equal(t, domain.Selection{}, Resolve(nil, "", ""))
}

func TestReconstructRoundTrip(t *testing.T) {
	booking := sampleBooking()
	p := Build(booking, booking.Boxes, ledger.Compute(booking.Boxes, booking.Charges, booking.VATPercentage))

	raw, err := json.Marshal(map[string]any{"data": p})
	require.NoError(t, err)
	var decoded any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	lookups := domain.Lookups{
		Branches: []domain.Option{{ID: 1, Name: "Dubai Main"}},
		Senders:  []domain.Party{{ID: 12, Name: "Ahmed Traders"}},
		Receivers: []domain.Party{
			{ID: 30, Name: "FATIMA"},
		},
		Lists: domain.MasterLists{ShippingMethods: []domain.Option{{ID: 2, Name: "Sea"}}},
	}

	got, err := Reconstruct(decoded, lookups)
	require.NoError(t, err)

	assert.Equal(t, "BR:000007", got.BookingNo)
	assert.Equal(t, domain.Selection{ID: "1", Name: "Dubai Main"}, got.Branch)
	assert.Equal(t, domain.Selection{ID: "30", Name: "FATIMA"}, got.Receiver, "name fallback")
	assert.Equal(t, domain.Selection{ID: "2", Name: "Sea"}, got.ShippingMethod)
	assert.Equal(t, 15.0, got.VATPercentage)
	require.Len(t, got.Boxes, 2)
	assert.Equal(t, 5.5, got.Boxes[1].BoxWeight)
	assert.Equal(t, domain.ChargeRow{Quantity: 1, Rate: 2, Amount: 2}, got.Charges[domain.ChargeDuty])
	assert.Equal(t, 3.0, got.Charges[domain.ChargeTotalWeight].Rate)

	again := ledger.Compute(got.Boxes, got.Charges, got.VATPercentage)
	assert.Equal(t, 43.5, again.TotalAmount)
}

func TestReconstructNestedSelectionsAndCharges(t *testing.T) {
	record := map[string]any{
		"booking_no": "BR:000011",
		"sender":     map[string]any{"id": 4.0, "name": "Old Name"},
		"status":     "Delivered",
		"charges": map[string]any{
			"duty": map[string]any{"quantity": "2", "rate": "1.5"},
		},
		"boxes": map[string]any{"1": map[string]any{"box_weight": "7.000", "items": []any{map[string]any{"name": "Dates", "piece_no": "4"}}}},
	}
	lookups := domain.Lookups{
		Senders: []domain.Party{{ID: 4, Name: "New Name"}},
		Lists:   domain.MasterLists{Statuses: []domain.Option{{ID: 3, Name: "delivered"}}},
	}

	got, err := Reconstruct(record, lookups)
	require.NoError(t, err)

	assert.Equal(t, domain.Selection{ID: "4", Name: "New Name"}, got.Sender)
	assert.Equal(t, domain.Selection{ID: "3", Name: "delivered"}, got.Status)
	assert.Equal(t, domain.ChargeRow{Quantity: 2, Rate: 1.5, Amount: 3}, got.Charges[domain.ChargeDuty])
	require.Len(t, got.Boxes, 1)
	assert.Equal(t, 7.0, got.Boxes[0].BoxWeight)
}

func TestReconstructRejectsNonObjects(t *testing.T) {
	_, err := Reconstruct([]any{1, 2}, domain.Lookups{})
	assert.ErrorIs(t, err, ErrUnreadableRecord)
}
