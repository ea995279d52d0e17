package cargo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cargodesk/backend/internal/domain"
)

func TestNewFormRepairsCardinality(t *testing.T) {
	form := NewForm(domain.Booking{})

	boxes := form.Boxes()
	require.Len(t, boxes, 1)
	assert.Equal(t, "1", boxes[0].BoxNumber)
	require.Len(t, boxes[0].Items, 1)
	assert.Equal(t, int64(1), boxes[0].Items[0].Pieces)

	form = NewForm(domain.Booking{Boxes: []domain.Box{{BoxWeight: -3}}})
	boxes = form.Boxes()
	assert.Equal(t, 0.0, boxes[0].BoxWeight)
	assert.Len(t, boxes[0].Items, 1)
}

func TestAddBoxNumbering(t *testing.T) {
	form := NewForm(domain.Booking{Boxes: []domain.Box{
		{BoxNumber: "1"}, {BoxNumber: "4"}, {BoxNumber: "A"},
	}})
	require.NoError(t, form.AddBox())
	boxes := form.Boxes()
	assert.Equal(t, "5", boxes[len(boxes)-1].BoxNumber)

	form = NewForm(domain.Booking{Boxes: []domain.Box{{BoxNumber: "A"}, {BoxNumber: "B"}}})
	require.NoError(t, form.AddBox())
	boxes = form.Boxes()
	assert.Equal(t, "3", boxes[2].BoxNumber)
}

func TestRemoveBoxKeepsLabels(t *testing.T) {
	form := NewForm(domain.Booking{})
	require.NoError(t, form.AddBox())
	require.NoError(t, form.AddBox())

	require.NoError(t, form.RemoveBox(1))
	boxes := form.Boxes()
	require.Len(t, boxes, 2)
	assert.Equal(t, "1", boxes[0].BoxNumber)
	assert.Equal(t, "3", boxes[1].BoxNumber)

	require.NoError(t, form.AddBox())
	assert.Equal(t, "4", form.Boxes()[2].BoxNumber)
}

func TestMinimumCardinalityIsNoOp(t *testing.T) {
	form := NewForm(domain.Booking{})

	err := form.RemoveBox(0)
	assert.ErrorIs(t, err, ErrLastBox)
	assert.True(t, IsWarning(err))
	assert.Len(t, form.Boxes(), 1)

	err = form.RemoveItemFromBox(0, 0)
	assert.ErrorIs(t, err, ErrLastItem)
	assert.Len(t, form.Boxes()[0].Items, 1)

	require.NoError(t, form.AddItemToBox(0))
	require.NoError(t, form.RemoveItemFromBox(0, 0))
	assert.Len(t, form.Boxes()[0].Items, 1)
}

func TestItemCapBlocksAddBoxAndAddItem(t *testing.T) {
	form := NewForm(domain.Booking{})
	for form.ItemCount() < domain.MaxItemsPerBooking {
		require.NoError(t, form.AddItemToBox(0))
	}
	require.Equal(t, domain.MaxItemsPerBooking, form.ItemCount())

	assert.ErrorIs(t, form.AddBox(), ErrItemLimit)
	assert.ErrorIs(t, form.AddItemToBox(0), ErrItemLimit)
	assert.Len(t, form.Boxes(), 1)
	assert.Equal(t, domain.MaxItemsPerBooking, form.ItemCount())
}

func TestItemCapCountsAcrossBoxes(t *testing.T) {
	form := NewForm(domain.Booking{})
	for i := 0; i < domain.MaxItemsPerBooking-1; i++ {
		require.NoError(t, form.AddBox())
	}
	assert.Equal(t, domain.MaxItemsPerBooking, form.ItemCount())
	assert.ErrorIs(t, form.AddBox(), ErrItemLimit)
	assert.ErrorIs(t, form.AddItemToBox(3), ErrItemLimit)
}

func TestNumericWritesAreClamped(t *testing.T) {
	form := NewForm(domain.Booking{})

	require.NoError(t, form.SetBoxWeight(0, "-5"))
	assert.Equal(t, 0.0, form.Boxes()[0].BoxWeight)

	require.NoError(t, form.SetBoxWeight(0, "abc"))
	assert.Equal(t, 0.0, form.Boxes()[0].BoxWeight)

	require.NoError(t, form.SetBoxWeight(0, "7.25"))
	assert.Equal(t, 7.25, form.Boxes()[0].BoxWeight)

	require.NoError(t, form.SetItem(0, 0, FieldPieces, "-2"))
	assert.Equal(t, int64(0), form.Boxes()[0].Items[0].Pieces)

	require.NoError(t, form.SetItem(0, 0, FieldPieces, "4"))
	require.NoError(t, form.SetItem(0, 0, FieldWeight, "oops"))
	require.NoError(t, form.SetItem(0, 0, FieldName, "  Dates "))
	item := form.Boxes()[0].Items[0]
	assert.Equal(t, int64(4), item.Pieces)
	assert.Equal(t, 0.0, item.ItemWeight)
	assert.Equal(t, "Dates", item.Name)

	assert.ErrorIs(t, form.SetItem(0, 0, "colour", "red"), ErrUnknownField)
	assert.ErrorIs(t, form.SetItem(0, 5, FieldName, "x"), ErrIndexOutOfRange)
	assert.ErrorIs(t, form.SetBoxWeight(9, 1), ErrIndexOutOfRange)
}

func TestTotalWeightQuantityIsDerived(t *testing.T) {
	form := NewForm(domain.Booking{})
	require.NoError(t, form.SetCharge(domain.ChargeTotalWeight, 500, 2))

	require.NoError(t, form.SetBoxWeight(0, 10))
	require.NoError(t, form.AddBox())
	require.NoError(t, form.SetBoxWeight(1, 5.5))

	booking := form.Booking()
	assert.Equal(t, 15.5, booking.Charges[domain.ChargeTotalWeight].Quantity)
	assert.Equal(t, 31.0, booking.Charges[domain.ChargeTotalWeight].Amount)

	require.NoError(t, form.RemoveBox(0))
	booking = form.Booking()
	assert.Equal(t, 5.5, booking.Charges[domain.ChargeTotalWeight].Quantity)
	assert.Equal(t, 5.5, form.Summary().TotalWeight)
}

func TestBoxWeightDivergesFromItemWeights(t *testing.T) {
	form := NewForm(domain.Booking{})
	require.NoError(t, form.SetBoxWeight(0, 3))
	require.NoError(t, form.SetItem(0, 0, FieldWeight, 10))

	assert.Equal(t, 3.0, form.TotalWeight())
	assert.Equal(t, 10.0, form.Boxes()[0].Items[0].ItemWeight)
}

func TestSetChargeRejectsUnknownRow(t *testing.T) {
	form := NewForm(domain.Booking{})
	assert.ErrorIs(t, form.SetCharge("freight", 1, 1), ErrUnknownCharge)
}

func TestResetContentKeepsRates(t *testing.T) {
	form := NewForm(domain.Booking{})
	require.NoError(t, form.SetCharge(domain.ChargeDuty, 3, 2))
	require.NoError(t, form.SetBoxWeight(0, 8))
	require.NoError(t, form.AddBox())

	form.ResetContent()

	booking := form.Booking()
	assert.Len(t, booking.Boxes, 1)
	assert.Equal(t, domain.ChargeRow{Rate: 2}, booking.Charges[domain.ChargeDuty])
	assert.Zero(t, booking.Charges[domain.ChargeTotalWeight].Quantity)
}

func TestBookingReturnsCopy(t *testing.T) {
	form := NewForm(domain.Booking{})
	snapshot := form.Booking()
	snapshot.Boxes[0].Items[0].Name = "mutated"
	snapshot.Charges[domain.ChargeDuty] = domain.ChargeRow{Rate: 9}

	assert.Equal(t, "", form.Boxes()[0].Items[0].Name)
	assert.Zero(t, form.Booking().Charges[domain.ChargeDuty].Rate)
}
