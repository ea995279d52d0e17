package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cargodesk/backend/internal/domain"
	"cargodesk/backend/internal/money"
)

func TestRecomputeOverridesTotalWeightQuantity(t *testing.T) {
	charges := domain.NewCharges()
	charges[domain.ChargeTotalWeight] = domain.ChargeRow{Quantity: 999, Rate: 2}

	res := Recompute(charges, 12.5)

	require.Len(t, res.Rows, len(domain.ChargeKeys))
	assert.Equal(t, domain.ChargeTotalWeight, res.Rows[0].Key)
	assert.Equal(t, 12.5, res.Rows[0].Quantity)
	assert.Equal(t, 25.0, res.Subtotal)
}

func TestRecomputeArithmetic(t *testing.T) {
	charges := domain.Charges{
		domain.ChargeTotalWeight:             {Rate: 1.35},
		domain.ChargeDuty:                    {Quantity: 3, Rate: 1.11},
		domain.ChargePackingCharge:           {Quantity: 2, Rate: 4.005},
		domain.ChargeAdditionalPackingCharge: {Quantity: 1, Rate: 0.1},
		domain.ChargeInsurance:               {Quantity: 1, Rate: 0.2},
		domain.ChargeAWBFee:                  {Quantity: 1, Rate: 25},
		domain.ChargeVATAmount:               {Quantity: 1, Rate: 7.5},
		domain.ChargeVolumeWeight:            {Quantity: 2.5, Rate: 3},
		domain.ChargeOtherCharges:            {Quantity: 1, Rate: 1},
		domain.ChargeDiscount:                {Quantity: 1, Rate: 10},
	}

	res := Recompute(charges, 7.333)

	for _, row := range res.Rows {
		assert.Equal(t, money.Mul2(row.Quantity, row.Rate), row.Amount, "row %s", row.Key)
	}
	assert.Equal(t, 9.9, res.Subtotal)
	assert.Equal(t, 3.33, res.Amount(domain.ChargeDuty))
	assert.Equal(t, 8.01, res.Amount(domain.ChargePackingCharge))

	// 3.33 + 8.01 + 0.1 + 0.2 + 25 + 7.5 + 7.5 + 1 - 10
	assert.Equal(t, 42.64, res.BillCharges)
	assert.Equal(t, 52.54, res.TotalAmount)
	assert.InDelta(t, res.Subtotal+res.BillCharges, res.TotalAmount, 1e-9)
}

func TestRecomputeMissingRowsReadAsZero(t *testing.T) {
	res := Recompute(nil, 0)

	assert.Zero(t, res.Subtotal)
	assert.Zero(t, res.BillCharges)
	assert.Zero(t, res.TotalAmount)
	assert.Len(t, res.Rows, len(domain.ChargeKeys))
}

func TestScenarioTwoBoxesWithDutyDiscountAndVAT(t *testing.T) {
	boxes := []domain.Box{
		{BoxNumber: "1", BoxWeight: 10.000, Items: []domain.Item{{Name: "Rice", Pieces: 3}}},
		{BoxNumber: "2", BoxWeight: 5.500, Items: []domain.Item{{Name: "Oil", Pieces: 2}}},
	}
	charges := domain.NewCharges()
	charges[domain.ChargeTotalWeight] = domain.ChargeRow{Rate: 3}
	charges[domain.ChargeDuty] = domain.ChargeRow{Quantity: 1, Rate: 2}
	charges[domain.ChargeVATAmount] = domain.ChargeRow{Quantity: 0, Rate: 0}
	charges[domain.ChargeDiscount] = domain.ChargeRow{Quantity: 1, Rate: 5}

	summary := Compute(boxes, charges, 15)

	assert.Equal(t, 15.5, summary.TotalWeight)
	assert.Equal(t, 15.5, summary.Lines[0].Quantity)
	assert.Equal(t, 46.5, summary.Subtotal)
	assert.Equal(t, -3.0, summary.BillCharges)
	assert.Equal(t, 6.98, summary.VATCost)
	assert.Equal(t, 43.5, summary.TotalAmount)
	assert.Equal(t, summary.TotalAmount, summary.NetTotal)
	assert.Equal(t, 2, summary.NoOfPieces)
}

func TestVATCostIsIndependentOfVATAmountRow(t *testing.T) {
	charges := domain.NewCharges()
	charges[domain.ChargeTotalWeight] = domain.ChargeRow{Rate: 10}
	charges[domain.ChargeVATAmount] = domain.ChargeRow{Quantity: 1, Rate: 99}

	summary := Compute([]domain.Box{{BoxNumber: "1", BoxWeight: 2}}, charges, 5)

	assert.Equal(t, 1.0, summary.VATCost)
	assert.Equal(t, 99.0, summary.Lines[6].Amount)
	assert.Equal(t, 119.0, summary.NetTotal)
}

func TestVATCostClampsNegativePercentage(t *testing.T) {
	assert.Zero(t, VATCost(100, -5))
	assert.Equal(t, 0.01, VATCost(0.1, 12.5))
}

func TestRecomputeIsDeterministic(t *testing.T) {
	charges := domain.NewCharges()
	charges[domain.ChargeDuty] = domain.ChargeRow{Quantity: 2, Rate: 3.3}

	first := Recompute(charges, 4)
	second := Recompute(charges, 4)

	assert.Equal(t, first, second)
	assert.Equal(t, domain.ChargeRow{Quantity: 2, Rate: 3.3}, charges[domain.ChargeDuty], "inputs must not be mutated")
}
