// Package ledger computes the derived amounts and totals of the fixed charge rows.
//
// The vat_amount row is a manually entered figure. The VAT cost returned by
// Summarize is computed from the subtotal and is never written back into that row.
package ledger

import (
	"cargodesk/backend/internal/domain"
	"cargodesk/backend/internal/money"
)

type Result struct {
	Rows        []domain.LedgerLine
	TotalWeight float64
	Subtotal    float64
	BillCharges float64
	TotalAmount float64
}

// Amount returns the computed amount of one row, or 0 for an unknown key.
func (r Result) Amount(key domain.ChargeKey) float64 {
	for _, row := range r.Rows {
		if row.Key == key {
			return row.Amount
		}
	}
	return 0
}

// Recompute derives every row amount from its quantity and rate. The stored
// total_weight quantity is ignored in favour of totalWeight.
func Recompute(charges domain.Charges, totalWeight float64) Result {
	res := Result{
		Rows:        make([]domain.LedgerLine, 0, len(domain.ChargeKeys)),
		TotalWeight: totalWeight,
	}

	billParts := make([]float64, 0, len(domain.ChargeKeys))
	for _, key := range domain.ChargeKeys {
		row := charges[key]
		qty := money.ToFloat(row.Quantity)
		if key == domain.ChargeTotalWeight {
			qty = totalWeight
		}
		rate := money.ToFloat(row.Rate)
		amount := money.Mul2(qty, rate)
		res.Rows = append(res.Rows, domain.LedgerLine{Key: key, Quantity: qty, Rate: rate, Amount: amount})

		switch key {
		case domain.ChargeTotalWeight:
			res.Subtotal = amount
		case domain.ChargeDiscount:
			billParts = append(billParts, -amount)
		default:
			billParts = append(billParts, amount)
		}
	}

	res.BillCharges = money.Round2(money.Sum(billParts...))
	res.TotalAmount = money.Round2(money.Sum(res.Subtotal, res.BillCharges))
	return res
}

// VATCost is round2(subtotal × percentage / 100).
func VATCost(subtotal float64, vatPercentage float64) float64 {
	return money.Percent(subtotal, money.NonNegative(vatPercentage))
}

// Summarize attaches the VAT cost and net total to a recomputed ledger.
func Summarize(res Result, vatPercentage float64, boxCount int) domain.LedgerSummary {
	pct := money.NonNegative(vatPercentage)
	return domain.LedgerSummary{
		Lines:         res.Rows,
		TotalWeight:   res.TotalWeight,
		Subtotal:      res.Subtotal,
		BillCharges:   res.BillCharges,
		TotalAmount:   res.TotalAmount,
		VATPercentage: pct,
		VATCost:       VATCost(res.Subtotal, pct),
		NetTotal:      res.TotalAmount,
		NoOfPieces:    boxCount,
	}
}

// TotalWeight sums box weights; item weights play no part.
func TotalWeight(boxes []domain.Box) float64 {
	weights := make([]float64, 0, len(boxes))
	for _, box := range boxes {
		weights = append(weights, money.NonNegative(box.BoxWeight))
	}
	return money.Round(money.Sum(weights...), 3)
}

// Compute runs the whole ledger for a set of boxes.
func Compute(boxes []domain.Box, charges domain.Charges, vatPercentage float64) domain.LedgerSummary {
	return Summarize(Recompute(charges, TotalWeight(boxes)), vatPercentage, len(boxes))
}
