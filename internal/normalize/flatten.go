// Package normalize converts between the nested box/item model and the flat
// persistence representation, and absorbs the historical record shapes and
// field names at the input boundary.
package normalize

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"cargodesk/backend/internal/domain"
	"cargodesk/backend/internal/money"
)

const zeroPrice = "0.00"

type Flat struct {
	Items      []domain.FlatItem `json:"items"`
	BoxWeights []string          `json:"box_weight"`
}

// Flatten walks boxes in order and emits one row per item. Box labels are kept
// when they are non-empty and unique; otherwise every box is relabelled by
// ordinal so grouping on box_number cannot merge two boxes.
func Flatten(boxes []domain.Box) Flat {
	labels := boxLabels(boxes)
	out := Flat{Items: []domain.FlatItem{}, BoxWeights: []string{}}

	for i, box := range boxes {
		items := box.Items
		if len(items) == 0 {
			items = []domain.Item{domain.PlaceholderItem()}
		}
		for j, item := range items {
			name := strings.TrimSpace(item.Name)
			if name == "" {
				name = fmt.Sprintf("Box %s contents", labels[i])
			}
			out.Items = append(out.Items, domain.FlatItem{
				SlNo:       j + 1,
				BoxNumber:  labels[i],
				Name:       name,
				PieceNo:    strconv.FormatInt(money.NonNegativeInt(item.Pieces), 10),
				Weight:     money.Fixed(money.NonNegative(item.ItemWeight), 3),
				UnitPrice:  zeroPrice,
				TotalPrice: zeroPrice,
			})
		}
	}

	for _, i := range orderByBoxNumber(labels) {
		out.BoxWeights = append(out.BoxWeights, money.Fixed(money.NonNegative(boxes[i].BoxWeight), 3))
	}
	return out
}

// Generic returns the items and box weights in the decoded-JSON form records
// are stored in.
func (f Flat) Generic() (items []any, boxWeights []any) {
	items = make([]any, 0, len(f.Items))
	for _, item := range f.Items {
		items = append(items, map[string]any{
			"slno":        item.SlNo,
			"box_number":  item.BoxNumber,
			"name":        item.Name,
			"piece_no":    item.PieceNo,
			"weight":      item.Weight,
			"unit_price":  item.UnitPrice,
			"total_price": item.TotalPrice,
		})
	}
	boxWeights = make([]any, 0, len(f.BoxWeights))
	for _, w := range f.BoxWeights {
		boxWeights = append(boxWeights, w)
	}
	return items, boxWeights
}

func boxLabels(boxes []domain.Box) []string {
	labels := make([]string, len(boxes))
	seen := make(map[string]bool, len(boxes))
	reuse := true
	for i, box := range boxes {
		label := strings.TrimSpace(box.BoxNumber)
		if label == "" || seen[label] {
			reuse = false
		}
		seen[label] = true
		labels[i] = label
	}
	if !reuse {
		for i := range labels {
			labels[i] = strconv.Itoa(i + 1)
		}
	}
	return labels
}

// orderByBoxNumber returns indexes sorted by ascending numeric label. Labels
// that do not parse keep their relative order after the numeric ones.
func orderByBoxNumber(labels []string) []int {
	order := make([]int, len(labels))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		na, okA := parseBoxNumber(labels[order[a]])
		nb, okB := parseBoxNumber(labels[order[b]])
		switch {
		case okA && okB:
			return na < nb
		case okA:
			return true
		default:
			return false
		}
	})
	return order
}

func parseBoxNumber(label string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(label), 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
