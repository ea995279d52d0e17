package normalize

import (
	"sort"
	"strconv"
	"strings"

	"cargodesk/backend/internal/domain"
	"cargodesk/backend/internal/money"
)

type rawBox struct {
	label     string
	weight    any
	hasWeight bool
	items     []domain.Item
}

// Unflatten rebuilds the nested model from any of the record shapes seen in
// storage:
//
//  1. "boxes" as an array of box objects carrying their own items
//  2. "boxes" as an object keyed by box number
//  3. a flat "items" array tagged with box_number, grouped by that tag
//
// The result always holds at least one box with at least one item.
func Unflatten(record map[string]any) []domain.Box {
	if record == nil {
		return []domain.Box{placeholderBox("1")}
	}

	var groups []rawBox
	if raw, ok := first(record, "boxes"); ok {
		groups = boxesFrom(decodeEmbedded(raw))
	}
	if len(groups) == 0 {
		if raw, ok := first(record, "items"); ok {
			groups = groupFlatItems(decodeEmbedded(raw))
		}
	}
	if len(groups) == 0 {
		return []domain.Box{placeholderBox("1")}
	}

	var topWeights any
	if raw, ok := record["box_weight"]; ok {
		topWeights = decodeEmbedded(raw)
	}

	boxes := make([]domain.Box, 0, len(groups))
	for i, g := range groups {
		label := g.label
		if label == "" {
			label = strconv.Itoa(i + 1)
		}
		box := domain.Box{BoxNumber: label, Items: g.items}
		if len(box.Items) == 0 {
			box.Items = []domain.Item{domain.PlaceholderItem()}
		}
		box.BoxWeight = resolveBoxWeight(topWeights, i, label, g)
		boxes = append(boxes, box)
	}
	return boxes
}

func placeholderBox(label string) domain.Box {
	return domain.Box{BoxNumber: label, Items: []domain.Item{domain.PlaceholderItem()}}
}

func boxesFrom(raw any) []rawBox {
	switch v := raw.(type) {
	case []any:
		groups := make([]rawBox, 0, len(v))
		for _, entry := range v {
			m, ok := entry.(map[string]any)
			if !ok {
				continue
			}
			groups = append(groups, boxFromMap(m, ""))
		}
		return groups
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		// Map iteration order is random, so non-numeric keys fall back to
		// lexical order here.
		sort.Strings(keys)
		sortLabels(keys)
		groups := make([]rawBox, 0, len(keys))
		for _, key := range keys {
			m, ok := decodeEmbedded(v[key]).(map[string]any)
			if !ok {
				continue
			}
			groups = append(groups, boxFromMap(m, key))
		}
		return groups
	}
	return nil
}

func boxFromMap(m map[string]any, key string) rawBox {
	g := rawBox{label: firstString(m, boxNumberAliases...)}
	if g.label == "" {
		g.label = strings.TrimSpace(key)
	}
	g.weight, g.hasWeight = first(m, boxWeightAliases...)
	if raw, ok := first(m, boxItemsAliases...); ok {
		if list, ok := decodeEmbedded(raw).([]any); ok {
			for _, entry := range list {
				if item, ok := itemFrom(entry); ok {
					g.items = append(g.items, item)
				}
			}
		}
	}
	return g
}

func groupFlatItems(raw any) []rawBox {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}
	index := map[string]int{}
	var groups []rawBox
	for _, entry := range list {
		item, ok := itemFrom(entry)
		if !ok {
			continue
		}
		label := "1"
		if m, isMap := entry.(map[string]any); isMap {
			if tag := firstString(m, boxNumberAliases...); tag != "" {
				label = tag
			}
		}
		pos, exists := index[label]
		if !exists {
			pos = len(groups)
			index[label] = pos
			groups = append(groups, rawBox{label: label})
		}
		groups[pos].items = append(groups[pos].items, item)
	}

	labels := make([]string, len(groups))
	for i, g := range groups {
		labels[i] = g.label
	}
	sorted := make([]rawBox, 0, len(groups))
	for _, i := range orderByBoxNumber(labels) {
		sorted = append(sorted, groups[i])
	}
	return sorted
}

func itemFrom(entry any) (domain.Item, bool) {
	switch v := entry.(type) {
	case map[string]any:
		item := domain.Item{Name: firstString(v, itemNameAliases...)}
		if pieces, ok := first(v, itemPiecesAliases...); ok {
			item.Pieces = money.NonNegativeInt(money.ToInt(pieces))
		}
		if weight, ok := first(v, itemWeightAliases...); ok {
			item.ItemWeight = money.Round(money.NonNegative(money.ToFloat(weight)), 3)
		}
		return item, true
	case string:
		if strings.TrimSpace(v) == "" {
			return domain.Item{}, false
		}
		return domain.Item{Name: strings.TrimSpace(v), Pieces: 1}, true
	}
	return domain.Item{}, false
}

// resolveBoxWeight: top-level box_weight entry, then the box's own weight, then
// the sum of its item weights, then zero.
func resolveBoxWeight(top any, index int, label string, g rawBox) float64 {
	if v, ok := topLevelWeight(top, index, label); ok {
		return money.Round(money.NonNegative(money.ToFloat(v)), 3)
	}
	if g.hasWeight {
		return money.Round(money.NonNegative(money.ToFloat(g.weight)), 3)
	}
	var sum float64
	for _, item := range g.items {
		sum = money.Sum(sum, item.ItemWeight)
	}
	return money.Round(sum, 3)
}

func topLevelWeight(top any, index int, label string) (any, bool) {
	switch v := top.(type) {
	case []any:
		if index < len(v) && present(v[index]) {
			return v[index], true
		}
	case map[string]any:
		if w, ok := first(v, label); ok {
			return w, true
		}
	}
	return nil, false
}

func present(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func sortLabels(labels []string) {
	order := orderByBoxNumber(labels)
	sorted := make([]string, len(labels))
	for i, idx := range order {
		sorted[i] = labels[idx]
	}
	copy(labels, sorted)
}
