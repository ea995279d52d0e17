package normalize

import (
	"encoding/json"
	"strings"

	"cargodesk/backend/internal/domain"
)

// Historical field names accepted on input, in priority order. Everything past
// this package works with the canonical domain names only.
var (
	itemNameAliases   = []string{"name", "item_name", "description"}
	itemPiecesAliases = []string{"piece_no", "pieces", "piece", "qty"}
	itemWeightAliases = []string{"weight", "item_weight"}
	boxNumberAliases  = []string{"box_number", "boxNumber", "box_no"}
	boxWeightAliases  = []string{"box_weight", "boxWeight", "weight"}
	boxItemsAliases   = []string{"items", "box_items"}
)

// first returns the first alias holding a non-null value. Empty strings count
// as null.
func first(m map[string]any, aliases ...string) (any, bool) {
	for _, key := range aliases {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func firstString(m map[string]any, aliases ...string) string {
	v, ok := first(m, aliases...)
	if !ok {
		return ""
	}
	return stringify(v)
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		b, _ := json.Marshal(val)
		return string(b)
	case int, int64, int32:
		b, _ := json.Marshal(val)
		return string(b)
	}
	return ""
}

// decodeEmbedded expands JSON that older records stored as a string column.
func decodeEmbedded(v any) any {
	switch val := v.(type) {
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" || (trimmed[0] != '[' && trimmed[0] != '{') {
			return v
		}
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
			return v
		}
		return decoded
	case []byte:
		var decoded any
		if err := json.Unmarshal(val, &decoded); err != nil {
			return nil
		}
		return decoded
	case json.RawMessage:
		return decodeEmbedded([]byte(val))
	case domain.Payload:
		return map[string]any(val)
	}
	return v
}
