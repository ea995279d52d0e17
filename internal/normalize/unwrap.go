package normalize

// Unwrap extracts a list from the response shapes the lookup endpoints have used
// over time. Priority:
//
//  1. a bare array
//  2. {"data": [...]}
//  3. {"data": {"data": [...]}}
//
// Anything else yields an empty list.
func Unwrap(v any) []any {
	v = decodeEmbedded(v)
	switch val := v.(type) {
	case []any:
		return val
	case []map[string]any:
		out := make([]any, 0, len(val))
		for _, m := range val {
			out = append(out, m)
		}
		return out
	case map[string]any:
		switch data := decodeEmbedded(val["data"]).(type) {
		case []any:
			return data
		case map[string]any:
			if inner, ok := decodeEmbedded(data["data"]).([]any); ok {
				return inner
			}
		}
	}
	return []any{}
}

// UnwrapRecord extracts a single record from a bare object, {"data": {...}} or
// {"data": {"data": {...}}}. A one-element list is accepted as well.
func UnwrapRecord(v any) map[string]any {
	v = decodeEmbedded(v)
	if list, ok := v.([]any); ok {
		if len(list) != 1 {
			return nil
		}
		v = list[0]
	}
	record, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	for depth := 0; depth < 2; depth++ {
		inner, ok := decodeEmbedded(record["data"]).(map[string]any)
		if !ok {
			break
		}
		record = inner
	}
	return record
}
