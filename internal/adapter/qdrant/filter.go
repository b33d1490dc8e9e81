package qdrant

import (
	"strconv"

	"docqa/internal/domain"
)

// translateFilter maps a metadata predicate onto Qdrant must / must_not
// match conditions. The zero filter becomes nil (no filtering).
func translateFilter(f domain.Filter) (map[string]any, error) {
	if f.IsZero() {
		return nil, nil
	}
	if err := f.Validate(); err != nil {
		return nil, opErr("filter_translate", OperationErrorUnsupportedFilter, err.Error(), err)
	}

	var value any = f.Value
	if f.Field == domain.FieldChunkID {
		n, _ := strconv.Atoi(f.Value)
		value = n
	}
	cond := matchCondition(string(f.Field), value)

	switch f.Op {
	case domain.OpNe:
		return map[string]any{"must_not": []any{cond}}, nil
	default:
		return map[string]any{"must": []any{cond}}, nil
	}
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{
		"key": key,
		"match": map[string]any{
			"value": value,
		},
	}
}
