package domain

import (
	"fmt"
	"strconv"
)

// FilterField names a metadata attribute that can be filtered on.
type FilterField string

const (
	FieldSource  FilterField = "source"
	FieldHash    FilterField = "hash"
	FieldChunkID FilterField = "chunk_id"
)

// FilterOp is a comparison operator.
type FilterOp string

const (
	OpEq FilterOp = "$eq"
	OpNe FilterOp = "$ne"
)

// Filter is a single metadata predicate. The zero value matches everything.
type Filter struct {
	Field FilterField
	Op    FilterOp
	Value string
}

func HashIs(hash string) Filter {
	return Filter{Field: FieldHash, Op: OpEq, Value: hash}
}

func SourceIs(source string) Filter {
	return Filter{Field: FieldSource, Op: OpEq, Value: source}
}

func (f Filter) IsZero() bool {
	return f.Field == "" && f.Op == "" && f.Value == ""
}

// Validate rejects unknown fields and operators.
func (f Filter) Validate() error {
	if f.IsZero() {
		return nil
	}
	switch f.Field {
	case FieldSource, FieldHash:
	case FieldChunkID:
		if _, err := strconv.Atoi(f.Value); err != nil {
			return fmt.Errorf("%w: chunk_id filter value %q is not an integer", ErrInvalidInput, f.Value)
		}
	default:
		return fmt.Errorf("%w: unknown filter field %q", ErrInvalidInput, f.Field)
	}
	switch f.Op {
	case OpEq, OpNe:
	default:
		return fmt.Errorf("%w: unknown filter operator %q", ErrInvalidInput, f.Op)
	}
	return nil
}

// Matches evaluates the predicate against metadata.
func (f Filter) Matches(m ChunkMetadata) bool {
	if f.IsZero() {
		return true
	}
	var actual string
	switch f.Field {
	case FieldSource:
		actual = m.Source
	case FieldHash:
		actual = m.Hash
	case FieldChunkID:
		actual = strconv.Itoa(m.ChunkID)
	default:
		return false
	}
	switch f.Op {
	case OpEq:
		return actual == f.Value
	case OpNe:
		return actual != f.Value
	}
	return false
}

func (f Filter) String() string {
	if f.IsZero() {
		return "{}"
	}
	return fmt.Sprintf("{%s: {%s: %q}}", f.Field, f.Op, f.Value)
}
