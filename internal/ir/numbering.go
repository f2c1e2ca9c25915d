package ir

import "github.com/jptrs93/troto/internal/diag"

const (
	MinFieldNumber = 1
	MaxFieldNumber = 536870911

	// Field numbers 19000 through 19999 are reserved for the protobuf
	// implementation.
	FirstReservedNumber = 19000
	LastReservedNumber  = 19999
)

// AssignNumbers gives every field of m without an explicit number the smallest
// positive number not otherwise used in m, in declaration order. Explicit
// numbers are validated and reserved first and are never changed.
func AssignNumbers(m *Message) error {
	used := make(map[int]*Field, len(m.Fields))
	for _, field := range m.Fields {
		if !field.Explicit {
			continue
		}
		if field.Number < MinFieldNumber || field.Number > MaxFieldNumber {
			return diag.Errorf(diag.KindInvalidFieldNumber, field.Pos,
				"field %s.%s: number %d is outside the range %d to %d",
				m.Name, field.Name, field.Number, MinFieldNumber, MaxFieldNumber)
		}
		if isReserved(field.Number) {
			return diag.Errorf(diag.KindInvalidFieldNumber, field.Pos,
				"field %s.%s: number %d is in the reserved range %d to %d",
				m.Name, field.Name, field.Number, FirstReservedNumber, LastReservedNumber)
		}
		if prev, ok := used[field.Number]; ok {
			return diag.Errorf(diag.KindDuplicateFieldNumber, field.Pos,
				"field %s.%s: number %d is already used by field %s",
				m.Name, field.Name, field.Number, prev.Name)
		}
		used[field.Number] = field
	}

	next := MinFieldNumber
	for _, field := range m.Fields {
		if field.Explicit {
			continue
		}
		for used[next] != nil || isReserved(next) {
			next++
		}
		if next > MaxFieldNumber {
			return diag.Errorf(diag.KindInvalidFieldNumber, field.Pos,
				"field %s.%s: no field numbers left", m.Name, field.Name)
		}
		field.Number = next
		used[next] = field
	}
	return nil
}

func isReserved(n int) bool {
	return n >= FirstReservedNumber && n <= LastReservedNumber
}
