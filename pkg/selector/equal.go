package selector

import "reflect"

// Equal reports whether two values should be treated as the same.
// Implementations must be side-effect free. A panic propagates to the caller
// of the operation that invoked it.
type Equal[T any] func(a, b T) bool

// Identical is the default snapshot comparison.
//
// Comparable values use ==, so pointers compare by address. Slices compare by
// backing array, length and capacity; maps and funcs by pointer. Values of
// other non-comparable types are never identical, which forces a recompute.
func Identical[T any](a, b T) bool {
	av, bv := any(a), any(b)
	if av == nil || bv == nil {
		return av == nil && bv == nil
	}

	ta := reflect.TypeOf(av)
	if ta != reflect.TypeOf(bv) {
		return false
	}
	if ta.Comparable() {
		return comparableEqual(av, bv)
	}

	ra, rb := reflect.ValueOf(av), reflect.ValueOf(bv)
	switch ra.Kind() {
	case reflect.Slice:
		return ra.Pointer() == rb.Pointer() && ra.Len() == rb.Len() && ra.Cap() == rb.Cap()
	case reflect.Map, reflect.Func:
		return ra.Pointer() == rb.Pointer()
	default:
		return false
	}
}

// comparableEqual compares with ==. Structs whose interface fields hold
// non-comparable values panic at runtime; those count as not identical.
func comparableEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}

// DeepEqual compares values structurally with reflect.DeepEqual.
// It is a convenient selection equality for slices, maps and structs.
func DeepEqual[T any](a, b T) bool {
	return reflect.DeepEqual(a, b)
}
