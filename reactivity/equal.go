package reactivity

import (
	"math"
	"reflect"
)

// HasChanged reports whether value differs from oldValue. NaN equals NaN
// and +0 differs from -0. Slices, maps and pointers compare by identity;
// functions always compare as changed.
func HasChanged(value, oldValue any) bool {
	return !sameValue(value, oldValue)
}

func sameValue(a, b any) bool {
	switch x := a.(type) {
	case int:
		y, ok := b.(int)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		if !ok {
			return false
		}
		if math.IsNaN(x) && math.IsNaN(y) {
			return true
		}
		if x == 0 && y == 0 {
			return math.Signbit(x) == math.Signbit(y)
		}
		return x == y
	case float32:
		y, ok := b.(float32)
		if !ok {
			return false
		}
		return sameValue(float64(x), float64(y))
	}
	return identical(a, b)
}

// sameValueZero is sameValue with +0 and -0 equal.
func sameValueZero(a, b any) bool {
	if isZeroFloat(a) && isZeroFloat(b) {
		return true
	}
	return sameValue(a, b)
}

// strictEquals is sameValueZero except NaN equals nothing.
func strictEquals(a, b any) bool {
	if isNaN(a) || isNaN(b) {
		return false
	}
	return sameValueZero(a, b)
}

func isZeroFloat(v any) bool {
	switch f := v.(type) {
	case float64:
		return f == 0
	case float32:
		return f == 0
	}
	return false
}

func isNaN(v any) bool {
	switch f := v.(type) {
	case float64:
		return math.IsNaN(f)
	case float32:
		return math.IsNaN(float64(f))
	}
	return false
}

func identical(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Func:
		return false
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Map:
		return va.Pointer() == vb.Pointer()
	}
	if va.Comparable() && vb.Comparable() {
		return va.Equal(vb)
	}
	return reflect.DeepEqual(a, b)
}
