package assert

import (
	"fmt"
	"reflect"
)

func describe(name []string) string {
	if len(name) == 0 {
		return "value"
	}
	return name[0]
}

// NotNil panics if value is nil, this includes typed nil pointers, maps, slices,
// funcs and channels stored inside an interface.
func NotNil(value any, name ...string) {
	if value == nil {
		panic(fmt.Sprintf("expected %s to be not nil", describe(name)))
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if rv.IsNil() {
			panic(fmt.Sprintf("expected %s to be not nil", describe(name)))
		}
	}
}

func NotEmptyStr(str string, name ...string) {
	if str == "" {
		panic(fmt.Sprintf("expected %s to be non-empty", describe(name)))
	}
}

func Positive[T ~int | ~int64 | ~float64](n T, name ...string) {
	if n <= 0 {
		panic(fmt.Sprintf("expected %s to be positive, got %v", describe(name), n))
	}
}
