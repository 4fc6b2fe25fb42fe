package mapper

import (
	"fmt"
	"reflect"
)

// Converter transforms values between the display representation and the
// model representation. Both directions should be pure.
type Converter interface {
	ToModel(display interface{}) (interface{}, error)
	ToDisplay(model interface{}) (interface{}, error)
}

type identity struct{}

func (identity) ToModel(v interface{}) (interface{}, error)   { return v, nil }
func (identity) ToDisplay(v interface{}) (interface{}, error) { return v, nil }

// Identity passes values through unchanged. It is used when a binding has
// no converter.
var Identity Converter = identity{}

// ConverterFuncs adapts a pair of functions to Converter. A nil function
// passes values through.
type ConverterFuncs struct {
	ToModelFunc   func(interface{}) (interface{}, error)
	ToDisplayFunc func(interface{}) (interface{}, error)
}

func (c ConverterFuncs) ToModel(v interface{}) (interface{}, error) {
	if c.ToModelFunc == nil {
		return v, nil
	}
	return c.ToModelFunc(v)
}

func (c ConverterFuncs) ToDisplay(v interface{}) (interface{}, error) {
	if c.ToDisplayFunc == nil {
		return v, nil
	}
	return c.ToDisplayFunc(v)
}

// Scale converts numeric values for display in a different unit; the
// display value is the model value multiplied by factor. Model values are
// float64 after conversion.
func Scale(factor float64) Converter {
	return scale(factor)
}

type scale float64

func (s scale) ToModel(v interface{}) (interface{}, error) {
	f, err := toFloat(v)
	if err != nil {
		return nil, err
	}
	return f / float64(s), nil
}

func (s scale) ToDisplay(v interface{}) (interface{}, error) {
	f, err := toFloat(v)
	if err != nil {
		return nil, err
	}
	return f * float64(s), nil
}

var float64Type = reflect.TypeOf(float64(0))

func toFloat(v interface{}) (float64, error) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return rv.Convert(float64Type).Float(), nil
	default:
		return 0, fmt.Errorf("mapper: cannot scale non-numeric value %v (%T)", v, v)
	}
}
