package mapper

import (
	"encoding"
	"fmt"
	"reflect"
	"strings"
)

// Getter is a callable model getter.
type Getter func() interface{}

// Setter is a callable model setter.
type Setter func(interface{}) error

// Accessor is a property-like model descriptor. If it also implements
// Settable, the setter is taken from it as well.
type Accessor interface {
	Get() interface{}
}

type Settable interface {
	Set(interface{}) error
}

var (
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
	notifierType    = reflect.TypeOf((*Notifier)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

type modelGetter func() (interface{}, error)

// resolveModelGetter derives a getter, and a setter where the accessor is a
// descriptor that provides one, from the accessor given to AddMapping.
func resolveModelGetter(model, accessor interface{}) (modelGetter, Setter, error) {
	switch a := accessor.(type) {
	case nil:
		return nil, nil, fmt.Errorf("%w: nil accessor", ErrModelPropertyNotFound)
	case string:
		return resolveModelProperty(model, a)
	case Getter:
		return func() (interface{}, error) { return a(), nil }, nil, nil
	case func() interface{}:
		return func() (interface{}, error) { return a(), nil }, nil, nil
	case func() (interface{}, error):
		return a, nil, nil
	case Accessor:
		get := func() (interface{}, error) { return a.Get(), nil }
		if s, ok := a.(Settable); ok {
			return get, s.Set, nil
		}
		return get, nil, nil
	}

	if get := getterFromFunc(reflect.ValueOf(accessor)); get != nil {
		return get, nil, nil
	}
	return nil, nil, fmt.Errorf("%w: unusable accessor of type %T", ErrModelPropertyNotFound, accessor)
}

// resolveModelProperty looks up name on model as a getter method (with an
// optional Set<Name> method) or as an exported field. The first letter of
// name is capitalized if no exact match exists.
func resolveModelProperty(model interface{}, name string) (modelGetter, Setter, error) {
	v := reflect.ValueOf(model)
	if !v.IsValid() || name == "" {
		return nil, nil, fmt.Errorf("%w: '%s'", ErrModelPropertyNotFound, name)
	}

	for _, n := range candidateNames(name) {
		if get := getterFromFunc(v.MethodByName(n)); get != nil {
			return get, setterFromFunc(v.MethodByName("Set" + n)), nil
		}

		sv := reflect.Indirect(v)
		if sv.Kind() != reflect.Struct {
			continue
		}
		if sf, ok := sv.Type().FieldByName(n); !ok || sf.PkgPath != "" {
			continue
		}
		field := sv.FieldByName(n)
		get := func() (interface{}, error) { return field.Interface(), nil }
		var set Setter
		if field.CanSet() {
			set = func(value interface{}) error {
				cv, err := convertValue(value, field.Type())
				if err != nil {
					return fmt.Errorf("mapper: model field %s: %w", n, err)
				}
				field.Set(cv)
				return nil
			}
		}
		return get, set, nil
	}

	return nil, nil, fmt.Errorf("%w: %T has no '%s'", ErrModelPropertyNotFound, model, name)
}

// resolveModelSetter turns the WithSetter option into a Setter.
func resolveModelSetter(model, setter interface{}) (Setter, error) {
	switch s := setter.(type) {
	case Setter:
		return s, nil
	case func(interface{}) error:
		return s, nil
	case func(interface{}):
		return func(v interface{}) error { s(v); return nil }, nil
	case string:
		v := reflect.ValueOf(model)
		for _, n := range candidateNames(s) {
			if v.IsValid() {
				if set := setterFromFunc(v.MethodByName(n)); set != nil {
					return set, nil
				}
			}
		}
		return nil, fmt.Errorf("mapper: %T has no callable setter '%s'", model, s)
	}

	if set := setterFromFunc(reflect.ValueOf(setter)); set != nil {
		return set, nil
	}
	return nil, fmt.Errorf("mapper: setter of type %T is not callable with one argument", setter)
}

// resolveNotifier turns the WithNotifier option into a Notifier.
func resolveNotifier(model, notifier interface{}) (Notifier, error) {
	if n, ok := notifier.(Notifier); ok {
		return n, nil
	}
	name, ok := notifier.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a notifier", ErrNotifierNotFound, notifier)
	}

	if src, ok := model.(NotifierSource); ok {
		if n, ok := src.Notifier(name); ok && n != nil {
			return n, nil
		}
	}

	v := reflect.ValueOf(model)
	if !v.IsValid() {
		return nil, fmt.Errorf("%w: '%s'", ErrNotifierNotFound, name)
	}
	for _, n := range candidateNames(name) {
		if sv := reflect.Indirect(v); sv.Kind() == reflect.Struct {
			if sf, ok := sv.Type().FieldByName(n); ok && sf.PkgPath == "" {
				field := sv.FieldByName(n)
				// Signal fields are embedded by value; they are notifiers by address
				if field.CanAddr() && field.Addr().Type().Implements(notifierType) {
					return field.Addr().Interface().(Notifier), nil
				}
				if field.Type().Implements(notifierType) && !isNil(field) {
					return field.Interface().(Notifier), nil
				}
			}
		}

		m := v.MethodByName(n)
		if m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() == 1 && m.Type().Out(0).Implements(notifierType) {
			if out := m.Call(nil)[0]; !isNil(out) {
				return out.Interface().(Notifier), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %T has no '%s'", ErrNotifierNotFound, model, name)
}

func candidateNames(name string) []string {
	if name == "" {
		return nil
	}
	upper := strings.ToUpper(name[:1]) + name[1:]
	if upper == name {
		return []string{name}
	}
	return []string{name, upper}
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// getterFromFunc accepts funcs of the form func() T or func() (T, error).
func getterFromFunc(f reflect.Value) modelGetter {
	if !f.IsValid() || f.Kind() != reflect.Func || f.IsNil() {
		return nil
	}
	t := f.Type()
	if t.NumIn() != 0 {
		return nil
	}
	switch {
	case t.NumOut() == 1 && t.Out(0) != errorType:
		return func() (interface{}, error) {
			return f.Call(nil)[0].Interface(), nil
		}
	case t.NumOut() == 2 && t.Out(1) == errorType:
		return func() (interface{}, error) {
			out := f.Call(nil)
			if err, _ := out[1].Interface().(error); err != nil {
				return nil, err
			}
			return out[0].Interface(), nil
		}
	}
	return nil
}

// setterFromFunc accepts funcs of the form func(T) or func(T) error. The
// value is converted to T before the call.
func setterFromFunc(f reflect.Value) Setter {
	if !f.IsValid() || f.Kind() != reflect.Func || f.IsNil() {
		return nil
	}
	t := f.Type()
	if t.NumIn() != 1 || t.IsVariadic() {
		return nil
	}
	if t.NumOut() > 1 || (t.NumOut() == 1 && t.Out(0) != errorType) {
		return nil
	}
	argType := t.In(0)
	return func(v interface{}) error {
		arg, err := convertValue(v, argType)
		if err != nil {
			return fmt.Errorf("mapper: setter argument: %w", err)
		}
		out := f.Call([]reflect.Value{arg})
		if len(out) == 1 {
			if err, _ := out[0].Interface().(error); err != nil {
				return err
			}
		}
		return nil
	}
}

// convertValue converts v to type t, directly or through
// encoding.TextUnmarshaler for strings.
func convertValue(v interface{}, t reflect.Type) (reflect.Value, error) {
	in := reflect.ValueOf(v)
	switch {
	case !in.IsValid():
		return reflect.Zero(t), nil
	case in.Type().AssignableTo(t):
		return in, nil
	case in.Type().ConvertibleTo(t) && !(t.Kind() == reflect.String && in.Kind() != reflect.String):
		// Integers are convertible to strings as runes, which is never wanted here
		return in.Convert(t), nil
	case in.Kind() == reflect.String && reflect.PtrTo(t).Implements(unmarshalerType):
		out := reflect.New(t)
		if err := out.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(in.String())); err != nil {
			return reflect.Value{}, fmt.Errorf("unmarshal of %q to %s failed: %s", in.String(), t, err)
		}
		return out.Elem(), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %v (%T) as %s", v, v, t)
}
