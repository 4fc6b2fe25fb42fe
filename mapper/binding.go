package mapper

import (
	"fmt"
	"reflect"
)

// BindingState is the propagation state of a binding.
type BindingState int

const (
	Idle BindingState = iota
	PropagatingToModel
	PropagatingToDisplay
)

func (s BindingState) String() string {
	switch s {
	case Idle:
		return "Idle"
	case PropagatingToModel:
		return "PropagatingToModel"
	case PropagatingToDisplay:
		return "PropagatingToDisplay"
	default:
		return fmt.Sprintf("BindingState(%d)", int(s))
	}
}

// Binding connects one display property with one model property. Bindings
// are created by Mapper.AddMapping and live until they are removed.
type Binding struct {
	mapper *Mapper

	display  Display
	property *PropertyInfo

	modelGet      modelGetter
	modelSet      Setter
	modelNotifier Notifier
	converter     Converter

	// Set while the mapper writes to the display; display notifications
	// are ignored meanwhile.
	displaySuppressed bool
	// Set while the mapper writes to the model; model notifications are
	// only applied if the model ended up with a different value.
	modelSuppressed bool

	unsubscribeDisplay func()
	unsubscribeModel   func()
}

func (b *Binding) Display() Display {
	return b.display
}

// Property returns the name of the bound display property.
func (b *Binding) Property() string {
	return b.property.Name
}

// Observed reports whether the binding follows changes of the model.
func (b *Binding) Observed() bool {
	return b.modelNotifier != nil
}

func (b *Binding) State() BindingState {
	switch {
	case b.modelSuppressed:
		return PropagatingToModel
	case b.displaySuppressed:
		return PropagatingToDisplay
	default:
		return Idle
	}
}

// onDisplayChanged is connected to the display property's notify signal.
func (b *Binding) onDisplayChanged() error {
	if b.displaySuppressed {
		return nil
	}
	if b.mapper.policy != SubmitAuto {
		return nil
	}
	return b.toModel()
}

func (b *Binding) toModel() error {
	b.modelSuppressed = true
	defer func() { b.modelSuppressed = false }()

	value, err := b.converter.ToModel(b.property.Read())
	if err != nil {
		return fmt.Errorf("mapper: converting '%s' for model: %w", b.property.Name, err)
	}
	return b.modelSet(value)
}

// onModelChanged is connected to the model notifier, if there is one.
func (b *Binding) onModelChanged() error {
	return b.toDisplay(false)
}

// toDisplay writes the current model value to the display. Unless forced,
// a notification caused by our own model write is dropped when the model
// holds exactly what the display already shows.
func (b *Binding) toDisplay(force bool) error {
	value, err := b.modelGet()
	if err != nil {
		return fmt.Errorf("mapper: reading model for '%s': %w", b.property.Name, err)
	}

	if b.modelSuppressed && !force {
		shown, err := b.converter.ToModel(b.property.Read())
		if err != nil {
			return fmt.Errorf("mapper: converting '%s' for model: %w", b.property.Name, err)
		}
		if valuesEqual(shown, value) {
			return nil
		}
	}

	if value, err = b.converter.ToDisplay(value); err != nil {
		return fmt.Errorf("mapper: converting '%s' for display: %w", b.property.Name, err)
	}

	b.displaySuppressed = true
	defer func() { b.displaySuppressed = false }()
	return b.property.Write(value)
}

// valuesEqual compares a converted display value with a model value. The
// model value is converted to the type of the display value first when the
// types differ, so e.g. an int model compares equal to a float64 display
// holding the same number. Floats are compared exactly.
func valuesEqual(shown, model interface{}) bool {
	if shown == nil || model == nil {
		return shown == nil && model == nil
	}
	sv, mv := reflect.ValueOf(shown), reflect.ValueOf(model)
	if sv.Type() != mv.Type() {
		if !mv.Type().ConvertibleTo(sv.Type()) || (sv.Kind() == reflect.String) != (mv.Kind() == reflect.String) {
			return false
		}
		converted := mv.Convert(sv.Type())
		// A lossy conversion (2.5 to int) means the values differ
		if !reflect.DeepEqual(converted.Convert(mv.Type()).Interface(), model) {
			return false
		}
		mv = converted
	}
	return reflect.DeepEqual(sv.Interface(), mv.Interface())
}
