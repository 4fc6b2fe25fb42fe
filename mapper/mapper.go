package mapper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
)

// SubmitPolicy controls when display changes are written to the model.
type SubmitPolicy int

const (
	// SubmitAuto writes every display change to the model immediately.
	SubmitAuto SubmitPolicy = iota
	// SubmitManual holds display changes until Submit is called.
	SubmitManual
)

func (p SubmitPolicy) String() string {
	switch p {
	case SubmitAuto:
		return "Auto"
	case SubmitManual:
		return "Manual"
	default:
		return fmt.Sprintf("SubmitPolicy(%d)", int(p))
	}
}

// Mapper keeps display properties and model properties synchronized. See the
// package documentation for an overview.
//
// A Mapper and everything bound through it belong to the UI thread. Only
// Submit, Revert and their waiting variants may be called from elsewhere.
type Mapper struct {
	dispatcher Dispatcher
	logger     *log.Logger
	policy     SubmitPolicy

	bindings map[Display]*Binding
	// displays in the order they were mapped
	order []Display
}

type MapperOption func(*Mapper)

// WithDispatcher sets the event loop of the UI thread. Without one, every
// caller is treated as being on the UI thread.
func WithDispatcher(d Dispatcher) MapperOption {
	return func(m *Mapper) { m.dispatcher = d }
}

// WithLogger sets the logger for failures of deferred submits and reverts.
// The standard logger is used by default.
func WithLogger(l *log.Logger) MapperOption {
	return func(m *Mapper) { m.logger = l }
}

func New(opts ...MapperOption) *Mapper {
	m := &Mapper{
		policy:   SubmitAuto,
		bindings: make(map[Display]*Binding),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mapper) logf(format string, args ...interface{}) {
	if m.logger != nil {
		m.logger.Printf("mapper: "+format, args...)
	} else {
		log.Printf("mapper: "+format, args...)
	}
}

type mappingOptions struct {
	notifier  interface{}
	setter    interface{}
	property  string
	converter Converter
}

// Option configures a single mapping.
type Option func(*mappingOptions)

// WithNotifier sets the model's change notification. n is a Notifier, or
// the name of one on the model: resolved through NotifierSource, then an
// exported field, then a method without arguments. Without a notifier, the
// display is only updated from the model by Revert.
func WithNotifier(n interface{}) Option {
	return func(o *mappingOptions) { o.notifier = n }
}

// WithSetter sets the model setter: a func taking one value (optionally
// returning an error), or the name of such a method on the model. It takes
// precedence over any setter derived from the accessor.
func WithSetter(s interface{}) Option {
	return func(o *mappingOptions) { o.setter = s }
}

// WithDisplayProperty names the bound display property. By default it is
// guessed from the display's capabilities.
func WithDisplayProperty(name string) Option {
	return func(o *mappingOptions) { o.property = name }
}

// WithConverter sets the converter between display and model values.
func WithConverter(c Converter) Option {
	return func(o *mappingOptions) { o.converter = c }
}

// AddMapping binds a property of display to a property of model.
//
// accessor is the name of a model property (a getter method with optional
// Set<Name> method, or an exported field), a getter func, or an Accessor.
// A model property without a setter can only be mapped without a notifier;
// display edits then fail with ErrReadOnlyModelProperty.
//
// All errors are returned before anything is subscribed or registered.
func (m *Mapper) AddMapping(display Display, model interface{}, accessor interface{}, opts ...Option) error {
	if display == nil {
		return ErrNilDisplay
	}
	if !reflect.TypeOf(display).Comparable() {
		return fmt.Errorf("%w: %T", ErrUncomparableDisplay, display)
	}
	if _, exists := m.bindings[display]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateBinding, describe(display))
	}

	var o mappingOptions
	for _, opt := range opts {
		opt(&o)
	}

	prop, err := resolveDisplayProperty(display, o.property)
	if err != nil {
		return err
	}

	get, set, err := resolveModelGetter(model, accessor)
	if err != nil {
		return err
	}
	if o.setter != nil {
		if set, err = resolveModelSetter(model, o.setter); err != nil {
			return err
		}
	}
	if set == nil {
		// Without a notifier the model is only read by Revert, so a binding
		// to a read-only property is allowed and fails when it is written.
		readOnly := fmt.Errorf("%w: %s of %T", ErrReadOnlyModelProperty, accessorName(accessor), model)
		if o.notifier != nil {
			return readOnly
		}
		set = func(interface{}) error { return readOnly }
	}

	b := &Binding{
		mapper:    m,
		display:   display,
		property:  prop,
		modelGet:  get,
		modelSet:  set,
		converter: o.converter,
	}
	if b.converter == nil {
		b.converter = Identity
	}
	if o.notifier != nil {
		if b.modelNotifier, err = resolveNotifier(model, o.notifier); err != nil {
			return err
		}
	}

	b.unsubscribeDisplay = prop.Notify.Subscribe(b.onDisplayChanged)
	if b.modelNotifier != nil {
		b.unsubscribeModel = b.modelNotifier.Subscribe(b.onModelChanged)
	}

	m.bindings[display] = b
	m.order = append(m.order, display)
	return nil
}

// RemoveMapping disconnects and forgets the binding of display.
func (m *Mapper) RemoveMapping(display Display) error {
	if display == nil || !reflect.TypeOf(display).Comparable() {
		return fmt.Errorf("%w: %T", ErrUnknownBinding, display)
	}
	b, exists := m.bindings[display]
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownBinding, describe(display))
	}

	b.unsubscribeDisplay()
	if b.unsubscribeModel != nil {
		b.unsubscribeModel()
	}

	delete(m.bindings, display)
	for i, d := range m.order {
		if d == display {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// ClearMapping removes all bindings.
func (m *Mapper) ClearMapping() {
	for _, d := range append([]Display(nil), m.order...) {
		// Can't fail; every display in order is mapped
		m.RemoveMapping(d)
	}
}

// Len returns the number of bindings.
func (m *Mapper) Len() int {
	return len(m.bindings)
}

// Binding returns the binding of display, if it is mapped.
func (m *Mapper) Binding(display Display) (*Binding, bool) {
	if display == nil || !reflect.TypeOf(display).Comparable() {
		return nil, false
	}
	b, ok := m.bindings[display]
	return b, ok
}

func (m *Mapper) SubmitPolicy() SubmitPolicy {
	return m.policy
}

func (m *Mapper) SetSubmitPolicy(policy SubmitPolicy) error {
	if policy != SubmitAuto && policy != SubmitManual {
		return fmt.Errorf("%w: %d", ErrInvalidPolicy, int(policy))
	}
	m.policy = policy
	return nil
}

// Submit writes the current value of every display to its model, regardless
// of the submit policy.
//
// If ctx is not on the UI thread, Submit posts itself to the dispatcher and
// returns nil before anything is submitted; errors of the deferred submit
// are logged. Use SubmitWait to learn when and how it completed.
func (m *Mapper) Submit(ctx context.Context) error {
	return m.dispatch(ctx, "submit", m.submit, nil)
}

// SubmitWait is Submit, but waits for a deferred submit to run.
func (m *Mapper) SubmitWait(ctx context.Context) error {
	return m.wait(ctx, "submit", m.submit)
}

// Revert writes the current value of every model to its display. Unlike a
// model notification, it always writes the display. Off the UI thread it
// behaves like Submit.
func (m *Mapper) Revert(ctx context.Context) error {
	return m.dispatch(ctx, "revert", m.revert, nil)
}

// RevertWait is Revert, but waits for a deferred revert to run.
func (m *Mapper) RevertWait(ctx context.Context) error {
	return m.wait(ctx, "revert", m.revert)
}

func (m *Mapper) submit() error {
	policy := m.policy
	m.policy = SubmitAuto
	defer func() { m.policy = policy }()

	var errs []error
	for _, d := range m.snapshot() {
		if err := d.onDisplayChanged(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Mapper) revert() error {
	var errs []error
	for _, d := range m.snapshot() {
		if err := d.toDisplay(true); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func accessorName(accessor interface{}) string {
	if name, ok := accessor.(string); ok {
		return "'" + name + "'"
	}
	return fmt.Sprintf("%T", accessor)
}

func describe(display Display) string {
	if reflect.TypeOf(display).Kind() == reflect.Ptr {
		return fmt.Sprintf("%T(%p)", display, display)
	}
	return fmt.Sprintf("%T", display)
}

// snapshot returns the current bindings, so that slots may change the
// mapping during a submit or revert.
func (m *Mapper) snapshot() []*Binding {
	bindings := make([]*Binding, 0, len(m.order))
	for _, d := range m.order {
		bindings = append(bindings, m.bindings[d])
	}
	return bindings
}
