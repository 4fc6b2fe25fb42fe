package qbackend

import (
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/CrimsonAS/qbind/mapper"
	uuid "github.com/satori/go.uuid"
)

// Add names of any functions in QObject to the blacklist in type.go

// The QObject interface must be embedded in any struct that should export
// a full object (as opposed to simple data).
//
// The QObject will be initialized automatically when qbackend encoding
// encounters the object. It may also be initialized explicitly with
// Connection.InitObject(), which is required before the object is used
// with a mapper.
//
// Every QObject is a mapper.Display: its properties can be bound to model
// properties. It is also a mapper.NotifierSource for its signals, so a
// QObject can be the model side of a binding as well.
type QObject interface {
	json.Marshaler

	Connection() *Connection
	Identifier() string
	// Referenced returns true when there is a client-side reference to
	// this object. When false, nothing is sent to the client.
	Referenced() bool

	// Emit emits the named signal. Go subscribers are called immediately;
	// the client receives the signal asynchronously.
	Emit(signal string, args ...interface{})
	// ResetProperties sends the values of all properties to the client.
	ResetProperties()
	// Changed updates the value of a property on the client, and emits the
	// property's changed signal. Changed should be called after modifying
	// a property field directly. Errors of Go subscribers are returned.
	Changed(property string) error

	LookupProperty(name string) (*mapper.PropertyInfo, bool)
	Notifier(name string) (mapper.Notifier, bool)

	marshalObject() (map[string]interface{}, error)
	invoke(ctx context.Context, method string, args ...interface{}) error
	setProperty(name string, value interface{}) (bool, error)
}

// If a type embedding QObject implements QObjectHasInit, the InitObject
// function will be called immediately after QObject is initialized. This
// can be used to initialize fields automatically at the right time, or
// even as a form of constructor.
type QObjectHasInit interface {
	QObject
	InitObject()
}

// If a type embedding QObject implements PropertyValidator, every write to
// a property through SetProperty (from the client or a mapper) passes
// through ValidateProperty first. The value has already been converted to
// the field's type. The returned value is stored instead, or the write
// fails with the returned error.
type PropertyValidator interface {
	ValidateProperty(name string, value interface{}) (interface{}, error)
}

// QObjectFor indicates whether a value is a qbackend object, and returns
// the embedded QObject instance if it has been initialized.
func QObjectFor(obj interface{}) (bool, QObject) {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Ptr || v.IsNil() || !typeIsQObject(v.Elem().Type()) {
		return false, nil
	}
	if re := v.Elem().FieldByName("QObject").Interface(); re == nil {
		return true, nil
	} else {
		return true, re.(QObject)
	}
}

func objectImplFor(obj interface{}) *objectImpl {
	is, q := QObjectFor(obj)
	if !is || q == nil {
		return nil
	}
	return q.(*objectImpl)
}

type objectImpl struct {
	C   *Connection
	Id  string
	Ref bool

	Object interface{}
	Type   *typeInfo

	// Go subscribers by signal name
	signals map[string]*mapper.Signal
}

var (
	errNotQObject   = errors.New("Struct does not embed QObject")
	contextType     = reflect.TypeOf((*context.Context)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
)

func initObject(object interface{}, c *Connection) (QObject, error) {
	u, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	return initObjectId(object, c, u.String())
}

func initObjectId(object interface{}, c *Connection, id string) (QObject, error) {
	if hasObj, obj := QObjectFor(object); !hasObj {
		return nil, errNotQObject
	} else if obj != nil {
		return obj, nil
	}

	impl := &objectImpl{
		C:       c,
		Id:      id,
		Object:  object,
		signals: make(map[string]*mapper.Signal),
	}

	if ti, err := parseType(reflect.TypeOf(object)); err != nil {
		return nil, err
	} else {
		impl.Type = ti
	}

	// Write to the QObject embedded field
	reflect.ValueOf(object).Elem().FieldByName("QObject").Set(reflect.ValueOf(impl))

	initSignals(object, impl)

	if c != nil {
		c.addObject(impl)
	}

	if io, ok := object.(QObjectHasInit); ok {
		io.InitObject()
	}
	return impl, nil
}

// initSignals assigns a function to every nil signal field of object,
// which emits the signal when called.
func initSignals(object interface{}, impl *objectImpl) {
	v := reflect.ValueOf(object).Elem()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if typeShouldIgnoreField(v.Type().Field(i)) || field.Type().Kind() != reflect.Func || !field.IsNil() {
			continue
		}

		name := typeFieldName(v.Type().Field(i))
		if _, isSignal := impl.Type.Signals[name]; !isSignal {
			continue
		}

		f := reflect.MakeFunc(field.Type(), func(args []reflect.Value) []reflect.Value {
			impl.emitReflected(name, args)
			return nil
		})
		field.Set(f)
	}
}

func (o *objectImpl) Connection() *Connection {
	return o.C
}

func (o *objectImpl) Identifier() string {
	return o.Id
}

func (o *objectImpl) Referenced() bool {
	return o.Ref
}

func (o *objectImpl) LookupProperty(name string) (*mapper.PropertyInfo, bool) {
	meta, ok := o.Type.property(name)
	if !ok {
		return nil, false
	}

	info := &mapper.PropertyInfo{Name: meta.Name}
	if meta.Readable {
		info.Read = func() interface{} { return o.field(meta).Interface() }
	}
	if meta.Writable {
		info.Write = func(v interface{}) error {
			_, err := o.setProperty(meta.Name, v)
			return err
		}
	}
	if meta.Notify != "" {
		info.Notify = o.signal(meta.Notify)
	}
	return info, true
}

func (o *objectImpl) Notifier(name string) (mapper.Notifier, bool) {
	if _, exists := o.Type.Signals[name]; !exists {
		if _, exists = o.Type.Signals[lowerFirst(name)]; !exists {
			return nil, false
		}
		name = lowerFirst(name)
	}
	return o.signal(name), true
}

func (o *objectImpl) signal(name string) *mapper.Signal {
	s, ok := o.signals[name]
	if !ok {
		s = &mapper.Signal{}
		o.signals[name] = s
	}
	return s
}

func (o *objectImpl) field(meta *propertyMeta) reflect.Value {
	return reflect.ValueOf(o.Object).Elem().FieldByIndex(meta.Index)
}

// setProperty converts and validates value, stores it and emits the
// changed signal. It reports whether the stored value changed; writing the
// current value is not a change and emits nothing.
func (o *objectImpl) setProperty(name string, value interface{}) (bool, error) {
	meta, ok := o.Type.property(name)
	if !ok {
		return false, fmt.Errorf("%s has no property '%s'", o.Type.Name, name)
	} else if !meta.Writable {
		return false, fmt.Errorf("property '%s' of %s is read-only", meta.Name, o.Type.Name)
	}

	field := o.field(meta)
	v, err := convertArg(value, field.Type())
	if err != nil {
		return false, fmt.Errorf("property '%s' of %s: %s", meta.Name, o.Type.Name, err)
	}

	if pv, ok := o.Object.(PropertyValidator); ok {
		adjusted, err := pv.ValidateProperty(meta.Name, v.Interface())
		if err != nil {
			return false, err
		}
		if v, err = convertArg(adjusted, field.Type()); err != nil {
			return false, fmt.Errorf("property '%s' of %s: %s", meta.Name, o.Type.Name, err)
		}
	}

	if reflect.DeepEqual(field.Interface(), v.Interface()) {
		return false, nil
	}
	field.Set(v)
	return true, o.Changed(meta.Name)
}

// SetProperty writes a property of an initialized object as if the client
// had set it: the value is converted and validated, and the changed signal
// is emitted if the value changed.
func SetProperty(obj QObject, name string, value interface{}) error {
	if obj == nil {
		return errors.New("SetProperty on uninitialized object")
	}
	_, err := obj.setProperty(name, value)
	return err
}

// convertArg converts a decoded value to the type t, directly or by
// unmarshaling strings with encoding.TextUnmarshaler.
func convertArg(in interface{}, t reflect.Type) (reflect.Value, error) {
	inValue := reflect.ValueOf(in)
	if !inValue.IsValid() {
		// Argument is nil
		return reflect.Zero(t), nil
	} else if inValue.Type() == t || inValue.Type().AssignableTo(t) {
		return inValue, nil
	} else if inValue.Type().ConvertibleTo(t) && (t.Kind() != reflect.String || inValue.Kind() == reflect.String) {
		return inValue.Convert(t), nil
	} else if inValue.Kind() == reflect.String {
		// Attempt to unmarshal via TextUnmarshaler, directly or by pointer
		if ptrType := reflect.PtrTo(t); ptrType.Implements(unmarshalerType) {
			out := reflect.New(t)
			if err := out.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(inValue.String())); err != nil {
				return reflect.Value{}, fmt.Errorf("expected %s, unmarshal failed: %s", t, err)
			}
			return out.Elem(), nil
		}
	} else if inValue.Kind() == reflect.Slice && t.Kind() == reflect.Slice {
		// JSON arrays decode as []interface{}
		out := reflect.MakeSlice(t, inValue.Len(), inValue.Len())
		for i := 0; i < inValue.Len(); i++ {
			elem, err := convertArg(inValue.Index(i).Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(elem)
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("expected %s, provided %s", t, inValue.Type())
}

// invoke calls the named method of the object, converting or unmarshaling
// parameters as necessary. If the method's first parameter is a
// context.Context, ctx is passed for it. An error is returned if the method
// is not invoked or if it returns one.
func (o *objectImpl) invoke(ctx context.Context, methodName string, inArgs ...interface{}) error {
	if _, exists := o.Type.Methods[methodName]; !exists {
		return errors.New("method does not exist")
	}

	method := typeMethodValueByName(reflect.ValueOf(o.Object), methodName)
	if !method.IsValid() {
		return errors.New("method does not exist")
	}
	methodType := method.Type()

	var callArgs []reflect.Value
	if methodType.NumIn() > 0 && methodType.In(0) == contextType {
		if ctx == nil {
			ctx = context.Background()
		}
		callArgs = append(callArgs, reflect.ValueOf(&ctx).Elem())
	}

	if len(callArgs)+len(inArgs) != methodType.NumIn() {
		return fmt.Errorf("wrong number of arguments for %s; expected %d, provided %d",
			methodName, methodType.NumIn()-len(callArgs), len(inArgs))
	}

	for i, inArg := range inArgs {
		argType := methodType.In(len(callArgs))

		// Replace references to QObjects with the objects themselves
		if ref, ok := inArg.(map[string]interface{}); ok && ref["_qbackend_"] != nil {
			if ref["_qbackend_"] != "object" {
				return fmt.Errorf("qobject argument %d is malformed; object tag is incorrect", i)
			}
			id, ok := ref["identifier"].(string)
			if !ok {
				return fmt.Errorf("qobject argument %d is malformed; invalid identifier %v", i, ref["identifier"])
			}
			// Will be nil if the object does not exist
			var obj interface{}
			if o.C != nil {
				if qo := o.C.Object(id); qo != nil {
					obj = qo.(*objectImpl).Object
				}
			}
			inArg = obj
		}

		callArg, err := convertArg(inArg, argType)
		if err != nil {
			return fmt.Errorf("wrong type for argument %d to %s; %s", i, methodName, err)
		}
		callArgs = append(callArgs, callArg)
	}

	returnValues := method.Call(callArgs)

	// If any of method's return values is an error, return that
	for _, value := range returnValues {
		if value.Type().Implements(errorType) && !value.IsNil() {
			return value.Interface().(error)
		}
	}
	return nil
}

func (o *objectImpl) Emit(signal string, args ...interface{}) {
	if err := o.emitLocal(signal); err != nil {
		o.C.warn("subscriber of %s on %s failed: %s", signal, o.Id, err)
	}

	if !o.Referenced() || o.C == nil {
		return
	}

	// These arguments go through a plain MarshalJSON from the connection, since they
	// are not being sent as part of an object. The scan to initialize QObjects in
	// this tree needs to happen here.
	if err := o.initObjectsUnder(reflect.ValueOf(args)); err != nil {
		o.C.warn("emit of %s on %s failed: %s", signal, o.Id, err)
		return
	}
	o.C.sendEmit(o, signal, args)
}

func (o *objectImpl) emitLocal(signal string) error {
	if s, ok := o.signals[signal]; ok {
		return s.Emit()
	}
	return nil
}

func (o *objectImpl) emitReflected(signal string, args []reflect.Value) {
	unwrappedArgs := make([]interface{}, 0, len(args))
	for _, a := range args {
		unwrappedArgs = append(unwrappedArgs, a.Interface())
	}
	o.Emit(signal, unwrappedArgs...)
}

func (o *objectImpl) Changed(property string) error {
	// Currently, all property updates are full resets, and the client will
	// emit changed signals for them.
	o.ResetProperties()

	meta, ok := o.Type.property(property)
	if !ok || meta.Notify == "" {
		return nil
	}
	return o.emitLocal(meta.Notify)
}

func (o *objectImpl) ResetProperties() {
	if !o.Referenced() || o.C == nil {
		return
	}
	o.C.sendUpdate(o)
}

// MarshalJSON returns the reference to this object used within the
// properties and signal parameters of other objects. The full type is
// only included until the client has acknowledged an object of the type.
func (o *objectImpl) MarshalJSON() ([]byte, error) {
	var desc interface{}

	if o.C != nil && o.C.typeIsAcknowledged(o.Type) {
		desc = struct {
			Name    string `json:"name"`
			Omitted bool   `json:"omitted"`
		}{o.Type.Name, true}
	} else {
		desc = o.Type
	}

	obj := struct {
		Tag        string      `json:"_qbackend_"`
		Identifier string      `json:"identifier"`
		Type       interface{} `json:"type"`
	}{
		"object",
		o.Identifier(),
		desc,
	}
	return json.Marshal(obj)
}

// marshalObject returns a map of the readable properties of this object,
// which can be passed to json.Marshal. QObjects referenced by properties
// are initialized if necessary and marshal as references; they are not
// marshaled recursively.
func (o *objectImpl) marshalObject() (map[string]interface{}, error) {
	data := make(map[string]interface{})
	for name, meta := range o.Type.propertyMeta {
		if !meta.Readable {
			continue
		}
		field := o.field(meta)
		if err := o.initObjectsUnder(field); err != nil {
			return nil, err
		}
		data[name] = field.Interface()
	}
	return data, nil
}

// initObjectsUnder scans a Value for references to any QObject types, and
// initializes these if necessary. This scan is recursive through any types
// other than QObject itself.
func (o *objectImpl) initObjectsUnder(v reflect.Value) error {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Array, reflect.Slice:
		if !typeCouldContainQObject(v.Type().Elem()) {
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := o.initObjectsUnder(v.Index(i)); err != nil {
				return err
			}
		}

	case reflect.Map:
		if !typeCouldContainQObject(v.Type().Elem()) {
			return nil
		}
		for _, key := range v.MapKeys() {
			if err := o.initObjectsUnder(v.MapIndex(key)); err != nil {
				return err
			}
		}

	case reflect.Struct:
		if typeIsQObject(v.Type()) {
			if !v.CanAddr() {
				return nil
			}
			// Valid QObject, possibly just initialized. Stop recursion here
			_, err := initObject(v.Addr().Interface(), o.C)
			return err
		}

		for i := 0; i < v.NumField(); i++ {
			if typeShouldIgnoreField(v.Type().Field(i)) {
				continue
			}
			if field := v.Field(i); typeCouldContainQObject(field.Type()) {
				if err := o.initObjectsUnder(field); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func typeCouldContainQObject(t reflect.Type) bool {
	for {
		switch t.Kind() {
		case reflect.Array, reflect.Slice, reflect.Map, reflect.Ptr:
			t = t.Elem()
		case reflect.Struct, reflect.Interface:
			return true
		default:
			return false
		}
	}
}
