package qbackend

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Methods of QObject, the mapper integration and widgets that must not be
// exported to the client as invokable methods.
var methodBlacklist = []string{
	"MarshalJSON",
	"Connection",
	"Identifier",
	"Referenced",
	"Emit",
	"ResetProperties",
	"Changed",
	"InitObject",
	"LookupProperty",
	"Notifier",
	"Capabilities",
	"ValidateProperty",
}

// typeInfo is the internal parsing and representation of a Go struct
// into a qbackend object type. It encodes into the typeinfo structure
// expected by the client as the value for an object type.
type typeInfo struct {
	Name       string              `json:"name"`
	Properties map[string]string   `json:"properties"`
	ReadOnly   []string            `json:"readonly,omitempty"`
	Methods    map[string][]string `json:"methods"`
	Signals    map[string][]string `json:"signals"`

	propertyMeta map[string]*propertyMeta
}

// propertyMeta holds what the Go side needs to access a property. Flags
// come from the options in the field's `qbackend:` tag.
type propertyMeta struct {
	Name     string
	Index    []int
	Readable bool // false with "writeonly"
	Writable bool // false with "readonly"
	Notify   string
}

var knownTypeInfo = make(map[reflect.Type]*typeInfo)
var qobjectType = reflect.TypeOf((*QObject)(nil)).Elem()

func typeIsQObject(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	f, ok := t.FieldByName("QObject")
	return ok && f.Anonymous && f.Type == qobjectType
}

func typeShouldIgnoreField(field reflect.StructField) bool {
	if field.PkgPath != "" || field.Tag.Get("qbackend") == "-" {
		// Unexported or ignored field
		return true
	} else if field.Type.Kind() != reflect.Func && field.Tag.Get("json") == "-" {
		// Non-signal property that isn't encoded by JSON
		return true
	} else if field.Name == "QObject" {
		return true
	}
	return false
}

func typeShouldIgnoreMethod(method reflect.Method) bool {
	if method.PkgPath != "" {
		return true
	}
	for _, badName := range methodBlacklist {
		if method.Name == badName {
			return true
		}
	}
	return false
}

func lowerFirst(name string) string {
	if len(name) > 0 {
		name = strings.ToLower(name[:1]) + name[1:]
	}
	return name
}

func typeMethodName(method reflect.Method) string {
	return lowerFirst(method.Name)
}

// Equivalent to Value.MethodByName, but handling typeMethodName rules
func typeMethodValueByName(v reflect.Value, name string) reflect.Value {
	t := v.Type()
	for i := 0; i < t.NumMethod(); i++ {
		method := t.Method(i)
		if typeShouldIgnoreMethod(method) {
			continue
		}
		if method.Name == name || typeMethodName(method) == name {
			return v.Method(i)
		}
	}
	return reflect.Value{}
}

func typeFieldName(field reflect.StructField) string {
	name := lowerFirst(field.Name)
	if field.Type.Kind() != reflect.Func {
		if tag := field.Tag.Get("json"); len(tag) > 0 {
			tags := strings.Split(tag, ",")
			if len(tags) > 0 && len(tags[0]) > 0 {
				name = tags[0]
			}
		}
	}
	return name
}

func typeFieldChangedName(fieldName string) string {
	return fieldName + "Changed"
}

func typeFieldOptions(field reflect.StructField) map[string]bool {
	opts := make(map[string]bool)
	for _, o := range strings.Split(field.Tag.Get("qbackend"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			opts[o] = true
		}
	}
	return opts
}

func typeInfoTypeName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Ptr:
		return typeInfoTypeName(t.Elem())
	case reflect.Bool:
		return "bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "int"
	case reflect.Float32, reflect.Float64:
		return "double"
	case reflect.String:
		return "string"
	case reflect.Array, reflect.Slice:
		return "array"
	case reflect.Map:
		return "map"
	case reflect.Struct:
		if typeIsQObject(t) {
			return "object"
		}
		return "map"
	default:
		return "var"
	}
}

func parseType(t reflect.Type) (*typeInfo, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if typeInfo, exists := knownTypeInfo[t]; exists {
		return typeInfo, nil
	}

	if !typeIsQObject(t) {
		return nil, fmt.Errorf("Type '%s' is not a QObject; it must embed QObject", t.Name())
	}

	typeInfo := &typeInfo{
		Name:         t.Name(),
		Properties:   make(map[string]string),
		Methods:      make(map[string][]string),
		Signals:      make(map[string][]string),
		propertyMeta: make(map[string]*propertyMeta),
	}

	// Add properties and signals from fields, including those from anonymous
	// structs
	if err := typeFieldsToTypeInfo(typeInfo, t, []int{}); err != nil {
		return nil, err
	}

	// Create change signals for all non-constant properties, adopting explicit
	// ones if they exist
	for name, meta := range typeInfo.propertyMeta {
		if !meta.Writable {
			typeInfo.ReadOnly = append(typeInfo.ReadOnly, name)
		}
		if meta.Notify == "" {
			continue
		}
		if params, exists := typeInfo.Signals[meta.Notify]; exists {
			if len(params) > 0 {
				return nil, fmt.Errorf("Signal '%s' is a property change signal, but has %d parameters. These signals should not have parameters.", meta.Notify, len(params))
			}
		} else {
			typeInfo.Signals[meta.Notify] = []string{}
		}
	}
	sort.Strings(typeInfo.ReadOnly)

	ptrType := reflect.PtrTo(t)
	for i := 0; i < ptrType.NumMethod(); i++ {
		method := ptrType.Method(i)
		if typeShouldIgnoreMethod(method) {
			continue
		}

		var paramTypes []string
		for p := 1; p < method.Type.NumIn(); p++ {
			inType := method.Type.In(p)
			if p == 1 && inType == contextType {
				// Supplied by the connection
				continue
			}
			paramTypes = append(paramTypes, typeInfoTypeName(inType))
		}
		typeInfo.Methods[typeMethodName(method)] = paramTypes
	}

	knownTypeInfo[t] = typeInfo
	return typeInfo, nil
}

func typeFieldsToTypeInfo(typeInfo *typeInfo, t reflect.Type, index []int) error {
	var anonStructs []reflect.StructField

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if typeShouldIgnoreField(field) {
			continue
		} else if field.Anonymous {
			// Recurse into these at the end for breadth-first
			anonStructs = append(anonStructs, field)
			continue
		}
		name := typeFieldName(field)

		// Signals are represented by func properties, with a qbackend tag
		// giving a name for each parameter, which is required for QML.
		if field.Type.Kind() == reflect.Func {
			paramNames := strings.Split(field.Tag.Get("qbackend"), ",")
			if field.Type.NumIn() > 0 && len(paramNames) != field.Type.NumIn() {
				return fmt.Errorf("Signal '%s' has %d parameters, but names %d. All parameters must be named in the `qbackend:` tag.", name, field.Type.NumIn(), len(paramNames))
			}

			var params []string
			for p := 0; p < field.Type.NumIn(); p++ {
				params = append(params, typeInfoTypeName(field.Type.In(p))+" "+paramNames[p])
			}
			typeInfo.Signals[name] = params
			continue
		}

		if _, exists := typeInfo.propertyMeta[name]; exists {
			// Shadowed by a field of an outer struct
			continue
		}
		opts := typeFieldOptions(field)
		meta := &propertyMeta{
			Name:     name,
			Index:    append(append([]int{}, index...), field.Index...),
			Readable: !opts["writeonly"],
			Writable: !opts["readonly"],
		}
		if !opts["constant"] {
			meta.Notify = typeFieldChangedName(name)
		}
		typeInfo.Properties[name] = typeInfoTypeName(field.Type)
		typeInfo.propertyMeta[name] = meta
	}

	for _, ast := range anonStructs {
		at := ast.Type
		if at.Kind() == reflect.Ptr {
			// Embedded pointers may be nil; their fields are not properties
			continue
		}
		if at.Kind() != reflect.Struct {
			continue
		}
		if err := typeFieldsToTypeInfo(typeInfo, at, append(append([]int{}, index...), ast.Index...)); err != nil {
			return err
		}
	}
	return nil
}

// property returns the metadata of a property by its client name or Go
// field name.
func (t *typeInfo) property(name string) (*propertyMeta, bool) {
	if meta, ok := t.propertyMeta[name]; ok {
		return meta, true
	}
	meta, ok := t.propertyMeta[lowerFirst(name)]
	return meta, ok
}

func (t *typeInfo) String() string {
	str, _ := json.MarshalIndent(t, "", "  ")
	return string(str)
}
