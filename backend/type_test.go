package qbackend

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Simple struct {
	Simple string
}

type Fields struct {
	String    string
	Bytes     []byte
	Strings   []string
	Map       map[string]string
	Struct    Simple
	Ptr       *Simple
	Object    *TestStruct
	Interface interface{}
}

type TestStruct struct {
	QObject
	Fields

	unexported  bool
	Ignored     bool `qbackend:"-"`
	IgnoredJSON bool `json:"-"`

	Signal       func()
	SignalParams func(a, b int) `qbackend:"a,b"`
}

func (t *TestStruct) RealMethod(arg1 int, arg2 []string) (*TestStruct, error) {
	return t, nil
}

func TestParseTypes(t *testing.T) {
	obj := &TestStruct{}
	objType := reflect.TypeOf(*obj)
	info, err := parseType(objType)
	if err != nil {
		t.Fatalf("parseType failed: %v", err)
	}

	t.Logf("parsed type: %s", info)

	expectProp := []string{"string", "bytes", "strings", "map", "struct", "ptr", "object", "interface"}
	expectMethod := []string{"realMethod"}
	expectSignal := []string{"signal", "signalParams"}

	for _, p := range expectProp {
		if _, exists := info.Properties[p]; !exists {
			t.Errorf("Expected property '%s' to exist", p)
		}

		expectSignal = append(expectSignal, typeFieldChangedName(p))
	}
	if len(expectProp) != len(info.Properties) {
		t.Errorf("Expected %d properties but type info has %d", len(expectProp), len(info.Properties))
	}

	for _, p := range expectMethod {
		if _, exists := info.Methods[p]; !exists {
			t.Errorf("Expected method '%s' to exist", p)
		}
	}
	if len(expectMethod) != len(info.Methods) {
		t.Errorf("Expected %d methods but type info has %d", len(expectMethod), len(info.Methods))
	}
	if m, ok := info.Methods["realMethod"]; ok {
		if len(m) != 2 {
			t.Errorf("Method expected %d args but has %d: %v", 2, len(m), m)
		}
	} else {
		t.Errorf("Missing method 'realMethod'")
	}

	for _, p := range expectSignal {
		if _, exists := info.Signals[p]; !exists {
			t.Errorf("Expected signal '%s' to exist", p)
		}
	}
	if len(expectSignal) != len(info.Signals) {
		t.Errorf("Expected %d signals but type info has %d", len(expectSignal), len(info.Signals))
	}

	assert.Equal(t, "object", info.Properties["object"])
	assert.Equal(t, "array", info.Properties["strings"])
	assert.Equal(t, []string{"int a", "int b"}, info.Signals["signalParams"])

	again, err := parseType(reflect.TypeOf(obj))
	require.NoError(t, err)
	assert.True(t, info == again, "type info is cached")
}

type TaggedStruct struct {
	QObject
	Position   float64
	Serial     string `qbackend:"readonly"`
	Model      string `qbackend:"readonly,constant"`
	Password   string `qbackend:"writeonly"`
	PortNumber int    `json:"port"`
}

func TestPropertyOptions(t *testing.T) {
	info, err := parseType(reflect.TypeOf(&TaggedStruct{}))
	require.NoError(t, err)

	assert.Equal(t, []string{"model", "serial"}, info.ReadOnly)
	assert.Contains(t, info.Signals, "positionChanged")
	assert.Contains(t, info.Signals, "serialChanged")
	assert.NotContains(t, info.Signals, "modelChanged")
	assert.Contains(t, info.Signals, "portChanged")

	meta, ok := info.property("Position")
	require.True(t, ok)
	assert.True(t, meta.Readable && meta.Writable)
	assert.Equal(t, "positionChanged", meta.Notify)

	meta, ok = info.property("password")
	require.True(t, ok)
	assert.False(t, meta.Readable)
	assert.True(t, meta.Writable)

	meta, ok = info.property("port")
	require.True(t, ok)
	assert.Equal(t, []int{5}, meta.Index)

	_, ok = info.property("PortNumber")
	assert.False(t, ok, "json name replaces the field name")
}

type ChangeSignalParams struct {
	QObject
	Value        int
	ValueChanged func(int) `qbackend:"value"`
}

type NotAnObject struct {
	Value int
}

func TestParseTypeErrors(t *testing.T) {
	_, err := parseType(reflect.TypeOf(&ChangeSignalParams{}))
	assert.Error(t, err, "change signal with parameters")

	_, err = parseType(reflect.TypeOf(NotAnObject{}))
	assert.Error(t, err)

	type unnamedParams struct {
		QObject
		Moved func(int, int) `qbackend:"x"`
	}
	_, err = parseType(reflect.TypeOf(unnamedParams{}))
	assert.Error(t, err, "signal parameters without names")
}
