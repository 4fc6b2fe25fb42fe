package qbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dummyConnection *Connection

type BasicStruct struct {
	StringData string
}

type BasicQObject struct {
	QObject

	StringData string
	StructData BasicStruct
	Child      *BasicQObject

	initWasCalled bool
}

func (o *BasicQObject) InitObject() {
	o.initWasCalled = true
}

func TestMain(m *testing.M) {
	dummyConnection = NewLocalConnection()
	os.Exit(m.Run())
}

func TestQObjectInit(t *testing.T) {
	q := &BasicQObject{}

	if err := dummyConnection.InitObject(q); err != nil {
		t.Errorf("QObject initialization failed: %s", err)
	}

	if q.QObject == nil || q.Identifier() == "" {
		t.Fatal("Embedded QObject still blank after initialization")
	}
	if !q.initWasCalled {
		t.Error("QObjectHasInit initialization function not called")
	}
	if dummyConnection.Object(q.Identifier()) != q.QObject {
		t.Error("Initialized object is not registered on the connection")
	}

	other := &BasicQObject{}
	require.NoError(t, dummyConnection.InitObject(other))
	assert.NotEqual(t, q.Identifier(), other.Identifier())

	// Initializing again changes nothing
	id := q.Identifier()
	require.NoError(t, dummyConnection.InitObject(q))
	assert.Equal(t, id, q.Identifier())

	t.Logf("Typeinfo: %v", objectImplFor(q).Type)
}

func TestInitObjectId(t *testing.T) {
	q := &BasicQObject{}
	require.NoError(t, dummyConnection.InitObjectId(q, "basic-fixed"))
	assert.Equal(t, "basic-fixed", q.Identifier())

	err := dummyConnection.InitObjectId(&BasicQObject{}, "basic-fixed")
	assert.Error(t, err, "identifier of another object was reused")

	_, err = initObject(&BasicStruct{}, dummyConnection)
	assert.Equal(t, errNotQObject, err)
}

func TestMarshal(t *testing.T) {
	q := &BasicQObject{
		StringData: "hello world",
		StructData: BasicStruct{"hello struct"},
		Child: &BasicQObject{
			StringData: "hello child",
		},
	}

	if err := dummyConnection.InitObject(q); err != nil {
		t.Errorf("QObject initialization failed: %s", err)
	}

	data, err := q.marshalObject()
	if err != nil {
		t.Errorf("QObject marshal failed: %s", err)
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		t.Errorf("JSON marshal failed: %s", err)
	}

	if q.Child.QObject == nil {
		t.Error("Child object was not initialized by marshal")
	}
	assert.Equal(t, "hello world", data["stringData"])

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(jsonData, &decoded))
	child, _ := decoded["child"].(map[string]interface{})
	assert.Equal(t, "object", child["_qbackend_"])
	assert.Equal(t, q.Child.Identifier(), child["identifier"])

	t.Logf("Marshaled object: %s", jsonData)
}

type SignalQObject struct {
	QObject
	NoArgs     func()
	NormalArgs func([]int, string) `qbackend:"ints,str"`
	ObjectArgs func(*BasicQObject) `qbackend:"obj"`
}

func TestSignals(t *testing.T) {
	q := &SignalQObject{}

	// Init should assign functions for each signal
	if err := dummyConnection.InitObject(q); err != nil {
		t.Errorf("QObject initialization failed: %s", err)
	}
	if q.NoArgs == nil || q.NormalArgs == nil || q.ObjectArgs == nil {
		t.Fatalf("QObject initialization didn't initialize signals: %+v", q)
	}

	ti, _ := json.Marshal(objectImplFor(q).Type)
	t.Logf("Typeinfo: %s", ti)

	calls := 0
	n, ok := q.Notifier("NoArgs")
	require.True(t, ok)
	unsubscribe := n.Subscribe(func() error {
		calls++
		return nil
	})

	// Emit signals
	q.NoArgs()
	q.NormalArgs([]int{1, 2, 3, 4, 5}, "one to five")
	q.ObjectArgs(&BasicQObject{StringData: "i am object argument"})
	assert.Equal(t, 1, calls)

	unsubscribe()
	q.NoArgs()
	assert.Equal(t, 1, calls)

	_, ok = q.Notifier("missing")
	assert.False(t, ok)
}

type MethodQObject struct {
	QObject
	Count int

	onThread bool
}

func (m *MethodQObject) Increment() {
	m.Count++
}

func (m *MethodQObject) Add(i int) {
	m.Count += i
}

func (m *MethodQObject) AddAll(values []int) {
	for _, v := range values {
		m.Count += v
	}
}

func (m *MethodQObject) Step(ctx context.Context, i int) error {
	m.onThread = m.Connection().OnThread(ctx)
	if i < 0 {
		return fmt.Errorf("negative step %d", i)
	}
	m.Count += i
	return nil
}

func (m *MethodQObject) Update(obj *BasicQObject) {
	if obj != nil {
		obj.StringData = fmt.Sprintf("Count is %d", m.Count)
	}
}

func TestMethods(t *testing.T) {
	q := &MethodQObject{}

	if err := dummyConnection.InitObject(q); err != nil {
		t.Errorf("QObject initialization failed: %s", err)
	}

	ti, _ := json.Marshal(objectImplFor(q).Type)
	t.Logf("Typeinfo: %s", ti)

	ctx := context.Background()
	err := q.invoke(ctx, "increment")
	if err != nil || q.Count != 1 {
		t.Errorf("Invoking 'Increment' failed: %v", err)
	}

	// JSON numbers arrive as float64
	err = q.invoke(ctx, "add", 4.0)
	if err != nil || q.Count != 5 {
		t.Errorf("Invoking 'Add' failed: %v", err)
	}

	assert.Error(t, q.invoke(ctx, "add"), "missing argument")
	assert.Error(t, q.invoke(ctx, "add", "four"), "wrong argument type")
	assert.Error(t, q.invoke(ctx, "nothing"), "unknown method")
	assert.Error(t, q.invoke(ctx, "changed", "count"), "blacklisted method")

	strObj := &BasicQObject{}
	if err := dummyConnection.InitObject(strObj); err != nil {
		t.Errorf("Initializing object failed: %v", err)
	}

	// There's generally no reason to refer objects this way from Go, so
	// fake the API a little bit.
	strObjRef := map[string]interface{}{
		"_qbackend_": "object",
		"identifier": strObj.Identifier(),
	}
	if err := q.invoke(ctx, "update", strObjRef); err != nil {
		t.Errorf("Invoking 'Update' failed: %v", err)
	}
	if strObj.StringData != "Count is 5" {
		t.Error("Object passed as parameter was not modified")
	}
}

func TestInvokeContext(t *testing.T) {
	q := &MethodQObject{}
	require.NoError(t, dummyConnection.InitObject(q))

	info := objectImplFor(q).Type
	assert.Equal(t, []string{"int"}, info.Methods["step"], "context parameter is not part of the type")

	require.NoError(t, q.invoke(dummyConnection.Context(), "step", 2))
	assert.Equal(t, 2, q.Count)
	assert.True(t, q.onThread)

	require.NoError(t, q.invoke(context.Background(), "step", 1))
	assert.False(t, q.onThread)

	err := q.invoke(dummyConnection.Context(), "step", -1)
	assert.EqualError(t, err, "negative step -1")
	assert.Equal(t, 3, q.Count)

	require.NoError(t, q.invoke(nil, "addAll", []interface{}{1.0, 2.0, 3.0}))
	assert.Equal(t, 9, q.Count)
}

type PropertyQObject struct {
	QObject
	Name     string
	Serial   string `qbackend:"readonly"`
	Secret   string `qbackend:"writeonly"`
	Version  int    `qbackend:"constant"`
	Position int
}

func (p *PropertyQObject) ValidateProperty(name string, value interface{}) (interface{}, error) {
	switch name {
	case "position":
		if v := value.(int); v > 100 {
			return 100, nil
		}
	case "name":
		if value.(string) == "" {
			return nil, fmt.Errorf("name can't be empty")
		}
	}
	return value, nil
}

func TestSetProperty(t *testing.T) {
	q := &PropertyQObject{Name: "stage", Serial: "S-1"}
	require.NoError(t, dummyConnection.InitObject(q))

	changes := 0
	n, ok := q.Notifier("nameChanged")
	require.True(t, ok)
	n.Subscribe(func() error {
		changes++
		return nil
	})

	require.NoError(t, SetProperty(q, "name", "x-axis"))
	assert.Equal(t, "x-axis", q.Name)
	assert.Equal(t, 1, changes)

	// Storing the current value is not a change
	require.NoError(t, SetProperty(q, "Name", "x-axis"))
	assert.Equal(t, 1, changes)

	assert.Error(t, SetProperty(q, "name", ""))
	assert.Equal(t, "x-axis", q.Name)
	assert.Equal(t, 1, changes)

	assert.Error(t, SetProperty(q, "serial", "S-2"), "read-only property")
	assert.Equal(t, "S-1", q.Serial)
	assert.Error(t, SetProperty(q, "missing", 1))
	assert.Error(t, SetProperty(q, "position", "ten"))
	assert.Error(t, SetProperty(nil, "name", "nil"))

	require.NoError(t, SetProperty(q, "position", 250.0))
	assert.Equal(t, 100, q.Position, "validator clamps the value")
}

func TestLookupProperty(t *testing.T) {
	q := &PropertyQObject{Name: "stage", Secret: "hunter2"}
	require.NoError(t, dummyConnection.InitObject(q))

	info, ok := q.LookupProperty("Name")
	require.True(t, ok)
	assert.Equal(t, "name", info.Name)
	require.NotNil(t, info.Read)
	require.NotNil(t, info.Write)
	require.NotNil(t, info.Notify)
	assert.Equal(t, "stage", info.Read())

	changed := false
	info.Notify.Subscribe(func() error {
		changed = true
		return nil
	})
	require.NoError(t, info.Write("y-axis"))
	assert.Equal(t, "y-axis", info.Read())
	assert.True(t, changed)

	info, ok = q.LookupProperty("serial")
	require.True(t, ok)
	assert.Nil(t, info.Write)

	info, ok = q.LookupProperty("secret")
	require.True(t, ok)
	assert.Nil(t, info.Read)

	info, ok = q.LookupProperty("version")
	require.True(t, ok)
	assert.Nil(t, info.Notify)

	_, ok = q.LookupProperty("missing")
	assert.False(t, ok)

	data, err := q.marshalObject()
	require.NoError(t, err)
	assert.NotContains(t, data, "secret")
	assert.Contains(t, data, "serial")
}
