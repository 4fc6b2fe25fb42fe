package mapper

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readOnlyModel struct {
	serial string
}

func (m *readOnlyModel) Serial() string { return m.serial }

type fallibleModel struct {
	temperature float64
	err         error
	changed     Signal
}

func (m *fallibleModel) Temperature() (float64, error) {
	return m.temperature, m.err
}

func (m *fallibleModel) Store(v float64) {
	m.temperature = v
}

func (m *fallibleModel) Changes() Notifier {
	return &m.changed
}

type namedSignals struct {
	signals map[string]*Signal
	Level   int
}

func (m *namedSignals) Notifier(name string) (Notifier, bool) {
	s, ok := m.signals[name]
	return s, ok
}

type descriptor struct {
	v interface{}
}

func (d *descriptor) Get() interface{}        { return d.v }
func (d *descriptor) Set(v interface{}) error { d.v = v; return nil }

type getOnly struct{}

func (getOnly) Get() interface{} { return 1 }

type port int

func (p *port) UnmarshalText(text []byte) error {
	n, err := strconv.Atoi(string(text))
	*p = port(n)
	return err
}

func TestReadOnlyModelProperty(t *testing.T) {
	m := New()
	model := &readOnlyModel{serial: "A-1"}
	w := newTestWidget(TextInput, map[string]interface{}{"text": ""})

	var changed Signal
	err := m.AddMapping(w, model, "serial", WithNotifier(&changed))
	assert.ErrorIs(t, err, ErrReadOnlyModelProperty)
	assert.Contains(t, err.Error(), "'serial' of *mapper.readOnlyModel")
	err = m.AddMapping(w, getOnly{}, getOnly{}, WithNotifier(&changed))
	assert.ErrorIs(t, err, ErrReadOnlyModelProperty)
	assert.Contains(t, err.Error(), "mapper.getOnly of mapper.getOnly")
	assert.Equal(t, 0, m.Len())

	var written string
	require.NoError(t, m.AddMapping(w, model, "Serial", WithSetter(func(v string) { written = v })))
	require.NoError(t, w.edit("text", "B-2"))
	assert.Equal(t, "B-2", written)
}

func TestGetterOnlyBinding(t *testing.T) {
	m := New()
	model := &testModel{value: 5}
	w := spinBox(0)

	require.NoError(t, m.AddMapping(w, model, Getter(func() interface{} { return model.value })))
	require.NoError(t, m.Revert(context.Background()))
	assert.Equal(t, 5, w.get("value"))

	err := w.edit("value", 7)
	assert.ErrorIs(t, err, ErrReadOnlyModelProperty)
	assert.NotContains(t, err.Error(), "0x", "func accessors are named by type")
	assert.Equal(t, 5, model.value)
	assert.ErrorIs(t, m.Submit(context.Background()), ErrReadOnlyModelProperty)

	// The binding is still usable afterwards
	model.value = 3
	require.NoError(t, m.Revert(context.Background()))
	assert.Equal(t, 3, w.get("value"))
}

func TestModelAccessors(t *testing.T) {
	t.Run("getter with error", func(t *testing.T) {
		m := New()
		model := &fallibleModel{temperature: 4.2}
		w := newTestWidget(RangeInput, map[string]interface{}{"value": 0.0})
		require.NoError(t, m.AddMapping(w, model, "temperature",
			WithSetter("Store"), WithNotifier("Changes")))

		require.NoError(t, w.edit("value", 1.5))
		assert.Equal(t, 1.5, model.temperature)

		model.temperature = 3.0
		require.NoError(t, model.changed.Emit())
		assert.Equal(t, 3.0, w.get("value"))

		failure := errors.New("sensor offline")
		model.err = failure
		assert.ErrorIs(t, model.changed.Emit(), failure)
	})

	t.Run("descriptor", func(t *testing.T) {
		m := New()
		d := &descriptor{v: "idle"}
		w := newTestWidget(TextInput, map[string]interface{}{"text": ""})
		require.NoError(t, m.AddMapping(w, nil, d))
		require.NoError(t, w.edit("text", "armed"))
		assert.Equal(t, "armed", d.v)
	})

	t.Run("func getter", func(t *testing.T) {
		m := New()
		level := 2
		w := spinBox(0)
		require.NoError(t, m.AddMapping(w, nil, func() int { return level },
			WithSetter(func(v int) error { level = v; return nil })))
		require.NoError(t, w.edit("value", 8))
		assert.Equal(t, 8, level)
	})

	t.Run("text unmarshaler field", func(t *testing.T) {
		type settings struct {
			Port port
		}
		m := New()
		s := &settings{}
		w := newTestWidget(TextInput, map[string]interface{}{"text": ""})
		require.NoError(t, m.AddMapping(w, s, "port"))
		require.NoError(t, w.edit("text", "5025"))
		assert.Equal(t, port(5025), s.Port)

		assert.Error(t, w.edit("text", "gpib"))
	})

	t.Run("missing", func(t *testing.T) {
		m := New()
		err := m.AddMapping(spinBox(0), &testModel{}, "voltage")
		assert.ErrorIs(t, err, ErrModelPropertyNotFound)
		err = m.AddMapping(spinBox(0), &testModel{}, 42)
		assert.ErrorIs(t, err, ErrModelPropertyNotFound)
	})
}

func TestNotifierResolution(t *testing.T) {
	t.Run("source", func(t *testing.T) {
		m := New()
		level := &Signal{}
		model := &namedSignals{signals: map[string]*Signal{"levelChanged": level}}
		w := spinBox(0)
		require.NoError(t, m.AddMapping(w, model, "Level", WithNotifier("levelChanged")))

		model.Level = 3
		require.NoError(t, level.Emit())
		assert.Equal(t, 3, w.get("value"))
	})

	t.Run("explicit", func(t *testing.T) {
		m := New()
		var s Signal
		model := &testModel{}
		w := spinBox(0)
		require.NoError(t, m.AddMapping(w, model, "Value", WithNotifier(&s)))
		assert.Equal(t, 1, s.Connected())
	})

	t.Run("missing", func(t *testing.T) {
		m := New()
		w := spinBox(0)
		err := m.AddMapping(w, &testModel{}, "Value", WithNotifier("valueUpdated"))
		assert.ErrorIs(t, err, ErrNotifierNotFound)
		assert.Equal(t, 0, m.Len())
		assert.Equal(t, 0, w.props["value"].changed.Connected(), "failed mapping must not subscribe")
	})
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(3, 3))
	assert.True(t, valuesEqual(3.0, 3))
	assert.False(t, valuesEqual(2, 2.5), "lossy conversion")
	assert.False(t, valuesEqual("3", 3))
	assert.True(t, valuesEqual(nil, nil))
	assert.False(t, valuesEqual(nil, 0))
	assert.True(t, valuesEqual([]string{"a"}, []string{"a"}))
}

func TestSignal(t *testing.T) {
	var s Signal
	var calls []int
	unsub1 := s.Subscribe(func() error { calls = append(calls, 1); return nil })
	s.Subscribe(func() error { calls = append(calls, 2); return errors.New("two") })

	err := s.Emit()
	assert.EqualError(t, err, "two")
	assert.Equal(t, []int{1, 2}, calls)

	unsub1()
	unsub1()
	assert.Equal(t, 1, s.Connected())
}
