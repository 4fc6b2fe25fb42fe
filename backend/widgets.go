package qbackend

import (
	"fmt"
	"math"

	"github.com/CrimsonAS/qbind/mapper"
)

// The widget types mirror the state of the corresponding QtQuick Controls in
// the frontend. They declare their capabilities, so a mapper can bind them
// without naming a property, and they keep their values within range the way
// the controls do.

// LineEdit is a single line text field.
type LineEdit struct {
	QObject
	Text            string
	PlaceholderText string
	ReadOnly        bool
}

func (*LineEdit) Capabilities() mapper.Capability { return mapper.TextInput }

// Label shows text that can't be edited or bound. The backend changes it
// directly and calls Changed.
type Label struct {
	QObject
	Text string `qbackend:"readonly"`
}

// CheckBox is a checkable button.
type CheckBox struct {
	QObject
	Text    string
	Checked bool
}

func (*CheckBox) Capabilities() mapper.Capability { return mapper.Toggle }

// SpinBox is an integer input with a range.
type SpinBox struct {
	QObject
	Value    int
	Minimum  int
	Maximum  int
	StepSize int
	Suffix   string
}

func (*SpinBox) Capabilities() mapper.Capability { return mapper.RangeInput }

func (s *SpinBox) ValidateProperty(name string, value interface{}) (interface{}, error) {
	if name == "value" && s.Minimum <= s.Maximum {
		v := value.(int)
		if v < s.Minimum {
			v = s.Minimum
		} else if v > s.Maximum {
			v = s.Maximum
		}
		return v, nil
	}
	return value, nil
}

// DoubleSpinBox is a decimal input with a range. Values are rounded to
// Decimals digits.
type DoubleSpinBox struct {
	QObject
	Value    float64
	Minimum  float64
	Maximum  float64
	StepSize float64
	Decimals int
	Suffix   string
}

func (*DoubleSpinBox) Capabilities() mapper.Capability { return mapper.RangeInput }

func (s *DoubleSpinBox) ValidateProperty(name string, value interface{}) (interface{}, error) {
	if name != "value" {
		return value, nil
	}
	v := value.(float64)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("qbackend: spin box value %g is not a number", v)
	}
	if s.Decimals >= 0 {
		scale := math.Pow(10, float64(s.Decimals))
		v = math.Round(v*scale) / scale
	}
	if s.Minimum <= s.Maximum {
		v = math.Max(s.Minimum, math.Min(s.Maximum, v))
	}
	return v, nil
}

// Slider selects an integer from a range.
type Slider struct {
	QObject
	Value   int
	Minimum int
	Maximum int
}

func (*Slider) Capabilities() mapper.Capability { return mapper.RangeInput }

func (s *Slider) ValidateProperty(name string, value interface{}) (interface{}, error) {
	if name == "value" && s.Minimum <= s.Maximum {
		v := value.(int)
		if v < s.Minimum {
			v = s.Minimum
		} else if v > s.Maximum {
			v = s.Maximum
		}
		return v, nil
	}
	return value, nil
}

// ComboBox selects one of Items. CurrentIndex is -1 when nothing is
// selected.
type ComboBox struct {
	QObject
	Items        []string
	CurrentIndex int
}

func (*ComboBox) Capabilities() mapper.Capability { return mapper.ChoiceSelector }

func (c *ComboBox) ValidateProperty(name string, value interface{}) (interface{}, error) {
	if name == "currentIndex" {
		if v := value.(int); v < -1 || v >= len(c.Items) {
			return -1, nil
		}
	}
	return value, nil
}

// CurrentText returns the selected item, or an empty string.
func (c *ComboBox) CurrentText() string {
	if c.CurrentIndex < 0 || c.CurrentIndex >= len(c.Items) {
		return ""
	}
	return c.Items[c.CurrentIndex]
}

func mustInit(c *Connection, obj QObject) {
	if err := c.InitObject(obj); err != nil {
		// Only possible for a malformed type, which the widget types are not
		panic(err)
	}
}

func NewLineEdit(c *Connection, text string) *LineEdit {
	w := &LineEdit{Text: text}
	mustInit(c, w)
	return w
}

func NewLabel(c *Connection, text string) *Label {
	w := &Label{Text: text}
	mustInit(c, w)
	return w
}

func NewCheckBox(c *Connection, text string, checked bool) *CheckBox {
	w := &CheckBox{Text: text, Checked: checked}
	mustInit(c, w)
	return w
}

// NewSpinBox returns a spin box with the given range and a value of min.
func NewSpinBox(c *Connection, min, max int) *SpinBox {
	w := &SpinBox{Value: min, Minimum: min, Maximum: max, StepSize: 1}
	mustInit(c, w)
	return w
}

// NewDoubleSpinBox returns a spin box with the given range and precision
// and a value of min.
func NewDoubleSpinBox(c *Connection, min, max float64, decimals int) *DoubleSpinBox {
	w := &DoubleSpinBox{Value: min, Minimum: min, Maximum: max, StepSize: 1, Decimals: decimals}
	mustInit(c, w)
	return w
}

func NewSlider(c *Connection, min, max int) *Slider {
	w := &Slider{Value: min, Minimum: min, Maximum: max}
	mustInit(c, w)
	return w
}

// NewComboBox returns a combo box with the first item selected, if any.
func NewComboBox(c *Connection, items ...string) *ComboBox {
	w := &ComboBox{Items: items, CurrentIndex: -1}
	if len(items) > 0 {
		w.CurrentIndex = 0
	}
	mustInit(c, w)
	return w
}
