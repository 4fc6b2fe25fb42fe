package mapper

import (
	"fmt"
	"strings"
)

// Display is the UI-facing endpoint of a binding. It exposes introspectable
// properties by name, in the manner of Qt meta-properties.
type Display interface {
	LookupProperty(name string) (*PropertyInfo, bool)
}

// PropertyInfo describes one property of a Display. A nil Read, Write or
// Notify means the property is not readable, not writable or not
// observable, respectively.
type PropertyInfo struct {
	Name   string
	Read   func() interface{}
	Write  func(interface{}) error
	Notify Notifier
}

// Capability tags the kind of control a display is. It is used to guess
// the bound property when none is named explicitly.
type Capability uint

const (
	TextInput Capability = 1 << iota
	Toggle
	RangeInput
	ChoiceSelector
)

func (c Capability) String() string {
	var names []string
	for _, g := range guessTable {
		if c&g.capability != 0 {
			names = append(names, g.name)
		}
	}
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, "|")
}

// Capable is implemented by displays that can have their property guessed.
type Capable interface {
	Capabilities() Capability
}

// The first entry matching a display's capabilities wins.
var guessTable = []struct {
	capability Capability
	name       string
	property   string
}{
	{TextInput, "TextInput", "text"},
	{Toggle, "Toggle", "checked"},
	{RangeInput, "RangeInput", "value"},
	{ChoiceSelector, "ChoiceSelector", "currentIndex"},
}

// GuessProperty returns the canonical property name for a display based on
// its capabilities, or false if the display declares none that are known.
func GuessProperty(display Display) (string, bool) {
	c, ok := display.(Capable)
	if !ok {
		return "", false
	}
	caps := c.Capabilities()
	for _, g := range guessTable {
		if caps&g.capability != 0 {
			return g.property, true
		}
	}
	return "", false
}

// resolveDisplayProperty finds and validates the named (or guessed) property.
// The checks run in a fixed order so that the most fundamental problem is
// reported.
func resolveDisplayProperty(display Display, name string) (*PropertyInfo, error) {
	if name == "" {
		var ok bool
		if name, ok = GuessProperty(display); !ok {
			return nil, fmt.Errorf("%w for %T", ErrUnresolvedProperty, display)
		}
	}

	info, ok := display.LookupProperty(name)
	if !ok || info == nil {
		return nil, &PropertyError{display, name, ErrPropertyNotFound}
	}
	if info.Notify == nil {
		return nil, &PropertyError{display, name, ErrPropertyNotObservable}
	}
	if info.Read == nil {
		return nil, &PropertyError{display, name, ErrPropertyNotReadable}
	}
	if info.Write == nil {
		return nil, &PropertyError{display, name, ErrPropertyNotWritable}
	}
	return info, nil
}
