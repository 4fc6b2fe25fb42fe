// Package mapper keeps the properties of display widgets synchronized with the
// properties of model objects, such as the settings of an instrument logic.
//
// A Mapper holds independent bindings. Each binding connects one property of
// a display (anything implementing Display, usually a qbackend widget) with
// one property of a model, optionally through a Converter.
//
//  m := mapper.New(mapper.WithDispatcher(connection))
//  err := m.AddMapping(lengthSpinBox, logic, "TraceLength",
//      mapper.WithNotifier("TraceSettingsChanged"))
//
// When the user edits the spin box, its value is written to the model with
// logic.SetTraceLength. When the model emits TraceSettingsChanged, the spin box
// is updated from logic.TraceLength(). The mapper ignores the notifications
// caused by its own writes, so a change never echoes back to where it came
// from. If the model adjusted the value it was given (e.g. by clamping), the
// adjusted value is still shown.
//
// Display properties
//
// The bound display property must be readable, writable and observable. If no
// property is named with WithDisplayProperty, it is guessed from the display's
// Capabilities: "text" for a TextInput, "checked" for a Toggle, "value" for a
// RangeInput and "currentIndex" for a ChoiceSelector, in that order.
//
// Model properties
//
// The model accessor is the name of a getter method (with an optional
// Set<Name> method), the name of an exported field, a getter func or an
// Accessor. A property without any setter can't be mapped unless one is given
// with WithSetter. The notifier is optional; without it, model changes only
// reach the display through Revert.
//
// Submitting
//
// With SubmitAuto, display changes are written to the model as they happen.
// With SubmitManual, they are held until Submit, which writes every display to
// its model. Revert discards pending edits by writing every model to its
// display.
//
// Threads
//
// Bindings are not safe for concurrent use. Property access and notifications
// are expected on the UI thread, which is represented by a Dispatcher. Submit
// and Revert may be called from any goroutine: off the UI thread, they post
// themselves to the dispatcher and return without waiting. SubmitWait and
// RevertWait wait for the posted task to finish.
//
// The mapper uses no locks. A pair of flags on each binding suppresses
// reentrant propagation, which is sufficient as long as everything happens on
// the UI thread.
package mapper
