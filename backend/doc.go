// qbackend bridges the Go side of an instrument GUI with a QtQuick/QML
// frontend, and provides the display endpoints that a mapper binds to model
// data.
//
// All frontend/backend communication is socket-based; the Go application does
// not use cgo or any native code. For all-in-one applications, the
// backend/qmlscene package provides a simple wrapper to execute QML within the
// Go process.
//
// Objects
//
// In the middle of everything is QObject. When QObject is embedded in a struct,
// that type is "a QObject" and will be a fully functional Qt object in the
// frontend. The exported fields become QML properties, exported methods are
// callable functions, and func fields create Qt signals. Each property has a
// change signal named after it, e.g. valueChanged for a Value field.
//
//  // Go
//  type Stage struct {
//      qbackend.QObject
//      Position float64
//      Serial   string `qbackend:"readonly"`
//  }
//  func (s *Stage) Home() {
//      ...
//  }
//
//  // QML
//  property var stage: Backend.stage
//  onClicked: { stage.home(); stage.position = 0 }
//
// Options in the `qbackend:` tag of a property field modify it: "readonly"
// properties can't be set by the frontend or a mapper, "constant" properties
// have no change signal, and "writeonly" properties are never sent to the
// frontend. A tag of "-" ignores the field.
//
// After changing a property field in Go, call Changed with the field's name.
// This updates the frontend and notifies Go subscribers of the change signal.
// SetProperty does both for you, and only notifies if the value changed.
//
// Binding properties
//
// Every QObject implements mapper.Display, so its properties can be bound to
// the properties of model objects:
//
//  spin := qbackend.NewDoubleSpinBox(c, 0, 100, 2)
//  m := mapper.New(mapper.WithDispatcher(c))
//  m.AddMapping(spin, stage, "Position", mapper.WithNotifier("PositionChanged"))
//
// The widget types in this package (LineEdit, CheckBox, SpinBox,
// DoubleSpinBox, Slider, ComboBox) declare mapper capabilities, so their
// property doesn't need to be named. Types may implement PropertyValidator to
// adjust or reject values before they are stored, as the spin boxes do to
// stay within range.
//
// Data Models
//
// For large, complex, or dynamic data used in QML views, Model provides a
// QAbstractListModel equivalent API. An object which embeds Model, implements
// the ModelDataSource interface, and calls Model's methods for changes to data
// is usable as a model anywhere in QML.
//
// Connection
//
// Connection handles communication with the frontend and manages objects. It
// is also the event loop of the UI thread.
//
// Connection is created with a socket for communication with the frontend. A
// RootObject must be assigned on the connection before it starts; the root
// object is always available as the Backend singleton in QML. A connection
// created with NewLocalConnection has no frontend, which is useful for tests
// and headless operation.
//
// The connection is run by calling Run() or (in a loop) Process(). Members of
// initialized QObjects are only accessed during calls to Run, Process, or
// methods of this package. RunLockable() provides a sync.Locker for exclusive
// execution with Process().
//
// Code on other goroutines can Post tasks to run during Process. The context
// given to posted tasks and to invoked methods (those taking a
// context.Context as first parameter) identifies the UI thread, which is how
// a mapper decides whether to submit inline or to post itself.
package qbackend
