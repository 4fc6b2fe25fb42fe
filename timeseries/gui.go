package timeseries

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	qbackend "github.com/CrimsonAS/qbind/backend"
	"github.com/CrimsonAS/qbind/mapper"
)

// SettingsDock holds the trace settings. Edits are applied to the logic
// as soon as they are made.
type SettingsDock struct {
	qbackend.QObject
	TraceLength   *qbackend.DoubleSpinBox `qbackend:"constant"`
	DataRate      *qbackend.DoubleSpinBox `qbackend:"constant"`
	Oversampling  *qbackend.SpinBox       `qbackend:"constant"`
	MovingAverage *qbackend.SpinBox       `qbackend:"constant"`
}

type ChannelRow struct {
	qbackend.QObject
	Name     string             `qbackend:"readonly,constant"`
	Unit     string             `qbackend:"readonly,constant"`
	Active   *qbackend.CheckBox `qbackend:"constant"`
	Averaged *qbackend.CheckBox `qbackend:"constant"`
}

// ChannelDialog holds the channel settings. Edits are only applied to the
// logic when the dialog is accepted.
type ChannelDialog struct {
	qbackend.QObject
	Rows    []*ChannelRow `qbackend:"constant"`
	Visible bool          `qbackend:"readonly"`
}

type ViewRow struct {
	qbackend.QObject
	Name        string             `qbackend:"readonly,constant"`
	ShowData    *qbackend.CheckBox `qbackend:"constant"`
	ShowAverage *qbackend.CheckBox `qbackend:"constant"`
	// -1 shows four significant digits
	Digits    *qbackend.SpinBox  `qbackend:"constant"`
	ShowLabel *qbackend.CheckBox `qbackend:"constant"`
}

// TraceViewDialog holds the view settings of the channels. Like the
// channel dialog, edits are applied when it is accepted.
type TraceViewDialog struct {
	qbackend.QObject
	Rows    []*ViewRow `qbackend:"constant"`
	Visible bool       `qbackend:"readonly"`
}

// Gui is the root object of the time series frontend. It owns the widgets
// and binds them to a Logic: the settings dock and the trace and record
// toggles submit every edit, and the dialogs submit when they are accepted.
type Gui struct {
	qbackend.QObject

	Settings       *SettingsDock      `qbackend:"constant"`
	Dialog         *ChannelDialog     `qbackend:"constant"`
	TraceView      *TraceViewDialog   `qbackend:"constant"`
	Trace          *qbackend.CheckBox `qbackend:"constant"`
	Record         *qbackend.CheckBox `qbackend:"constant"`
	CurrentChannel *qbackend.ComboBox `qbackend:"constant"`
	CurrentValue   *qbackend.Label    `qbackend:"constant"`
	Values         *ChannelModel      `qbackend:"constant"`

	// ChannelSettingsEnabled is false while the trace is running
	ChannelSettingsEnabled bool `qbackend:"readonly"`
	// RecordingEnabled is true while the trace is running
	RecordingEnabled bool `qbackend:"readonly"`

	logic    *Logic
	settings *mapper.Mapper
	channels *mapper.Mapper
	views    *mapper.Mapper
	unsub    []func()
}

// Trace lengths are shown in seconds.
var secondsConverter = mapper.ConverterFuncs{
	ToModelFunc: func(v interface{}) (interface{}, error) {
		s, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: trace length %v (%T)", ErrInvalidValue, v, v)
		}
		return time.Duration(s * float64(time.Second)).Round(time.Millisecond), nil
	},
	ToDisplayFunc: func(v interface{}) (interface{}, error) {
		d, ok := v.(time.Duration)
		if !ok {
			return nil, fmt.Errorf("%w: trace length %v (%T)", ErrInvalidValue, v, v)
		}
		return d.Seconds(), nil
	},
}

const noChannel = "None"

// NewGui creates the widgets for logic on c. The Gui is initialized as the
// root object of c. Nothing is bound until Activate.
func NewGui(c *qbackend.Connection, logic *Logic) (*Gui, error) {
	g := &Gui{
		logic: logic,
		Settings: &SettingsDock{
			TraceLength:   qbackend.NewDoubleSpinBox(c, minTraceLength.Seconds(), maxTraceLength.Seconds(), 3),
			DataRate:      qbackend.NewDoubleSpinBox(c, minDataRate, logic.cfg.MaxDataRate, 1),
			Oversampling:  qbackend.NewSpinBox(c, 1, maxOversampling),
			MovingAverage: qbackend.NewSpinBox(c, 1, maxMovingAverage),
		},
		Dialog:       &ChannelDialog{},
		TraceView:    &TraceViewDialog{},
		CurrentValue: qbackend.NewLabel(c, ""),
		Values:       newChannelModel(logic),
		settings:     mapper.New(mapper.WithDispatcher(c)),
		channels:     mapper.New(mapper.WithDispatcher(c)),
		views:        mapper.New(mapper.WithDispatcher(c)),
	}
	traceText, recordText := statusTexts(logic.Running(), logic.Recording())
	g.Trace = qbackend.NewCheckBox(c, traceText, false)
	g.Record = qbackend.NewCheckBox(c, recordText, false)
	g.ChannelSettingsEnabled = !logic.Running()
	g.RecordingEnabled = logic.Running()
	g.Settings.TraceLength.Suffix = " s"
	g.Settings.DataRate.Suffix = " Hz"
	g.Settings.MovingAverage.StepSize = 2

	items := []string{noChannel}
	for _, ch := range logic.Channels() {
		items = append(items, ch)
		g.Dialog.Rows = append(g.Dialog.Rows, &ChannelRow{
			Name:     ch,
			Unit:     logic.Unit(ch),
			Active:   qbackend.NewCheckBox(c, "active", true),
			Averaged: qbackend.NewCheckBox(c, "averaged", true),
		})
		g.TraceView.Rows = append(g.TraceView.Rows, &ViewRow{
			Name:        ch,
			ShowData:    qbackend.NewCheckBox(c, "data", true),
			ShowAverage: qbackend.NewCheckBox(c, "average", true),
			Digits:      qbackend.NewSpinBox(c, autoDigits, maxDigits),
			ShowLabel:   qbackend.NewCheckBox(c, "label", false),
		})
	}
	for _, ch := range logic.Channels() {
		items = append(items, "average "+ch)
	}
	g.CurrentChannel = qbackend.NewComboBox(c, items...)

	for _, m := range []*mapper.Mapper{g.channels, g.views} {
		if err := m.SetSubmitPolicy(mapper.SubmitManual); err != nil {
			return nil, err
		}
	}

	for _, obj := range []qbackend.QObject{g.Settings, g.Dialog, g.TraceView, g.Values} {
		if err := c.InitObject(obj); err != nil {
			return nil, err
		}
	}
	for i := range g.Dialog.Rows {
		if err := c.InitObject(g.Dialog.Rows[i]); err != nil {
			return nil, err
		}
		if err := c.InitObject(g.TraceView.Rows[i]); err != nil {
			return nil, err
		}
	}
	if err := c.InitObjectId(g, "root"); err != nil {
		return nil, err
	}
	c.RootObject = g
	return g, nil
}

// Activate binds the widgets to the logic and loads the current settings
// into them. The load is posted if ctx is not on the UI thread.
func (g *Gui) Activate(ctx context.Context) error {
	if g.settings.Len() > 0 {
		return errors.New("timeseries: gui is already active")
	}

	s, l := g.Settings, g.logic
	trace := mapper.WithNotifier("TraceSettingsChanged")
	err := errors.Join(
		g.settings.AddMapping(s.TraceLength, l, "TraceLength", trace, mapper.WithConverter(secondsConverter)),
		g.settings.AddMapping(s.DataRate, l, "DataRate", trace),
		g.settings.AddMapping(s.Oversampling, l, "Oversampling", trace),
		g.settings.AddMapping(s.MovingAverage, l, "MovingAverage", trace),
		g.settings.AddMapping(g.Trace, l, "Running", mapper.WithNotifier(&l.StatusChanged)),
		g.settings.AddMapping(g.Record, l, "Recording", mapper.WithNotifier(&l.StatusChanged)),
	)
	if err == nil {
		err = g.bindChannels()
	}
	if err == nil {
		err = g.bindViews()
	}
	if err != nil {
		g.Deactivate()
		return err
	}

	g.unsub = append(g.unsub,
		l.StatusChanged.Subscribe(g.statusChanged),
		l.DataUpdated.Subscribe(g.dataUpdated),
		l.ChannelSettingsChanged.Subscribe(g.dataUpdated),
	)
	if n, ok := g.CurrentChannel.Notifier("currentIndexChanged"); ok {
		g.unsub = append(g.unsub, n.Subscribe(g.dataUpdated))
	}

	return errors.Join(
		g.settings.Revert(ctx),
		g.channels.Revert(ctx),
		g.views.Revert(ctx),
	)
}

func (g *Gui) bindChannels() error {
	for _, row := range g.Dialog.Rows {
		active, err := g.logic.ChannelActive(row.Name)
		if err != nil {
			return err
		}
		averaged, err := g.logic.ChannelAveraged(row.Name)
		if err != nil {
			return err
		}
		// No notifier: a change of one channel would overwrite the pending
		// edits of the others. The dialog is reverted when it is opened.
		if err := g.channels.AddMapping(row.Active, g.logic, active); err != nil {
			return err
		}
		if err := g.channels.AddMapping(row.Averaged, g.logic, averaged); err != nil {
			return err
		}
	}
	return nil
}

// The view settings are plain fields, written directly on submit.
func (g *Gui) bindViews() error {
	for _, row := range g.TraceView.Rows {
		view := g.Values.View(row.Name)
		err := errors.Join(
			g.views.AddMapping(row.ShowData, view, "ShowData"),
			g.views.AddMapping(row.ShowAverage, view, "ShowAverage"),
			g.views.AddMapping(row.Digits, view, "Digits"),
			g.views.AddMapping(row.ShowLabel, view, "ShowLabel"),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// Deactivate removes all bindings. Widgets keep their values.
func (g *Gui) Deactivate() {
	g.settings.ClearMapping()
	g.channels.ClearMapping()
	g.views.ClearMapping()
	for _, unsubscribe := range g.unsub {
		unsubscribe()
	}
	g.unsub = nil
}

// OpenChannelSettings shows the channel dialog with the current settings.
func (g *Gui) OpenChannelSettings(ctx context.Context) error {
	if g.logic.Running() {
		return ErrRunning
	}
	if err := g.channels.Revert(ctx); err != nil {
		return err
	}
	return g.setDialogVisible(true)
}

// ApplyChannelSettings submits the dialog's edits to the logic and closes
// the dialog. It stays open if a setting was not accepted.
func (g *Gui) ApplyChannelSettings(ctx context.Context) error {
	if err := g.channels.Submit(ctx); err != nil {
		return err
	}
	return g.setDialogVisible(false)
}

// CancelChannelSettings discards the dialog's edits and closes it.
func (g *Gui) CancelChannelSettings(ctx context.Context) error {
	if err := g.channels.Revert(ctx); err != nil {
		return err
	}
	return g.setDialogVisible(false)
}

func (g *Gui) setDialogVisible(visible bool) error {
	if g.Dialog.Visible == visible {
		return nil
	}
	g.Dialog.Visible = visible
	return g.Dialog.Changed("Visible")
}

// OpenTraceView shows the view settings dialog with the current settings.
// Unlike the channel settings, the view can be changed while running.
func (g *Gui) OpenTraceView(ctx context.Context) error {
	if err := g.views.Revert(ctx); err != nil {
		return err
	}
	return g.setTraceViewVisible(true)
}

// ApplyTraceView applies the view settings and closes the dialog.
func (g *Gui) ApplyTraceView(ctx context.Context) error {
	if err := g.views.Submit(ctx); err != nil {
		return err
	}
	if err := g.dataUpdated(); err != nil {
		return err
	}
	return g.setTraceViewVisible(false)
}

func (g *Gui) CancelTraceView(ctx context.Context) error {
	if err := g.views.Revert(ctx); err != nil {
		return err
	}
	return g.setTraceViewVisible(false)
}

func (g *Gui) setTraceViewVisible(visible bool) error {
	if g.TraceView.Visible == visible {
		return nil
	}
	g.TraceView.Visible = visible
	return g.TraceView.Changed("Visible")
}

func statusTexts(running, recording bool) (trace, record string) {
	trace, record = "Start trace", "Start recording"
	if running {
		trace = "Stop trace"
	}
	if recording {
		record = "Save recorded"
	}
	return
}

// statusChanged follows the trace and recording state. The toggles
// themselves are bound.
func (g *Gui) statusChanged() error {
	running := g.logic.Running()
	var errs []error
	if g.ChannelSettingsEnabled != !running {
		g.ChannelSettingsEnabled = !running
		errs = append(errs, g.Changed("ChannelSettingsEnabled"))
	}
	if g.RecordingEnabled != running {
		g.RecordingEnabled = running
		errs = append(errs, g.Changed("RecordingEnabled"))
	}
	traceText, recordText := statusTexts(running, g.logic.Recording())
	errs = append(errs,
		qbackend.SetProperty(g.Trace, "text", traceText),
		qbackend.SetProperty(g.Record, "text", recordText),
	)
	return errors.Join(errs...)
}

// dataUpdated refreshes the value display. Failures are logged rather
// than returned, since the logic can't act on them.
func (g *Gui) dataUpdated() error {
	g.Values.refresh()

	text := g.currentValueText()
	if text != g.CurrentValue.Text {
		g.CurrentValue.Text = text
		if err := g.CurrentValue.Changed("Text"); err != nil {
			log.Printf("timeseries: WARNING: value display update failed: %s", err)
		}
	}
	return nil
}

func (g *Gui) currentValueText() string {
	ch := g.CurrentChannel.CurrentText()
	if ch == "" || ch == noChannel {
		return ""
	}

	var v float64
	var ok bool
	name := strings.TrimPrefix(ch, "average ")
	if name != ch {
		v, ok = g.logic.LatestAverage(name)
	} else {
		v, ok = g.logic.Latest(ch)
	}
	if !ok {
		return "-"
	}
	return g.Values.View(name).format(v, g.logic.Unit(name))
}
