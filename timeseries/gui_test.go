package timeseries

import (
	"context"
	"fmt"
	"testing"
	"time"

	qbackend "github.com/CrimsonAS/qbind/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGui(t *testing.T) (*qbackend.Connection, *Logic, *Gui, *fakeClock) {
	c := qbackend.NewLocalConnection()
	t.Cleanup(func() { c.Close() })

	l, clock := newTestLogic(t, DefaultConfig())
	g, err := NewGui(c, l)
	require.NoError(t, err)
	return c, l, g, clock
}

func TestGuiActivate(t *testing.T) {
	c, l, g, _ := newTestGui(t)
	assert.Equal(t, "root", g.Identifier())
	assert.Equal(t, g, c.RootObject)
	assert.Len(t, g.Dialog.Rows, 3)
	assert.Len(t, g.TraceView.Rows, 3)
	assert.Equal(t, "Start trace", g.Trace.Text)
	assert.Equal(t, "Start recording", g.Record.Text)
	assert.False(t, g.RecordingEnabled)
	assert.Equal(t, []string{"None", "ch0", "ch1", "ch2", "average ch0", "average ch1", "average ch2"}, g.CurrentChannel.Items)

	// Off the loop the widgets are loaded by the next Process
	require.NoError(t, g.Activate(context.Background()))
	assert.Equal(t, 1, g.Settings.MovingAverage.Value)
	require.NoError(t, c.Process())

	assert.Equal(t, 6.0, g.Settings.TraceLength.Value)
	assert.Equal(t, 50.0, g.Settings.DataRate.Value)
	assert.Equal(t, 1, g.Settings.Oversampling.Value)
	assert.Equal(t, 9, g.Settings.MovingAverage.Value)
	assert.False(t, g.Trace.Checked)
	assert.True(t, g.Dialog.Rows[0].Active.Checked)

	assert.Error(t, g.Activate(c.Context()), "already active")

	g.Deactivate()
	require.NoError(t, qbackend.SetProperty(g.Settings.Oversampling, "value", 4))
	assert.Equal(t, 1, l.Oversampling(), "deactivated widgets are not bound")

	require.NoError(t, g.Activate(c.Context()))
	assert.Equal(t, 1, g.Settings.Oversampling.Value, "activation loads the logic's settings")
}

func TestSettingsDockAppliesEdits(t *testing.T) {
	c, l, g, _ := newTestGui(t)
	require.NoError(t, g.Activate(c.Context()))
	s := g.Settings

	require.NoError(t, qbackend.SetProperty(s.TraceLength, "value", 2.5))
	assert.Equal(t, 2500*time.Millisecond, l.TraceLength())

	require.NoError(t, qbackend.SetProperty(s.DataRate, "value", 1e6))
	assert.Equal(t, 10000.0, s.DataRate.Value, "the spin box clamps")
	assert.Equal(t, 10000.0, l.DataRate())

	// The logic only accepts odd widths, and the widget follows it
	require.NoError(t, qbackend.SetProperty(s.MovingAverage, "value", 4))
	assert.Equal(t, 5, l.MovingAverage())
	assert.Equal(t, 5, s.MovingAverage.Value)

	// Changes made by the logic are shown
	require.NoError(t, l.SetOversampling(8))
	assert.Equal(t, 8, s.Oversampling.Value)
	assert.Equal(t, 2.5, s.TraceLength.Value)
}

func TestTraceToggle(t *testing.T) {
	c, l, g, _ := newTestGui(t)
	require.NoError(t, g.Activate(c.Context()))
	assert.True(t, g.ChannelSettingsEnabled)

	require.NoError(t, qbackend.SetProperty(g.Trace, "checked", true))
	assert.True(t, l.Running())
	assert.False(t, g.ChannelSettingsEnabled)
	assert.Equal(t, ErrRunning, g.OpenChannelSettings(c.Context()))
	assert.False(t, g.Dialog.Visible)

	require.NoError(t, l.Stop())
	assert.False(t, g.Trace.Checked)
	assert.True(t, g.ChannelSettingsEnabled)
}

func TestChannelDialog(t *testing.T) {
	c, l, g, _ := newTestGui(t)
	ctx := c.Context()
	require.NoError(t, g.Activate(ctx))
	row := g.Dialog.Rows[1]

	require.NoError(t, g.OpenChannelSettings(ctx))
	assert.True(t, g.Dialog.Visible)

	// Edits wait for the dialog to be accepted
	require.NoError(t, qbackend.SetProperty(row.Active, "checked", false))
	require.NoError(t, qbackend.SetProperty(g.Dialog.Rows[2].Averaged, "checked", false))
	assert.Equal(t, []string{"ch0", "ch1", "ch2"}, l.ActiveChannels())

	require.NoError(t, g.CancelChannelSettings(ctx))
	assert.False(t, g.Dialog.Visible)
	assert.True(t, row.Active.Checked, "cancel restores the logic's settings")
	assert.True(t, g.Dialog.Rows[2].Averaged.Checked)

	require.NoError(t, g.OpenChannelSettings(ctx))
	require.NoError(t, qbackend.SetProperty(row.Active, "checked", false))
	require.NoError(t, qbackend.SetProperty(g.Dialog.Rows[2].Averaged, "checked", false))
	require.NoError(t, g.ApplyChannelSettings(ctx))
	assert.False(t, g.Dialog.Visible)
	assert.Equal(t, []string{"ch0", "ch2"}, l.ActiveChannels())
	assert.Equal(t, []string{"ch0"}, l.AveragedChannels())

	// A rejected apply keeps the dialog open
	require.NoError(t, g.OpenChannelSettings(ctx))
	require.NoError(t, qbackend.SetProperty(row.Active, "checked", true))
	require.NoError(t, l.Start())
	assert.ErrorIs(t, g.ApplyChannelSettings(ctx), ErrRunning)
	assert.True(t, g.Dialog.Visible)
}

func TestValueDisplay(t *testing.T) {
	c, l, g, clock := newTestGui(t)
	require.NoError(t, g.Activate(c.Context()))
	require.NoError(t, l.Start())

	require.NoError(t, qbackend.SetProperty(g.CurrentChannel, "currentIndex", 1))
	assert.Equal(t, "-", g.CurrentValue.Text, "no samples yet")

	clock.advance(time.Second)
	l.acquire()
	v, ok := l.Latest("ch0")
	require.True(t, ok)
	assert.Contains(t, g.CurrentValue.Text, " V")
	assert.NotEqual(t, "-", g.CurrentValue.Text)

	row := g.Values.Row(0).(map[string]interface{})
	assert.Equal(t, "ch0", row["name"])
	assert.Equal(t, v, row["value"])
	assert.NotNil(t, row["average"])

	require.NoError(t, qbackend.SetProperty(g.CurrentChannel, "currentIndex", 0))
	assert.Equal(t, "", g.CurrentValue.Text)
}

func TestRecording(t *testing.T) {
	c, l, g, clock := newTestGui(t)
	require.NoError(t, g.Activate(c.Context()))

	// Recording needs a running trace
	assert.ErrorIs(t, qbackend.SetProperty(g.Record, "checked", true), ErrNotRunning)
	assert.False(t, l.Recording())
	require.NoError(t, g.settings.Revert(c.Context()))
	assert.False(t, g.Record.Checked)

	require.NoError(t, qbackend.SetProperty(g.Trace, "checked", true))
	assert.True(t, g.RecordingEnabled)
	assert.Equal(t, "Stop trace", g.Trace.Text)

	clock.advance(time.Second)
	l.acquire()
	require.NoError(t, qbackend.SetProperty(g.Record, "checked", true))
	assert.True(t, l.Recording())
	assert.Equal(t, "Save recorded", g.Record.Text)

	clock.advance(time.Second)
	l.acquire()
	recorded, err := l.Recorded("ch0")
	require.NoError(t, err)
	assert.Len(t, recorded, 50, "only samples taken while recording")

	// Stopping the trace stops the recording and keeps the data
	require.NoError(t, qbackend.SetProperty(g.Trace, "checked", false))
	assert.False(t, l.Recording())
	assert.False(t, g.Record.Checked)
	assert.False(t, g.RecordingEnabled)
	assert.Equal(t, "Start recording", g.Record.Text)
	assert.Equal(t, "Start trace", g.Trace.Text)
	recorded, _ = l.Recorded("ch0")
	assert.Len(t, recorded, 50)

	// A new recording starts empty
	require.NoError(t, l.Start())
	require.NoError(t, l.SetRecording(true))
	recorded, _ = l.Recorded("ch0")
	assert.Empty(t, recorded)
	assert.True(t, g.Record.Checked)
}

func TestTraceViewDialog(t *testing.T) {
	c, l, g, clock := newTestGui(t)
	ctx := c.Context()
	require.NoError(t, g.Activate(ctx))
	row := g.TraceView.Rows[0]
	assert.Equal(t, autoDigits, row.Digits.Value)
	assert.True(t, row.ShowData.Checked)

	require.NoError(t, l.Start())
	clock.advance(time.Second)
	l.acquire()
	require.NoError(t, qbackend.SetProperty(g.CurrentChannel, "currentIndex", 1))
	v, _ := l.Latest("ch0")
	assert.Equal(t, fmt.Sprintf("%.4g V", v), g.CurrentValue.Text)

	// The view can be changed while the trace is running
	require.NoError(t, g.OpenTraceView(ctx))
	assert.True(t, g.TraceView.Visible)
	require.NoError(t, qbackend.SetProperty(row.ShowData, "checked", false))
	require.NoError(t, qbackend.SetProperty(row.Digits, "value", 2))
	require.NoError(t, qbackend.SetProperty(row.ShowLabel, "checked", true))
	assert.True(t, g.Values.View("ch0").ShowData, "edits wait for the dialog to be accepted")

	require.NoError(t, g.CancelTraceView(ctx))
	assert.False(t, g.TraceView.Visible)
	assert.True(t, row.ShowData.Checked)
	assert.Equal(t, autoDigits, row.Digits.Value)

	require.NoError(t, g.OpenTraceView(ctx))
	require.NoError(t, qbackend.SetProperty(row.ShowData, "checked", false))
	require.NoError(t, qbackend.SetProperty(row.Digits, "value", 2))
	require.NoError(t, qbackend.SetProperty(g.TraceView.Rows[1].ShowAverage, "checked", false))
	require.NoError(t, g.ApplyTraceView(ctx))
	assert.False(t, g.TraceView.Visible)
	assert.Equal(t, &ChannelView{ShowData: false, ShowAverage: true, Digits: 2}, g.Values.View("ch0"))
	assert.Equal(t, fmt.Sprintf("%.2f V", v), g.CurrentValue.Text)

	data := g.Values.Row(0).(map[string]interface{})
	assert.Equal(t, false, data["showData"])
	assert.Equal(t, true, data["showAverage"])
	data = g.Values.Row(1).(map[string]interface{})
	assert.Equal(t, true, data["showData"])
	assert.Equal(t, false, data["showAverage"])

	// Inactive channels are never shown, whatever their view
	require.NoError(t, l.Stop())
	require.NoError(t, l.SetChannelActive("ch2", false))
	data = g.Values.Row(2).(map[string]interface{})
	assert.Equal(t, false, data["showData"])
	assert.Equal(t, false, data["showAverage"])
	assert.True(t, g.Values.View("ch2").ShowData)
}
