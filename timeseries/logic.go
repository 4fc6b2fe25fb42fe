package timeseries

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/CrimsonAS/qbind/mapper"
)

var (
	ErrUnknownChannel = errors.New("timeseries: unknown channel")
	ErrRunning        = errors.New("timeseries: not possible while the trace is running")
	ErrInvalidValue   = errors.New("timeseries: invalid value")
	ErrNoDispatcher   = errors.New("timeseries: logic has no dispatcher")
	ErrNotRunning     = errors.New("timeseries: the trace is not running")
)

const (
	minDataRate      = 0.1
	minTraceLength   = 100 * time.Millisecond
	maxTraceLength   = time.Hour
	maxOversampling  = 100
	maxMovingAverage = 101

	acquireInterval = 50 * time.Millisecond
	noiseLevel      = 0.1
)

type channelState struct {
	active   bool
	averaged bool
	trace    *ring
	recorded []float64
}

// Logic is a simulated multi-channel streamer. It holds the trace and
// channel settings that the GUI binds to, and the most recent samples of
// every active channel.
//
// Logic is not safe for concurrent use. Its methods are called on the UI
// thread; Run acquires data by posting to the dispatcher.
type Logic struct {
	// TraceSettingsChanged is emitted when the trace length, data rate,
	// oversampling or moving average width changes.
	TraceSettingsChanged mapper.Signal
	// ChannelSettingsChanged is emitted when a channel is activated,
	// deactivated, or its averaging is changed.
	ChannelSettingsChanged mapper.Signal
	// StatusChanged is emitted when the trace or the recording is started
	// or stopped.
	StatusChanged mapper.Signal
	DataUpdated   mapper.Signal

	cfg        Config
	dispatcher mapper.Dispatcher

	traceLength   time.Duration
	dataRate      float64
	oversampling  int
	movingAverage int

	channels []string
	state    map[string]*channelState

	running   bool
	recording bool
	started   time.Time
	samples int64
	rand    *rand.Rand
	now     func() time.Time
}

// NewLogic creates a stopped streamer from cfg. Settings out of range are
// clamped as if they had been set later. d runs the acquisition posted by
// Run.
func NewLogic(cfg Config, d mapper.Dispatcher) (*Logic, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l := &Logic{
		cfg:           cfg,
		dispatcher:    d,
		traceLength:   cfg.TraceLength,
		dataRate:      cfg.DataRate,
		oversampling:  clampInt(cfg.Oversampling, 1, maxOversampling),
		movingAverage: oddWidth(cfg.MovingAverage),
		channels:      append([]string(nil), cfg.Channels...),
		state:         make(map[string]*channelState),
		rand:          rand.New(rand.NewSource(cfg.Seed)),
		now:           time.Now,
	}
	for _, ch := range l.channels {
		l.state[ch] = &channelState{
			active:   true,
			averaged: true,
			trace:    newRing(l.traceSize()),
		}
	}
	return l, nil
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	} else if v > max {
		return max
	}
	return v
}

// oddWidth clamps a moving average width to the allowed range, rounding
// even widths up.
func oddWidth(n int) int {
	n = clampInt(n, 1, maxMovingAverage)
	if n%2 == 0 {
		n++
	}
	return n
}

func (l *Logic) traceSize() int {
	return int(math.Ceil(l.traceLength.Seconds() * l.dataRate))
}

func (l *Logic) TraceLength() time.Duration {
	return l.traceLength
}

func (l *Logic) SetTraceLength(d time.Duration) error {
	if d < minTraceLength {
		d = minTraceLength
	} else if d > maxTraceLength {
		d = maxTraceLength
	}
	if d == l.traceLength {
		return nil
	}
	l.traceLength = d
	for _, st := range l.state {
		st.trace.Resize(l.traceSize())
	}
	return l.TraceSettingsChanged.Emit()
}

func (l *Logic) DataRate() float64 {
	return l.dataRate
}

// SetDataRate changes the sample rate. Samples taken at the old rate are
// dropped.
func (l *Logic) SetDataRate(rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("%w: data rate %g", ErrInvalidValue, rate)
	}
	rate = math.Max(minDataRate, math.Min(l.cfg.MaxDataRate, rate))
	if rate == l.dataRate {
		return nil
	}
	l.dataRate = rate
	for _, st := range l.state {
		st.trace.Clear()
		st.trace.Resize(l.traceSize())
	}
	l.restartClock()
	return l.TraceSettingsChanged.Emit()
}

func (l *Logic) Oversampling() int {
	return l.oversampling
}

func (l *Logic) SetOversampling(n int) error {
	n = clampInt(n, 1, maxOversampling)
	if n == l.oversampling {
		return nil
	}
	l.oversampling = n
	return l.TraceSettingsChanged.Emit()
}

func (l *Logic) MovingAverage() int {
	return l.movingAverage
}

// SetMovingAverage sets the width of the moving average in samples. The
// width is always odd; even widths are rounded up.
func (l *Logic) SetMovingAverage(n int) error {
	n = oddWidth(n)
	if n == l.movingAverage {
		return nil
	}
	l.movingAverage = n
	return l.TraceSettingsChanged.Emit()
}

func (l *Logic) Channels() []string {
	return append([]string(nil), l.channels...)
}

func (l *Logic) Unit(channel string) string {
	return l.cfg.unit(channel)
}

func (l *Logic) channel(name string) (*channelState, error) {
	st, ok := l.state[name]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownChannel, name)
	}
	return st, nil
}

func (l *Logic) ActiveChannels() []string {
	var out []string
	for _, ch := range l.channels {
		if l.state[ch].active {
			out = append(out, ch)
		}
	}
	return out
}

func (l *Logic) AveragedChannels() []string {
	var out []string
	for _, ch := range l.channels {
		if st := l.state[ch]; st.active && st.averaged {
			out = append(out, ch)
		}
	}
	return out
}

// SetChannelActive enables or disables acquisition of a channel. Channel
// settings can't change while the trace is running.
func (l *Logic) SetChannelActive(channel string, active bool) error {
	st, err := l.channel(channel)
	if err != nil {
		return err
	}
	if st.active == active {
		return nil
	} else if l.running {
		return ErrRunning
	}
	st.active = active
	if !active {
		st.trace.Clear()
	}
	return l.ChannelSettingsChanged.Emit()
}

func (l *Logic) SetChannelAveraged(channel string, averaged bool) error {
	st, err := l.channel(channel)
	if err != nil {
		return err
	}
	if st.averaged == averaged {
		return nil
	} else if l.running {
		return ErrRunning
	}
	st.averaged = averaged
	return l.ChannelSettingsChanged.Emit()
}

type channelFlag struct {
	l        *Logic
	channel  string
	averaged bool
}

func (f channelFlag) Get() interface{} {
	st := f.l.state[f.channel]
	if f.averaged {
		return st.averaged
	}
	return st.active
}

func (f channelFlag) Set(v interface{}) error {
	b, ok := v.(bool)
	if !ok {
		return fmt.Errorf("%w: %T for channel %s", ErrInvalidValue, v, f.channel)
	}
	if f.averaged {
		return f.l.SetChannelAveraged(f.channel, b)
	}
	return f.l.SetChannelActive(f.channel, b)
}

// ChannelActive returns an accessor for the active state of a channel,
// usable as the accessor of a mapping.
func (l *Logic) ChannelActive(channel string) (mapper.Accessor, error) {
	if _, err := l.channel(channel); err != nil {
		return nil, err
	}
	return channelFlag{l, channel, false}, nil
}

// ChannelAveraged is ChannelActive for the averaging of a channel.
func (l *Logic) ChannelAveraged(channel string) (mapper.Accessor, error) {
	if _, err := l.channel(channel); err != nil {
		return nil, err
	}
	return channelFlag{l, channel, true}, nil
}

func (l *Logic) Running() bool {
	return l.running
}

// SetRunning starts or stops the trace. Starting clears the traces of all
// channels, stopping also stops a recording.
func (l *Logic) SetRunning(running bool) error {
	if running == l.running {
		return nil
	}
	l.running = running
	if running {
		for _, st := range l.state {
			st.trace.Clear()
		}
		l.restartClock()
	} else {
		l.recording = false
	}
	return l.StatusChanged.Emit()
}

func (l *Logic) Recording() bool {
	return l.recording
}

// SetRecording starts or stops recording of the acquired samples. Starting
// discards the previous recording and is only possible while the trace is
// running. The recording is kept after it is stopped.
func (l *Logic) SetRecording(recording bool) error {
	if recording == l.recording {
		return nil
	} else if recording && !l.running {
		return ErrNotRunning
	}
	l.recording = recording
	if recording {
		for _, st := range l.state {
			st.recorded = nil
		}
	}
	return l.StatusChanged.Emit()
}

// Recorded returns the samples of a channel of the current or last
// recording.
func (l *Logic) Recorded(channel string) ([]float64, error) {
	st, err := l.channel(channel)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), st.recorded...), nil
}

func (l *Logic) Start() error {
	return l.SetRunning(true)
}

func (l *Logic) Stop() error {
	return l.SetRunning(false)
}

func (l *Logic) restartClock() {
	l.started = l.now()
	l.samples = 0
}

// Run acquires data until ctx is done. Acquisition is posted to the
// dispatcher at a fixed interval and only samples while running.
func (l *Logic) Run(ctx context.Context) error {
	if l.dispatcher == nil {
		return ErrNoDispatcher
	}
	ticker := time.NewTicker(acquireInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.dispatcher.Post(func(context.Context) { l.acquire() })
		}
	}
}

// acquire samples all active channels up to the current time. If more
// samples are due than a trace holds, the oldest are skipped.
func (l *Logic) acquire() {
	if !l.running {
		return
	}

	due := int64(l.now().Sub(l.started).Seconds() * l.dataRate)
	n := due - l.samples
	if n <= 0 {
		return
	}
	if size := int64(l.traceSize()); n > size {
		l.samples = due - size
		n = size
	}

	for ; n > 0; n-- {
		t := float64(l.samples) / l.dataRate
		for i, ch := range l.channels {
			if st := l.state[ch]; st.active {
				v := l.sample(i, t)
				st.trace.Push(v)
				if l.recording {
					st.recorded = append(st.recorded, v)
				}
			}
		}
		l.samples++
	}

	if err := l.DataUpdated.Emit(); err != nil {
		log.Printf("timeseries: WARNING: data update failed: %s", err)
	}
}

// sample simulates channel i at time t: a sine wave with noise that is
// reduced by oversampling.
func (l *Logic) sample(i int, t float64) float64 {
	freq := 0.5 + 0.25*float64(i)
	v := math.Sin(2*math.Pi*freq*t + float64(i))

	var noise float64
	for k := 0; k < l.oversampling; k++ {
		noise += l.rand.NormFloat64()
	}
	return v + noiseLevel*noise/float64(l.oversampling)
}

// Trace returns the samples of a channel from oldest to newest.
func (l *Logic) Trace(channel string) ([]float64, error) {
	st, err := l.channel(channel)
	if err != nil {
		return nil, err
	}
	return st.trace.Values(), nil
}

// Average returns the moving average of a channel's trace, which is empty
// if the channel is not averaged.
func (l *Logic) Average(channel string) ([]float64, error) {
	st, err := l.channel(channel)
	if err != nil {
		return nil, err
	}
	if !st.active || !st.averaged {
		return []float64{}, nil
	}
	return movingAverage(st.trace.Values(), l.movingAverage), nil
}

func (l *Logic) Latest(channel string) (float64, bool) {
	st, ok := l.state[channel]
	if !ok {
		return 0, false
	}
	return st.trace.Last()
}

// LatestAverage returns the mean of the newest moving average window.
func (l *Logic) LatestAverage(channel string) (float64, bool) {
	st, ok := l.state[channel]
	if !ok || !st.active || !st.averaged {
		return 0, false
	}
	values := st.trace.Values()
	if len(values) < l.movingAverage {
		return 0, false
	}
	var sum float64
	for _, v := range values[len(values)-l.movingAverage:] {
		sum += v
	}
	return sum / float64(l.movingAverage), true
}
