package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	qbackend "github.com/CrimsonAS/qbind/backend"
	"github.com/CrimsonAS/qbind/backend/qmlscene"
	"github.com/CrimsonAS/qbind/timeseries"
)

type options struct {
	cfg      timeseries.Config
	qmlFile  string
	headless bool
	record   bool
	duration time.Duration
	interval time.Duration
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return newRootCommand().ExecuteContext(ctx)
}

func newRootCommand() *cobra.Command {
	o := &options{cfg: timeseries.DefaultConfig()}
	root := &cobra.Command{
		Use:   "qbind-timeseries",
		Short: "Simulated multi-channel time series with a QML frontend",
		Long: "Streams simulated data from several channels. The trace and channel\n" +
			"settings are bound to the widgets of a QML frontend, or of a headless\n" +
			"session that reports the latest values.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if o.interval <= 0 {
				return fmt.Errorf("--report-interval must be positive")
			}
			if o.record && !o.headless {
				return fmt.Errorf("--record is only available with --headless")
			}
			return o.cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.headless {
				logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
				return o.runHeadless(cmd.Context(), logger)
			}
			return o.runScene(cmd.Context())
		},
	}

	f := root.Flags()
	f.StringSliceVar(&o.cfg.Channels, "channels", o.cfg.Channels, "names of the simulated channels")
	f.Float64Var(&o.cfg.DataRate, "rate", o.cfg.DataRate, "data rate in Hz")
	f.Float64Var(&o.cfg.MaxDataRate, "max-rate", o.cfg.MaxDataRate, "maximum data rate in Hz")
	f.DurationVar(&o.cfg.TraceLength, "trace-length", o.cfg.TraceLength, "length of the trace")
	f.IntVar(&o.cfg.Oversampling, "oversampling", o.cfg.Oversampling, "oversampling factor")
	f.IntVar(&o.cfg.MovingAverage, "moving-average", o.cfg.MovingAverage, "moving average width in samples (odd)")
	f.Int64Var(&o.cfg.Seed, "seed", o.cfg.Seed, "seed of the simulated noise")
	f.StringVar(&o.qmlFile, "qml", "", "QML file to load instead of the built-in frontend")
	f.BoolVar(&o.headless, "headless", false, "run without a frontend and log the values")
	f.BoolVar(&o.record, "record", false, "record the samples of a headless run")
	f.DurationVar(&o.duration, "duration", 0, "stop a headless run after this long (default until interrupted)")
	f.DurationVar(&o.interval, "report-interval", time.Second, "interval of headless value reports")
	return root
}

func (o *options) newSession(c *qbackend.Connection) (*timeseries.Logic, *timeseries.Gui, error) {
	logic, err := timeseries.NewLogic(o.cfg, c)
	if err != nil {
		return nil, nil, err
	}
	gui, err := timeseries.NewGui(c, logic)
	if err != nil {
		return nil, nil, err
	}
	// Not on the loop yet, so loading the widgets is posted
	if err := gui.Activate(context.Background()); err != nil {
		return nil, nil, err
	}
	return logic, gui, nil
}

func (o *options) runScene(ctx context.Context) error {
	c, err := qmlscene.Connection()
	if err != nil {
		return err
	}
	logic, _, err := o.newSession(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go logic.Run(ctx)

	var code int
	if o.qmlFile != "" {
		code = qmlscene.ExecScene(o.qmlFile)
	} else {
		code = qmlscene.ExecSceneData(mainQML)
	}
	if code != 0 {
		return fmt.Errorf("qml scene exited with code %d", code)
	}
	return nil
}

func (o *options) runHeadless(ctx context.Context, logger *log.Logger) error {
	c := qbackend.NewLocalConnection()
	c.Logger = logger
	logic, gui, err := o.newSession(c)
	if err != nil {
		return err
	}

	if o.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.duration)
		defer cancel()
	}

	// Start the trace through its widgets, as the frontend would
	c.Post(func(context.Context) {
		if err := qbackend.SetProperty(gui.Trace, "checked", true); err != nil {
			logger.Printf("timeseries: WARNING: start failed: %s", err)
			return
		}
		if o.record {
			if err := qbackend.SetProperty(gui.Record, "checked", true); err != nil {
				logger.Printf("timeseries: WARNING: recording failed: %s", err)
			}
		}
	})

	go logic.Run(ctx)
	go func() {
		ticker := time.NewTicker(o.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				c.Close()
				return
			case <-ticker.C:
				c.Post(func(context.Context) { report(logger, logic) })
			}
		}
	}()

	if err := c.Run(); err != nil && !errors.Is(err, qbackend.ErrClosed) {
		return err
	}
	report(logger, logic)
	return nil
}

func report(logger *log.Logger, logic *timeseries.Logic) {
	for _, ch := range logic.ActiveChannels() {
		trace, _ := logic.Trace(ch)
		msg := fmt.Sprintf("%s: %d samples", ch, len(trace))
		if v, ok := logic.Latest(ch); ok {
			msg += fmt.Sprintf(", latest %.4g %s", v, logic.Unit(ch))
		}
		if v, ok := logic.LatestAverage(ch); ok {
			msg += fmt.Sprintf(", average %.4g %s", v, logic.Unit(ch))
		}
		if recorded, _ := logic.Recorded(ch); len(recorded) > 0 {
			msg += fmt.Sprintf(", %d recorded", len(recorded))
		}
		logger.Print(msg)
	}
}
