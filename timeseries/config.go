package timeseries

import (
	"errors"
	"fmt"
	"time"
)

// Config describes the simulated streamer and the initial trace settings.
type Config struct {
	// Channels are the names of the streamer's channels. All of them are
	// active and averaged initially.
	Channels []string
	// Units of the channels by name; channels without one have "V".
	Units map[string]string

	DataRate      float64 // Hz
	MaxDataRate   float64 // Hz
	TraceLength   time.Duration
	Oversampling  int
	MovingAverage int

	// Seed of the simulated noise.
	Seed int64
}

func DefaultConfig() Config {
	return Config{
		Channels:      []string{"ch0", "ch1", "ch2"},
		DataRate:      50,
		MaxDataRate:   10000,
		TraceLength:   6 * time.Second,
		Oversampling:  1,
		MovingAverage: 9,
		Seed:          1,
	}
}

func (c Config) Validate() error {
	if len(c.Channels) == 0 {
		return errors.New("timeseries: no channels")
	}
	seen := make(map[string]bool)
	for _, ch := range c.Channels {
		if ch == "" {
			return errors.New("timeseries: empty channel name")
		} else if seen[ch] {
			return fmt.Errorf("timeseries: duplicate channel %s", ch)
		}
		seen[ch] = true
	}
	if c.MaxDataRate < minDataRate {
		return fmt.Errorf("timeseries: maximum data rate %g Hz is below %g Hz", c.MaxDataRate, minDataRate)
	}
	if c.DataRate < minDataRate || c.DataRate > c.MaxDataRate {
		return fmt.Errorf("timeseries: data rate %g Hz out of range [%g, %g]", c.DataRate, minDataRate, c.MaxDataRate)
	}
	if c.TraceLength < minTraceLength || c.TraceLength > maxTraceLength {
		return fmt.Errorf("timeseries: trace length %s out of range [%s, %s]", c.TraceLength, minTraceLength, maxTraceLength)
	}
	return nil
}

func (c Config) unit(channel string) string {
	if u, ok := c.Units[channel]; ok {
		return u
	}
	return "V"
}
