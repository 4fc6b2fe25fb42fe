package timeseries

import "fmt"

// ChannelView holds how a channel is shown by the frontend. It is not part
// of the logic: hiding a channel doesn't stop its acquisition.
type ChannelView struct {
	ShowData    bool
	ShowAverage bool
	// Digits after the decimal point in the value display, or autoDigits
	Digits    int
	ShowLabel bool
}

const (
	autoDigits = -1
	maxDigits  = 15
)

func newChannelView() *ChannelView {
	return &ChannelView{ShowData: true, ShowAverage: true, Digits: autoDigits}
}

func (v *ChannelView) format(value float64, unit string) string {
	if v.Digits < 0 {
		return fmt.Sprintf("%.4g %s", value, unit)
	}
	return fmt.Sprintf("%.*f %s", v.Digits, value, unit)
}
