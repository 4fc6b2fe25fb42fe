package timeseries

import (
	qbackend "github.com/CrimsonAS/qbind/backend"
)

// ChannelModel lists the streamer's channels with their latest values, for
// the value display of the frontend. The show roles combine the view
// settings of a channel with its channel settings.
type ChannelModel struct {
	qbackend.Model
	logic *Logic
	views map[string]*ChannelView
}

var _ qbackend.ModelDataSource = &ChannelModel{}

func newChannelModel(logic *Logic) *ChannelModel {
	m := &ChannelModel{logic: logic, views: make(map[string]*ChannelView)}
	for _, ch := range logic.channels {
		m.views[ch] = newChannelView()
	}
	return m
}

func (m *ChannelModel) RoleNames() []string {
	return []string{"name", "unit", "active", "averaged", "value", "average", "showData", "showAverage", "showLabel"}
}

func (m *ChannelModel) RowCount() int {
	return len(m.logic.channels)
}

func (m *ChannelModel) Row(row int) interface{} {
	ch := m.logic.channels[row]
	st := m.logic.state[ch]
	view := m.views[ch]
	data := map[string]interface{}{
		"name":        ch,
		"unit":        m.logic.Unit(ch),
		"active":      st.active,
		"averaged":    st.active && st.averaged,
		"value":       nil,
		"average":     nil,
		"showData":    st.active && view.ShowData,
		"showAverage": st.active && st.averaged && view.ShowAverage,
		"showLabel":   view.ShowLabel,
	}
	if v, ok := m.logic.Latest(ch); ok {
		data["value"] = v
	}
	if v, ok := m.logic.LatestAverage(ch); ok {
		data["average"] = v
	}
	return data
}

// View returns the view settings of a channel, or nil for an unknown
// channel.
func (m *ChannelModel) View(channel string) *ChannelView {
	return m.views[channel]
}

// refresh sends updated rows to the frontend.
func (m *ChannelModel) refresh() {
	if m.ModelAPI == nil {
		return
	}
	for row := range m.logic.channels {
		m.Updated(row)
	}
}
