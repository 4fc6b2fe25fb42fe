// Package timeseries is a simulated multi-channel data streamer with a
// frontend bound to it through mappers.
//
// Logic holds the settings and the most recent samples of every channel.
// Gui exposes widgets for the settings over a qbackend connection. The
// trace settings are applied as soon as they are edited, while channel
// settings are edited in a dialog and applied together.
package timeseries
