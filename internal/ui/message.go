package ui

import (
	"time"

	"github.com/321david123/spotify-feature/internal/models"
	tea "github.com/charmbracelet/bubbletea"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPollTick MsgKind = iota
	MsgPolled
	MsgFrame
)

// polled carries the outcome of one poll.
type polled struct {
	snapshot models.PlaybackSnapshot
	err      error
	at       time.Time
}

// frame carries the epoch of the loop that scheduled it.
type frame struct {
	epoch int
	at    time.Time
}

// pollTickMsg is the constructor for [MsgPollTick]
func pollTickMsg(at time.Time) Msg {
	return Msg{kind: MsgPollTick, data: at}
}

// polledMsg is the constructor for [MsgPolled]
func polledMsg(snapshot models.PlaybackSnapshot, err error, at time.Time) Msg {
	return Msg{kind: MsgPolled, data: polled{snapshot: snapshot, err: err, at: at}}
}

// frameMsg is the constructor for [MsgFrame]
func frameMsg(epoch int, at time.Time) Msg {
	return Msg{kind: MsgFrame, data: frame{epoch: epoch, at: at}}
}
