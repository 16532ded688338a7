package tui

import (
	"time"

	"github.com/bastiaanwilliams/OCL/history"
	"github.com/bastiaanwilliams/OCL/vpn"
)

type sessionEventMsg struct {
	event vpn.Event
}

type stoppedMsg struct {
	quit bool
}

type historyLoadedMsg struct {
	records []history.Record
	err     error
}

type tickMsg time.Time
