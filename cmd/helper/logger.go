package main

import (
	"fmt"
	"log"

	"transit-ledger/internal/ledger-service/core/domain/model"
)

// Logger prints coloured lines tagged with the passenger the helper plays.
type Logger struct {
	who string
}

func (l *Logger) SetPassenger(name string) {
	l.who = name
}

func (l *Logger) printf(color, tag, msg string, args ...interface{}) {
	prefix := color + "[" + tag + "]" + Reset
	if l.who != "" {
		prefix += " " + l.who + ":"
	}
	log.Printf(prefix+" "+msg, args...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.printf(Green, "INFO", msg, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.printf(Yellow, "WARN", msg, args...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.printf(Red, "ERROR", msg, args...)
}

func (l *Logger) WebSocket(msg string, args ...interface{}) {
	l.printf(Cyan, "WS", msg, args...)
}

func (l *Logger) HTTP(msg string, args ...interface{}) {
	l.printf(Gray, "HTTP", msg, args...)
}

// Event prints a ledger event in the colour of its status.
func (l *Logger) Event(source string, ev *model.Event) {
	line := fmt.Sprintf("%s %s %s", ev.ID, ev.Type, ev.Status)
	switch ev.Status {
	case model.EventFailed:
		l.printf(Red, source, "%s: %s", line, ev.Error)
	case model.EventPending:
		l.printf(Yellow, source, "%s (queued offline)", line)
	default:
		l.printf(Green, source, "%s", line)
	}
}
