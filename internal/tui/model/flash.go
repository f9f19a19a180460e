package model

import (
	"sync"
	"time"
)

// Level is the severity of a flash message.
type Level int

const (
	Info Level = iota
	Warn
	Err
)

// Flash holds one transient notification.
type Flash struct {
	mu      sync.RWMutex
	message string
	level   Level
	expires time.Time
	now     func() time.Time
}

func NewFlash() *Flash {
	return &Flash{now: time.Now}
}

// Set stores a message that expires after d.
func (f *Flash) Set(level Level, msg string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = msg
	f.level = level
	f.expires = f.now().Add(d)
}

// Get returns the current message, or "" once it expired.
func (f *Flash) Get() (string, Level) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.now().After(f.expires) {
		return "", Info
	}
	return f.message, f.level
}
