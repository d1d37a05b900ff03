package ui

import (
	"sync"
	"time"
)

// FlashLevel is the severity of a flash message.
type FlashLevel int

const (
	FlashInfo FlashLevel = iota
	FlashWarn
	FlashErr
)

// FlashMessage is a transient notification.
type FlashMessage struct {
	Text    string
	Level   FlashLevel
	Expires time.Time
}

// FlashModel holds the current notification. It is safe for concurrent
// use; background loaders set messages while the UI goroutine reads.
type FlashModel struct {
	mu      sync.RWMutex
	current FlashMessage
	now     func() time.Time
}

// NewFlashModel creates an empty flash model.
func NewFlashModel() *FlashModel {
	return &FlashModel{now: time.Now}
}

// Info shows msg for five seconds.
func (f *FlashModel) Info(msg string) { f.set(msg, FlashInfo, 5*time.Second) }

// Warn shows msg for eight seconds.
func (f *FlashModel) Warn(msg string) { f.set(msg, FlashWarn, 8*time.Second) }

// Err shows err for ten seconds.
func (f *FlashModel) Err(err error) { f.set(err.Error(), FlashErr, 10*time.Second) }

func (f *FlashModel) set(msg string, level FlashLevel, d time.Duration) {
	f.mu.Lock()
	f.current = FlashMessage{Text: msg, Level: level, Expires: f.now().Add(d)}
	f.mu.Unlock()
}

// Current returns the live message, or nil once it expired.
func (f *FlashModel) Current() *FlashMessage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.current.Text == "" || f.now().After(f.current.Expires) {
		return nil
	}
	m := f.current
	return &m
}
