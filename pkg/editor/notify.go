package editor

import (
	"context"
	"time"
)

// Default notification lifetimes.
const (
	DefaultLife     = 3 * time.Second
	DefaultWarnLife = 4 * time.Second
)

// Severity is the level of a notification.
type Severity int

const (
	SeveritySuccess Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeveritySuccess:
		return "success"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	default:
		return "error"
	}
}

// Notification is a transient message shown to the user.
type Notification struct {
	Severity Severity
	Summary  string
	Detail   string
	Life     time.Duration
}

// Notifier displays notifications.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notification)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// Confirmer asks the user a yes/no question. It blocks until the user
// answers or ctx is done, in which case it returns false.
type Confirmer interface {
	Confirm(ctx context.Context, header, message string) bool
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, header, message string) bool

// Confirm calls f.
func (f ConfirmerFunc) Confirm(ctx context.Context, header, message string) bool {
	return f(ctx, header, message)
}
