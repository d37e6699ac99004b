package jigsaw

import (
	"errors"
	"fmt"
	"strings"
)

// Severity of a notification
type Severity int

// Notification severities
const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Notifier shows messages to the user.
type Notifier interface {
	Notify(Severity, string)
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(Severity, string)

// Notify calls f(s, msg)
func (f NotifierFunc) Notify(s Severity, msg string) {
	f(s, msg)
}

type nopNotifier struct{}

func (nopNotifier) Notify(Severity, string) {}

// Messages shown to the user
const (
	msgLoadFailed  = "Could not load the saved puzzle."
	msgSaveFailed  = "Puzzle generated but it could not be saved."
	msgClearFailed = "Could not remove the saved puzzle."
	msgCleared     = "Saved puzzle removed."
)

func rejectionMessage(err error, c Config) string {
	switch {
	case errors.Is(err, ErrUnsupportedType):
		names := make([]string, 0, len(c.AllowedTypes))
		for _, t := range c.AllowedTypes {
			names = append(names, supportedTypes[t])
		}
		return fmt.Sprintf("Unsupported file type. Choose a %s image.", list(names))
	case errors.Is(err, ErrTooLarge):
		return fmt.Sprintf("File is too large. Maximum size: %g MB.", float64(c.MaxSizeBytes)/(1<<(10*2)))
	}
	return err.Error()
}

// list joins names as "A, B or C"
func list(names []string) string {
	if len(names) < 2 {
		return strings.Join(names, "")
	}
	return strings.Join(names[:len(names)-1], ", ") + " or " + names[len(names)-1]
}

func failureMessage(err error) string {
	return fmt.Sprintf("Could not process the image: %v", err)
}
