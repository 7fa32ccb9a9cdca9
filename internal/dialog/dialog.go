// Package dialog shows native message boxes and file pickers. Pickers
// return the chosen path, or ErrCancelled when the user backs out.
package dialog

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sqweek/dialog"
	"go.uber.org/zap"

	"github.com/Faultbox/vibble/internal/logger"
)

// ErrCancelled is returned when a picker is closed without a choice.
var ErrCancelled = dialog.ErrCancelled

// Prompter is implemented by every dialog backend.
type Prompter interface {
	Error(title, message string)
	PickFile(title, filter string, extensions ...string) (string, error)
	PickDirectory(title string) (string, error)
}

// Native uses the platform dialogs.
type Native struct{}

// Error shows a blocking error box.
func (Native) Error(title, message string) {
	dialog.Message("%s", message).Title(title).Error()
}

// PickFile opens a file chooser limited to the given extensions.
func (Native) PickFile(title, filter string, extensions ...string) (string, error) {
	b := dialog.File().Title(title)
	if len(extensions) > 0 {
		b = b.Filter(filter, extensions...)
	}
	path, err := b.Filter("All Files", "*").Load()
	if err != nil {
		return "", normalize(err)
	}
	return path, nil
}

// PickDirectory opens a directory chooser.
func (Native) PickDirectory(title string) (string, error) {
	path, err := dialog.Directory().Title(title).Browse()
	if err != nil {
		return "", normalize(err)
	}
	return path, nil
}

func normalize(err error) error {
	if errors.Is(err, dialog.ErrCancelled) {
		return ErrCancelled
	}
	return fmt.Errorf("dialog: %w", err)
}

// Console writes messages to W and cancels every picker. It stands in for
// Native when there is no display.
type Console struct {
	W io.Writer
}

// Error prints the message.
func (c Console) Error(title, message string) {
	if c.W != nil {
		fmt.Fprintf(c.W, "%s: %s\n", title, message)
	}
}

// PickFile always cancels.
func (Console) PickFile(string, string, ...string) (string, error) { return "", ErrCancelled }

// PickDirectory always cancels.
func (Console) PickDirectory(string) (string, error) { return "", ErrCancelled }

// Fatal logs err and shows it to the user. Multi-line errors keep their
// first lines so the box stays readable.
func Fatal(p Prompter, title string, err error) {
	if err == nil {
		return
	}
	logger.Error(title, zap.Error(err))
	if p == nil {
		return
	}
	msg := err.Error()
	if lines := strings.Split(msg, "\n"); len(lines) > maxLines {
		msg = strings.Join(lines[:maxLines], "\n") + "\n..."
	}
	p.Error(title, msg)
}

const maxLines = 12
