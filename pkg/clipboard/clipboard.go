// Package clipboard provides system clipboard access and an asynchronous
// write helper whose outcome can be observed by the caller.
package clipboard

import (
	"errors"
	"fmt"

	atotto "github.com/atotto/clipboard"
)

// ErrUnavailable is returned when no clipboard utility is available
// (for example xclip/xsel/wl-copy missing on Linux).
var ErrUnavailable = errors.New("clipboard unavailable")

// Writer writes text to a clipboard.
type Writer interface {
	WriteText(text string) error
}

// Reader reads text from a clipboard.
type Reader interface {
	ReadText() (string, error)
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(text string) error

func (f WriterFunc) WriteText(text string) error {
	return f(text)
}

// System is the OS clipboard.
type System struct{}

func (System) WriteText(text string) error {
	if atotto.Unsupported {
		return ErrUnavailable
	}
	return atotto.WriteAll(text)
}

func (System) ReadText() (string, error) {
	if atotto.Unsupported {
		return "", ErrUnavailable
	}
	return atotto.ReadAll()
}

// Discard accepts every write and keeps nothing.
var Discard Writer = WriterFunc(func(string) error { return nil })

// Async performs the write on its own goroutine. The returned channel
// receives the outcome exactly once and is then closed. A panicking writer
// is reported as an error.
func Async(w Writer, text string) <-chan error {
	ch := make(chan error, 1)
	go func() {
		defer close(ch)
		defer func() {
			if r := recover(); r != nil {
				ch <- fmt.Errorf("clipboard write panicked: %v", r)
			}
		}()
		ch <- w.WriteText(text)
	}()
	return ch
}
