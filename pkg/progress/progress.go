package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// DefaultFrames is the braille spinner used on terminals.
var DefaultFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner shows a status line on stderr while the caller waits for
// something, e.g. tables to appear on a page.
type Spinner struct {
	mu         sync.Mutex
	writer     io.Writer
	frames     []string
	frameIndex int
	interval   time.Duration
	message    string
	running    bool
	stopChan   chan struct{}
	wg         sync.WaitGroup
}

// NewSpinner creates a spinner writing to stderr.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		writer:   os.Stderr,
		frames:   DefaultFrames,
		interval: 100 * time.Millisecond,
		message:  message,
	}
}

// Interactive reports whether w is a terminal. Spinners written to pipes
// or files only produce noise.
func Interactive(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetWriter sets a custom writer for the spinner
func (s *Spinner) SetWriter(w io.Writer) {
	s.writer = w
}

// Start starts the spinner animation
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.animate()
}

// Stop stops the spinner animation and clears the line
func (s *Spinner) Stop() {
	s.StopWith("")
}

// StopWith stops the spinner and leaves final on its line, if non-empty.
func (s *Spinner) StopWith(final string) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	fmt.Fprint(s.writer, "\r\033[K")
	if final != "" {
		fmt.Fprintln(s.writer, final)
	}
}

// SetMessage updates the spinner message
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

func (s *Spinner) animate() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.mu.Lock()
			if !s.running {
				s.mu.Unlock()
				return
			}
			frame := s.frames[s.frameIndex%len(s.frames)]
			message := s.message
			s.frameIndex++
			s.mu.Unlock()

			fmt.Fprintf(s.writer, "\r%s %s", frame, message)
		}
	}
}

// WithSpinner runs fn while a spinner is shown on stderr. On non-terminals
// fn runs without one.
func WithSpinner(message string, fn func(s *Spinner) error) error {
	s := NewSpinner(message)
	if !Interactive(s.writer) {
		return fn(s)
	}
	s.Start()
	defer s.Stop()
	return fn(s)
}
