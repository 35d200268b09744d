package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/x/term"
)

var spinnerFrames = [...]string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const spinnerInterval = 80 * time.Millisecond

// Spinner animates a status message on stderr while a table loads. When
// stderr is not a terminal it prints nothing.
type Spinner struct {
	message string
	out     io.Writer
	animate bool

	ctx    context.Context
	cancel context.CancelFunc

	stopOnce sync.Once
	halt     chan struct{} // closed by Stop
	finished chan struct{} // closed when the animation goroutine exits
	mu       sync.Mutex    // serializes writes to out
}

func newSpinner(message string) *Spinner {
	return newSpinnerWithContext(context.Background(), message)
}

// newSpinnerWithContext returns a spinner that also stops when ctx ends.
func newSpinnerWithContext(ctx context.Context, message string) *Spinner {
	ctx, cancel := context.WithCancel(ctx)
	return &Spinner{
		message:  message,
		out:      os.Stderr,
		animate:  term.IsTerminal(os.Stderr.Fd()),
		ctx:      ctx,
		cancel:   cancel,
		halt:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

func (s *Spinner) Start() {
	if !s.animate {
		close(s.finished)
		return
	}
	go s.run()
}

func (s *Spinner) run() {
	defer close(s.finished)
	tick := time.NewTicker(spinnerInterval)
	defer tick.Stop()

	for i := 0; ; i++ {
		select {
		case <-s.halt:
			return
		case <-s.ctx.Done():
			s.clearLine()
			return
		case <-tick.C:
			frame := spinnerFrames[i%len(spinnerFrames)]
			s.write("\r" + styleIconSpinner.Render(frame) + " " + StyleDim.Render(s.message))
		}
	}
}

// Stop ends the animation and erases the line. Repeated calls are no-ops.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() { close(s.halt) })
	<-s.finished
	s.cancel()
	s.clearLine()
}

func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	printSuccess("%s", message)
}

func (s *Spinner) StopWithError(message string) {
	s.Stop()
	printError("%s", message)
}

// Cancelled reports whether the context ended before Stop was called.
func (s *Spinner) Cancelled() bool {
	select {
	case <-s.halt:
		return false
	default:
		return s.ctx.Err() != nil
	}
}

func (s *Spinner) clearLine() {
	if s.animate {
		s.write("\r" + strings.Repeat(" ", len(s.message)+4) + "\r")
	}
}

func (s *Spinner) write(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.out, text)
}
