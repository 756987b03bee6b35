package ui

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Elapsed time appears once a query has run this long. Cold CSV scans
// over large tables can take a while.
const spinnerElapsedAfter = 2 * time.Second

// Spinner animates a status line while a query runs.
type Spinner struct {
	message string
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewSpinner creates a spinner with the given message.
func NewSpinner(message string) *Spinner {
	return &Spinner{message: message, done: make(chan struct{})}
}

// Start begins the animation. Without a TTY it prints the message once.
func (s *Spinner) Start() {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Printf("%s...\n", s.message)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		start := time.Now()
		for frame := 0; ; frame++ {
			select {
			case <-s.done:
				fmt.Print("\r\033[K")
				return
			case <-ticker.C:
				line := fmt.Sprintf("\r%s %s", Bold.Render(spinnerFrames[frame%len(spinnerFrames)]), s.message)
				if elapsed := time.Since(start); elapsed >= spinnerElapsedAfter {
					line += " " + Muted.Render(fmt.Sprintf("%ds", int(elapsed.Seconds())))
				}
				fmt.Print(line)
			}
		}
	}()
}

// Stop halts the animation and clears the line.
func (s *Spinner) Stop() {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return
	}
	close(s.done)
	s.wg.Wait()
}

// Progress is a "(n/total)" status line for counted work, like rewriting
// dataset files during preparation.
type Progress struct {
	message string
	total   int
}

// NewProgress creates a progress line over total steps.
func NewProgress(message string, total int) *Progress {
	return &Progress{message: message, total: total}
}

// Update redraws the line at an absolute position.
func (p *Progress) Update(current int) {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return
	}
	fmt.Printf("\r%s %s", p.message, Muted.Render(fmt.Sprintf("(%d/%d)", current, p.total)))
}

// Done clears the line.
func (p *Progress) Done() {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Print("\r\033[K")
	}
}
