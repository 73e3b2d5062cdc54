package tui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Iron-Ham/stagehand/internal/event"
	"github.com/Iron-Ham/stagehand/internal/render"
)

// Plain is the line-mode front-end: rendered events are written to out as
// they are published and input is read a line at a time.
type Plain struct {
	bus *event.Bus
	id  string

	mu  sync.Mutex
	out io.Writer
}

// NewPlain subscribes to bus immediately, so no event published after it
// returns is missed.
func NewPlain(bus *event.Bus, r *render.Renderer, out io.Writer) *Plain {
	p := &Plain{bus: bus, out: out}
	p.id = bus.SubscribeAll(func(e event.Event) {
		lines, ok := r.Event(e)
		if !ok {
			return
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		for _, l := range lines {
			_, _ = fmt.Fprintln(p.out, l)
		}
	})
	return p
}

// Run hands every line read from in to submit. It returns when in is
// exhausted, the user types /quit, or ctx is done.
func (p *Plain) Run(ctx context.Context, in io.Reader, submit func(string)) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return err
		case line := <-lines:
			text := strings.TrimSpace(line)
			if text == "/quit" || text == "/exit" {
				return nil
			}
			submit(text)
		}
	}
}

// Close unsubscribes from the bus.
func (p *Plain) Close() {
	p.bus.Unsubscribe(p.id)
}
