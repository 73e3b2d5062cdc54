package tui

import (
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/stagehand/internal/event"
	"github.com/Iron-Ham/stagehand/internal/render"
)

// relayBuffer decouples bus publishers from the program's message loop.
const relayBuffer = 1024

// App wraps the bubbletea program.
type App struct {
	program *tea.Program
	model   Model
	bus     *event.Bus
	relay   chan tea.Msg
	subID   string
}

// New creates an App that shows events from bus and hands input to submit.
// It subscribes immediately; events published before Run are buffered.
func New(bus *event.Bus, submit func(string), maxLines int) *App {
	a := &App{
		model: NewModel(submit, maxLines),
		bus:   bus,
		relay: make(chan tea.Msg, relayBuffer),
	}
	r := render.New(0)
	a.subID = bus.SubscribeAll(func(e event.Event) {
		for _, m := range messagesFor(r, e) {
			select {
			case a.relay <- m:
			default:
				// The UI is far behind; drop rather than stall the engine.
			}
		}
	})
	return a
}

// Run starts the program and blocks until the user quits.
func (a *App) Run() error {
	a.program = tea.NewProgram(a.model, tea.WithAltScreen())
	defer a.bus.Unsubscribe(a.subID)

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case m := <-a.relay:
				a.program.Send(m)
			case <-done:
				return
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			a.program.Send(tea.Quit())
		case <-done:
		}
	}()

	_, err := a.program.Run()
	return err
}

// messagesFor converts an engine event into model messages.
func messagesFor(r *render.Renderer, e event.Event) []tea.Msg {
	var msgs []tea.Msg
	switch ev := e.(type) {
	case event.StageEnteredEvent:
		msgs = append(msgs, stageMsg(ev.Label))
	case event.ChannelStateEvent:
		msgs = append(msgs, channelMsg(ev.State))
	}
	if lines, ok := r.Event(e); ok && len(lines) > 0 {
		msgs = append(msgs, linesMsg(lines))
	}
	return msgs
}
