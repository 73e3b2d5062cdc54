package orchestrator

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/stagehand/internal/errors"
	"github.com/Iron-Ham/stagehand/internal/event"
	"github.com/Iron-Ham/stagehand/internal/execqueue"
	"github.com/Iron-Ham/stagehand/internal/inventory"
	"github.com/Iron-Ham/stagehand/internal/logstream"
	"github.com/Iron-Ham/stagehand/internal/runner"
)

// activeCommand is the command currently running outside the timeline.
type activeCommand struct {
	ticket  execqueue.Ticket
	cancel  context.CancelFunc
	process runner.Process
	session *logstream.Session

	awaitingPrompt bool
}

// Submit runs a command now or queues it behind the one in flight.
func (d *Driver) Submit(command string) execqueue.Status {
	return d.submit(execqueue.Request{Command: command})
}

func (d *Driver) submit(req execqueue.Request) execqueue.Status {
	_, status, pos := d.queue.Submit(req)
	if status == execqueue.StatusQueued {
		d.logger.Debug("command queued", "command", req.Command, "position", pos)
		d.bus.Publish(event.NewCommandQueuedEvent(req.Command, pos))
	}
	return status
}

// dispatch is the queue's dispatcher. It runs on the timeline, because
// every queue call the driver makes does.
func (d *Driver) dispatch(t execqueue.Ticket) {
	ctx, cancel := context.WithCancel(d.ctx)
	ac := &activeCommand{ticket: t, cancel: cancel}
	if t.Streaming {
		ac.session = logstream.NewSession(t.Command)
	}
	d.active = ac

	d.logger.WithCommand(t.Command).Info("running command", "stage", t.Stage, "ticket", t.ID)
	d.bus.Publish(event.NewCommandStartedEvent(t.ID, t.Command, t.Stage))

	proc, err := d.runner.Stream(ctx, t.Command, d.handler(ac))
	if err != nil {
		// OnDone is never called for a command that failed to start.
		d.sched.Post(func() { d.finish(ac, runner.Result{ExitCode: -1}, err) })
		return
	}
	ac.process = proc
}

// handler forwards runner callbacks onto the timeline.
func (d *Driver) handler(ac *activeCommand) runner.Handler {
	return runner.HandlerFuncs{
		Line: func(line string, _ bool) {
			d.sched.Post(func() { d.line(ac, line) })
		},
		Prompt: func(line string) {
			d.sched.Post(func() { d.prompt(ac, line) })
		},
		Done: func(res runner.Result, err error) {
			d.sched.Post(func() { d.finish(ac, res, err) })
		},
	}
}

func (d *Driver) line(ac *activeCommand, line string) {
	if d.active != ac {
		return
	}
	if ac.session == nil {
		d.bus.Publish(event.NewStreamInstructionEvent(ac.ticket.Command, logstream.Instruction{
			Kind:     logstream.KindPassthrough,
			Category: logstream.CategoryPlain,
			Text:     line,
		}))
		return
	}
	for _, in := range ac.session.Feed(line) {
		d.bus.Publish(event.NewStreamInstructionEvent(ac.ticket.Command, in))
	}
}

func (d *Driver) prompt(ac *activeCommand, line string) {
	if d.active != ac {
		return
	}
	ac.awaitingPrompt = true
	d.bus.Publish(event.NewCommandPromptEvent(ac.ticket.ID, ac.ticket.Command, line))
}

// finish handles a command completion. Completions of commands dropped by
// Cancel are ignored.
func (d *Driver) finish(ac *activeCommand, res runner.Result, err error) {
	ac.cancel()
	if !d.queue.Complete(ac.ticket) {
		d.logger.Debug("ignoring stale completion", "command", ac.ticket.Command, "ticket", ac.ticket.ID)
		return
	}
	if d.active == ac {
		d.active = nil
	}

	t := ac.ticket
	success := err == nil && res.Success()
	detail := ""
	if !success {
		detail = failureDetail(res, err)
	}
	d.bus.Publish(event.NewCommandFinishedEvent(t.ID, t.Command, success, res.ExitCode, detail))

	if ac.session != nil {
		sum := ac.session.Summary()
		d.logger.Debug("stream summary", "command", t.Command,
			"rounds", sum.Rounds, "commits", sum.Commits, "warnings", sum.Warnings)
	}

	if !success {
		d.logger.WithCommand(t.Command).Warn("command failed", "exit", res.ExitCode, "error", err)
		d.notice(event.NoticeError, fmt.Sprintf("%s failed: %s", t.Command, detail))
		if t.FollowUp {
			d.followUp, d.followUpDue = false, false
		}
		d.settle(false)
		return
	}

	if t.Probe {
		names := inventory.Parse(res.Stdout)
		d.inventory.Replace(names)
		d.bus.Publish(event.NewInventoryUpdatedEvent(d.inventory.Names()))
	}

	if t.FollowUp && d.followUp {
		d.followUpDue = true
	}
	d.settle(true)
}

// settle runs the next queued command or, once nothing is queued or
// scheduled, takes the step owed by the completed stage: the follow-up
// advance if one is due, otherwise an automatic hop when allowed.
func (d *Driver) settle(autoProgress bool) {
	if d.queue.DrainNext() {
		return
	}
	if d.followUpDue {
		if d.scheduled > 0 {
			// The last scheduled command of the stage takes the follow-up.
			return
		}
		d.followUp, d.followUpDue = false, false
		d.AdvanceToNext()
		return
	}
	if autoProgress {
		d.AutoProgressIfEligible()
	}
}

func failureDetail(res runner.Result, err error) string {
	var ce *errors.CommandError
	if errors.As(err, &ce) {
		if s := ce.Detail(); s != "" {
			return s
		}
	}
	if errors.Is(err, errors.ErrCanceled) {
		return "canceled"
	}
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("exit status %d", res.ExitCode)
}

// answerPrompt sends text to the command waiting on a prompt.
func (d *Driver) answerPrompt(text string) bool {
	ac := d.active
	if ac == nil || !ac.awaitingPrompt || ac.process == nil {
		return false
	}
	ac.awaitingPrompt = false
	if err := ac.process.Answer(text); err != nil {
		d.notice(event.NoticeWarning, "Could not answer prompt: "+err.Error())
	}
	return true
}
