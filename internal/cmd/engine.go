package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/Iron-Ham/stagehand/internal/advisor"
	"github.com/Iron-Ham/stagehand/internal/channel"
	"github.com/Iron-Ham/stagehand/internal/config"
	"github.com/Iron-Ham/stagehand/internal/event"
	"github.com/Iron-Ham/stagehand/internal/inventory"
	"github.com/Iron-Ham/stagehand/internal/logging"
	"github.com/Iron-Ham/stagehand/internal/loop"
	"github.com/Iron-Ham/stagehand/internal/orchestrator"
	"github.com/Iron-Ham/stagehand/internal/runner"
)

// engine is the wired orchestration core for one run.
type engine struct {
	cfg     *config.Config
	logger  *logging.Logger
	loop    *loop.Loop
	bus     *event.Bus
	driver  *orchestrator.Driver
	channel *channel.Manager
	watcher *inventory.Watcher

	loopDone chan struct{}
}

type engineOptions struct {
	workDir        string
	disableAdvisor bool
	enableChannel  bool
}

func newEngine(cfg *config.Config, opts engineOptions) (*engine, error) {
	logger := logging.NopLogger()
	if cfg.Logging.Enabled {
		l, err := logging.NewLogger(cfg.Paths.ResolveStateDir(opts.workDir), cfg.Logging.Level)
		if err != nil {
			return nil, err
		}
		logger = l
	}

	e := &engine{cfg: cfg, logger: logger, loop: loop.New(logger), bus: event.NewBus()}
	e.bus.SetLogger(logger)

	deps := orchestrator.Deps{
		Runner:    runner.NewShell(cfg.Pipeline.Shell, opts.workDir, logger),
		Scheduler: e.loop,
		Bus:       e.bus,
		Inventory: inventory.NewSet(),
		Logger:    logger,
	}

	if cfg.Advisor.Enabled && !opts.disableAdvisor {
		cli, err := advisor.NewCLI(advisor.CLIConfig{
			Backend: cfg.Advisor.Backend,
			Command: cfg.Advisor.Command,
			Model:   cfg.Advisor.Model,
			Timeout: cfg.Advisor.Timeout(),
			Dir:     opts.workDir,
		}, logger)
		if err != nil {
			_ = logger.Close()
			return nil, err
		}
		deps.Advisor = cli
	}

	if cfg.Channel.Enabled || opts.enableChannel {
		e.channel = channel.NewManager(channel.Config{
			URL:         cfg.Channel.URL,
			BaseDelay:   cfg.Channel.BaseDelay(),
			MaxAttempts: cfg.Channel.MaxAttempts,
		}, channel.WebsocketDialer{}, e.loop, logger)
		deps.Channel = e.channel
	}

	e.driver = orchestrator.New(orchestrator.OptionsFromConfig(cfg, opts.workDir), deps)

	if e.channel != nil {
		e.wireChannel()
	}

	if cfg.Pipeline.WatchAgents {
		dir := cfg.Pipeline.AgentsDir
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(opts.workDir, dir)
		}
		w, err := inventory.NewWatcher(dir, deps.Inventory, func(names []string) {
			e.loop.Post(func() { e.bus.Publish(event.NewInventoryUpdatedEvent(names)) })
		}, logger)
		if err != nil {
			logger.Warn("agent watcher disabled", "dir", dir, "error", err)
		} else {
			e.watcher = w
			e.bus.Subscribe(event.TypeContextChanged, e.rebindWatcher)
		}
	}

	return e, nil
}

// rebindWatcher points the agent watcher at the new context's agents
// directory after /cd.
func (e *engine) rebindWatcher(ev event.Event) {
	cc, ok := ev.(event.ContextChangedEvent)
	if !ok {
		return
	}
	if err := e.watcher.Rebind(cc.AgentsDir); err != nil {
		e.logger.Warn("agent watcher idle", "dir", cc.AgentsDir, "error", err)
		e.bus.Publish(event.NewNoticeEvent(event.NoticeWarning, "Not watching "+cc.AgentsDir+": "+err.Error()))
	}
}

// wireChannel routes inbound channel messages to the bus and the driver.
// Handlers run on the loop.
func (e *engine) wireChannel() {
	publish := func(kind string, text string) {
		e.bus.Publish(event.NewChannelMessageEvent(kind, text))
	}

	e.channel.Handle(channel.TypeAgentMessage, func(data json.RawMessage) error {
		var m channel.AgentMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		publish(channel.TypeAgentMessage, m.Agent+": "+m.Text)
		return nil
	})
	e.channel.Handle(channel.TypeProgress, func(data json.RawMessage) error {
		var m channel.Progress
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		text := m.Message
		if m.Percent > 0 {
			text = fmt.Sprintf("%s (%.0f%%)", text, m.Percent)
		}
		publish(channel.TypeProgress, text)
		return nil
	})
	e.channel.Handle(channel.TypeQuestion, func(data json.RawMessage) error {
		var m channel.Question
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		e.driver.HandleChannelQuestion(m.ID, "", m.Text)
		return nil
	})
	e.channel.Handle(channel.TypeResult, func(data json.RawMessage) error {
		var m channel.Result
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		status := "succeeded"
		if !m.Success {
			status = "failed"
		}
		publish(channel.TypeResult, status+": "+m.Summary)
		return nil
	})
	e.channel.Handle(channel.TypeError, func(data json.RawMessage) error {
		var m channel.ErrorMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		publish(channel.TypeError, m.Message)
		return nil
	})

	e.channel.OnStatus(func(s channel.Status) {
		errText := ""
		if s.Err != nil {
			errText = s.Err.Error()
		}
		e.bus.Publish(event.NewChannelStateEvent(s.State.String(), s.Attempt, s.Delay, errText))
		if s.State == channel.StateAbandoned {
			e.bus.Publish(event.NewNoticeEvent(event.NoticeError,
				"Channel abandoned. Type /reconnect to try again."))
		}
	})
}

// start runs the loop and brings the engine up. begin runs on the loop
// after the channel and watcher have started.
func (e *engine) start(ctx context.Context, begin func(d *orchestrator.Driver)) {
	e.loopDone = make(chan struct{})
	go func() {
		defer close(e.loopDone)
		if err := e.loop.Run(ctx); err != nil && ctx.Err() == nil {
			e.logger.Error("loop stopped", "error", err)
		}
	}()
	if e.watcher != nil {
		e.watcher.Start()
	}
	e.loop.Post(func() {
		if e.channel != nil {
			e.channel.Start()
		}
		begin(e.driver)
	})
}

// submit hands a line of user input to the driver on the loop.
func (e *engine) submit(text string) {
	e.loop.Post(func() {
		if text == "/reconnect" && e.channel != nil {
			e.channel.Reconnect()
			return
		}
		e.driver.HandleUserInput(text)
	})
}

// busy reports whether the driver still has work in flight.
func (e *engine) busy(ctx context.Context) bool {
	var busy bool
	if err := e.loop.Do(ctx, func() { busy = e.driver.Busy() }); err != nil {
		return false
	}
	return busy
}

// close tears the engine down. The context passed to start must already be
// canceled, so the driver is no longer touched by the loop.
func (e *engine) close() {
	if e.loopDone != nil {
		<-e.loopDone
	}
	if e.watcher != nil {
		e.watcher.Stop()
	}
	if e.channel != nil {
		_ = e.channel.Close()
	}
	e.driver.Shutdown()
	_ = e.logger.Close()
}
