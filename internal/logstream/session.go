package logstream

import "sync"

// Summary counts the lifecycle events seen by a Session.
type Summary struct {
	Rounds        int
	Proposals     int
	Accepts       int
	Rejects       int
	Commits       int
	Rejections    int
	FilesModified int
	Warnings      int
	Errors        int
	Completed     bool
}

// Session wraps the fold for one streaming command invocation.
type Session struct {
	mu      sync.Mutex
	command string
	state   State
	summary Summary
}

// NewSession starts interpretation for command.
func NewSession(command string) *Session {
	return &Session{command: command}
}

// Command returns the command this session interprets.
func (s *Session) Command() string { return s.command }

// Feed folds one line and returns the instructions it produced.
func (s *Session) Feed(line string) []Instruction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ins []Instruction
	s.state, ins = Step(s.state, line)
	for _, in := range ins {
		s.count(in.Event)
	}
	return ins
}

func (s *Session) count(ev Event) {
	switch e := ev.(type) {
	case RoundStarted:
		s.summary.Rounds++
	case ProposalMade:
		s.summary.Proposals++
	case VoteCast:
		if e.Accept {
			s.summary.Accepts++
		} else {
			s.summary.Rejects++
		}
	case CommitMade:
		s.summary.Commits++
	case Rejected:
		s.summary.Rejections++
	case FilesModified:
		s.summary.FilesModified += e.Count
	case Completed:
		s.summary.Completed = true
	case Warning:
		if e.Severity == "error" {
			s.summary.Errors++
		} else {
			s.summary.Warnings++
		}
	}
}

// State returns the current fold state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Summary returns the event counts so far.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}
