package recognition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"subtitle-studio/internal/domain"
	"subtitle-studio/internal/jobs"
	"subtitle-studio/internal/subtitle"
)

const (
	// DefaultGracePeriod is how long Stop waits after an interrupt before killing.
	DefaultGracePeriod = 3 * time.Second

	defaultReadSize    = 4096
	defaultEventBuffer = 256
)

// EventKind classifies session events.
type EventKind string

const (
	EventCue        EventKind = "cue"
	EventDiagnostic EventKind = "diagnostic"
	EventEnded      EventKind = "stream-ended"
)

// Event is one ordered message from a running session.
// Cue is set for EventCue, Message for EventDiagnostic, ExitCode and Err for EventEnded.
type Event struct {
	Kind     EventKind
	Cue      domain.Cue
	Message  string
	ExitCode int
	Err      error
}

// Request selects the audio, language hint and model for one session.
// An empty WhisperPath uses the supervisor's configured executable.
type Request struct {
	AudioPath   string
	Language    string
	ModelPath   string
	WhisperPath string
}

// Config holds supervisor settings.
type Config struct {
	WhisperPath string
	GracePeriod time.Duration
}

// Supervisor owns at most one recognition process at a time.
type Supervisor struct {
	whisperPath string
	gracePeriod time.Duration
	readSize    int

	starter processStarter
	models  modelResolver
	cues    *subtitle.Collection
	state   *jobs.Manager
	log     zerolog.Logger
	newID   func() string

	mu     sync.Mutex
	active *Session
}

// NewSupervisor constructs a supervisor that appends recognized cues to cues.
func NewSupervisor(cfg Config, cues *subtitle.Collection, log zerolog.Logger) *Supervisor {
	whisperPath := strings.TrimSpace(cfg.WhisperPath)
	if whisperPath == "" {
		whisperPath = "whisper-cli"
	}
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	return &Supervisor{
		whisperPath: whisperPath,
		gracePeriod: grace,
		readSize:    defaultReadSize,
		starter:     execStarter{},
		models:      newModelResolver(),
		cues:        cues,
		state:       jobs.NewManager(),
		log:         log.With().Str("component", "recognition").Logger(),
		newID:       uuid.NewString,
	}
}

// Session is one live recognition process and its partial-line state.
type Session struct {
	ID        string
	AudioPath string
	Language  string
	ModelPath string
	Command   CommandLog

	proc   process
	lines  lineBuffer
	events chan Event
	done   chan struct{}

	// sentinel is only touched by the stdout reader.
	sentinel      bool
	stopRequested atomic.Bool
}

// Events returns the ordered event stream. Exactly one EventEnded is
// delivered before the channel closes. The stream must be drained.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed once the process has exited and the session is released.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start spawns the recognizer for req and begins streaming.
// The session is stopped if ctx is cancelled before the process ends.
func (s *Supervisor) Start(ctx context.Context, req Request) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	if err := s.state.Start(id); err != nil {
		if errors.Is(err, jobs.ErrSessionActive) {
			return nil, ErrBusy
		}
		return nil, err
	}

	modelPath, err := s.models.resolve(req.ModelPath)
	if err != nil {
		s.state.Reset()
		return nil, &ProcessError{
			Stage:   "starting",
			Message: err.Error(),
			Kind:    ErrProcessSpawn,
			Err:     err,
		}
	}

	executable := s.whisperPath
	if path := strings.TrimSpace(req.WhisperPath); path != "" {
		executable = path
	}
	args := buildWhisperArgs(modelPath, req.AudioPath, req.Language)
	cmdLog := CommandLog{Command: executable, Args: args}

	proc, err := s.starter.Start(executable, args...)
	if err != nil {
		s.state.Reset()
		cmdLog.ExitCode = -1
		s.log.Error().Err(err).Str("command", executable).Msg("recognizer spawn failed")
		return nil, &ProcessError{
			Stage:      "starting",
			Message:    "failed to launch recognizer",
			CommandLog: cmdLog,
			Kind:       ErrProcessSpawn,
			Err:        err,
		}
	}

	if err := s.state.Transition(domain.SessionStatusStreaming); err != nil {
		_ = proc.Kill()
		s.state.Reset()
		return nil, err
	}

	sess := &Session{
		ID:        id,
		AudioPath: req.AudioPath,
		Language:  normalizeLanguage(req.Language),
		ModelPath: modelPath,
		Command:   cmdLog,
		proc:      proc,
		events:    make(chan Event, defaultEventBuffer),
		done:      make(chan struct{}),
	}
	s.active = sess

	s.log.Info().
		Str("session", id).
		Int("pid", proc.Pid()).
		Str("model", modelPath).
		Str("language", sess.Language).
		Msg("recognition started")

	go s.run(sess)
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = s.stopSession(sess)
			case <-sess.done:
			}
		}()
	}

	return sess, nil
}

// Stop interrupts the active process and kills it after the grace period.
// It returns once the request is made; the session ends asynchronously.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	sess := s.active
	s.mu.Unlock()

	if sess == nil {
		return ErrNotRunning
	}
	return s.stopSession(sess)
}

func (s *Supervisor) stopSession(sess *Session) error {
	if !sess.stopRequested.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	if s.active == sess {
		_ = s.state.Transition(domain.SessionStatusStopping)
	}
	s.mu.Unlock()

	s.log.Info().Str("session", sess.ID).Msg("stopping recognition")
	err := sess.proc.Interrupt()

	go func() {
		timer := time.NewTimer(s.gracePeriod)
		defer timer.Stop()
		select {
		case <-sess.done:
		case <-timer.C:
			s.log.Warn().Str("session", sess.ID).Dur("grace", s.gracePeriod).Msg("recognizer ignored interrupt, killing")
			_ = sess.proc.Kill()
		}
	}()

	if err != nil {
		_ = sess.proc.Kill()
		return fmt.Errorf("interrupt recognizer: %w", err)
	}
	return nil
}

// Status reports the lifecycle state of the current session.
func (s *Supervisor) Status() domain.SessionStatus {
	return s.state.Current().Status
}

// Busy reports whether a session occupies the supervisor, including while it stops.
func (s *Supervisor) Busy() bool {
	return s.state.IsActive()
}

// Current returns the active session identity and status.
func (s *Supervisor) Current() domain.Session {
	return s.state.Current()
}

// run pumps both output streams, waits for exit, then releases the slot.
func (s *Supervisor) run(sess *Session) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pumpDiagnostics(sess)
	}()
	s.pumpCues(sess)
	wg.Wait()

	waitErr := sess.proc.Wait()
	exitCode := exitCodeOf(waitErr)

	var endErr error
	if waitErr != nil && !sess.stopRequested.Load() {
		cmdLog := sess.Command
		cmdLog.ExitCode = exitCode
		endErr = &ProcessError{
			Stage:      "streaming",
			Message:    "recognizer exited abnormally",
			CommandLog: cmdLog,
			Kind:       ErrProcessAbnormalExit,
			Err:        waitErr,
		}
	}

	s.mu.Lock()
	if s.active == sess {
		s.active = nil
		s.state.Reset()
	}
	s.mu.Unlock()

	logEvent := s.log.Info()
	if endErr != nil {
		logEvent = s.log.Error().Err(endErr)
	}
	logEvent.Str("session", sess.ID).Int("exitCode", exitCode).Bool("stopped", sess.stopRequested.Load()).Msg("recognition ended")

	sess.events <- Event{Kind: EventEnded, ExitCode: exitCode, Err: endErr}
	close(sess.events)
	close(sess.done)
}

// pumpCues reads stdout in chunks and turns complete lines into cues.
func (s *Supervisor) pumpCues(sess *Session) {
	buf := make([]byte, s.readSize)
	stdout := sess.proc.Stdout()
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			for _, line := range sess.lines.Write(buf[:n]) {
				s.handleLine(sess, line)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				sess.events <- Event{Kind: EventDiagnostic, Message: fmt.Sprintf("stdout read failed: %v", err)}
			}
			break
		}
	}

	if rest := sess.lines.Flush(); rest != "" {
		s.handleLine(sess, rest)
	}
}

func (s *Supervisor) handleLine(sess *Session, line string) {
	if sess.sentinel {
		return
	}

	segments, ended := subtitle.ParseChunk(line)
	if ended {
		sess.sentinel = true
		s.log.Debug().Str("session", sess.ID).Msg("end-of-stream marker received")
		return
	}

	for _, seg := range segments {
		_, cue := s.cues.Append(seg)
		sess.events <- Event{Kind: EventCue, Cue: cue}
	}
}

// pumpDiagnostics forwards stderr chunks verbatim.
func (s *Supervisor) pumpDiagnostics(sess *Session) {
	buf := make([]byte, s.readSize)
	stderr := sess.proc.Stderr()
	for {
		n, err := stderr.Read(buf)
		if n > 0 {
			sess.events <- Event{Kind: EventDiagnostic, Message: string(buf[:n])}
		}
		if err != nil {
			return
		}
	}
}
