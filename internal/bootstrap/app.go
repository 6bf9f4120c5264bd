package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"subtitle-studio/internal/config"
	"subtitle-studio/internal/diagnostics"
	"subtitle-studio/internal/domain"
	"subtitle-studio/internal/jobs"
	"subtitle-studio/internal/logging"
	"subtitle-studio/internal/recognition"
	"subtitle-studio/internal/subtitle"
	"subtitle-studio/internal/translate"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// pipelineEventName is the single runtime channel every pipeline event is pushed on.
const pipelineEventName = "pipeline:event"

// ErrBlocked is returned when a failed diagnostic check guards the requested feature.
var ErrBlocked = errors.New("blocked by failed diagnostics")

var videoDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Video and audio files",
		Pattern:     "*.mp4;*.mov;*.mkv;*.avi;*.webm;*.mp3;*.wav;*.m4a;*.flac;*.aac;*.ogg",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

var modelDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Whisper models",
		Pattern:     "*.bin;*.gguf",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// liveSession is the part of a recognition session the App consumes.
type liveSession struct {
	ID     string
	Events <-chan recognition.Event
}

// recognizer isolates the recognition supervisor behind an interface.
type recognizer interface {
	Start(ctx context.Context, req recognition.Request) (liveSession, error)
	Stop() error
	Busy() bool
	Current() domain.Session
}

// audioExtractor isolates ffmpeg preprocessing behind an interface.
type audioExtractor interface {
	Extract(ctx context.Context, inputPath string) (*recognition.Audio, error)
}

// batchTranslator isolates the translation orchestrator behind an interface.
type batchTranslator interface {
	TranslateBatch(ctx context.Context, entries []translate.Entry, language string, concurrency int) <-chan translate.Result
}

// supervisorRecognizer adapts *recognition.Supervisor to recognizer.
type supervisorRecognizer struct {
	supervisor *recognition.Supervisor
}

func (r supervisorRecognizer) Start(ctx context.Context, req recognition.Request) (liveSession, error) {
	sess, err := r.supervisor.Start(ctx, req)
	if err != nil {
		return liveSession{}, err
	}
	return liveSession{ID: sess.ID, Events: sess.Events()}, nil
}

func (r supervisorRecognizer) Stop() error             { return r.supervisor.Stop() }
func (r supervisorRecognizer) Busy() bool              { return r.supervisor.Busy() }
func (r supervisorRecognizer) Current() domain.Session { return r.supervisor.Current() }

// App wires configuration, the cue collection, recognition, translation, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Env         config.Environment
	Collection  *subtitle.Collection
	Recognizer  recognizer
	Translator  batchTranslator
	Diagnostics domain.DiagnosticReport
	assets      fs.FS
	paths       appPaths
	checker     *diagnostics.Checker
	extractor   func(ffmpegPath string) audioExtractor
	log         zerolog.Logger

	mu               sync.Mutex
	events           *jobs.EventBus
	runtimeCtx       context.Context
	startCancel      context.CancelFunc
	nextBatch        uint64
	translateCancels map[uint64]context.CancelFunc
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	paths := newAppPaths(config.AppDir())
	if err := paths.exposeBin(); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	env, err := config.LoadEnvironment(".env")
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	log := logging.New(logging.Config{Level: env.LogLevel, Format: env.LogFormat})

	store := config.NewJSONStore(config.DefaultSettingsPath())
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	checker := diagnostics.NewChecker()
	report := checker.Run(settings, backendOf(env))

	cues := subtitle.NewCollection()
	supervisor := recognition.NewSupervisor(recognition.Config{
		WhisperPath: settings.WhisperPath,
	}, cues, log)
	backend := translate.NewOpenAIBackend(translate.BackendConfig{
		BaseURL: env.BaseURL,
		APIKey:  env.APIKey,
		Model:   env.Model,
	})

	log.Info().
		Str("settings", config.DefaultSettingsPath()).
		Bool("diagnosticFailures", report.HasFailures).
		Msg("subtitle studio initialized")

	return &App{
		Settings:    settings,
		Store:       store,
		Env:         env,
		Collection:  cues,
		Recognizer:  supervisorRecognizer{supervisor: supervisor},
		Translator:  translate.NewOrchestrator(backend, env.RequestTimeout, log),
		Diagnostics: report,
		assets:      assets,
		paths:       paths,
		checker:     checker,
		extractor: func(ffmpegPath string) audioExtractor {
			return recognition.NewExtractor(ffmpegPath)
		},
		log:    log.With().Str("component", "app").Logger(),
		events: jobs.NewEventBus(1000),
	}, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Subtitle Studio",
		Width:       1280,
		Height:      820,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// Shutdown stops background work when the window closes.
func (a *App) Shutdown(ctx context.Context) {
	a.cancelStart()
	if err := a.Recognizer.Stop(); err != nil && !errors.Is(err, recognition.ErrNotRunning) {
		a.log.Warn().Err(err).Msg("stop recognition on shutdown")
	}
	a.StopTranslation()

	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = nil
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Settings = settings
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(settings, backendOf(a.Env))
	}
	return a.Diagnostics
}

// PickVideoFile opens a native file dialog for media selection.
func (a *App) PickVideoFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select video",
		Filters: videoDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickModelFile opens a native file dialog for whisper model selection.
func (a *App) PickModelFile() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenFileDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:   "Select whisper model",
		Filters: modelDialogFilter,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// PickModelDirectory opens a native directory picker for model folders.
func (a *App) PickModelDirectory() (string, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return "", err
	}

	path, err := wailsruntime.OpenDirectoryDialog(ctx, wailsruntime.OpenDialogOptions{
		Title: "Select model directory",
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(path), nil
}

// StartTranscription extracts audio from videoPath and starts streaming recognition.
// An empty language uses the configured default. The session counts as starting
// from the moment extraction begins, so a second start fails with ErrBusy.
func (a *App) StartTranscription(videoPath, language string) (domain.Session, error) {
	ctx, err := a.claimStart()
	if err != nil {
		return a.SessionStatus(), err
	}
	defer a.releaseStart()

	if err := a.checkScope(domain.DiagnosticScopeRecognition); err != nil {
		return domain.Session{}, err
	}

	settings, err := a.Store.Load()
	if err != nil {
		return domain.Session{}, fmt.Errorf("load settings: %w", err)
	}
	if strings.TrimSpace(language) == "" {
		language = settings.Language
	}

	a.publishStatus("", domain.SessionStatusStarting, "Extracting audio")
	audio, err := a.extractor(settings.FFmpegPath).Extract(ctx, videoPath)
	if err == nil && ctx.Err() != nil {
		a.cleanupAudio(audio)
		err = ctx.Err()
	}
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("audio extraction stopped: %w", ctx.Err())
		}
		return domain.Session{}, a.abortStart(err)
	}
	a.publishCommand("", "Audio extracted", audio.CommandLog)

	sess, err := a.Recognizer.Start(context.Background(), recognition.Request{
		AudioPath:   audio.Path,
		Language:    language,
		ModelPath:   settings.ModelPath,
		WhisperPath: settings.WhisperPath,
	})
	if err != nil {
		a.cleanupAudio(audio)
		return domain.Session{}, a.abortStart(err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	a.publishStatus(sess.ID, domain.SessionStatusStreaming, "Recognition started")
	go a.pumpSession(sess, audio)

	// A stop that raced the spawn found nothing to stop yet.
	if ctx.Err() != nil {
		if err := a.Recognizer.Stop(); err != nil && !errors.Is(err, recognition.ErrNotRunning) {
			a.log.Warn().Err(err).Msg("stop recognition after cancelled start")
		}
	}
	return domain.Session{ID: sess.ID, Status: domain.SessionStatusStreaming}, nil
}

// StopTranscription cancels a pending extraction or asks the active recognition process to finish.
func (a *App) StopTranscription() error {
	current := a.Recognizer.Current()
	cancelled := a.cancelStart()
	if err := a.Recognizer.Stop(); err != nil {
		if !cancelled || !errors.Is(err, recognition.ErrNotRunning) {
			return err
		}
	}
	a.publishStatus(current.ID, domain.SessionStatusStopping, "Stop requested")
	return nil
}

// claimStart reserves the single session slot for a start in preparation.
func (a *App) claimStart() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startCancel != nil || a.Recognizer.Busy() {
		return nil, recognition.ErrBusy
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.startCancel = cancel
	return ctx, nil
}

func (a *App) releaseStart() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startCancel != nil {
		a.startCancel()
		a.startCancel = nil
	}
}

// cancelStart reports whether a start in preparation was cancelled.
func (a *App) cancelStart() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.startCancel == nil {
		return false
	}
	a.startCancel()
	return true
}

// abortStart reports a start that never reached streaming and returns err.
func (a *App) abortStart(err error) error {
	if !errors.Is(err, recognition.ErrBusy) {
		a.publishFailure("", err)
	}
	a.publishStatus("", domain.SessionStatusIdle, "Recognition not started")
	return err
}

// SessionStatus returns the active recognition session and its status.
func (a *App) SessionStatus() domain.Session {
	current := a.Recognizer.Current()
	a.mu.Lock()
	preparing := a.startCancel != nil
	a.mu.Unlock()
	if preparing && current.Status == domain.SessionStatusIdle {
		current.Status = domain.SessionStatusStarting
	}
	return current
}

// Events returns all events with sequence greater than sinceSeq.
func (a *App) Events(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// pumpSession relays session events until the terminal one, then removes the audio.
func (a *App) pumpSession(sess liveSession, audio *recognition.Audio) {
	for ev := range sess.Events {
		switch ev.Kind {
		case recognition.EventCue:
			cue := ev.Cue
			a.publishEvent(jobs.Event{
				SessionID: sess.ID,
				Type:      jobs.EventTypeCue,
				Cue:       &cue,
			})
		case recognition.EventDiagnostic:
			a.publishEvent(jobs.Event{
				SessionID: sess.ID,
				Type:      jobs.EventTypeDiagnostic,
				Message:   ev.Message,
			})
		case recognition.EventEnded:
			event := jobs.Event{
				SessionID: sess.ID,
				Type:      jobs.EventTypeStreamEnded,
				ExitCode:  ev.ExitCode,
				Message:   "Recognition finished",
			}
			if ev.Err != nil {
				event.Message = ev.Err.Error()
				var procErr *recognition.ProcessError
				if errors.As(ev.Err, &procErr) {
					event.Command = procErr.CommandLog.Command
					event.Args = procErr.CommandLog.Args
				}
			}
			a.publishEvent(event)
		}
	}

	a.cleanupAudio(audio)
	a.publishStatus(sess.ID, domain.SessionStatusIdle, "Recognition ended")
}

func (a *App) cleanupAudio(audio *recognition.Audio) {
	if err := audio.Cleanup(); err != nil {
		a.log.Warn().Err(err).Str("path", audio.Path).Msg("cleanup extracted audio")
	}
}

// publishFailure reports a recognition failure and its command context, if any.
func (a *App) publishFailure(sessionID string, err error) {
	a.log.Error().Err(err).Msg("recognition failed")

	var procErr *recognition.ProcessError
	if errors.As(err, &procErr) && procErr.CommandLog.Command != "" {
		a.publishCommand(sessionID, err.Error(), procErr.CommandLog)
		return
	}
	a.publishEvent(jobs.Event{
		SessionID: sessionID,
		Type:      jobs.EventTypeDiagnostic,
		Message:   err.Error(),
	})
}

// publishCommand sends one external command invocation as a diagnostic.
func (a *App) publishCommand(sessionID, message string, log recognition.CommandLog) {
	a.publishEvent(jobs.Event{
		SessionID: sessionID,
		Type:      jobs.EventTypeDiagnostic,
		Message:   message,
		Command:   log.Command,
		Args:      log.Args,
		ExitCode:  log.ExitCode,
	})
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(sessionID string, status domain.SessionStatus, message string) {
	a.publishEvent(jobs.Event{
		SessionID: sessionID,
		Type:      jobs.EventTypeStatus,
		Status:    status,
		Message:   message,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, pipelineEventName, published)
	}
}

// checkScope fails fast when the cached diagnostics block scope.
func (a *App) checkScope(scope domain.DiagnosticScope) error {
	if a.GetDiagnostics().Blocks(scope) {
		return fmt.Errorf("%w: %s; fix the failing checks and refresh diagnostics", ErrBlocked, scope)
	}
	return nil
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and fills defaults for empty fields.
func normalizeSettings(settings domain.Settings) domain.Settings {
	def := config.DefaultSettings()

	settings.ModelPath = strings.TrimSpace(settings.ModelPath)
	settings.WhisperPath = strings.TrimSpace(settings.WhisperPath)
	settings.FFmpegPath = strings.TrimSpace(settings.FFmpegPath)
	settings.Language = strings.TrimSpace(settings.Language)
	settings.TargetLanguage = strings.TrimSpace(settings.TargetLanguage)

	if settings.WhisperPath == "" {
		settings.WhisperPath = def.WhisperPath
	}
	if settings.FFmpegPath == "" {
		settings.FFmpegPath = def.FFmpegPath
	}
	if settings.Language == "" {
		settings.Language = def.Language
	}
	if settings.TargetLanguage == "" {
		settings.TargetLanguage = def.TargetLanguage
	}
	if settings.Concurrency < 1 {
		settings.Concurrency = def.Concurrency
	}
	return settings
}

func backendOf(env config.Environment) diagnostics.Backend {
	return diagnostics.Backend{
		BaseURL: env.BaseURL,
		APIKey:  env.APIKey,
		Model:   env.Model,
	}
}
