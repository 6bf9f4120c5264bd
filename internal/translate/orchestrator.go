package translate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultRequestTimeout bounds a single backend call.
const DefaultRequestTimeout = 60 * time.Second

var (
	// ErrBackendRequest wraps every per-entry backend failure.
	ErrBackendRequest = errors.New("translation request failed")
	// ErrSkipped marks entries never dispatched because the batch was cancelled.
	ErrSkipped = errors.New("translation skipped")
)

// Entry is one cue submitted for translation.
type Entry struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Result resolves one entry to translated text or an error.
type Result struct {
	ID          string `json:"id"`
	Translation string `json:"translation,omitempty"`
	Err         error  `json:"-"`
}

// Orchestrator fans translation requests out to a backend with bounded concurrency.
type Orchestrator struct {
	backend        Backend
	requestTimeout time.Duration
	log            zerolog.Logger
}

// NewOrchestrator creates an orchestrator; a non-positive timeout uses the default.
func NewOrchestrator(backend Backend, requestTimeout time.Duration, log zerolog.Logger) *Orchestrator {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &Orchestrator{
		backend:        backend,
		requestTimeout: requestTimeout,
		log:            log.With().Str("component", "translate").Logger(),
	}
}

// TranslateBatch translates entries with at most concurrency requests in flight.
// Results arrive in completion order and the channel closes after the last one.
// Cancelling ctx stops dispatch; requests already sent run to completion.
func (o *Orchestrator) TranslateBatch(ctx context.Context, entries []Entry, language string, concurrency int) <-chan Result {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make(chan Result, len(entries))

	var g errgroup.Group
	g.SetLimit(concurrency)

	go func() {
		defer close(results)
		for _, entry := range entries {
			g.Go(func() error {
				results <- o.translate(ctx, entry, language)
				return nil
			})
		}
		_ = g.Wait()
		o.log.Debug().Int("entries", len(entries)).Str("language", language).Msg("translation batch finished")
	}()

	return results
}

// Translate is a batch of one.
func (o *Orchestrator) Translate(ctx context.Context, id, text, language string) Result {
	return <-o.TranslateBatch(ctx, []Entry{{ID: id, Text: text}}, language, 1)
}

func (o *Orchestrator) translate(ctx context.Context, entry Entry, language string) Result {
	if err := ctx.Err(); err != nil {
		return Result{ID: entry.ID, Err: fmt.Errorf("%w: %v", ErrSkipped, err)}
	}

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.requestTimeout)
	defer cancel()

	started := time.Now()
	text, err := o.backend.Complete(reqCtx, buildMessages(entry.Text, language))
	if err != nil {
		o.log.Warn().Err(err).Str("cue", entry.ID).Dur("elapsed", time.Since(started)).Msg("translation failed")
		return Result{ID: entry.ID, Err: fmt.Errorf("%w: %w", ErrBackendRequest, err)}
	}

	o.log.Debug().Str("cue", entry.ID).Dur("elapsed", time.Since(started)).Msg("translation completed")
	return Result{ID: entry.ID, Translation: text}
}
