package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"subtitle-studio/internal/config"
	"subtitle-studio/internal/domain"
	"subtitle-studio/internal/jobs"
	"subtitle-studio/internal/subtitle"
	"subtitle-studio/internal/translate"
)

// TranslateOne queues translation of one cue and returns it in pending state.
// An empty language uses the configured target language.
func (a *App) TranslateOne(id, language string) (domain.Cue, error) {
	if err := a.checkScope(domain.DiagnosticScopeTranslation); err != nil {
		return domain.Cue{}, err
	}
	cue, ok := a.Collection.Get(id)
	if !ok {
		return domain.Cue{}, fmt.Errorf("%w: %s", subtitle.ErrNotFound, id)
	}

	pending := a.startBatch([]domain.Cue{cue}, language, 1)
	if len(pending) == 0 {
		return domain.Cue{}, fmt.Errorf("%w: %s", subtitle.ErrNotFound, id)
	}
	return pending[0], nil
}

// TranslateMany queues translation of the selected cues, or all cues when ids is empty.
// Cues without text are skipped. A concurrency below 1 uses the configured limit.
func (a *App) TranslateMany(ids []string, language string, concurrency int) ([]domain.Cue, error) {
	if err := a.checkScope(domain.DiagnosticScopeTranslation); err != nil {
		return nil, err
	}
	cues := lo.Filter(a.Collection.Select(ids), func(cue domain.Cue, _ int) bool {
		return strings.TrimSpace(cue.Text) != ""
	})
	if len(cues) == 0 {
		return nil, errors.New("no cues with text to translate")
	}

	if concurrency < 1 {
		a.mu.Lock()
		concurrency = a.Settings.Concurrency
		a.mu.Unlock()
	}
	return a.startBatch(cues, language, concurrency), nil
}

// StopTranslation stops dispatching queued requests; requests already sent still complete.
func (a *App) StopTranslation() {
	a.mu.Lock()
	cancels := lo.Values(a.translateCancels)
	a.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// startBatch marks cues pending and hands them to the translator.
func (a *App) startBatch(cues []domain.Cue, language string, concurrency int) []domain.Cue {
	language = strings.TrimSpace(language)
	a.mu.Lock()
	if language == "" {
		language = a.Settings.TargetLanguage
	}
	a.mu.Unlock()
	if language == "" {
		language = config.DefaultSettings().TargetLanguage
	}

	pending := make([]domain.Cue, 0, len(cues))
	entries := make([]translate.Entry, 0, len(cues))
	for _, cue := range cues {
		marked, err := a.Collection.MarkPending(cue.ID)
		if err != nil {
			continue
		}
		pending = append(pending, marked)
		entries = append(entries, translate.Entry{ID: marked.ID, Text: marked.Text})
	}
	if len(entries) == 0 {
		return pending
	}
	a.publishEvent(jobs.Event{
		Type:    jobs.EventTypeCollection,
		Message: fmt.Sprintf("Translating %d cue(s) into %s", len(entries), language),
		Cues:    a.Collection.Snapshot(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	if a.translateCancels == nil {
		a.translateCancels = make(map[uint64]context.CancelFunc)
	}
	a.nextBatch++
	batchID := a.nextBatch
	a.translateCancels[batchID] = cancel
	a.mu.Unlock()

	a.log.Info().Int("entries", len(entries)).Str("language", language).Int("concurrency", concurrency).Msg("translation batch started")
	results := a.Translator.TranslateBatch(ctx, entries, language, concurrency)
	go a.pumpTranslations(batchID, results)
	return pending
}

// pumpTranslations applies each result to the collection as it arrives.
func (a *App) pumpTranslations(batchID uint64, results <-chan translate.Result) {
	skipped := 0
	for result := range results {
		switch {
		case result.Err == nil:
			cue, err := a.Collection.CompleteTranslation(result.ID, result.Translation)
			if err != nil {
				a.log.Debug().Str("cue", result.ID).Msg("dropping translation for removed cue")
				continue
			}
			a.publishEvent(jobs.Event{
				Type:        jobs.EventTypeTranslationCompleted,
				CueID:       cue.ID,
				Cue:         &cue,
				Translation: result.Translation,
			})
		case errors.Is(result.Err, translate.ErrSkipped):
			if _, err := a.Collection.ResetTranslation(result.ID); err == nil {
				skipped++
			}
		default:
			cue, err := a.Collection.FailTranslation(result.ID)
			if err != nil {
				a.log.Debug().Str("cue", result.ID).Msg("dropping translation failure for removed cue")
				continue
			}
			a.publishEvent(jobs.Event{
				Type:    jobs.EventTypeTranslationFailed,
				CueID:   cue.ID,
				Cue:     &cue,
				Message: result.Err.Error(),
			})
		}
	}

	a.mu.Lock()
	if cancel, ok := a.translateCancels[batchID]; ok {
		cancel()
		delete(a.translateCancels, batchID)
	}
	a.mu.Unlock()

	if skipped > 0 {
		a.publishEvent(jobs.Event{
			Type:    jobs.EventTypeCollection,
			Message: fmt.Sprintf("Translation stopped, %d cue(s) not sent", skipped),
			Cues:    a.Collection.Snapshot(),
		})
	}
}
