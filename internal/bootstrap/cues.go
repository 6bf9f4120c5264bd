package bootstrap

import (
	"subtitle-studio/internal/domain"
	"subtitle-studio/internal/jobs"
	"subtitle-studio/internal/subtitle"
)

// Cues returns the current cue list in display order.
func (a *App) Cues() []domain.Cue {
	return a.Collection.Snapshot()
}

// InsertCue adds a blank cue before or after anchorID.
func (a *App) InsertCue(anchorID, position string) ([]domain.Cue, error) {
	cues, _, err := a.Collection.Insert(anchorID, subtitle.Position(position))
	return a.collectionChanged("Cue inserted", cues, err)
}

// UpdateCue edits one field of one cue.
func (a *App) UpdateCue(id, field, value string) ([]domain.Cue, error) {
	cues, err := a.Collection.Update(id, subtitle.Field(field), value)
	return a.collectionChanged("Cue updated", cues, err)
}

// MergeCues joins two adjacent cues.
func (a *App) MergeCues(id1, id2 string) ([]domain.Cue, error) {
	cues, _, err := a.Collection.Merge(id1, id2)
	return a.collectionChanged("Cues merged", cues, err)
}

// MergeManyCues joins a contiguous run of cues.
func (a *App) MergeManyCues(ids []string) ([]domain.Cue, error) {
	cues, _, err := a.Collection.MergeMany(ids)
	return a.collectionChanged("Cues merged", cues, err)
}

// DeleteCue removes one cue; the last remaining cue is kept.
func (a *App) DeleteCue(id string) ([]domain.Cue, error) {
	cues, err := a.Collection.Delete(id)
	return a.collectionChanged("Cue deleted", cues, err)
}

// BatchDeleteCues removes the selected cues; at least one cue is kept.
func (a *App) BatchDeleteCues(ids []string) []domain.Cue {
	cues, _ := a.collectionChanged("Cues deleted", a.Collection.BatchDelete(ids), nil)
	return cues
}

// ClearCues empties the collection.
func (a *App) ClearCues() []domain.Cue {
	cues, _ := a.collectionChanged("Cues cleared", a.Collection.Clear(), nil)
	return cues
}

// collectionChanged publishes the post-edit snapshot. Failed edits publish nothing.
func (a *App) collectionChanged(message string, cues []domain.Cue, err error) ([]domain.Cue, error) {
	if err != nil {
		return nil, err
	}
	a.publishEvent(jobs.Event{
		Type:    jobs.EventTypeCollection,
		Message: message,
		Cues:    cues,
	})
	return cues, nil
}
