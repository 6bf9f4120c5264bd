package subtitle

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"subtitle-studio/internal/domain"
)

// Position selects where Insert places the new cue relative to its anchor.
type Position string

const (
	PositionBefore Position = "before"
	PositionAfter  Position = "after"
)

// Field names an editable cue attribute.
type Field string

const (
	FieldText        Field = "text"
	FieldStartTime   Field = "startTime"
	FieldEndTime     Field = "endTime"
	FieldTranslation Field = "translation"
)

// Collection is the ordered, id-keyed set of cues for one editing session.
// Every method holds the lock for its whole duration, so callers never observe a
// partially applied edit. Display order is insertion order and is never re-sorted.
type Collection struct {
	mu    sync.RWMutex
	cues  []domain.Cue
	index map[string]int
	newID func() string
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{
		index: make(map[string]int),
		newID: uuid.NewString,
	}
}

// Snapshot returns a copy of the current cue order.
func (c *Collection) Snapshot() []domain.Cue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Len returns the number of cues.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cues)
}

// Get returns a copy of one cue.
func (c *Collection) Get(id string) (domain.Cue, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.index[id]
	if !ok {
		return domain.Cue{}, false
	}
	return cloneCue(c.cues[i]), true
}

// Select returns the named cues in display order; no ids selects every cue.
// Unknown ids are skipped.
func (c *Collection) Select(ids []string) []domain.Cue {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(ids) == 0 {
		return c.snapshotLocked()
	}

	wanted := idSet(ids)
	out := make([]domain.Cue, 0, len(ids))
	for _, cue := range c.cues {
		if _, ok := wanted[cue.ID]; ok {
			out = append(out, cloneCue(cue))
		}
	}
	return out
}

// Append adds a recognized segment at the end and returns the new snapshot and cue.
func (c *Collection) Append(seg Segment) ([]domain.Cue, domain.Cue) {
	return c.AppendCue(domain.Cue{
		StartTime: seg.StartTime,
		EndTime:   seg.EndTime,
		Text:      seg.Text,
	})
}

// AppendCue adds a fully formed cue at the end. A missing or colliding id is replaced.
func (c *Collection) AppendCue(cue domain.Cue) ([]domain.Cue, domain.Cue) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cue = cloneCue(cue)
	if _, taken := c.index[cue.ID]; cue.ID == "" || taken {
		cue.ID = c.newID()
	}
	if cue.TranslationState == "" {
		cue.TranslationState = domain.TranslationIdle
	}

	c.cues = append(c.cues, cue)
	c.index[cue.ID] = len(c.cues) - 1
	return c.snapshotLocked(), cloneCue(cue)
}

// Insert creates a blank cue next to anchorID, timed from its neighbors.
// On an empty collection an empty anchorID creates a default first cue.
func (c *Collection) Insert(anchorID string, pos Position) ([]domain.Cue, domain.Cue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if pos != PositionBefore && pos != PositionAfter {
		return nil, domain.Cue{}, fmt.Errorf("%w: position %q", ErrInvalidField, pos)
	}

	if len(c.cues) == 0 && anchorID == "" {
		cue := c.blankCue(zeroTimecode, FormatTimecode(DefaultCueSpan))
		c.cues = []domain.Cue{cue}
		c.reindexLocked()
		return c.snapshotLocked(), cloneCue(cue), nil
	}

	idx, ok := c.index[anchorID]
	if !ok {
		return nil, domain.Cue{}, fmt.Errorf("%w: %s", ErrNotFound, anchorID)
	}

	at := idx
	if pos == PositionAfter {
		at = idx + 1
	}

	var prev, next *domain.Cue
	if at > 0 {
		prev = &c.cues[at-1]
	}
	if at < len(c.cues) {
		next = &c.cues[at]
	}

	var start, end string
	switch {
	case prev != nil && next != nil:
		start, end = prev.EndTime, next.StartTime
	case prev != nil:
		start = prev.EndTime
		end = shiftTimecode(start, DefaultCueSpan)
	default:
		end = next.StartTime
		start = shiftTimecode(end, -DefaultCueSpan)
	}
	if compareTimecodes(end, start) < 0 {
		// Overlapping neighbors leave no gap; the new cue gets zero length.
		end = start
	}

	cue := c.blankCue(start, end)
	c.cues = append(c.cues, domain.Cue{})
	copy(c.cues[at+1:], c.cues[at:])
	c.cues[at] = cue
	c.reindexLocked()

	return c.snapshotLocked(), cloneCue(cue), nil
}

// Update sets one field on a cue. Timecodes are normalized before storage.
func (c *Collection) Update(id string, field Field, value string) ([]domain.Cue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cue := c.cues[idx]

	switch field {
	case FieldText:
		cue.Text = value
	case FieldTranslation:
		if value == "" {
			cue.Translation = nil
			cue.TranslationState = domain.TranslationIdle
		} else {
			cue.Translation = lo.ToPtr(value)
			cue.TranslationState = domain.TranslationDone
		}
	case FieldStartTime, FieldEndTime:
		tc, err := NormalizeTimecode(value)
		if err != nil {
			return nil, err
		}
		if field == FieldStartTime {
			cue.StartTime = tc
		} else {
			cue.EndTime = tc
		}
		if compareTimecodes(cue.StartTime, cue.EndTime) > 0 {
			return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, cue.StartTime, cue.EndTime)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidField, field)
	}

	c.cues[idx] = cue
	return c.snapshotLocked(), nil
}

// Merge joins two neighboring cues into one new cue at the earlier position.
// Argument order does not matter.
func (c *Collection) Merge(id1, id2 string) ([]domain.Cue, domain.Cue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i1, ok := c.index[id1]
	if !ok {
		return nil, domain.Cue{}, fmt.Errorf("%w: %s", ErrNotFound, id1)
	}
	i2, ok := c.index[id2]
	if !ok {
		return nil, domain.Cue{}, fmt.Errorf("%w: %s", ErrNotFound, id2)
	}
	if i1 > i2 {
		i1, i2 = i2, i1
	}
	if i2-i1 != 1 {
		return nil, domain.Cue{}, fmt.Errorf("%w: %s, %s", ErrNotAdjacent, id1, id2)
	}

	merged := mergeCues(c.cues[i1], c.cues[i2], c.newID())
	c.replaceRangeLocked(i1, i2, merged)
	return c.snapshotLocked(), cloneCue(merged), nil
}

// MergeMany merges a contiguous run of cues, folding pairwise by increasing index.
func (c *Collection) MergeMany(ids []string) ([]domain.Cue, domain.Cue, error) {
	ids = lo.Uniq(ids)
	if len(ids) < 2 {
		return nil, domain.Cue{}, fmt.Errorf("%w: need at least two cues", ErrNotAdjacent)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	positions := make([]int, 0, len(ids))
	for _, id := range ids {
		idx, ok := c.index[id]
		if !ok {
			return nil, domain.Cue{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		positions = append(positions, idx)
	}
	sort.Ints(positions)
	for i := 1; i < len(positions); i++ {
		if positions[i]-positions[i-1] != 1 {
			return nil, domain.Cue{}, fmt.Errorf("%w: selection has a gap", ErrNotAdjacent)
		}
	}

	first, last := positions[0], positions[len(positions)-1]
	merged := c.cues[first]
	for i := first + 1; i <= last; i++ {
		merged = mergeCues(merged, c.cues[i], c.newID())
	}
	c.replaceRangeLocked(first, last, merged)
	return c.snapshotLocked(), cloneCue(merged), nil
}

// Delete removes one cue. Deleting the only remaining cue is a no-op.
func (c *Collection) Delete(id string) ([]domain.Cue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if len(c.cues) == 1 {
		return c.snapshotLocked(), nil
	}

	c.cues = append(c.cues[:idx], c.cues[idx+1:]...)
	c.reindexLocked()
	return c.snapshotLocked(), nil
}

// BatchDelete removes every named cue; unknown ids are ignored.
// When the selection covers every cue, the first one is kept.
func (c *Collection) BatchDelete(ids []string) []domain.Cue {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cues) == 0 || len(ids) == 0 {
		return c.snapshotLocked()
	}

	drop := idSet(ids)
	kept := lo.Filter(c.cues, func(cue domain.Cue, _ int) bool {
		_, gone := drop[cue.ID]
		return !gone
	})
	if len(kept) == 0 {
		kept = []domain.Cue{c.cues[0]}
	}

	c.cues = kept
	c.reindexLocked()
	return c.snapshotLocked()
}

// Clear empties the collection. Unlike Delete it may leave zero cues.
func (c *Collection) Clear() []domain.Cue {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cues = nil
	c.index = make(map[string]int)
	return []domain.Cue{}
}

// MarkPending flags a cue as waiting on a translation request.
func (c *Collection) MarkPending(id string) (domain.Cue, error) {
	return c.mutate(id, func(cue *domain.Cue) {
		cue.TranslationState = domain.TranslationPending
	})
}

// CompleteTranslation stores a finished translation.
func (c *Collection) CompleteTranslation(id, text string) (domain.Cue, error) {
	return c.mutate(id, func(cue *domain.Cue) {
		cue.Translation = lo.ToPtr(text)
		cue.TranslationState = domain.TranslationDone
	})
}

// FailTranslation flags a failed request and keeps any earlier translation.
func (c *Collection) FailTranslation(id string) (domain.Cue, error) {
	return c.mutate(id, func(cue *domain.Cue) {
		cue.TranslationState = domain.TranslationFailed
	})
}

// ResetTranslation drops a pending flag for a request that was never sent.
func (c *Collection) ResetTranslation(id string) (domain.Cue, error) {
	return c.mutate(id, func(cue *domain.Cue) {
		if cue.TranslationState != domain.TranslationPending {
			return
		}
		if cue.HasTranslation() {
			cue.TranslationState = domain.TranslationDone
		} else {
			cue.TranslationState = domain.TranslationIdle
		}
	})
}

func (c *Collection) mutate(id string, fn func(cue *domain.Cue)) (domain.Cue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, ok := c.index[id]
	if !ok {
		return domain.Cue{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fn(&c.cues[idx])
	return cloneCue(c.cues[idx]), nil
}

func (c *Collection) blankCue(start, end string) domain.Cue {
	return domain.Cue{
		ID:               c.newID(),
		StartTime:        start,
		EndTime:          end,
		TranslationState: domain.TranslationIdle,
	}
}

// replaceRangeLocked swaps cues[first..last] for a single cue.
func (c *Collection) replaceRangeLocked(first, last int, cue domain.Cue) {
	out := make([]domain.Cue, 0, len(c.cues)-(last-first))
	out = append(out, c.cues[:first]...)
	out = append(out, cue)
	out = append(out, c.cues[last+1:]...)
	c.cues = out
	c.reindexLocked()
}

func (c *Collection) reindexLocked() {
	c.index = make(map[string]int, len(c.cues))
	for i, cue := range c.cues {
		c.index[cue.ID] = i
	}
}

func (c *Collection) snapshotLocked() []domain.Cue {
	out := make([]domain.Cue, len(c.cues))
	for i, cue := range c.cues {
		out[i] = cloneCue(cue)
	}
	return out
}

// mergeCues spans both cues and stacks their text on separate lines.
func mergeCues(a, b domain.Cue, id string) domain.Cue {
	merged := domain.Cue{
		ID:               id,
		StartTime:        a.StartTime,
		EndTime:          b.EndTime,
		Text:             a.Text + "\n" + b.Text,
		TranslationState: domain.TranslationIdle,
	}
	if compareTimecodes(b.StartTime, merged.StartTime) < 0 {
		merged.StartTime = b.StartTime
	}
	if compareTimecodes(a.EndTime, merged.EndTime) > 0 {
		merged.EndTime = a.EndTime
	}
	if a.HasTranslation() || b.HasTranslation() {
		merged.Translation = lo.ToPtr(lo.FromPtr(a.Translation) + "\n" + lo.FromPtr(b.Translation))
		merged.TranslationState = domain.TranslationDone
	}
	return merged
}

func cloneCue(cue domain.Cue) domain.Cue {
	if cue.HasTranslation() {
		cue.Translation = lo.ToPtr(*cue.Translation)
	}
	return cue
}

func idSet(ids []string) map[string]struct{} {
	return lo.Associate(ids, func(id string) (string, struct{}) {
		return id, struct{}{}
	})
}
