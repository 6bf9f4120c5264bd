package subtitle

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"subtitle-studio/internal/domain"
)

// newTestCollection seeds a collection with sequential ids c1..cN.
func newTestCollection(t *testing.T, segs ...Segment) *Collection {
	t.Helper()
	c := NewCollection()
	seq := 0
	c.newID = func() string {
		seq++
		return fmt.Sprintf("c%d", seq)
	}
	for _, seg := range segs {
		c.Append(seg)
	}
	return c
}

func threeCues(t *testing.T) *Collection {
	t.Helper()
	return newTestCollection(t,
		Segment{StartTime: "00:00:01.000", EndTime: "00:00:02.000", Text: "one"},
		Segment{StartTime: "00:00:03.000", EndTime: "00:00:04.000", Text: "two"},
		Segment{StartTime: "00:00:05.000", EndTime: "00:00:06.000", Text: "three"},
	)
}

func ids(cues []domain.Cue) []string {
	out := make([]string, len(cues))
	for i, cue := range cues {
		out[i] = cue.ID
	}
	return out
}

// TestAppendAssignsUniqueIDs checks id minting and collision handling.
func TestAppendAssignsUniqueIDs(t *testing.T) {
	c := threeCues(t)
	_, cue := c.AppendCue(domain.Cue{ID: "c1", Text: "dup"})
	if cue.ID == "c1" {
		t.Fatal("colliding id should be replaced")
	}
	if cue.TranslationState != domain.TranslationIdle {
		t.Fatalf("state = %s, want idle", cue.TranslationState)
	}

	seen := map[string]bool{}
	for _, id := range ids(c.Snapshot()) {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

// TestInsertBetweenNeighbors derives times from both sides.
func TestInsertBetweenNeighbors(t *testing.T) {
	c := threeCues(t)
	snap, cue, err := c.Insert("c1", PositionAfter)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if cue.StartTime != "00:00:02.000" || cue.EndTime != "00:00:03.000" {
		t.Fatalf("times = %s-%s", cue.StartTime, cue.EndTime)
	}
	if got := ids(snap); !reflect.DeepEqual(got, []string{"c1", cue.ID, "c2", "c3"}) {
		t.Fatalf("order = %v", got)
	}
}

// TestInsertAtEdges uses the default span where a neighbor is missing.
func TestInsertAtEdges(t *testing.T) {
	c := threeCues(t)
	_, head, err := c.Insert("c1", PositionBefore)
	if err != nil {
		t.Fatalf("Insert(before) error = %v", err)
	}
	if head.StartTime != "00:00:00.000" || head.EndTime != "00:00:01.000" {
		t.Fatalf("head times = %s-%s", head.StartTime, head.EndTime)
	}

	snap, tail, err := c.Insert("c3", PositionAfter)
	if err != nil {
		t.Fatalf("Insert(after) error = %v", err)
	}
	if tail.StartTime != "00:00:06.000" || tail.EndTime != "00:00:11.000" {
		t.Fatalf("tail times = %s-%s", tail.StartTime, tail.EndTime)
	}
	if snap[0].ID != head.ID || snap[len(snap)-1].ID != tail.ID {
		t.Fatalf("order = %v", ids(snap))
	}
}

// TestInsertOverlappingNeighborsIsZeroLength keeps start <= end.
func TestInsertOverlappingNeighborsIsZeroLength(t *testing.T) {
	c := newTestCollection(t,
		Segment{StartTime: "00:00:01.000", EndTime: "00:00:05.000", Text: "a"},
		Segment{StartTime: "00:00:03.000", EndTime: "00:00:06.000", Text: "b"},
	)
	_, cue, err := c.Insert("c2", PositionBefore)
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if cue.StartTime != "00:00:05.000" || cue.EndTime != "00:00:05.000" {
		t.Fatalf("times = %s-%s", cue.StartTime, cue.EndTime)
	}
}

// TestInsertErrors covers unknown anchors and the empty-collection seed.
func TestInsertErrors(t *testing.T) {
	c := newTestCollection(t)
	if _, _, err := c.Insert("missing", PositionAfter); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	snap, cue, err := c.Insert("", PositionBefore)
	if err != nil {
		t.Fatalf("seed insert error = %v", err)
	}
	if len(snap) != 1 || cue.StartTime != "00:00:00.000" || cue.EndTime != "00:00:05.000" {
		t.Fatalf("seed = %+v", snap)
	}
	if _, _, err := c.Insert(cue.ID, Position("sideways")); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("error = %v, want ErrInvalidField", err)
	}
}

// TestUpdateNormalizesTimecode checks MM:SS shorthand expansion.
func TestUpdateNormalizesTimecode(t *testing.T) {
	c := newTestCollection(t, Segment{StartTime: "00:00:01.000", EndTime: "00:05:00.000", Text: "a"})
	snap, err := c.Update("c1", FieldStartTime, "01:30")
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if snap[0].StartTime != "00:01:30.000" {
		t.Fatalf("start = %q, want 00:01:30.000", snap[0].StartTime)
	}
}

// TestUpdateFields covers text, translation and rejected edits.
func TestUpdateFields(t *testing.T) {
	c := threeCues(t)
	if _, err := c.Update("c2", FieldText, "zwei"); err != nil {
		t.Fatalf("text update: %v", err)
	}
	if _, err := c.Update("c2", FieldTranslation, "two"); err != nil {
		t.Fatalf("translation update: %v", err)
	}
	cue, _ := c.Get("c2")
	if cue.Text != "zwei" || cue.Translation == nil || *cue.Translation != "two" || cue.TranslationState != domain.TranslationDone {
		t.Fatalf("cue = %+v", cue)
	}

	before := c.Snapshot()
	if _, err := c.Update("c2", FieldEndTime, "00:00:02.000"); !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("error = %v, want ErrInvalidRange", err)
	}
	if _, err := c.Update("c2", FieldStartTime, "soon"); !errors.Is(err, ErrInvalidTimecode) {
		t.Fatalf("error = %v, want ErrInvalidTimecode", err)
	}
	if _, err := c.Update("c2", Field("color"), "red"); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("error = %v, want ErrInvalidField", err)
	}
	if _, err := c.Update("nope", FieldText, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if !reflect.DeepEqual(before, c.Snapshot()) {
		t.Fatal("failed updates must not change the collection")
	}
}

// TestUpdateDoesNotResort keeps structural order after a timecode edit.
func TestUpdateDoesNotResort(t *testing.T) {
	c := threeCues(t)
	if _, err := c.Update("c1", FieldEndTime, "00:00:09.000"); err != nil {
		t.Fatalf("end update: %v", err)
	}
	snap, err := c.Update("c1", FieldStartTime, "00:00:08.000")
	if err != nil {
		t.Fatalf("start update: %v", err)
	}
	if got := ids(snap); !reflect.DeepEqual(got, []string{"c1", "c2", "c3"}) {
		t.Fatalf("order = %v", got)
	}
}

// TestMergeAdjacent checks span, text join and symmetric arguments.
func TestMergeAdjacent(t *testing.T) {
	c := threeCues(t)
	if _, err := c.CompleteTranslation("c3", "drei"); err != nil {
		t.Fatalf("translate: %v", err)
	}

	snap, merged, err := c.Merge("c3", "c2")
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if len(snap) != 2 || snap[1].ID != merged.ID || snap[0].ID != "c1" {
		t.Fatalf("order = %v", ids(snap))
	}
	if merged.ID == "c2" || merged.ID == "c3" {
		t.Fatal("merged cue should get a fresh id")
	}
	if merged.StartTime != "00:00:03.000" || merged.EndTime != "00:00:06.000" {
		t.Fatalf("span = %s-%s", merged.StartTime, merged.EndTime)
	}
	if merged.Text != "two\nthree" {
		t.Fatalf("text = %q", merged.Text)
	}
	if merged.Translation == nil || *merged.Translation != "\ndrei" {
		t.Fatalf("translation = %v", merged.Translation)
	}
}

// TestMergeWithoutTranslationsLeavesTranslationEmpty checks the translation rule.
func TestMergeWithoutTranslationsLeavesTranslationEmpty(t *testing.T) {
	c := threeCues(t)
	_, merged, err := c.Merge("c1", "c2")
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if merged.Translation != nil || merged.TranslationState != domain.TranslationIdle {
		t.Fatalf("merged = %+v", merged)
	}
}

// TestMergeNonAdjacentFails leaves the collection unchanged.
func TestMergeNonAdjacentFails(t *testing.T) {
	c := threeCues(t)
	before := c.Snapshot()
	for _, pair := range [][2]string{{"c1", "c3"}, {"c3", "c1"}, {"c2", "c2"}} {
		if _, _, err := c.Merge(pair[0], pair[1]); !errors.Is(err, ErrNotAdjacent) {
			t.Fatalf("Merge(%v) error = %v, want ErrNotAdjacent", pair, err)
		}
	}
	if _, _, err := c.Merge("c1", "zz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if !reflect.DeepEqual(before, c.Snapshot()) {
		t.Fatal("collection changed after failed merge")
	}
}

// TestMergeMany folds a contiguous run pairwise.
func TestMergeMany(t *testing.T) {
	c := threeCues(t)
	snap, merged, err := c.MergeMany([]string{"c3", "c1", "c2"})
	if err != nil {
		t.Fatalf("MergeMany() error = %v", err)
	}
	if len(snap) != 1 || merged.Text != "one\ntwo\nthree" {
		t.Fatalf("merged = %+v", merged)
	}
	if merged.StartTime != "00:00:01.000" || merged.EndTime != "00:00:06.000" {
		t.Fatalf("span = %s-%s", merged.StartTime, merged.EndTime)
	}

	c = threeCues(t)
	if _, _, err := c.MergeMany([]string{"c1", "c3"}); !errors.Is(err, ErrNotAdjacent) {
		t.Fatalf("error = %v, want ErrNotAdjacent", err)
	}
	if _, _, err := c.MergeMany([]string{"c1"}); !errors.Is(err, ErrNotAdjacent) {
		t.Fatalf("error = %v, want ErrNotAdjacent", err)
	}
}

// TestDeleteNeverEmpties checks the minimum-one-cue policy.
func TestDeleteNeverEmpties(t *testing.T) {
	c := threeCues(t)
	for _, id := range []string{"c2", "c1"} {
		if _, err := c.Delete(id); err != nil {
			t.Fatalf("Delete(%s) error = %v", id, err)
		}
	}
	snap, err := c.Delete("c3")
	if err != nil {
		t.Fatalf("Delete(last) error = %v", err)
	}
	if len(snap) != 1 || snap[0].ID != "c3" {
		t.Fatalf("snapshot = %v", ids(snap))
	}
	if _, err := c.Delete("c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

// TestBatchDelete removes selections and keeps one cue when all are selected.
func TestBatchDelete(t *testing.T) {
	c := threeCues(t)
	snap := c.BatchDelete([]string{"c1", "c3", "unknown"})
	if got := ids(snap); !reflect.DeepEqual(got, []string{"c2"}) {
		t.Fatalf("after batch = %v", got)
	}

	c = threeCues(t)
	snap = c.BatchDelete([]string{"c2", "c3", "c1"})
	if got := ids(snap); !reflect.DeepEqual(got, []string{"c1"}) {
		t.Fatalf("after full batch = %v", got)
	}
}

// TestClearEmpties checks that only Clear may reach zero cues.
func TestClearEmpties(t *testing.T) {
	c := threeCues(t)
	if snap := c.Clear(); len(snap) != 0 || c.Len() != 0 {
		t.Fatalf("len = %d, want 0", c.Len())
	}
	if _, ok := c.Get("c1"); ok {
		t.Fatal("cleared cue still addressable")
	}
}

// TestTranslationStates covers pending, failure and reset bookkeeping.
func TestTranslationStates(t *testing.T) {
	c := threeCues(t)
	if _, err := c.CompleteTranslation("c1", "uno"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := c.MarkPending("c1"); err != nil {
		t.Fatalf("pending: %v", err)
	}
	cue, err := c.FailTranslation("c1")
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if cue.TranslationState != domain.TranslationFailed || cue.Translation == nil || *cue.Translation != "uno" {
		t.Fatalf("failed cue = %+v", cue)
	}

	if _, err := c.MarkPending("c2"); err != nil {
		t.Fatalf("pending: %v", err)
	}
	cue, _ = c.ResetTranslation("c2")
	if cue.TranslationState != domain.TranslationIdle {
		t.Fatalf("reset state = %s, want idle", cue.TranslationState)
	}
	if _, err := c.MarkPending("gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

// TestResetTranslationKeepsEarlierTranslation checks a cancelled re-translation falls back to done.
func TestResetTranslationKeepsEarlierTranslation(t *testing.T) {
	c := threeCues(t)
	if _, err := c.CompleteTranslation("c1", "uno"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := c.MarkPending("c1"); err != nil {
		t.Fatalf("pending: %v", err)
	}

	cue, err := c.ResetTranslation("c1")
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if cue.TranslationState != domain.TranslationDone || !cue.HasTranslation() || *cue.Translation != "uno" {
		t.Fatalf("reset cue = %+v", cue)
	}

	// Only pending cues are touched.
	if _, err := c.FailTranslation("c2"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	cue, _ = c.ResetTranslation("c2")
	if cue.TranslationState != domain.TranslationFailed {
		t.Fatalf("state = %s, want failed", cue.TranslationState)
	}
}

// TestSnapshotIsIsolated checks callers cannot mutate stored cues.
func TestSnapshotIsIsolated(t *testing.T) {
	c := threeCues(t)
	if _, err := c.CompleteTranslation("c1", "uno"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	snap := c.Snapshot()
	snap[0].Text = "mutated"
	*snap[0].Translation = "mutated"

	cue, _ := c.Get("c1")
	if cue.Text != "one" || *cue.Translation != "uno" {
		t.Fatalf("stored cue changed: %+v", cue)
	}
}

// TestConcurrentEditsKeepIDsUnique runs producers and editors together.
func TestConcurrentEditsKeepIDsUnique(t *testing.T) {
	c := NewCollection()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, cue := c.Append(Segment{StartTime: "00:00:00.000", EndTime: "00:00:01.000", Text: "x"})
				_, _, _ = c.Insert(cue.ID, PositionBefore)
				_, _ = c.Update(cue.ID, FieldText, "y")
				_, _ = c.Delete(cue.ID)
			}
		}()
	}
	wg.Wait()

	snap := c.Snapshot()
	if len(snap) == 0 {
		t.Fatal("collection emptied by deletes")
	}
	seen := map[string]bool{}
	for _, cue := range snap {
		if seen[cue.ID] {
			t.Fatalf("duplicate id %s", cue.ID)
		}
		seen[cue.ID] = true
	}
}
