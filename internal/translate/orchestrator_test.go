package translate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeBackend records concurrency and delegates to an injected reply.
type fakeBackend struct {
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	calls       atomic.Int32
	reply       func(ctx context.Context, text string) (string, error)
}

func (f *fakeBackend) Complete(ctx context.Context, messages []Message) (string, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.maxInFlight.Load()
		if n <= peak || f.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	text := messages[len(messages)-1].Content
	if f.reply == nil {
		return strings.ToUpper(text), nil
	}
	return f.reply(ctx, text)
}

func collect(t *testing.T, results <-chan Result) []Result {
	t.Helper()
	var out []Result
	timeout := time.After(2 * time.Second)
	for {
		select {
		case r, ok := <-results:
			if !ok {
				return out
			}
			out = append(out, r)
		case <-timeout:
			t.Fatalf("timed out collecting results, got %+v", out)
			return nil
		}
	}
}

func entriesN(n int) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = Entry{ID: fmt.Sprintf("c%d", i+1), Text: fmt.Sprintf("line %d", i+1)}
	}
	return entries
}

// TestTranslateBatchRespectsLimit verifies the batch fills but never exceeds the limit.
func TestTranslateBatchRespectsLimit(t *testing.T) {
	// The first two requests hold until both are in flight, so a serial batch stalls here.
	var arrived atomic.Int32
	bothIn := make(chan struct{})
	backend := &fakeBackend{
		reply: func(ctx context.Context, text string) (string, error) {
			if arrived.Add(1) == 2 {
				close(bothIn)
			}
			select {
			case <-bothIn:
			case <-time.After(time.Second):
			}
			time.Sleep(5 * time.Millisecond)
			return "t:" + text, nil
		},
	}
	o := NewOrchestrator(backend, time.Second, zerolog.Nop())

	results := collect(t, o.TranslateBatch(context.Background(), entriesN(10), "German", 2))
	if len(results) != 10 {
		t.Fatalf("results = %d, want 10", len(results))
	}
	if got := backend.maxInFlight.Load(); got != 2 {
		t.Fatalf("max in flight = %d, want 2", got)
	}
	for _, r := range results {
		if r.Err != nil || !strings.HasPrefix(r.Translation, "t:line ") {
			t.Fatalf("unexpected result %+v", r)
		}
	}
}

// TestTranslateBatchCompletionOrder verifies a fast late entry is delivered first.
func TestTranslateBatchCompletionOrder(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{
		reply: func(ctx context.Context, text string) (string, error) {
			if text == "line 1" {
				<-release
			}
			return text, nil
		},
	}
	o := NewOrchestrator(backend, time.Second, zerolog.Nop())

	results := o.TranslateBatch(context.Background(), entriesN(2), "German", 2)
	first := <-results
	if first.ID != "c2" {
		t.Fatalf("first result = %s, want c2", first.ID)
	}
	close(release)
	rest := collect(t, results)
	if len(rest) != 1 || rest[0].ID != "c1" {
		t.Fatalf("rest = %+v, want c1", rest)
	}
}

// TestTranslateBatchIsolatesFailures verifies one failure does not abort the batch.
func TestTranslateBatchIsolatesFailures(t *testing.T) {
	boom := errors.New("rate limited")
	backend := &fakeBackend{
		reply: func(ctx context.Context, text string) (string, error) {
			if text == "line 2" {
				return "", boom
			}
			return "ok", nil
		},
	}
	o := NewOrchestrator(backend, time.Second, zerolog.Nop())

	results := collect(t, o.TranslateBatch(context.Background(), entriesN(3), "German", 3))
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	if results[0].Err != nil || results[2].Err != nil {
		t.Fatalf("healthy entries failed: %+v", results)
	}
	if !errors.Is(results[1].Err, ErrBackendRequest) || !errors.Is(results[1].Err, boom) {
		t.Fatalf("failed entry error = %v", results[1].Err)
	}
}

// TestTranslateBatchCancelSkipsPending verifies cancellation stops dispatch but not in-flight calls.
func TestTranslateBatchCancelSkipsPending(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	backend := &fakeBackend{
		reply: func(ctx context.Context, text string) (string, error) {
			once.Do(func() { close(started) })
			<-release
			if err := ctx.Err(); err != nil {
				return "", err
			}
			return "done", nil
		},
	}
	o := NewOrchestrator(backend, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	results := o.TranslateBatch(ctx, entriesN(4), "German", 1)
	<-started
	cancel()
	close(release)

	out := collect(t, results)
	if len(out) != 4 {
		t.Fatalf("results = %d, want 4", len(out))
	}
	if out[0].ID != "c1" || out[0].Err != nil || out[0].Translation != "done" {
		t.Fatalf("in-flight entry = %+v, want completed", out[0])
	}
	for _, r := range out[1:] {
		if !errors.Is(r.Err, ErrSkipped) {
			t.Fatalf("entry %s error = %v, want %v", r.ID, r.Err, ErrSkipped)
		}
	}
	if backend.calls.Load() != 1 {
		t.Fatalf("backend calls = %d, want 1", backend.calls.Load())
	}
}

// TestTranslateSingle verifies the batch-of-one form.
func TestTranslateSingle(t *testing.T) {
	o := NewOrchestrator(&fakeBackend{}, 0, zerolog.Nop())
	r := o.Translate(context.Background(), "c9", "hello", "German")
	if r.ID != "c9" || r.Translation != "HELLO" || r.Err != nil {
		t.Fatalf("result = %+v", r)
	}
	if o.requestTimeout != DefaultRequestTimeout {
		t.Fatalf("timeout = %s, want default", o.requestTimeout)
	}
}

// TestTranslateBatchZeroConcurrency verifies a non-positive limit is treated as one.
func TestTranslateBatchZeroConcurrency(t *testing.T) {
	backend := &fakeBackend{
		reply: func(ctx context.Context, text string) (string, error) {
			time.Sleep(5 * time.Millisecond)
			return text, nil
		},
	}
	o := NewOrchestrator(backend, time.Second, zerolog.Nop())

	results := collect(t, o.TranslateBatch(context.Background(), entriesN(3), "German", 0))
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if got := backend.maxInFlight.Load(); got != 1 {
		t.Fatalf("max in flight = %d, want 1", got)
	}
	for i, r := range results {
		if want := fmt.Sprintf("c%d", i+1); r.ID != want {
			t.Fatalf("results[%d] = %s, want %s", i, r.ID, want)
		}
	}
}

// TestTranslateBatchEmpty verifies an empty batch closes immediately.
func TestTranslateBatchEmpty(t *testing.T) {
	o := NewOrchestrator(&fakeBackend{}, time.Second, zerolog.Nop())
	if out := collect(t, o.TranslateBatch(context.Background(), nil, "German", 4)); len(out) != 0 {
		t.Fatalf("results = %+v, want none", out)
	}
}
