package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"feedsync/internal/apperr"
	"feedsync/internal/remote"
	"feedsync/internal/remote/remotetest"

	"go.uber.org/zap"
)

func seq(from, to int64) []int64 {
	var out []int64
	for id := from; id >= to; id-- {
		out = append(out, id)
	}
	return out
}

// scripted returns one canned response per call and records the cursors it saw.
type scripted struct {
	mu      sync.Mutex
	pages   [][]int64
	errs    []error
	cursors []int64
}

func (s *scripted) list(_ remote.Scope, cursor int64, _ int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := len(s.cursors)
	s.cursors = append(s.cursors, cursor)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.pages) {
		return nil, nil
	}
	return s.pages[i], nil
}

func newScripted(pages ...[]int64) (*remotetest.Fake, *scripted) {
	fake := remotetest.New()
	s := &scripted{pages: pages}
	fake.ListFunc = s.list
	return fake, s
}

func TestPaginator_ShortPageScenario(t *testing.T) {
	ctx := context.Background()
	fake, _ := newScripted(seq(109, 100), []int64{88, 87})
	p := NewPaginator(fake, remote.GlobalFeed(), 10, zap.NewNop())

	got, err := p.RequestMore(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 10 || p.Cursor() != 99 || !p.HasMore() {
		t.Fatalf("after first page: appended %d cursor %d hasMore %v", len(got), p.Cursor(), p.HasMore())
	}

	if _, err := p.RequestMore(ctx); err != nil {
		t.Fatal(err)
	}
	if p.Cursor() != 86 || p.HasMore() {
		t.Fatalf("after short page: cursor %d hasMore %v", p.Cursor(), p.HasMore())
	}

	got, err = p.RequestMore(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("exhausted paginator returned %v, %v", got, err)
	}
	if n := fake.ListCalls.Load(); n != 2 {
		t.Fatalf("expected 2 list calls, got %d", n)
	}
	if ids := p.IDs(); len(ids) != 12 || ids[10] != 88 {
		t.Fatalf("unexpected ids %v", ids)
	}
}

func TestPaginator_Termination(t *testing.T) {
	tests := []struct {
		name  string
		pages [][]int64
		calls int32
	}{
		{"empty first page", [][]int64{{}}, 1},
		{"short first page", [][]int64{{5, 4}}, 1},
		{"cursor reaches zero", [][]int64{seq(3, 1)}, 1},
		{"full then empty", [][]int64{seq(30, 28), {}}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			fake, _ := newScripted(tt.pages...)
			p := NewPaginator(fake, remote.GlobalFeed(), 3, zap.NewNop())

			for i := 0; i < 5; i++ {
				if _, err := p.RequestMore(ctx); err != nil {
					t.Fatal(err)
				}
			}
			if p.HasMore() {
				t.Fatal("expected exhausted")
			}
			if n := fake.ListCalls.Load(); n != tt.calls {
				t.Fatalf("expected %d list calls, got %d", tt.calls, n)
			}
		})
	}
}

func TestPaginator_StrictlyDecreasingWithoutDuplicates(t *testing.T) {
	ctx := context.Background()
	// overlapping, unsorted pages
	fake, _ := newScripted([]int64{50, 52, 51}, []int64{50, 49, 47}, []int64{47, 40, 45}, []int64{10})
	p := NewPaginator(fake, remote.GlobalFeed(), 3, zap.NewNop())

	for p.HasMore() {
		if _, err := p.RequestMore(ctx); err != nil {
			t.Fatal(err)
		}
	}

	ids := p.IDs()
	for i := 1; i < len(ids); i++ {
		if ids[i] >= ids[i-1] {
			t.Fatalf("ids not strictly decreasing at %d: %v", i, ids)
		}
	}
	want := []int64{52, 51, 50, 49, 47, 45, 40, 10}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}
}

func TestPaginator_FailureKeepsCursor(t *testing.T) {
	ctx := context.Background()
	fake, s := newScripted(seq(20, 18), nil, seq(17, 15))
	s.errs = []error{nil, apperr.Network("listIds", errors.New("reset"))}
	p := NewPaginator(fake, remote.GlobalFeed(), 3, zap.NewNop())

	if _, err := p.RequestMore(ctx); err != nil {
		t.Fatal(err)
	}
	_, err := p.RequestMore(ctx)
	if !errors.Is(err, apperr.ErrNetworkFailure) {
		t.Fatalf("expected network failure, got %v", err)
	}
	if p.State() != StateError || p.Cursor() != 17 || len(p.IDs()) != 3 {
		t.Fatalf("failure mutated state: %s cursor %d ids %v", p.State(), p.Cursor(), p.IDs())
	}
	if !errors.Is(p.LastError(), apperr.ErrNetworkFailure) {
		t.Fatalf("last error not recorded: %v", p.LastError())
	}

	if _, err := p.RequestMore(ctx); err != nil {
		t.Fatal(err)
	}
	if s.cursors[1] != s.cursors[2] {
		t.Fatalf("retry used cursor %d, failed call used %d", s.cursors[2], s.cursors[1])
	}
	if p.LastError() != nil {
		t.Fatal("successful retry should clear the error")
	}
}

func TestPaginator_AtMostOneInFlight(t *testing.T) {
	ctx := context.Background()
	fake := remotetest.New()
	fake.ListFunc = func(remote.Scope, int64, int) ([]int64, error) { return seq(10, 8), nil }
	fake.ListGate = make(chan struct{})
	p := NewPaginator(fake, remote.GlobalFeed(), 3, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := p.RequestMore(ctx)
		done <- err
	}()

	waitFor(t, p.IsLoading)
	if _, err := p.RequestMore(ctx); !errors.Is(err, apperr.ErrAlreadyInFlight) {
		t.Fatalf("expected already in flight, got %v", err)
	}

	close(fake.ListGate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if n := fake.ListCalls.Load(); n != 1 {
		t.Fatalf("expected a single list call, got %d", n)
	}
}

func TestPaginator_ResetDiscardsStalePage(t *testing.T) {
	ctx := context.Background()
	fake := remotetest.New()
	fake.ListFunc = func(remote.Scope, int64, int) ([]int64, error) { return seq(10, 8), nil }
	fake.ListGate = make(chan struct{})
	p := NewPaginator(fake, remote.GlobalFeed(), 3, zap.NewNop())

	done := make(chan []int64, 1)
	go func() {
		ids, _ := p.RequestMore(ctx)
		done <- ids
	}()
	waitFor(t, p.IsLoading)

	p.Reset()
	close(fake.ListGate)

	if ids := <-done; len(ids) != 0 {
		t.Fatalf("stale page was applied: %v", ids)
	}
	if len(p.IDs()) != 0 || p.Cursor() != 0 || p.State() != StateIdle {
		t.Fatalf("reset state disturbed: ids %v cursor %d state %s", p.IDs(), p.Cursor(), p.State())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}
