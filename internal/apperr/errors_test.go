package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesKind(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind error
	}{
		{"network", Network("listIds", context.DeadlineExceeded), ErrNetworkFailure},
		{"rejected", Rejected("getContent", 500), ErrServerRejected},
		{"not found", NotFound("getIdentity"), ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("load page: %w", tc.err)
			if !errors.Is(wrapped, tc.kind) {
				t.Fatalf("expected %v to match %v", wrapped, tc.kind)
			}
		})
	}
}

func TestNetworkUnwrapsCause(t *testing.T) {
	err := Network("listIds", context.DeadlineExceeded)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected cause to be reachable")
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(Rejected("mutateFollow", 503)) {
		t.Fatalf("server rejection should be retryable")
	}
	if Retryable(NotFound("getContent")) {
		t.Fatalf("not found should not be retryable")
	}
	if Retryable(ErrAlreadyInFlight) {
		t.Fatalf("guard rejection should not be retryable")
	}
}

func TestErrorMessage(t *testing.T) {
	got := Rejected("getContent", 500).Error()
	want := "getContent: server rejected request (status 500)"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
