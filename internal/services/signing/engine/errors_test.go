package engine

import (
	"errors"
	"fmt"
	"testing"

	apperrors "github.com/louisbranch/countersign/internal/platform/errors"
	"github.com/louisbranch/countersign/internal/services/signing/domain"
	"github.com/louisbranch/countersign/internal/services/signing/storage"
)

func TestCodedErrorMapsSentinels(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want apperrors.Code
	}{
		{name: "empty title", err: domain.ErrEmptyTitle, want: apperrors.CodeRequestTitleEmpty},
		{name: "empty requester", err: domain.ErrEmptyRequester, want: apperrors.CodeRequestRequesterEmpty},
		{name: "invalid workflow type", err: domain.ErrInvalidWorkflowType, want: apperrors.CodeRequestInvalidWorkflowType},
		{name: "wrapped quorum", err: fmt.Errorf("level 2: %w", domain.ErrQuorumOutOfRange), want: apperrors.CodeChainQuorumOutOfRange},
		{name: "storage not found", err: fmt.Errorf("request r-1: %w", storage.ErrNotFound), want: apperrors.CodeNotFound},
		{name: "storage conflict", err: storage.ErrConflict, want: apperrors.CodeConflict},
		{name: "lease held", err: storage.ErrLeaseHeld, want: apperrors.CodeLeaseHeld},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			coded := codedError(tc.err)
			var appErr *apperrors.Error
			if !errors.As(coded, &appErr) {
				t.Fatalf("codedError(%v) = %v, want coded error", tc.err, coded)
			}
			if appErr.Code != tc.want {
				t.Fatalf("code = %s, want %s", appErr.Code, tc.want)
			}
			if !errors.Is(coded, tc.err) {
				t.Fatalf("coded error lost the original chain for %v", tc.err)
			}
		})
	}
}

func TestCodedErrorPassesUnknownThrough(t *testing.T) {
	t.Parallel()

	plain := errors.New("disk on fire")
	if got := codedError(plain); got != plain {
		t.Fatalf("codedError(%v) = %v, want unchanged", plain, got)
	}
	if got := codedError(nil); got != nil {
		t.Fatalf("codedError(nil) = %v, want nil", got)
	}
}
