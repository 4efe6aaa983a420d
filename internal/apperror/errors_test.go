package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransitionErrorMatchesConflictKinds(t *testing.T) {
	err := fmt.Errorf("review: %w", &TransitionError{From: "approved", Event: "approve"})

	require.ErrorIs(t, err, ErrInvalidTransition)
	require.ErrorIs(t, err, ErrConflict)
	require.NotErrorIs(t, err, ErrNotFound)
	require.Contains(t, err.Error(), "cannot approve a report in status approved")
}

func TestDuplicateErrorExposesExistingID(t *testing.T) {
	err := fmt.Errorf("create: %w", &DuplicateError{ExistingID: "abc", CanResubmit: true})

	require.ErrorIs(t, err, ErrDuplicateReport)
	require.ErrorIs(t, err, ErrConflict)

	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	require.Equal(t, "abc", dup.ExistingID)
	require.True(t, dup.CanResubmit)
}

func TestWrappersKeepCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Transient(cause)

	require.ErrorIs(t, err, ErrTransient)
	require.ErrorIs(t, err, cause)
	require.Nil(t, Transient(nil))
	require.ErrorIs(t, Validationf("term %d", 4), ErrValidation)
}

func TestKindClassifiesWrappedErrors(t *testing.T) {
	cases := map[string]error{
		"":                   nil,
		"duplicate":          &DuplicateError{ExistingID: "x"},
		"invalid_transition": &TransitionError{From: "draft", Event: "approve"},
		"validation":         Validationf("term is required"),
		"conflict":           Conflict(errors.New("unique constraint failed")),
		"not_found":          NotFound(errors.New("record not found")),
		"permission":         fmt.Errorf("%w: admin only", ErrPermission),
		"transient":          Transient(errors.New("connection refused")),
		"internal":           errors.New("boom"),
	}

	for want, err := range cases {
		require.Equal(t, want, Kind(err), "error %v", err)
	}
}
