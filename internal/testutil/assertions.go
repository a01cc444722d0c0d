package testutil

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	apperrors "civicbudget/internal/errors"
)

// AssertAppError fails unless err is an *AppError carrying code.
func AssertAppError(t *testing.T, err error, code string) {
	t.Helper()

	var appErr *apperrors.AppError
	switch {
	case err == nil:
		t.Fatalf("expected %s, got nil", code)
	case !errors.As(err, &appErr):
		t.Fatalf("expected %s, got non-AppError %T: %v", code, err, err)
	case appErr.Code != code:
		t.Errorf("expected %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertErrorKind fails unless err classifies as kind.
func AssertErrorKind(t *testing.T, err error, kind apperrors.Kind) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := apperrors.KindOf(err); got != kind {
		t.Errorf("expected error kind %q, got %q (%v)", kind, got, err)
	}
}

// AssertDecimal compares amounts numerically, so "400" matches "400.00".
func AssertDecimal(t *testing.T, got decimal.Decimal, want, label string) {
	t.Helper()

	if !got.Equal(Amount(t, want)) {
		t.Errorf("%s: expected %s, got %s", label, want, got.String())
	}
}
