package finerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestClassification(t *testing.T) {
	err := Invariantf("account %s shares would go negative", "ACC-1")
	if !IsInvariant(err) {
		t.Error("expected invariant classification")
	}
	if IsValidation(err) || IsConflict(err) {
		t.Error("classification must be exclusive")
	}
}

func TestWrappedClassificationSurvives(t *testing.T) {
	inner := Preconditionf("no nav mark for fund %s", "FND-1")
	outer := fmt.Errorf("period close aborted: %w", inner)
	if !IsPrecondition(outer) {
		t.Error("classification should survive further wrapping")
	}
	if !errors.Is(outer, ErrPrecondition) {
		t.Error("errors.Is should match the sentinel through wrapping")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validationf("bad input"), http.StatusBadRequest},
		{Invariantf("conservation broken"), http.StatusUnprocessableEntity},
		{Preconditionf("missing nav"), http.StatusFailedDependency},
		{Conflictf("duplicate run"), http.StatusConflict},
		{NotFoundf("no such fund"), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
