package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	err := NotFound("order %d not found", 7)

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrPermissionDenied))
	assert.Equal(t, "order 7 not found", err.Error())
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("create line item: %w", Validation("product belongs to another shop"))

	assert.Equal(t, KindValidation, KindOf(err))
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestUnclassifiedIsPersistence(t *testing.T) {
	assert.Equal(t, KindPersistence, KindOf(errors.New("connection reset")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		Validation("bad"):                       http.StatusBadRequest,
		Unauthenticated("login"):                http.StatusUnauthorized,
		PermissionDenied("no"):                  http.StatusForbidden,
		NotFound("gone"):                        http.StatusNotFound,
		Persistence(errors.New("tx"), "commit"): http.StatusInternalServerError,
	}

	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}

func TestPersistenceUnwraps(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := Persistence(cause, "failed to persist order total")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to persist order total: deadlock detected", err.Error())
}
