package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_KeepsDomainErrors(t *testing.T) {
	orig := NewNotFound("component", "abc")
	wrapped := fmt.Errorf("lookup: %w", orig)

	got := Wrap(wrapped)

	assert.Same(t, wrapped, got)
	assert.True(t, Is(got, CodeNotFound))
	assert.Equal(t, http.StatusNotFound, GetHTTPStatus(got))
}

func TestWrap_ClassifiesUnknownAsStorage(t *testing.T) {
	cause := errors.New("disk I/O error")

	got := Wrap(cause)

	appErr, ok := AsAppError(got)
	require.True(t, ok)
	assert.Equal(t, CodeStorage, appErr.Code)
	assert.ErrorIs(t, got, cause)
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(got))
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(nil))
}

func TestInsufficientStockDetails(t *testing.T) {
	err := NewInsufficientStock("c1", 10, 3)

	assert.Equal(t, CodeInsufficientStock, err.Code)
	assert.Equal(t, 10, err.Details["requested"])
	assert.Equal(t, 3, err.Details["available"])
	assert.Contains(t, err.Message, "available 3")
}

func TestInvalidQuantity(t *testing.T) {
	err := NewInvalidQuantity(-1, "must not be negative")

	assert.True(t, Is(err, CodeInvalidInput))
	assert.Equal(t, "quantity", err.Details["field"])
	assert.Equal(t, "invalid quantity -1: must not be negative", UserMessage(err))
}

func TestGetHTTPStatus_PlainError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(errors.New("boom")))
}
