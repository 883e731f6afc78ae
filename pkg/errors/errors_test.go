package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	err := fmt.Errorf("approve: %w", Clone(ErrAlreadyProcessed, "benefit request already processed"))

	appErr := FromError(err)
	assert.Equal(t, ErrAlreadyProcessed.Code, appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "benefit request already processed", appErr.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	appErr := FromError(sql.ErrConnDone)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.ErrorIs(t, appErr, sql.ErrConnDone)
}

func TestIs(t *testing.T) {
	assert.True(t, Is(Clone(ErrLimitExceeded, "too much"), ErrLimitExceeded))
	assert.False(t, Is(ErrNotFound, ErrConflict))
	assert.False(t, Is(nil, ErrConflict))
	assert.False(t, Is(sql.ErrNoRows, ErrNotFound))
}
