package errors

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsCodeAndMatchesTemplate(t *testing.T) {
	err := Clone(ErrInvalidTransition, "approved documents cannot be replaced")
	require.Equal(t, "INVALID_TRANSITION", err.Code)
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.Equal(t, "approved documents cannot be replaced", err.Message)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NotErrorIs(t, err, ErrRequirementsNotMet)
}

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	err := FromError(fmt.Errorf("disk full"))
	require.NotNil(t, err)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
}

func TestInternalUnwrapsCause(t *testing.T) {
	err := Internal(sql.ErrConnDone, "failed to load enrollment")
	assert.ErrorIs(t, err, sql.ErrConnDone)
	assert.ErrorIs(t, err, ErrInternal)
	assert.Contains(t, err.Error(), "failed to load enrollment")
}
