package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errLocked = New(KindStateConflict, "SLICE_LOCKED", "slice locked")

func TestIs_MatchesSentinelThroughWrapping(t *testing.T) {
	err := fmt.Errorf("place bet: %w", errLocked.With("settlement %d", 42))

	assert.True(t, errors.Is(err, errLocked))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindStateConflict, KindOf(err))
	assert.Equal(t, "SLICE_LOCKED", CodeOf(err))
}

func TestTransient(t *testing.T) {
	assert.Nil(t, Transient(nil))

	err := Transient(sql.ErrConnDone)
	assert.Equal(t, KindTransient, KindOf(err))
	assert.ErrorIs(t, err, sql.ErrConnDone)

	// erros de negócio não são reclassificados
	assert.Equal(t, KindStateConflict, KindOf(Transient(errLocked)))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		Invalid("amount"):             http.StatusBadRequest,
		errLocked:                     http.StatusConflict,
		ErrNotFound:                   http.StatusNotFound,
		Transient(errors.New("boom")): http.StatusServiceUnavailable,
		errors.New("plain"):           http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}
