package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("row missing")
	err := fmt.Errorf("loading user: %w", Wrap(NotFound, "user not found", cause))

	assert.Equal(t, NotFound, KindOf(err))
	assert.True(t, IsKind(err, NotFound))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "user not found", Message(err))

	plain := errors.New("boom")
	assert.Equal(t, Internal, KindOf(plain))
	assert.Equal(t, "internal error", Message(plain))
	assert.False(t, IsKind(nil, Internal))
}

func TestSentinelMatching(t *testing.T) {
	sentinel := New(Unauthorized, "invalid refresh token")
	err := Wrap(Unauthorized, "invalid refresh token", errors.New("signature"))

	assert.ErrorIs(t, err, sentinel)
	assert.NotErrorIs(t, New(Forbidden, "invalid refresh token"), sentinel)
}

func TestKindHTTPStatus(t *testing.T) {
	tests := map[Kind]int{
		Unauthorized: http.StatusUnauthorized,
		Forbidden:    http.StatusForbidden,
		NotFound:     http.StatusNotFound,
		Conflict:     http.StatusConflict,
		Invalid:      http.StatusBadRequest,
		Internal:     http.StatusInternalServerError,
		Kind(99):     http.StatusInternalServerError,
	}
	for kind, status := range tests {
		assert.Equal(t, status, kind.HTTPStatus(), kind.String())
	}
	assert.Equal(t, "forbidden", Forbidden.String())
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "forbidden", New(Forbidden, "forbidden").Error())
	assert.Equal(t, "create: no row", Wrap(Internal, "create", errors.New("no row")).Error())
}
