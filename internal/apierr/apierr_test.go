package apierr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatusForMapsEachKind(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ClientInput(errors.New("x")), http.StatusBadRequest},
		{Auth(errors.New("x")), http.StatusUnauthorized},
		{NotFound(errors.New("x")), http.StatusNotFound},
		{Upstream(errors.New("x")), http.StatusBadGateway},
		{Internal(errors.New("x")), http.StatusInternalServerError},
		{&Forbidden{Err: errors.New("x")}, http.StatusForbidden},
		{errors.New("plain error"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		require.Equal(t, c.want, StatusFor(c.err))
	}
}

func TestErrorMessagePassesThrough(t *testing.T) {
	err := ClientInputf("bad value %d", 5)
	require.Equal(t, "bad value 5", err.Error())
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("inner")
	err := Internal(inner)
	require.ErrorIs(t, err, inner)
}
