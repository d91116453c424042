package httputil_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buildtrack/buildtrack-backend/internal/apperr"
	"github.com/buildtrack/buildtrack-backend/internal/httputil"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.Validation("bad"), http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", apperr.ErrNotFound), http.StatusNotFound},
		{apperr.Forbidden("project", "p1"), http.StatusForbidden},
		{apperr.ErrConflict, http.StatusConflict},
		{apperr.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, httputil.StatusFor(c.err), c.err.Error())
	}
}

// TestWriteError_HidesInternalDetail checks that a 500 answers with the
// caller-supplied generic message rather than the underlying error text.
func TestWriteError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	httputil.WriteError(rec, req, "ListClients", "", errors.New("pq: relation missing"), "Failed to fetch clients")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"message":"Failed to fetch clients"}`, rec.Body.String())
}

func TestDecodeJSON_Validation(t *testing.T) {
	type body struct {
		Name string `json:"name" validate:"required"`
	}
	v := validator.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":""}`))
	var b body
	err := httputil.DecodeJSON(req, v, &b)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "Name (required)")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	require.ErrorIs(t, httputil.DecodeJSON(req, v, &b), apperr.ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Acme"}`))
	require.NoError(t, httputil.DecodeJSON(req, v, &b))
	assert.Equal(t, "Acme", b.Name)
}
