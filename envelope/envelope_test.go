package envelope

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flipzone/apperr"
)

func TestJSONWritesDataOnly(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusOK, []string{})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
}

func TestErrorMapsKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"not found", apperr.NotFoundf("Product not found in cart"), http.StatusNotFound, `{"error":"Product not found in cart","code":"NOT_FOUND"}`},
		{"unauthenticated", apperr.Unauthorized(""), http.StatusUnauthorized, `{"error":"User not logged in","code":"UNAUTHENTICATED"}`},
		{"validation", apperr.Invalid("Invalid product ID"), http.StatusBadRequest, `{"error":"Invalid product ID","code":"VALIDATION_ERROR"}`},
		{"storage", apperr.Unavailable(errors.New("dial tcp")), http.StatusServiceUnavailable, `{"error":"Storage is unavailable, please try again","code":"STORAGE_UNAVAILABLE"}`},
		{"unexpected", errors.New("nil pointer"), http.StatusInternalServerError, `{"error":"Unknown error occurred","code":"UNKNOWN"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Error(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.JSONEq(t, tt.body, rec.Body.String())
		})
	}
}

func TestKindForRoundTrip(t *testing.T) {
	for _, kind := range []apperr.Kind{apperr.Unauthenticated, apperr.Forbidden, apperr.NotFound, apperr.Validation, apperr.Conflict, apperr.RateLimited, apperr.StorageUnavailable} {
		assert.Equal(t, kind, KindFor(StatusFor(kind)))
	}
	assert.Equal(t, apperr.Unknown, KindFor(http.StatusTeapot))
}

func TestDecode(t *testing.T) {
	b, err := Decode([]byte(`{"data":{"status":"added","message":"Product added to cart"}}`))
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(b.Data, &msg))
	assert.Equal(t, "added", msg.Status)

	b, err = Decode([]byte(`{"error":"Quantity Limit exceeded","code":"CONFLICT"}`))
	require.NoError(t, err)
	assert.Equal(t, "Quantity Limit exceeded", b.Error)

	_, err = Decode([]byte(`{}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`<html>`))
	assert.Error(t, err)
}

func TestResult(t *testing.T) {
	ok := Ok(3)
	v, err := ok.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.False(t, ok.Failed())

	empty := Ok[[]int](nil)
	assert.False(t, empty.Failed())

	failed := Fail[int]("")
	assert.True(t, failed.Failed())
	assert.Equal(t, UnknownError, failed.Error)
	assert.Zero(t, failed.Response)
	_, err = failed.Unwrap()
	assert.EqualError(t, err, UnknownError)
}
