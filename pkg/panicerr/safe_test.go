package panicerr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/taskpulse/pkg/cerr"
)

func TestSafe(t *testing.T) {
	err := Safe(func() error { panic("boom") })()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	want := errors.New("plain")
	assert.Equal(t, want, Safe(func() error { return want })())
	assert.NoError(t, Safe(func() error { return nil })())

	err = SafeContext(func(ctx context.Context) error { panic("ctx boom") })(context.Background())
	assert.Contains(t, err.Error(), "ctx boom")
}

func TestRecoverChiMiddleware(t *testing.T) {
	h := cerr.NewJSONErrorChiMiddleware()(NewRecoverChiMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/instances", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"code":"internal","message":"server error"}`, rec.Body.String())
}
