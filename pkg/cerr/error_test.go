package cerr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/taskpulse/pkg/storage"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, OK, CodeOf(nil))
	assert.Equal(t, Unknown, CodeOf(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", NewError(NotFound, "instance not found", nil))
	assert.Equal(t, NotFound, CodeOf(wrapped))
	assert.True(t, IsCode(wrapped, NotFound))
	assert.False(t, IsCode(wrapped, Aborted))
}

func TestNewErrorStack(t *testing.T) {
	assert.Empty(t, NewError(InvalidArgument, "bad", nil).Stack)
	assert.NotEmpty(t, NewError(Internal, "boom", nil).Stack)
}

func TestErrorString(t *testing.T) {
	err := NewError(Aborted, "timestamp conflict", errors.New("started_at before created_at"))
	assert.Equal(t, "[aborted] timestamp conflict: started_at before created_at", err.Error())
	assert.Equal(t, "[not_found] gone", NewError(NotFound, "gone", nil).Error())
	assert.Equal(t, "code(99)", Code(99).String())
}

func TestWrapErrors(t *testing.T) {
	assert.True(t, IsCode(WrapStorageReadError("table", fmt.Errorf("x: %w", storage.ErrNotFound)), NotFound))
	assert.True(t, IsCode(WrapStorageReadError("table", errors.New("io")), Internal))
	assert.True(t, IsCode(WrapDBError("instance", "get", sql.ErrNoRows), NotFound))
	assert.True(t, IsCode(WrapDBError("instance", "get", errors.New("locked")), Internal))
}

func TestJSONErrorChiMiddleware(t *testing.T) {
	mw := NewJSONErrorChiMiddleware()

	t.Run("response", func(t *testing.T) {
		h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			SetJSONResponseWithStatus(r.Context(), http.StatusCreated, map[string]string{"id": "x"})
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"id":"x"}`, rec.Body.String())
	})

	t.Run("error", func(t *testing.T) {
		h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			SetNewJSONError(r.Context(), FailedPrecondition, "cannot complete a cancelled instance", nil)
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.JSONEq(t, `{"code":"failed_precondition","message":"cannot complete a cancelled instance"}`, rec.Body.String())
	})
}
