package lifecycle

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/taskpulse/internal/instance"
	"github.com/kazz187/taskpulse/pkg/cerr"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	r := chi.NewRouter()
	r.Use(cerr.NewJSONErrorChiMiddleware())
	NewServer(NewManager(openSQLite(t))).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, userID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServerLifecycle(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/instances", "u1", `{"task_id":"t1","task_name":"Task","task_version":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created CreateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.InstanceID)
	base := "/api/instances/" + created.InstanceID

	rec = do(t, h, http.MethodPost, base+"/initialize", "u1", `{"attributes":{"expected_relief":40}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, base+"/start", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, base+"/complete", "u1", `{"attributes":{"actual_relief":65}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got instance.TaskInstance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, instance.StatusCompleted, got.Status)
	require.NotNil(t, got.NetRelief)
	assert.Equal(t, 25.0, *got.NetRelief)

	rec = do(t, h, http.MethodPost, base+"/notes", "u1", `{"note":"worth it"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, base+"/cancel", "u1", `{"reason":"late"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.JSONEq(t, `{"code":"failed_precondition","message":"cannot move instance from completed to cancelled"}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/instances?state=completed", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var list ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Instances, 1)
	assert.Equal(t, "worth it", list.Instances[0].Actual.String(instance.AttrNotes))

	rec = do(t, h, http.MethodGet, base, "u2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodDelete, base, "u1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, h, http.MethodGet, base, "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerRequestErrors(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/instances", "", `{"task_id":"t1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/instances", "u1", `{"task_id":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/instances?state=archived", "u1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/instances?state=completed&since=yesterday", "u1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/instances", "u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"instances":[]}`, rec.Body.String())
}
