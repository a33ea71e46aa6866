package status

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/export"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/model"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/mutation"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/state"
)

type fakeBackend struct {
	healthy bool
	pending *mutation.Undo
	undone  int
	st      *state.Store
}

func (f *fakeBackend) Healthy() bool { return f.healthy }

func (f *fakeBackend) SyncReport() SyncReport {
	return SyncReport{Status: state.SyncSynced, DataLoaded: true, UserID: "u1", Remote: true, Warm: true}
}

func (f *fakeBackend) Export(now time.Time) export.Document { return export.Build(f.st.Snapshot(), now) }

func (f *fakeBackend) PendingUndo() (mutation.Undo, bool) {
	if f.pending == nil {
		return mutation.Undo{}, false
	}
	return *f.pending, true
}

func (f *fakeBackend) Undo() bool {
	if f.pending == nil {
		return false
	}
	f.pending = nil
	f.undone++
	return true
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func TestHealth(t *testing.T) {
	b := &fakeBackend{st: state.New()}
	r := NewRouter(b, zerolog.Nop())

	rr := do(t, r, "GET", "/api/health")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"unhealthy"`)

	b.healthy = true
	rr = do(t, r, "GET", "/api/health")
	assert.Contains(t, rr.Body.String(), `"healthy"`)
}

func TestSync(t *testing.T) {
	r := NewRouter(&fakeBackend{st: state.New()}, zerolog.Nop())
	rr := do(t, r, "GET", "/api/sync")
	require.Equal(t, http.StatusOK, rr.Code)

	var rep SyncReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
	assert.Equal(t, state.SyncSynced, rep.Status)
	assert.True(t, rep.Warm)
}

func TestExportDownload(t *testing.T) {
	st := state.New()
	st.SetTodos([]model.Todo{{ID: "t1", Text: "Buy milk"}})
	r := NewRouter(&fakeBackend{st: st}, zerolog.Nop())

	rr := do(t, r, "GET", "/api/export")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.HasPrefix(rr.Header().Get("Content-Disposition"), `attachment; filename="lifesync-backup-`))

	var doc export.Document
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &doc))
	require.Len(t, doc.Todos, 1)
	assert.Equal(t, "Buy milk", doc.Todos[0].Text)
}

func TestUndoEndpoints(t *testing.T) {
	b := &fakeBackend{st: state.New(), pending: &mutation.Undo{ID: "u1", Label: "할 일이 추가됨"}}
	r := NewRouter(b, zerolog.Nop())

	rr := do(t, r, "GET", "/api/undo")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp undoResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Pending)
	assert.Equal(t, "할 일이 추가됨", resp.Undo.Label)

	rr = do(t, r, "POST", "/api/undo")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, b.undone)

	rr = do(t, r, "POST", "/api/undo")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = do(t, r, "DELETE", "/api/undo")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestMetricsAndRecover(t *testing.T) {
	r := NewRouter(&fakeBackend{st: state.New()}, zerolog.Nop())
	rr := do(t, r, "GET", "/metrics")
	assert.Equal(t, http.StatusOK, rr.Code)

	h := recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rr = do(t, h, "GET", "/")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
