package audit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_ListAndGet(t *testing.T) {
	rec, _ := newTestRecorder(t)
	stored, err := rec.Record(context.Background(), Entry{
		EntityType: EntityProject,
		EntityID:   "ACD000001",
		ActorRole:  "TAC",
		Action:     ActionCreate,
		After:      map[string]any{"status": "Ready"},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(Router(rec))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events?entityId=ACD000001")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list EventList
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, 1, list.TotalSize)
	require.Len(t, list.Events, 1)
	assert.Equal(t, stored.EventID, list.Events[0].ID)
	assert.Equal(t, "CREATE", list.Events[0].Action)

	resp2, err := http.Get(srv.URL + "/events/" + stored.EventID)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var ev Event
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&ev))
	assert.Equal(t, "ACD000001", ev.EntityID)
	assert.Equal(t, "Ready", ev.After["status"])
}

func TestGetEventHandler_NotFound(t *testing.T) {
	rec, _ := newTestRecorder(t)
	srv := httptest.NewServer(Router(rec))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/events/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListEventsHandler_BadPageToken(t *testing.T) {
	rec, _ := newTestRecorder(t)
	req := httptest.NewRequest(http.MethodGet, "/events?pageToken=abc", nil)
	w := httptest.NewRecorder()
	ListEventsHandler(rec).ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
