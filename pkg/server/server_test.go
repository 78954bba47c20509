package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestServer(t *testing.T) (*Server, *fakeDB) {
	t.Helper()
	logBackend := createTestLogBackend(t)
	db := newFakeDB()
	cfg := Config{
		SmallBlind:    10,
		BigBlind:      20,
		StartingChips: 1000,
	}
	srv := NewServer(cfg, NewRegistry(logBackend.Logger("RGST")), createTestCoordinator(t), db, logBackend)
	return srv, db
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestCreateTableEndpoint(t *testing.T) {
	srv, _ := createTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/v1/tables", createTableRequest{HostID: "alice"})
	require.Equal(t, http.StatusCreated, w.Code)

	var snap TableSnapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "WAITING_FOR_PLAYERS", snap.State)
	assert.Equal(t, int64(20), snap.BigBlind, "server defaults fill unset blinds")

	// The table is listed and fetchable.
	w = doJSON(t, router, http.MethodGet, "/v1/tables", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), snap.ID)

	w = doJSON(t, router, http.MethodGet, "/v1/tables/"+snap.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/v1/tables/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandOverHTTP(t *testing.T) {
	srv, db := createTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/v1/tables", createTableRequest{HostID: "alice"})
	require.Equal(t, http.StatusCreated, w.Code)
	var snap TableSnapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	base := "/v1/tables/" + snap.ID

	// Two players join and ready up.
	for _, id := range []string{"alice", "bob"} {
		w = doJSON(t, router, http.MethodPost, base+"/join", joinRequest{PlayerID: id, Name: id})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var joined map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&joined))
		assert.NotEmpty(t, joined["credential"], "join issues a signing credential")

		w = doJSON(t, router, http.MethodPost, base+"/ready", readyRequest{PlayerID: id, Ready: true})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	// Rejoining the same seat conflicts.
	w = doJSON(t, router, http.MethodPost, base+"/join", joinRequest{PlayerID: "alice", Name: "alice"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodPost, base+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	require.NotNil(t, snap.Round)
	assert.Equal(t, "PRE_FLOP", snap.Round.Stage)

	// An out-of-turn action is rejected with the illegal-action shape.
	w = doJSON(t, router, http.MethodPost, base+"/actions", actionRequest{PlayerID: "bob", Action: "check"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "not your turn")

	// The dealer folds out; the hand settles and chips persist.
	w = doJSON(t, router, http.MethodPost, base+"/actions", actionRequest{PlayerID: "alice", Action: "fold"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.Equal(t, "PLAYERS_READY", snap.State)

	chips, err := db.GetPlayerChips("bob")
	require.NoError(t, err)
	assert.Equal(t, int64(1010), chips)
}

func TestActionOnUnknownTable(t *testing.T) {
	srv, _ := createTestServer(t)
	router := srv.Router()

	w := doJSON(t, router, http.MethodPost, "/v1/tables/nope/actions", actionRequest{PlayerID: "x", Action: "fold"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebsocketNotifications(t *testing.T) {
	srv, _ := createTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/ws?player=alice"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	srv.Notifier().NotifyPlayers([]string{"alice"}, Notification{
		Type:    NotificationPlayerJoined,
		TableID: "t1",
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var notif Notification
	require.NoError(t, conn.ReadJSON(&notif))
	assert.Equal(t, NotificationPlayerJoined, notif.Type)
	assert.Equal(t, "t1", notif.TableID)
	assert.False(t, notif.Timestamp.IsZero())
}

func TestWebsocketRequiresPlayer(t *testing.T) {
	srv, _ := createTestServer(t)
	w := doJSON(t, srv.Router(), http.MethodGet, "/v1/ws", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
