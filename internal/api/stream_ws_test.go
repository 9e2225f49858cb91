package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/isdelr/msgboard-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebsocketStreamDeliversNewMessages(t *testing.T) {
	ts := newTestServer(t)
	registerUser(t, ts, "alice", "secret")
	alice := &creds{"alice", "secret"}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/stream/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	// Let the session initialize before producing anything new.
	time.Sleep(50 * time.Millisecond)

	var created models.Message
	status := call(t, ts, http.MethodPost, "/message", map[string]string{"text": "over ws"}, alice, &created)
	require.Equal(t, http.StatusOK, status)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	var batch []models.Message
	require.NoError(t, json.Unmarshal(frame, &batch))
	require.Len(t, batch, 1)
	assert.Equal(t, created.ID, batch[0].ID)
	assert.Equal(t, "over ws", batch[0].Text)
}
