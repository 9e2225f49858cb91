package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/isdelr/msgboard-be/internal/config"
	"github.com/isdelr/msgboard-be/internal/database"
	"github.com/isdelr/msgboard-be/internal/models"
	"github.com/isdelr/msgboard-be/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := database.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))

	var cfg config.Config
	cfg.Server.CORSOrigins = []string{"*"}
	cfg.Stream.PollInterval = 10 * time.Millisecond
	cfg.Stream.BufferFrames = 16
	cfg.Messages.PageLimitMax = 20

	userService := services.NewUserService(db)
	messageService := services.NewMessageService(db, cfg.Messages.PageLimitMax)

	// Rate limiting stays off in tests.
	ts := httptest.NewServer(NewRouter(cfg, userService, messageService, nil))
	t.Cleanup(ts.Close)
	return ts
}

type creds struct {
	username, password string
}

// call sends a JSON request and decodes the JSON response into out (when
// out is non-nil), returning the status code.
func call(t *testing.T, ts *httptest.Server, method, path string, body interface{}, auth *creds, out interface{}) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if auth != nil {
		req.SetBasicAuth(auth.username, auth.password)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func registerUser(t *testing.T, ts *httptest.Server, username, password string) models.User {
	t.Helper()
	var user models.User
	status := call(t, ts, http.MethodPost, "/user",
		map[string]string{"username": username, "password": password}, nil, &user)
	require.Equal(t, http.StatusOK, status)
	return user
}

func TestUserRegistrationAndLookup(t *testing.T) {
	ts := newTestServer(t)

	user := registerUser(t, ts, "testuser", "testpass")
	assert.Equal(t, int64(1), user.ID)
	assert.Equal(t, "testuser", user.Username)
	assert.Nil(t, user.Bio)
	assert.False(t, user.CreatedAt.IsZero())

	var byID models.User
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/user/1", nil, nil, &byID))
	assert.Equal(t, "testuser", byID.Username)

	var byName models.User
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/user/testuser", nil, nil, &byName))
	assert.Equal(t, int64(1), byName.ID)
}

func TestUserRegistrationValidation(t *testing.T) {
	ts := newTestServer(t)

	var errBody map[string]string
	status := call(t, ts, http.MethodPost, "/user", map[string]string{"username": "nopass"}, nil, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, errBody["message"], "username and password")

	registerUser(t, ts, "taken", "pass")
	status = call(t, ts, http.MethodPost, "/user",
		map[string]string{"username": "taken", "password": "pass"}, nil, &errBody)
	assert.Equal(t, http.StatusConflict, status)
}

func TestUserLookupErrors(t *testing.T) {
	ts := newTestServer(t)

	var errBody map[string]string
	assert.Equal(t, http.StatusBadRequest, call(t, ts, http.MethodGet, "/user", nil, nil, &errBody))
	assert.Equal(t, http.StatusNotFound, call(t, ts, http.MethodGet, "/user/99", nil, nil, &errBody))
	assert.Equal(t, http.StatusNotFound, call(t, ts, http.MethodGet, "/user/ghost", nil, nil, &errBody))
}

func TestUserResponseNeverLeaksPasswordHash(t *testing.T) {
	ts := newTestServer(t)
	registerUser(t, ts, "alice", "secret")

	resp, err := ts.Client().Get(ts.URL + "/user/alice")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "password")
	assert.NotContains(t, string(raw), "hash")
}

func TestMessageLifecycle(t *testing.T) {
	ts := newTestServer(t)
	registerUser(t, ts, "alice", "secret")
	registerUser(t, ts, "bob", "hunter2")
	alice := &creds{"alice", "secret"}
	bob := &creds{"bob", "hunter2"}

	// Creating a message requires auth.
	status := call(t, ts, http.MethodPost, "/message", map[string]string{"text": "hi"}, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// Missing text is rejected.
	var errBody map[string]string
	status = call(t, ts, http.MethodPost, "/message", map[string]string{}, alice, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)

	// Create as alice.
	var msg models.Message
	status = call(t, ts, http.MethodPost, "/message", map[string]string{"text": "hi"}, alice, &msg)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, "alice", msg.User.Username)
	assert.Positive(t, msg.ID)

	// The paged list contains the message.
	var page []models.Message
	status = call(t, ts, http.MethodGet, "/messages?offset=0&limit=20", nil, nil, &page)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, page, 1)
	assert.Equal(t, msg.ID, page[0].ID)

	// Edit as the author.
	var edited models.Message
	path := fmt.Sprintf("/message/%d", msg.ID)
	status = call(t, ts, http.MethodPut, path, map[string]string{"text": "hi v2"}, alice, &edited)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hi v2", edited.Text)
	assert.NotNil(t, edited.ModifiedAt)

	// Edit as somebody else fails and changes nothing.
	status = call(t, ts, http.MethodPut, path, map[string]string{"text": "stolen"}, bob, &errBody)
	assert.Equal(t, http.StatusForbidden, status)

	var current models.Message
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, path, nil, nil, &current))
	assert.Equal(t, "hi v2", current.Text)

	// Delete as somebody else fails; as the author it succeeds.
	assert.Equal(t, http.StatusForbidden, call(t, ts, http.MethodDelete, path, nil, bob, &errBody))
	assert.Equal(t, http.StatusOK, call(t, ts, http.MethodDelete, path, nil, alice, nil))
	assert.Equal(t, http.StatusNotFound, call(t, ts, http.MethodGet, path, nil, nil, &errBody))
}

func TestMessageAuthRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	registerUser(t, ts, "alice", "secret")

	// Wrong password and unknown user look identical to the client.
	var wrongPass, unknown map[string]string
	s1 := call(t, ts, http.MethodPost, "/message", map[string]string{"text": "x"},
		&creds{"alice", "wrong"}, &wrongPass)
	s2 := call(t, ts, http.MethodPost, "/message", map[string]string{"text": "x"},
		&creds{"mallory", "wrong"}, &unknown)

	assert.Equal(t, http.StatusUnauthorized, s1)
	assert.Equal(t, http.StatusUnauthorized, s2)
	assert.Equal(t, wrongPass, unknown)
}

func TestListMessagesPolicies(t *testing.T) {
	ts := newTestServer(t)

	// Empty board: 200 with [], not a 404.
	var page []models.Message
	status := call(t, ts, http.MethodGet, "/messages?offset=0&limit=10", nil, nil, &page)
	require.Equal(t, http.StatusOK, status)
	assert.NotNil(t, page)
	assert.Empty(t, page)

	// Limit above the configured maximum.
	var errBody map[string]string
	status = call(t, ts, http.MethodGet, "/messages?offset=0&limit=21", nil, nil, &errBody)
	assert.Equal(t, http.StatusBadRequest, status)

	// Paging in the JSON body, the way the original clients sent it.
	status = call(t, ts, http.MethodGet, "/messages",
		map[string]int{"offset": 0, "limit": 20}, nil, &page)
	assert.Equal(t, http.StatusOK, status)

	// Offset past the end still yields an empty page.
	registerUser(t, ts, "alice", "secret")
	call(t, ts, http.MethodPost, "/message", map[string]string{"text": "hi"},
		&creds{"alice", "secret"}, nil)
	status = call(t, ts, http.MethodGet, "/messages?offset=50&limit=10", nil, nil, &page)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, page)
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	var body map[string]interface{}
	require.Equal(t, http.StatusOK, call(t, ts, http.MethodGet, "/healthz", nil, nil, &body))
	assert.Equal(t, "ok", body["status"])
}

// readFrame reads one SSE event frame (the "data: " line up to the blank
// separator line) from the stream.
func readFrame(t *testing.T, r *bufio.Reader, within time.Duration) []models.Message {
	t.Helper()

	type result struct {
		batch []models.Message
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				ch <- result{err: err}
				return
			}
			line = strings.TrimRight(line, "\n")
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var batch []models.Message
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &batch); err != nil {
				ch <- result{err: err}
				return
			}
			ch <- result{batch: batch}
			return
		}
	}()

	select {
	case res := <-ch:
		require.NoError(t, res.err)
		return res.batch
	case <-time.After(within):
		t.Fatal("no stream frame arrived within timeout")
		return nil
	}
}

func TestStreamDeliversNewMessagesWithoutReplay(t *testing.T) {
	ts := newTestServer(t)
	registerUser(t, ts, "alice", "secret")
	alice := &creds{"alice", "secret"}

	// History that must not be replayed.
	call(t, ts, http.MethodPost, "/message", map[string]string{"text": "old"}, alice, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/stream", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Let the session initialize its cursor past the history.
	time.Sleep(50 * time.Millisecond)

	var created models.Message
	status := call(t, ts, http.MethodPost, "/message", map[string]string{"text": "fresh"}, alice, &created)
	require.Equal(t, http.StatusOK, status)

	batch := readFrame(t, bufio.NewReader(resp.Body), 2*time.Second)
	require.Len(t, batch, 1)
	assert.Equal(t, created.ID, batch[0].ID)
	assert.Equal(t, "fresh", batch[0].Text)
	assert.Equal(t, "alice", batch[0].User.Username)
}

func TestStreamFrameOrderingAcrossPolls(t *testing.T) {
	ts := newTestServer(t)
	registerUser(t, ts, "alice", "secret")
	alice := &creds{"alice", "secret"}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/stream", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	time.Sleep(50 * time.Millisecond)

	const total = 6
	for i := 0; i < total; i++ {
		call(t, ts, http.MethodPost, "/message",
			map[string]string{"text": fmt.Sprintf("msg %d", i)}, alice, nil)
	}

	reader := bufio.NewReader(resp.Body)
	var ids []int64
	deadline := time.Now().Add(5 * time.Second)
	for len(ids) < total && time.Now().Before(deadline) {
		for _, m := range readFrame(t, reader, 2*time.Second) {
			ids = append(ids, m.ID)
		}
	}

	require.Len(t, ids, total)
	for i := 1; i < len(ids); i++ {
		assert.Greater(t, ids[i], ids[i-1], "stream ids must be strictly increasing")
	}
}
