package widget

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camwood/camwood-site/backend/internal/analysis/matcher"
	"github.com/camwood/camwood-site/backend/internal/model/knowledge"
	"github.com/camwood/camwood-site/backend/internal/service/conversation"
)

type received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type tracker struct {
	mu    sync.Mutex
	convs []*conversation.Controller
}

func (tr *tracker) factory() *conversation.Controller {
	m := matcher.NewFromStore(knowledge.NewMemoryStore(knowledge.Seed()))
	opts := conversation.DefaultOptions()
	opts.ThinkingDelay = 0
	opts.FollowUpDelay = time.Hour
	conv := conversation.New(m, nil, opts, nil)

	tr.mu.Lock()
	tr.convs = append(tr.convs, conv)
	tr.mu.Unlock()
	return conv
}

func (tr *tracker) first() *conversation.Controller {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.convs) == 0 {
		return nil
	}
	return tr.convs[0]
}

func dial(t *testing.T) (*websocket.Conn, *tracker) {
	t.Helper()
	tr := &tracker{}
	r := chi.NewRouter()
	NewWebSocketHandler(tr.factory, nil).RegisterWebSocketRoutes(r)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/assistant/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, tr
}

// readUntil reads frames until match returns true.
func readUntil(t *testing.T, conn *websocket.Conn, match func(received) bool) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var msg received
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func snapshotOf(t *testing.T, msg received) conversation.Snapshot {
	t.Helper()
	var snap conversation.Snapshot
	require.NoError(t, json.Unmarshal(msg.Data, &snap))
	return snap
}

func TestWidgetOpenAndSubmit(t *testing.T) {
	conn, _ := dial(t)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "open"}))
	opened := readUntil(t, conn, func(m received) bool {
		return m.Type == "snapshot" && snapshotOf(t, m).IsOpen
	})
	assert.Len(t, snapshotOf(t, opened).Messages, 1)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "submit",
		"data": map[string]string{"text": "What does Camwood Inc. do?"},
	}))
	answered := readUntil(t, conn, func(m received) bool {
		if m.Type != "snapshot" {
			return false
		}
		snap := snapshotOf(t, m)
		return len(snap.Messages) == 3 && !snap.IsAwaitingResponse
	})

	snap := snapshotOf(t, answered)
	assert.Equal(t, "What does Camwood Inc. do?", snap.Messages[2].Category)
}

func TestWidgetReportsErrors(t *testing.T) {
	conn, _ := dial(t)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "dance"}))
	msg := readUntil(t, conn, func(m received) bool { return m.Type == "error" })
	assert.Contains(t, string(msg.Data), "unsupported message type")

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "submit", "data": map[string]string{"text": " "}}))
	msg = readUntil(t, conn, func(m received) bool { return m.Type == "error" })
	assert.Contains(t, string(msg.Data), conversation.ErrEmptyInput.Error())
}

func TestWidgetDisposesConversationOnClose(t *testing.T) {
	conn, tr := dial(t)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "open"}))
	readUntil(t, conn, func(m received) bool { return m.Type == "snapshot" })

	conv := tr.first()
	require.NotNil(t, conv)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	conn.Close()

	require.Eventually(t, conv.Disposed, 2*time.Second, 10*time.Millisecond)
}
