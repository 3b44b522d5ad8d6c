package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meme-presale/internal/domain"
)

func newTestHub(t *testing.T, opts Options) (*Hub, *httptest.Server) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	opts.Logger = logger
	h := NewHub(opts)
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

// waitClients blocks until the hub reports n clients.
func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func purchaseEvent(launch string, units uint64) *domain.ReceiptEvent {
	return &domain.ReceiptEvent{
		Kind:     domain.ReceiptKindPurchase,
		Launch:   launch,
		Purchase: &domain.PurchaseReceipt{ReceiptID: "r", Buyer: "alice", TokenUnits: units},
	}
}

func readEvent(t *testing.T, ws *websocket.Conn) *domain.ReceiptEvent {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var ev domain.ReceiptEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return &ev
}

func TestHub_Broadcast(t *testing.T) {
	h, srv := newTestHub(t, Options{})
	a := dial(t, srv, "")
	b := dial(t, srv, "")
	waitClients(t, h, 2)

	require.NoError(t, h.Publish(context.Background(), purchaseEvent("creator1/0", 42)))

	for _, ws := range []*websocket.Conn{a, b} {
		ev := readEvent(t, ws)
		assert.Equal(t, domain.ReceiptKindPurchase, ev.Kind)
		assert.Equal(t, "creator1/0", ev.Launch)
		require.NotNil(t, ev.Purchase)
		assert.Equal(t, uint64(42), ev.Purchase.TokenUnits)
	}
}

func TestHub_LaunchFilter(t *testing.T) {
	h, srv := newTestHub(t, Options{})
	ws := dial(t, srv, "?launch=creator1/1")
	waitClients(t, h, 1)

	ctx := context.Background()
	require.NoError(t, h.Publish(ctx, purchaseEvent("creator1/0", 1)))
	require.NoError(t, h.Publish(ctx, purchaseEvent("creator1/1", 2)))

	ev := readEvent(t, ws)
	assert.Equal(t, "creator1/1", ev.Launch)
	assert.Equal(t, uint64(2), ev.Purchase.TokenUnits)
}

func TestHub_RejectsBadFilterAndExtraClients(t *testing.T) {
	h, srv := newTestHub(t, Options{MaxClients: 1})

	resp, err := http.Get(srv.URL + "/?launch=garbage")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	dial(t, srv, "")
	waitClients(t, h, 1)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	_, resp, err = websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHub_SlowClientDoesNotBlockPublish(t *testing.T) {
	h, srv := newTestHub(t, Options{BufferSize: 1})
	dial(t, srv, "")
	waitClients(t, h, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1_000; i++ {
			_ = h.Publish(context.Background(), purchaseEvent("creator1/0", uint64(i)))
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow client")
	}
}

func TestHub_Close(t *testing.T) {
	h, srv := newTestHub(t, Options{})
	dial(t, srv, "")
	waitClients(t, h, 1)

	h.Close()
	waitClients(t, h, 0)
	assert.ErrorIs(t, h.Publish(context.Background(), purchaseEvent("creator1/0", 1)), ErrClosed)
}
