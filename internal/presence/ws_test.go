package presence

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	return conn
}

// waitForCount reads events until want arrives or the deadline passes.
func waitForCount(conn *websocket.Conn, want int, timeout time.Duration) (int, error) {
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	last := -1
	for {
		var ev CountEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return last, err
		}
		last = ev.GuestCount
		if last == want {
			return last, nil
		}
	}
}

func waitForSnapshot(t *testing.T, b *Broadcaster, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b.Snapshot() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected count %d, got %d", want, b.Snapshot())
}

func TestHandleWebSocket_ConnectAndDisconnect(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(HandleWebSocket(b))
	defer srv.Close()

	first := dial(t, srv)
	defer first.Close()
	if got, err := waitForCount(first, 1, 2*time.Second); err != nil {
		t.Fatalf("expected count 1, got %d: %v", got, err)
	}

	second := dial(t, srv)
	if got, err := waitForCount(second, 2, 2*time.Second); err != nil {
		t.Fatalf("expected count 2 on new client, got %d: %v", got, err)
	}
	if got, err := waitForCount(first, 2, 2*time.Second); err != nil {
		t.Fatalf("expected count 2 on first client, got %d: %v", got, err)
	}

	_ = second.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = second.Close()

	if got, err := waitForCount(first, 1, 2*time.Second); err != nil {
		t.Fatalf("expected count 1 after disconnect, got %d: %v", got, err)
	}
	waitForSnapshot(t, b, 1)
}

func TestHandleWebSocket_IgnoresClientFrames(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(HandleWebSocket(b))
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	if _, err := waitForCount(conn, 1, 2*time.Second); err != nil {
		t.Fatalf("expected initial count: %v", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if got := b.Snapshot(); got != 1 {
		t.Fatalf("expected count 1 after client frame, got %d", got)
	}
}

func TestHandleWebSocket_ConnectStorm(t *testing.T) {
	b := NewBroadcaster()
	srv := httptest.NewServer(HandleWebSocket(b))
	defer srv.Close()

	const clients = 50
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conns := make([]*websocket.Conn, clients)
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err != nil {
				t.Errorf("dial %d failed: %v", i, err)
				return
			}
			conns[i] = conn
		}(i)
	}
	wg.Wait()
	defer func() {
		for _, c := range conns {
			if c != nil {
				_ = c.Close()
			}
		}
	}()
	if t.Failed() {
		t.FailNow()
	}

	for i, c := range conns {
		wg.Add(1)
		go func(i int, c *websocket.Conn) {
			defer wg.Done()
			if got, err := waitForCount(c, clients, 5*time.Second); err != nil {
				t.Errorf("client %d stopped at %d: %v", i, got, err)
			}
		}(i, c)
	}
	wg.Wait()

	if got := b.Snapshot(); got != clients {
		t.Fatalf("expected snapshot %d, got %d", clients, got)
	}
}

func TestHandleWebSocket_RejectsPlainRequest(t *testing.T) {
	b := NewBroadcaster()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/ws", nil)

	HandleWebSocket(b).ServeHTTP(rr, req)

	if rr.Code != 400 {
		t.Errorf("Expected 400 for non-upgrade request, got %d", rr.Code)
	}
	if got := b.Snapshot(); got != 0 {
		t.Errorf("Expected count 0, got %d", got)
	}
}
