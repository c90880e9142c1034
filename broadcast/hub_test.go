package broadcast

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

func init() {
	log.SetHandler(discard.New())
}

var testUpgrader = websocket.Upgrader{}

// newTestConn spins up a server that registers every connection with the
// hub and returns a connected client.
func newTestConn(t *testing.T, h *Hub, snapshot map[string]bool) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("failed to upgrade: %v", err)
			return
		}
		h.Subscribe(conn, snapshot)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatalf("failed to decode frame %q: %v", msg, err)
	}
	return ev
}

func TestHubSendsSnapshotOnSubscribe(t *testing.T) {
	h := NewHub()
	defer h.Close()

	client := newTestConn(t, h, map[string]bool{"contactForm": true, "nasaGallery": false})

	ev := readEvent(t, client)
	if ev.Event != EventInitModuleStatus {
		t.Fatalf("expected first frame %q, got %q", EventInitModuleStatus, ev.Event)
	}
	data, ok := ev.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("expected snapshot object, got %T", ev.Data)
	}
	if len(data) != 2 {
		t.Fatalf("expected every known module in the snapshot, got %v", data)
	}
	if data["contactForm"] != true || data["nasaGallery"] != false {
		t.Fatalf("snapshot flags do not match: %v", data)
	}
}

func TestHubSnapshotPrecedesPublishedEvents(t *testing.T) {
	h := NewHub()
	defer h.Close()

	client := newTestConn(t, h, map[string]bool{"contactForm": true})

	// Publish immediately; the subscriber still has to observe its init
	// snapshot first.
	h.Publish("moduleStatusChanged", map[string]interface{}{"moduleName": "contactForm"})

	first := readEvent(t, client)
	if first.Event != EventInitModuleStatus {
		t.Fatalf("expected the snapshot before any change event, got %q", first.Event)
	}
}

func TestHubDeliversEventsInPublishOrder(t *testing.T) {
	h := NewHub()
	defer h.Close()

	client := newTestConn(t, h, map[string]bool{})
	if ev := readEvent(t, client); ev.Event != EventInitModuleStatus {
		t.Fatalf("expected init frame, got %q", ev.Event)
	}

	for i := 0; i < 5; i++ {
		h.Publish("moduleStatusChanged", map[string]int{"seq": i})
	}
	for i := 0; i < 5; i++ {
		ev := readEvent(t, client)
		data := ev.Data.(map[string]interface{})
		if int(data["seq"].(float64)) != i {
			t.Fatalf("expected event %d in order, got %v", i, data["seq"])
		}
	}
}

func TestHubFansOutToAllSubscribers(t *testing.T) {
	h := NewHub()
	defer h.Close()

	a := newTestConn(t, h, map[string]bool{})
	b := newTestConn(t, h, map[string]bool{})
	readEvent(t, a)
	readEvent(t, b)

	if h.Count() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", h.Count())
	}

	h.Publish("moduleStatusChanged", map[string]bool{"x": true})
	for _, conn := range []*websocket.Conn{a, b} {
		if ev := readEvent(t, conn); ev.Event != "moduleStatusChanged" {
			t.Fatalf("expected change event, got %q", ev.Event)
		}
	}
}

func TestHubDropsDisconnectedSubscriber(t *testing.T) {
	h := NewHub()
	defer h.Close()

	client := newTestConn(t, h, map[string]bool{})
	readEvent(t, client)
	_ = client.Close()

	// The reader notices the closed connection and unregisters it.
	deadline := time.Now().Add(2 * time.Second)
	for h.Count() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected the subscriber to be dropped, still %d registered", h.Count())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
