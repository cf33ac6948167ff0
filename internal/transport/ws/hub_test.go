package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/listergram/backend/internal/domain/model"
	authsvc "github.com/listergram/backend/internal/services/auth"
)

func startHub(t *testing.T, hub *Hub) (context.CancelFunc, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	return cancel, done
}

func TestHubDeliversToEveryConnectionOfUser(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(zaptest.NewLogger(t), nil)
	stop, done := startHub(t, hub)

	user, other := uuid.New(), uuid.New()
	first := newClient(hub, nil, user)
	second := newClient(hub, nil, user)
	stranger := newClient(hub, nil, other)
	for _, c := range []*Client{first, second, stranger} {
		if !hub.add(c) {
			t.Fatalf("hub refused client")
		}
	}

	hub.SendToUsers(Event{Type: EventTypeMatchCreated}, user)
	for i, c := range []*Client{first, second} {
		select {
		case data := <-c.send:
			var evt Event
			if err := json.Unmarshal(data, &evt); err != nil {
				t.Fatalf("decode event: %v", err)
			}
			if evt.Type != EventTypeMatchCreated {
				t.Fatalf("unexpected event type: %q", evt.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("connection %d got nothing", i)
		}
	}
	select {
	case <-stranger.send:
		t.Fatalf("event leaked to another user")
	default:
	}

	hub.remove(second)
	if _, ok := <-second.send; ok {
		t.Fatalf("removed client must have its send channel closed")
	}

	stop()
	<-done

	if _, ok := <-first.send; ok {
		t.Fatalf("stopped hub must close remaining clients")
	}
	if hub.add(newClient(hub, nil, user)) {
		t.Fatalf("stopped hub must refuse clients")
	}
	hub.SendToUsers(Event{Type: EventTypePong}, user)
}

func TestServeWSStreamsEventsToParticipants(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	tokens := authsvc.NewJWTManager("secret", "listergram-auth", time.Minute)
	hub := NewHub(zap.NewNop(), nil)
	stop, done := startHub(t, hub)
	defer func() {
		stop()
		<-done
	}()

	srv := httptest.NewServer(ServeWS(hub, tokens, nil))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, wsURL, nil)
	if err == nil {
		t.Fatalf("expected dial without token to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %v", resp)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	userID := uuid.New()
	token, _, err := tokens.GenerateAccessToken(userID)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	conn, _, err := websocket.Dial(ctx, wsURL+"?token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// A pong proves the read pump is running, so the client is registered.
	if err := wsjson.Write(ctx, conn, Event{Type: EventTypePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if evt := readEvent(ctx, t, conn); evt.Type != EventTypePong {
		t.Fatalf("unexpected reply: %q", evt.Type)
	}

	notifier := NewHubNotifier(hub)
	m := model.Match{ID: uuid.New(), User1ID: userID, User2ID: uuid.New()}
	notifier.MessageCreated(ctx, m, model.Message{ID: uuid.New(), MatchID: m.ID, SenderID: m.User2ID, Text: "hi"})
	notifier.MessagesRead(ctx, m, userID, time.Now())
	notifier.MatchEnded(ctx, m)

	evt := readEvent(ctx, t, conn)
	if evt.Type != EventTypeMessageCreated || evt.MatchID == nil || *evt.MatchID != m.ID {
		t.Fatalf("unexpected event: %+v", evt)
	}
	var msg model.Message
	if err := json.Unmarshal(evt.Payload, &msg); err != nil {
		t.Fatalf("decode message payload: %v", err)
	}
	if msg.Text != "hi" {
		t.Fatalf("unexpected message text: %q", msg.Text)
	}

	// The reader's own read receipt goes to the peer only.
	if evt := readEvent(ctx, t, conn); evt.Type != EventTypeMatchEnded {
		t.Fatalf("unexpected event: %q", evt.Type)
	}
}

func readEvent(ctx context.Context, t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	var evt Event
	if err := wsjson.Read(ctx, conn, &evt); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return evt
}
