package realtime

import (
	"encoding/json"
	"testing"
)

func newTestClient(hub *Hub, userID uint) *Client {
	return newClient(hub, nil, userID, "listener")
}

func testHub() *Hub {
	return NewHub(nil, nil)
}

func clientEvent(t *testing.T, event string, data interface{}) clientMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("failed to encode event data: %v", err)
	}
	return clientMessage{Event: event, Data: raw}
}

func receivedEvent(t *testing.T, client *Client) *serverMessage {
	t.Helper()
	select {
	case raw := <-client.send:
		var msg serverMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			t.Fatalf("failed to decode broadcast: %v", err)
		}
		return &msg
	default:
		return nil
	}
}

func TestSessionTopicString(t *testing.T) {
	if got := SessionTopic(42).String(); got != "session/42" {
		t.Errorf("unexpected topic string %q", got)
	}
	if SessionTopic(1) == SessionTopic(2) {
		t.Error("distinct sessions must map to distinct topics")
	}
	if SessionTopic(7) != SessionTopic(7) {
		t.Error("topic keys must be comparable")
	}
}

func TestBroadcastReachesOnlyJoinedClients(t *testing.T) {
	hub := testHub()
	joined := newTestClient(hub, 1)
	bystander := newTestClient(hub, 2)
	otherRoom := newTestClient(hub, 3)

	hub.join(joined, SessionTopic(10))
	hub.join(otherRoom, SessionTopic(11))

	hub.Broadcast(SessionTopic(10), "consensus-update", map[string]interface{}{"consensus": 70.0})

	msg := receivedEvent(t, joined)
	if msg == nil {
		t.Fatal("joined client received nothing")
	}
	if msg.Event != "consensus-update" {
		t.Errorf("unexpected event %q", msg.Event)
	}

	if receivedEvent(t, bystander) != nil {
		t.Error("client outside the room received the broadcast")
	}
	if receivedEvent(t, otherRoom) != nil {
		t.Error("client in a different session room received the broadcast")
	}
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := testHub()
	client := newTestClient(hub, 1)

	hub.join(client, SessionTopic(10))
	hub.leave(client, SessionTopic(10))

	hub.Broadcast(SessionTopic(10), "consensus-update", nil)
	if receivedEvent(t, client) != nil {
		t.Error("client received broadcast after leaving")
	}

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if len(hub.rooms) != 0 {
		t.Errorf("empty room not reclaimed: %d rooms", len(hub.rooms))
	}
}

func TestDisconnectLeavesAllRooms(t *testing.T) {
	hub := testHub()
	client := newTestClient(hub, 1)

	hub.join(client, SessionTopic(10))
	hub.join(client, SessionTopic(11))

	hub.disconnect(client)

	hub.mu.RLock()
	rooms := len(hub.rooms)
	hub.mu.RUnlock()
	if rooms != 0 {
		t.Errorf("expected all rooms reclaimed, got %d", rooms)
	}
	if len(client.topics) != 0 {
		t.Errorf("client still tracks %d topics", len(client.topics))
	}
}

func TestDispatchJoinAndLeave(t *testing.T) {
	hub := testHub()
	client := newTestClient(hub, 1)

	client.dispatch(clientEvent(t, "join-session", map[string]uint{"sessionId": 10}))
	if _, ok := client.topics[SessionTopic(10)]; !ok {
		t.Fatal("join-session did not subscribe the client")
	}

	client.dispatch(clientEvent(t, "leave-session", map[string]uint{"sessionId": 10}))
	if _, ok := client.topics[SessionTopic(10)]; ok {
		t.Fatal("leave-session did not unsubscribe the client")
	}

	// Zero and malformed payloads are ignored
	client.dispatch(clientEvent(t, "join-session", map[string]uint{"sessionId": 0}))
	client.dispatch(clientMessage{Event: "join-session", Data: json.RawMessage(`"nope"`)})
	client.dispatch(clientMessage{Event: "unknown-event"})
	if len(client.topics) != 0 {
		t.Errorf("bad payloads subscribed the client to %d topics", len(client.topics))
	}
}

func TestBroadcastDropsSlowClient(t *testing.T) {
	hub := testHub()
	slow := newTestClient(hub, 1)
	healthy := newTestClient(hub, 2)
	hub.join(slow, SessionTopic(10))
	hub.join(healthy, SessionTopic(10))

	// Fill the send buffer so the next broadcast cannot be queued
	for i := 0; i < cap(slow.send); i++ {
		slow.send <- []byte("{}")
	}

	hub.Broadcast(SessionTopic(10), "consensus-update", nil)

	select {
	case <-slow.done:
	default:
		t.Fatal("expected slow client to be marked for shutdown")
	}
	if _, ok := slow.topics[SessionTopic(10)]; ok {
		t.Error("dropped client still subscribed to the room")
	}

	// The room must keep working after the drop: a further broadcast
	// reaches healthy clients and skips the dropped one.
	hub.Broadcast(SessionTopic(10), "consensus-update", nil)

	if receivedEvent(t, healthy) == nil {
		t.Error("healthy client missed the first broadcast")
	}
	if receivedEvent(t, healthy) == nil {
		t.Error("healthy client missed the broadcast after the drop")
	}
	if len(slow.send) != cap(slow.send) {
		t.Error("dropped client received another message")
	}
}

func TestBroadcastSkipsClosingClient(t *testing.T) {
	hub := testHub()
	client := newTestClient(hub, 1)
	hub.join(client, SessionTopic(10))

	// A read pump teardown closes the client after the room snapshot was
	// taken; the broadcast must neither panic nor queue to it.
	client.close()
	hub.Broadcast(SessionTopic(10), "consensus-update", nil)

	if len(client.send) != 0 {
		t.Error("closing client received a broadcast")
	}
}

func TestSessionEndedPayload(t *testing.T) {
	hub := testHub()
	client := newTestClient(hub, 1)
	hub.join(client, SessionTopic(10))

	hub.BroadcastSessionEnded(10, 67.5, 3, 2)

	msg := receivedEvent(t, client)
	if msg == nil {
		t.Fatal("no terminal event received")
	}
	if msg.Event != "session-ended" {
		t.Errorf("unexpected event %q", msg.Event)
	}
	data, ok := msg.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected data shape %T", msg.Data)
	}
	if data["finalConsensus"] != 67.5 {
		t.Errorf("unexpected final consensus %v", data["finalConsensus"])
	}
	if data["judgeCount"] != float64(3) {
		t.Errorf("unexpected judge count %v", data["judgeCount"])
	}
}
