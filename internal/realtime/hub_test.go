package realtime

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(id string) *Client {
	return &Client{ID: id, send: make(chan WSMessage, 4)}
}

type fakeBroker struct {
	mu       sync.Mutex
	handlers map[string]func(string, []byte)
	cancels  int
}

func (b *fakeBroker) PublishEvent(topic, event string, payload []byte) error {
	b.mu.Lock()
	h := b.handlers[topic]
	b.mu.Unlock()
	if h != nil {
		h(event, payload)
	}
	return nil
}

func (b *fakeBroker) Subscribe(topic string, handler func(string, []byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[string]func(string, []byte))
	}
	b.handlers[topic] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, topic)
		b.cancels++
	}, nil
}

func TestHubPublishLocalOnly(t *testing.T) {
	h := NewHub(nil, nil, nil)
	user := uuid.New()
	a, b := testClient("a"), testClient("b")
	h.Join(a, UserTopic(user))
	h.Join(b, UserTopic(uuid.New()))

	h.Publish(UserTopic(user), EventSignedIn, map[string]string{"user_id": user.String()})

	require.Len(t, a.send, 1)
	assert.Empty(t, b.send)
	msg := <-a.send
	assert.Equal(t, EventSignedIn, msg.Event)
	var body map[string]string
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.Equal(t, user.String(), body["user_id"])
}

func TestHubPublishThroughBrokerDeliversOnce(t *testing.T) {
	broker := &fakeBroker{}
	h := NewHub(nil, broker, broker)
	webinar := uuid.New()
	a := testClient("a")
	h.Join(a, WebinarTopic(webinar))

	h.Publish(WebinarTopic(webinar), EventSlidesProgress, map[string]int{"current_index": 1})

	assert.Len(t, a.send, 1)
}

func TestHubUnregisterCancelsSubscription(t *testing.T) {
	broker := &fakeBroker{}
	h := NewHub(nil, broker, broker)
	user, webinar := uuid.New(), uuid.New()
	a, b := testClient("a"), testClient("b")
	h.Join(a, UserTopic(user))
	h.Join(a, WebinarTopic(webinar))
	h.Join(a, WebinarTopic(webinar))
	h.Join(b, WebinarTopic(webinar))

	assert.Equal(t, 2, h.Listeners(WebinarTopic(webinar)))
	assert.Len(t, a.joined(), 2)

	h.Unregister(a)
	assert.Equal(t, 1, h.Listeners(WebinarTopic(webinar)))
	assert.Equal(t, 0, h.Listeners(UserTopic(user)))
	assert.Equal(t, 1, broker.cancels)

	h.Unregister(b)
	assert.Equal(t, 2, broker.cancels)
}

func TestBrokerDeliverSkipsMalformedEnvelopes(t *testing.T) {
	b := NewBroker(nil, nil)
	var got []string
	handler := func(event string, payload []byte) { got = append(got, event+" "+string(payload)) }

	b.deliver("user:x", "not json", handler)
	b.deliver("user:x", `{"payload":{}}`, handler)
	b.deliver("user:x", `{"event":"slides.progress","payload":{"current_index":2},"sent_at_ms":0}`, handler)

	assert.Equal(t, []string{`slides.progress {"current_index":2}`}, got)
}
