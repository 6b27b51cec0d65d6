package changestream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qubitrhythm/disensor/internal/events"
	"github.com/qubitrhythm/disensor/internal/mqtt"
	"github.com/qubitrhythm/disensor/internal/observability/metrics"
)

type recordingSink struct {
	mu      sync.Mutex
	changes []events.Change
}

func (s *recordingSink) Submit(c events.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, c)
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.changes)
}

type resultRecorder struct {
	mu      sync.Mutex
	results map[string]int
}

func (r *resultRecorder) Message(source, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results == nil {
		r.results = map[string]int{}
	}
	r.results[source+"/"+result]++
}

func TestHandleCountsResults(t *testing.T) {
	sink := &recordingSink{}
	rec := &resultRecorder{}

	assert.Equal(t, metrics.ResultApplied, handle("test", sink, rec, []byte(`{"type":"INSERT","record":{"node_id":"a"}}`), events.TableReadings))
	assert.Equal(t, metrics.ResultIgnored, handle("test", sink, rec, []byte(`{"type":"UPDATE","record":{"node_id":"a"}}`), events.TableReadings))
	assert.Equal(t, metrics.ResultMalformed, handle("test", sink, rec, []byte(`garbage`), events.TableReadings))

	assert.Equal(t, 1, sink.len())
	assert.Equal(t, map[string]int{"test/applied": 1, "test/ignored": 1, "test/malformed": 1}, rec.results)
}

// fakeMQTT delivers messages straight to registered handlers.
type fakeMQTT struct {
	mu        sync.Mutex
	connected bool
	handlers  map[string]mqtt.MessageHandler
}

func (f *fakeMQTT) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}
func (f *fakeMQTT) Publish(context.Context, string, []byte) error { return nil }
func (f *fakeMQTT) Subscribe(_ context.Context, topic string, _ byte, h mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = map[string]mqtt.MessageHandler{}
	}
	f.handlers[topic] = h
	return nil
}
func (f *fakeMQTT) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}
func (f *fakeMQTT) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}
func (f *fakeMQTT) deliver(topic, payload string) {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	h(topic, []byte(payload))
}

func TestMQTTSourceUsesTopicAsTable(t *testing.T) {
	client := &fakeMQTT{}
	sink := &recordingSink{}
	src := NewMQTTSource(client, "disensor/changes", sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()

	require.Eventually(t, client.IsConnected, time.Second, 10*time.Millisecond)

	client.deliver("disensor/changes/readings", `{"id":"1","type":"INSERT","record":{"node_id":"a"}}`)
	client.deliver("disensor/changes/nodes", `{"id":"2","type":"INSERT","record":{"id":"b","referred_by":"a"}}`)

	require.Equal(t, 2, sink.len())
	assert.IsType(t, events.ReadingInserted{}, sink.changes[0])
	assert.IsType(t, events.NodeChanged{}, sink.changes[1])

	cancel()
	require.NoError(t, <-done)
	assert.False(t, client.IsConnected())
}

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func TestKafkaSourceCommitsAfterSubmit(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		{Offset: 1, Value: []byte(`{"id":"1","type":"INSERT","table":"readings","record":{"node_id":"a"}}`)},
		{Offset: 2, Value: []byte(`not json`)},
		{Offset: 3, Value: []byte(`{"id":"3","type":"INSERT","table":"nodes","record":{"id":"b"}}`)},
	}}
	sink := &recordingSink{}
	rec := &resultRecorder{}
	src := newKafkaSource(KafkaConfig{Topic: "disensor.changes", PollTimeout: 20 * time.Millisecond}, reader, sink, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.len() == 2 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		reader.mu.Lock()
		defer reader.mu.Unlock()
		return len(reader.committed) == 3
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.True(t, reader.closed)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
	assert.Equal(t, 1, rec.results["kafka/malformed"])
}

func TestNewKafkaSourceValidates(t *testing.T) {
	_, err := NewKafkaSource(KafkaConfig{Topic: "t", GroupID: "g"}, &recordingSink{}, nil)
	require.Error(t, err)

	_, err = NewKafkaSource(KafkaConfig{Brokers: []string{"localhost:9092"}, GroupID: "g"}, &recordingSink{}, nil)
	require.Error(t, err)
}
