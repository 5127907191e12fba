package sink

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	segkafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/qiminjie89/danmuji/internal/bus"
	"github.com/qiminjie89/danmuji/internal/event"
	"github.com/qiminjie89/danmuji/pkg/kafka"
	"github.com/qiminjie89/danmuji/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Replace(zap.NewNop())
	os.Exit(m.Run())
}

type memoryWriter struct {
	mu   sync.Mutex
	msgs []segkafka.Message
	err  error
}

func (w *memoryWriter) WriteMessages(_ context.Context, msgs ...segkafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memoryWriter) Close() error { return nil }

func (w *memoryWriter) all() []segkafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]segkafka.Message(nil), w.msgs...)
}

type memoryPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (p *memoryPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func (p *memoryPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subjects)
}

func runSink(t *testing.T, b *bus.Bus, run func(context.Context) error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	require.Eventually(t, func() bool { return b.Len() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestKafkaEvents(t *testing.T) {
	b := bus.New(8)
	w := &memoryWriter{}
	s := NewKafkaEvents(kafka.NewProducerWithWriter("danmuji.events", w), b)
	runSink(t, b, s.Run)

	b.Publish(event.NewGift(21452505, event.Gift{UID: 1, Uname: "u", GiftName: "小花花", Count: 3}))

	require.Eventually(t, func() bool { return len(w.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
	msg := w.all()[0]
	assert.Equal(t, "21452505", string(msg.Key))

	var env struct {
		Type   string     `msgpack:"type"`
		RoomID int64      `msgpack:"room_id"`
		Data   event.Gift `msgpack:"data"`
	}
	require.NoError(t, msgpack.Unmarshal(msg.Value, &env))
	assert.Equal(t, "gift", env.Type)
	assert.Equal(t, int64(21452505), env.RoomID)
	assert.Equal(t, "小花花", env.Data.GiftName)
	assert.Equal(t, int64(3), env.Data.Count)
}

func TestKafkaEventsKeepsRunningAfterFailure(t *testing.T) {
	b := bus.New(8)
	w := &memoryWriter{err: errors.New("broker down")}
	s := NewKafkaEvents(kafka.NewProducerWithWriter("danmuji.events", w), b)
	runSink(t, b, s.Run)

	b.Publish(event.NewPopularity(1, 1))
	time.Sleep(20 * time.Millisecond)

	w.mu.Lock()
	w.err = nil
	w.mu.Unlock()
	b.Publish(event.NewPopularity(1, 2))

	require.Eventually(t, func() bool { return len(w.all()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestKafkaReplies(t *testing.T) {
	w := &memoryWriter{}
	s := NewKafkaReplies(kafka.NewProducerWithWriter("danmuji.replies", w))
	s.now = func() time.Time { return time.UnixMilli(1700000000123) }

	require.NoError(t, s.Send(context.Background(), 5050, "感谢投喂"))
	require.NoError(t, s.Send(context.Background(), 5050, "第二条"))

	msgs := w.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, "5050", string(msgs[0].Key))

	var first, second ReplyMessage
	require.NoError(t, json.Unmarshal(msgs[0].Value, &first))
	require.NoError(t, json.Unmarshal(msgs[1].Value, &second))
	assert.Equal(t, int64(5050), first.RoomID)
	assert.Equal(t, "感谢投喂", first.Text)
	assert.Equal(t, int64(1700000000123), first.Timestamp)
	assert.NotEmpty(t, first.MsgID)
	assert.NotEqual(t, first.MsgID, second.MsgID)

	w.err = errors.New("broker down")
	assert.Error(t, s.Send(context.Background(), 1, "x"))
}

func TestNATSEvents(t *testing.T) {
	b := bus.New(8)
	pub := &memoryPublisher{}
	s := NewNATSEvents(pub, "danmuji.room", b)
	runSink(t, b, s.Run)

	b.Publish(event.NewComment(100, event.Comment{Uname: "观众", Text: "hi"}))
	b.Publish(event.NewPopularity(200, 9))

	require.Eventually(t, func() bool { return pub.count() == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"danmuji.room.100.comment", "danmuji.room.200.popularity"}, pub.subjects)

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(pub.payloads[0], &env))
	assert.Equal(t, "comment", env["type"])
	assert.Equal(t, "hi", env["data"].(map[string]interface{})["text"])
}

func TestLogReplies(t *testing.T) {
	assert.NoError(t, LogReplies{}.Send(context.Background(), 1, "hello"))
}
