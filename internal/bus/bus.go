// Package bus 实现房间事件的多生产者/多消费者广播
//
// 发布方是平台连接的读循环，永远不会被慢订阅者阻塞：订阅者队列满时
// 丢弃最旧的未读事件。
package bus

import (
	"sync"

	"github.com/qiminjie89/danmuji/internal/event"
	"github.com/qiminjie89/danmuji/pkg/metrics"
)

// DefaultBufferSize 默认订阅者队列长度
const DefaultBufferSize = 256

// Bus 事件广播总线
type Bus struct {
	bufferSize int

	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

// New 创建总线
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		bufferSize: bufferSize,
		subs:       make(map[*Subscription]struct{}),
	}
}

// Subscribe 注册订阅者，只能收到注册之后发布的事件
func (b *Bus) Subscribe(name string) *Subscription {
	sub := &Subscription{
		name: name,
		bus:  b,
		ch:   make(chan event.Event, b.bufferSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		sub.closed = true
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	metrics.BusSubscribers.Inc()
	return sub
}

// Publish 广播事件，返回投递到的订阅者数量
func (b *Bus) Publish(ev event.Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0
	}

	metrics.BusEventsPublished.WithLabelValues(ev.Kind.String()).Inc()

	delivered := 0
	for sub := range b.subs {
		if sub.deliver(ev.Clone()) {
			delivered++
		}
	}
	return delivered
}

// Len 返回当前订阅者数量
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close 关闭总线及所有订阅
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.mu.Unlock()

	for sub := range subs {
		sub.shutdown()
		metrics.BusSubscribers.Dec()
	}
}

func (b *Bus) remove(sub *Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return false
	}
	delete(b.subs, sub)
	metrics.BusSubscribers.Dec()
	return true
}

// Subscription 一个订阅者
type Subscription struct {
	name string
	bus  *Bus
	ch   chan event.Event

	mu      sync.Mutex
	closed  bool
	dropped uint64
}

// Name 订阅者名称
func (s *Subscription) Name() string {
	return s.name
}

// C 返回事件通道，订阅关闭后通道关闭
func (s *Subscription) C() <-chan event.Event {
	return s.ch
}

// Dropped 因落后被丢弃的事件数
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close 取消订阅
func (s *Subscription) Close() {
	if s.bus.remove(s) {
		s.shutdown()
	}
}

func (s *Subscription) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// deliver 非阻塞投递，队列满时丢弃最旧事件
func (s *Subscription) deliver(ev event.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	for {
		select {
		case s.ch <- ev:
			return true
		default:
		}

		select {
		case <-s.ch:
			s.dropped++
			metrics.BusEventsDropped.WithLabelValues(s.name).Inc()
		default:
		}
	}
}
