package bus

import (
	"context"
	"sync"

	"github.com/newplayman/sbe-data-bridge/internal/metrics"
)

// MemoryBus 进程内总线。订阅者消费过慢时丢弃消息，不阻塞发布方。
type MemoryBus struct {
	mu     sync.RWMutex
	topics map[string]map[*memorySub]struct{}
	buffer int
	closed bool
}

// NewMemoryBus buffer<=0 时使用 DefaultBuffer
func NewMemoryBus(buffer int) *MemoryBus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &MemoryBus{
		topics: make(map[string]map[*memorySub]struct{}),
		buffer: buffer,
	}
}

type memorySub struct {
	bus     *MemoryBus
	channel string
	ch      chan []byte
	once    sync.Once
	stop    func() bool
}

func (s *memorySub) C() <-chan []byte { return s.ch }

func (s *memorySub) Close() error {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
		s.bus.unsubscribe(s)
	})
	return nil
}

// Publish 拷贝 payload 后投递给所有订阅者
func (b *MemoryBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		metrics.RecordPublish(channel, ErrClosed)
		return ErrClosed
	}
	for sub := range b.topics[channel] {
		msg := append([]byte(nil), payload...)
		select {
		case sub.ch <- msg:
		default:
			metrics.RecordDropped(channel)
		}
	}
	metrics.RecordPublish(channel, nil)
	return nil
}

// Subscribe ctx 结束时自动取消订阅
func (b *MemoryBus) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	sub := &memorySub{bus: b, channel: channel, ch: make(chan []byte, b.buffer)}
	if _, ok := b.topics[channel]; !ok {
		b.topics[channel] = make(map[*memorySub]struct{})
	}
	b.topics[channel][sub] = struct{}{}
	sub.stop = context.AfterFunc(ctx, func() { _ = sub.Close() })
	return sub, nil
}

func (b *MemoryBus) unsubscribe(sub *memorySub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[sub.channel]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, sub.channel)
	}
	close(sub.ch)
}

// Close 关闭所有订阅
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, subs := range b.topics {
		for sub := range subs {
			close(sub.ch)
		}
	}
	b.topics = make(map[string]map[*memorySub]struct{})
	return nil
}
