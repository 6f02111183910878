// Package bus decouples chat channels from the gateway that handles their
// messages: channels push inbound messages, the gateway pushes replies, and
// the dispatcher routes each reply to the channel it names.
package bus

import (
	"context"
	"log"
	"sync"
)

type OutboundHandler func(OutboundMessage)

type MessageBus struct {
	Inbound  chan InboundMessage
	Outbound chan OutboundMessage

	mu          sync.RWMutex
	subscribers map[string]OutboundHandler
}

func NewMessageBus(bufSize int) *MessageBus {
	if bufSize < 0 {
		bufSize = 0
	}
	return &MessageBus{
		Inbound:     make(chan InboundMessage, bufSize),
		Outbound:    make(chan OutboundMessage, bufSize),
		subscribers: make(map[string]OutboundHandler),
	}
}

// SubscribeOutbound registers the sender for one channel name, replacing any
// earlier registration.
func (b *MessageBus) SubscribeOutbound(channel string, fn OutboundHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[channel] = fn
}

// DispatchOutbound delivers outbound messages until ctx is done.
func (b *MessageBus) DispatchOutbound(ctx context.Context) {
	for {
		select {
		case msg := <-b.Outbound:
			b.deliver(msg)
		case <-ctx.Done():
			return
		}
	}
}

// FlushOutbound delivers whatever is queued right now and returns without
// waiting for more. Used on shutdown so final replies are not lost.
func (b *MessageBus) FlushOutbound() {
	for {
		select {
		case msg := <-b.Outbound:
			b.deliver(msg)
		default:
			return
		}
	}
}

func (b *MessageBus) deliver(msg OutboundMessage) {
	b.mu.RLock()
	fn, ok := b.subscribers[msg.Channel]
	b.mu.RUnlock()
	if !ok {
		log.Printf("[bus] no subscriber for channel %q, dropping message", msg.Channel)
		return
	}
	fn(msg)
}
