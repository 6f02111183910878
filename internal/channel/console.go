package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/stellarlinkco/jarvis/internal/bus"
)

const consoleChannelName = "console"

// ConsoleChannel talks to a local operator over a line-oriented stream.
// Every line counts as addressed to the bot.
type ConsoleChannel struct {
	BaseChannel
	in       io.Reader
	out      io.Writer
	senderID string

	mu   sync.Mutex
	done chan struct{}
}

func NewConsoleChannel(b *bus.MessageBus, in io.Reader, out io.Writer, senderID string) *ConsoleChannel {
	if senderID == "" {
		senderID = consoleChannelName
	}
	return &ConsoleChannel{
		BaseChannel: NewBaseChannel(consoleChannelName, b, nil),
		in:          in,
		out:         out,
		senderID:    senderID,
		done:        make(chan struct{}),
	}
}

// Done is closed when the input stream ends.
func (c *ConsoleChannel) Done() <-chan struct{} { return c.done }

func (c *ConsoleChannel) Start(ctx context.Context) error {
	go func() {
		defer close(c.done)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			msg := bus.InboundMessage{
				Channel:      consoleChannelName,
				SenderID:     c.senderID,
				SenderName:   c.senderID,
				ChatID:       consoleChannelName,
				Content:      line,
				Timestamp:    time.Now(),
				MentionsSelf: true,
			}
			select {
			case c.bus.Inbound <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (c *ConsoleChannel) Stop() error { return nil }

func (c *ConsoleChannel) Send(msg bus.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "jarvis> %s\n", msg.Content)
	return err
}

func (c *ConsoleChannel) SetPresence(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.out, "[presence] %s\n", text)
	return err
}
