// Package rcon talks to the game server's remote console.
package rcon

import (
	"context"
	"fmt"
	"time"

	gorcon "github.com/gorcon/rcon"
)

const DefaultTimeout = 2 * time.Second

// Console executes one administrative command and returns its textual output.
type Console interface {
	Execute(ctx context.Context, command string) (string, error)
}

// Client opens a fresh authenticated connection per command. The server
// closes idle connections on its own, so pooling buys nothing here.
type Client struct {
	addr     string
	password string
	timeout  time.Duration
}

func NewClient(addr, password string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{addr: addr, password: password, timeout: timeout}
}

func (c *Client) Addr() string { return c.addr }

func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return "", context.DeadlineExceeded
	}

	conn, err := gorcon.Dial(c.addr, c.password,
		gorcon.SetDialTimeout(timeout),
		gorcon.SetDeadline(timeout),
	)
	if err != nil {
		return "", fmt.Errorf("rcon dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	resp, err := conn.Execute(command)
	if err != nil {
		return "", fmt.Errorf("rcon %q: %w", command, err)
	}
	return resp, nil
}
