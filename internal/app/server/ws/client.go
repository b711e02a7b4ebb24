package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RuntimeClient owns one live transport session for one contractor. A
// contractor may hold several (multiple devices); each gets its own id.
type RuntimeClient struct {
	ctx          context.Context
	cancel       context.CancelFunc
	ws           *WebSocket
	id           string
	contractorID string
	connectedAt  time.Time
	out          chan []byte
	once         sync.Once
}

func NewClient(
	parent context.Context,
	ws *WebSocket,
	contractorID string,
) *RuntimeClient {
	ctx, cancel := context.WithCancel(parent)
	c := &RuntimeClient{
		ctx:          ctx,
		cancel:       cancel,
		ws:           ws,
		id:           uuid.NewString(),
		contractorID: contractorID,
		connectedAt:  time.Now(),
		out:          make(chan []byte, 256),
	}
	go c.writeLoop()
	return c
}

func (c *RuntimeClient) ID() string             { return c.id }
func (c *RuntimeClient) ContractorID() string   { return c.contractorID }
func (c *RuntimeClient) ConnectedAt() time.Time { return c.connectedAt }

func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	// A closed client must refuse frames deterministically; with the buffer
	// case in the same select, a racing send could still be accepted.
	select {
	case <-c.ctx.Done():
		return errors.New("client closed")
	default:
	}
	select {
	case c.out <- data:
		return nil
	case <-c.ctx.Done():
		return errors.New("client closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is safe to race with Send: the out channel is never closed, senders
// and the write loop both stand down on the cancelled context instead.
func (c *RuntimeClient) Close() {
	c.once.Do(func() {
		c.cancel()
		c.ws.Close()
	})
}

func (c *RuntimeClient) writeLoop() {
	defer c.Close()
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.out:
			_ = c.ws.WriteMessage(data)
		}
	}
}
