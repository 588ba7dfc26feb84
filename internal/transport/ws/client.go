package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vovakirdan/cloudsync/internal/core"
	"github.com/vovakirdan/cloudsync/internal/observer"
	"github.com/vovakirdan/cloudsync/internal/protocol"
)

// ErrClosed is returned when writing to a client that has disconnected.
var ErrClosed = errors.New("ws: connection closed")

// Client is an observer connection. Decoded messages go to the inbox; the
// owner applies them on its own tick.
type Client struct {
	conn  *websocket.Conn
	codec *protocol.Codec
	inbox *observer.Inbox

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	err       error
}

// Dial connects to a cloudsync server and starts reading into inbox.
func Dial(ctx context.Context, url string, inbox *observer.Inbox) (*Client, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("ws: dial %s: %w", url, err)
	}
	codec, err := protocol.NewCodec(0)
	if err != nil {
		conn.Close()
		return nil, err
	}

	c := &Client{
		conn:  conn,
		codec: codec,
		inbox: inbox,
		done:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	var readErr error
	defer func() {
		c.finish(readErr)
		c.codec.Close()
	}()
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			readErr = err
			return
		}
		msg, err := c.codec.Decode(protocol.Frame{Binary: kind == websocket.BinaryMessage, Data: data})
		if err != nil {
			// A newer server may send types this build does not know.
			continue
		}
		if !c.inbox.Push(msg) {
			readErr = ErrClosed
			return
		}
	}
}

func (c *Client) finish(err error) {
	c.closeOnce.Do(func() {
		c.err = err
		close(c.done)
		c.conn.Close()
	})
}

// SendAnchor asks the host to move the anchor.
func (c *Client) SendAnchor(pos core.Vec2) error {
	data, err := protocol.Marshal(protocol.SetAnchor{Pos: protocol.VecFrom(pos)})
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(defaultWriteWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("ws: send anchor: %w", err)
	}
	return nil
}

// Done is closed once the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the read loop stopped. Valid after Done is closed.
func (c *Client) Err() error {
	<-c.done
	return c.err
}

// Close says goodbye and tears the connection down. Closing the inbox
// unblocks a reader waiting on a full inbox.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	c.inbox.Close()
	c.finish(ErrClosed)
	return nil
}
