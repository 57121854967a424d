package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/gorilla/websocket"
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"

	"github.com/slok/rpa/internal/log"
)

var errConnClosed = errors.New("cdp connection closed")

// conn is a CDP websocket connection to a single page target.
// It implements cdp.Executor so the typed cdproto commands can be used on it.
type conn struct {
	ws     *websocket.Conn
	logger log.Logger
	msgID  int64

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan *cdproto.Message
	readErr error

	done      chan struct{}
	closeOnce sync.Once
}

func dial(ctx context.Context, wsURL string, handshakeTimeout time.Duration, logger log.Logger) (*conn, error) {
	d := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	ws, _, err := d.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("could not dial %s: %w", wsURL, err)
	}

	c := &conn{
		ws:      ws,
		logger:  logger,
		pending: map[int64]chan *cdproto.Message{},
		done:    make(chan struct{}),
	}
	go c.readLoop()

	return c, nil
}

// Execute sends a command and waits for its response, events are ignored.
func (c *conn) Execute(ctx context.Context, method string, params easyjson.Marshaler, res easyjson.Unmarshaler) error {
	id := atomic.AddInt64(&c.msgID, 1)

	msg := &cdproto.Message{
		ID:     id,
		Method: cdproto.MethodType(method),
	}
	if params != nil {
		buf, err := easyjson.Marshal(params)
		if err != nil {
			return fmt.Errorf("could not encode %s params: %w", method, err)
		}
		msg.Params = buf
	}

	respCh := make(chan *cdproto.Message, 1)
	if err := c.register(id, respCh); err != nil {
		return err
	}
	defer c.unregister(id)

	if err := c.write(msg); err != nil {
		return fmt.Errorf("could not send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return c.closedErr()
	case resp := <-respCh:
		if resp.Error != nil {
			return fmt.Errorf("%s failed: %w", method, resp.Error)
		}
		if res != nil && len(resp.Result) > 0 {
			if err := easyjson.Unmarshal(resp.Result, res); err != nil {
				return fmt.Errorf("could not decode %s result: %w", method, err)
			}
		}
		return nil
	}
}

// Close closes the websocket, pending commands are released with an error.
func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()

		err = c.ws.Close()
		c.fail(errConnClosed)
	})

	return err
}

func (c *conn) write(msg *cdproto.Message) error {
	w := jwriter.Writer{}
	msg.MarshalEasyJSON(&w)
	buf, err := w.BuildBytes()
	if err != nil {
		return err
	}

	c.logger.Debugf("-> %s", buf)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.ws.WriteMessage(websocket.TextMessage, buf)
}

func (c *conn) readLoop() {
	for {
		_, buf, err := c.ws.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}

		c.logger.Debugf("<- %s", buf)

		var msg cdproto.Message
		l := jlexer.Lexer{Data: buf}
		msg.UnmarshalEasyJSON(&l)
		if err := l.Error(); err != nil {
			c.logger.Warningf("Ignoring malformed CDP message: %s", err)
			continue
		}

		// Events have no ID.
		if msg.ID == 0 {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		c.mu.Unlock()
		if !ok {
			continue
		}

		ch <- &msg
	}
}

func (c *conn) register(id int64, ch chan *cdproto.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return c.readErr
	default:
	}

	c.pending[id] = ch
	return nil
}

func (c *conn) unregister(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id)
}

// fail stops the connection with the first error that happened.
func (c *conn) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		err = errConnClosed
	}
	c.readErr = err
	close(c.done)
}

func (c *conn) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}
