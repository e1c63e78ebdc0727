package novix

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/novix-ai/novix/pkg/novix/converters"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
)

// chatClient speaks the socket protocol of a running server. Calls are not
// safe for concurrent use; one request is in flight at a time.
type chatClient struct {
	conn      *websocket.Conn
	frames    chan converters.Frame
	done      chan struct{}
	closing   chan struct{}
	readErr   error
	closeOnce sync.Once

	SessionID string
}

// socketURL turns the server base URL into the socket endpoint
func socketURL(server string) (string, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", server, err)
	}
	switch u.Scheme {
	case "http", "ws", "":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	u.Path += "/ws"
	return u.String(), nil
}

func dialChat(ctx context.Context, server string) (*chatClient, error) {
	endpoint, err := socketURL(server)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c := &chatClient{
		conn:    conn,
		frames:  make(chan converters.Frame, 16),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *chatClient) readLoop() {
	defer close(c.done)
	for {
		var frame converters.Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			c.readErr = err
			return
		}
		select {
		case c.frames <- frame:
		case <-c.closing:
			return
		}
	}
}

func (c *chatClient) send(event string, payload interface{}) error {
	frame, err := converters.NewFrame(event, payload)
	if err != nil {
		return err
	}
	return c.conn.WriteJSON(frame)
}

// next returns the next frame. Error events become application errors.
func (c *chatClient) next(ctx context.Context) (converters.Frame, error) {
	select {
	case <-ctx.Done():
		return converters.Frame{}, ctx.Err()
	case <-c.done:
		return converters.Frame{}, fmt.Errorf("connection closed: %w", c.readErr)
	case frame := <-c.frames:
		if frame.Event != converters.EventError {
			return frame, nil
		}
		var p converters.ErrorPayload
		if err := frame.Decode(&p); err != nil {
			return converters.Frame{}, err
		}
		return converters.Frame{}, apperrors.New(p.Code, p.Message, nil)
	}
}

// await skips frames until event arrives and decodes its payload into v
func (c *chatClient) await(ctx context.Context, event string, v interface{}) error {
	for {
		frame, err := c.next(ctx)
		if err != nil {
			return err
		}
		if frame.Event == event {
			return frame.Decode(v)
		}
	}
}

// CreateSession opens a new session and remembers its id
func (c *chatClient) CreateSession(ctx context.Context) (string, error) {
	if err := c.send(converters.EventCreateSession, nil); err != nil {
		return "", err
	}
	var ref converters.SessionRef
	if err := c.await(ctx, converters.EventSessionCreated, &ref); err != nil {
		return "", err
	}
	c.SessionID = ref.SessionID
	return ref.SessionID, nil
}

// Interact sends message and calls onFragment for every response until the
// interaction completes
func (c *chatClient) Interact(ctx context.Context, message string, onFragment func(converters.ResponsePayload)) error {
	if err := c.send(converters.EventInteract, converters.InteractPayload{
		SessionID: c.SessionID,
		Message:   message,
	}); err != nil {
		return err
	}

	for {
		frame, err := c.next(ctx)
		if err != nil {
			return err
		}
		switch frame.Event {
		case converters.EventResponse:
			var p converters.ResponsePayload
			if err := frame.Decode(&p); err != nil {
				return err
			}
			onFragment(p)
		case converters.EventInteractionDone:
			return nil
		}
	}
}

// AddWallet attaches a wallet to the current session
func (c *chatClient) AddWallet(ctx context.Context, privateKey string) (converters.WalletAdded, error) {
	var added converters.WalletAdded
	if err := c.send(converters.EventAddWallet, converters.AddWalletPayload{
		SessionID:  c.SessionID,
		PrivateKey: privateKey,
	}); err != nil {
		return added, err
	}
	err := c.await(ctx, converters.EventWalletAdded, &added)
	return added, err
}

// DeleteSession removes the current session
func (c *chatClient) DeleteSession(ctx context.Context) error {
	if err := c.send(converters.EventDeleteSession, converters.SessionRef{SessionID: c.SessionID}); err != nil {
		return err
	}
	var msg converters.MessagePayload
	if err := c.await(ctx, converters.EventSessionDeleted, &msg); err != nil {
		return err
	}
	c.SessionID = ""
	return nil
}

func (c *chatClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		err = c.conn.Close()
	})
	return err
}
