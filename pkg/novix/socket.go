package novix

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
	"github.com/novix-ai/novix/pkg/novix/agent"
	"github.com/novix-ai/novix/pkg/novix/converters"
	apperrors "github.com/novix-ai/novix/pkg/novix/errors"
	"github.com/novix-ai/novix/pkg/novix/session"
	"golang.org/x/time/rate"
	ctrllog "sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// handleSocket upgrades the request and serves socket events until the
// client disconnects. Failures are reported as error events and the
// connection stays open.
func (a *App) handleSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || a.originAllowed(origin)
		},
	}

	if !a.trackSocket() {
		respondJSON(w, http.StatusServiceUnavailable, converters.Envelope{
			Status: converters.StatusError,
			Msg:    "Server is shutting down",
			Code:   converters.ErrCodeUnavailable,
		})
		return
	}
	defer a.sockets.Done()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client
		ctrllog.FromContext(r.Context()).V(1).Info("Socket upgrade failed", "error", err.Error())
		return
	}

	limit := rate.Inf
	if a.Settings.Socket.RateLimit > 0 {
		limit = rate.Limit(a.Settings.Socket.RateLimit)
	}
	burst := a.Settings.Socket.Burst
	if burst <= 0 {
		burst = 1
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &socketConn{
		app:     a,
		conn:    conn,
		limiter: rate.NewLimiter(limit, burst),
		log:     ctrllog.FromContext(r.Context()).WithName("socket").WithValues("remote", r.RemoteAddr),
	}
	stopOnShutdown := context.AfterFunc(a.shutdown, c.goingAway)
	defer stopOnShutdown()

	c.serve(ctx)
	cancel()
	c.wg.Wait()
	_ = conn.Close()
}

// socketConn is one client connection. Writes are serialized; interactions
// run concurrently with the read loop and stop when the client goes away.
type socketConn struct {
	app     *App
	conn    *websocket.Conn
	limiter *rate.Limiter
	log     logr.Logger

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

func (c *socketConn) serve(ctx context.Context) {
	c.log.V(1).Info("Client connected")
	defer c.log.V(1).Info("Client disconnected")

	c.conn.SetReadLimit(maxBodyBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.keepalive(ctx)
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Info("Socket read failed", "error", err.Error())
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if !c.limiter.Allow() {
			c.sendError("", "", apperrors.New(apperrors.ErrCodeInvalidInput, "Too many requests, slow down", nil))
			continue
		}

		frame, err := converters.DecodeFrame(raw)
		if err != nil {
			c.sendError("", "", err)
			continue
		}
		c.handle(ctx, frame)
	}
}

func (c *socketConn) keepalive(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *socketConn) handle(ctx context.Context, frame converters.Frame) {
	switch frame.Event {
	case converters.EventCreateSession:
		c.createSession(ctx)

	case converters.EventInteract:
		var p converters.InteractPayload
		if err := frame.Decode(&p); err != nil {
			c.sendError(frame.Event, "", err)
			return
		}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.interact(ctx, p)
		}()

	case converters.EventAddWallet:
		var p converters.AddWalletPayload
		if err := frame.Decode(&p); err != nil {
			c.sendError(frame.Event, "", err)
			return
		}
		c.addWallet(ctx, p)

	case converters.EventDeleteSession:
		var p converters.SessionRef
		if err := frame.Decode(&p); err != nil {
			c.sendError(frame.Event, "", err)
			return
		}
		c.deleteSession(p)

	default:
		c.sendError(frame.Event, "", apperrors.New(apperrors.ErrCodeInvalidInput,
			"Unknown event: "+frame.Event, nil))
	}
}

func (c *socketConn) createSession(ctx context.Context) {
	s, err := c.app.Registry.Create(ctx)
	if err != nil {
		c.sendError(converters.EventCreateSession, "", err)
		return
	}
	c.log.V(1).Info("Session created", "sessionID", s.ID)
	c.send(converters.EventSessionCreated, converters.SessionRef{SessionID: s.ID})
}

func (c *socketConn) interact(ctx context.Context, p converters.InteractPayload) {
	err := c.app.Dispatcher.Stream(ctx, p.SessionID, p.Message, func(f agent.Fragment) error {
		return c.send(converters.EventResponse, converters.NewResponsePayload(p.SessionID, f))
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		c.log.V(1).Info("Interaction failed", "sessionID", p.SessionID, "error", err.Error())
		c.sendError(converters.EventInteract, p.SessionID, err)
		return
	}
	c.send(converters.EventInteractionDone, converters.SessionRef{SessionID: p.SessionID})
}

func (c *socketConn) addWallet(ctx context.Context, p converters.AddWalletPayload) {
	s, err := c.app.Registry.AttachWallet(ctx, p.SessionID, p.PrivateKey)
	if err != nil {
		c.sendError(converters.EventAddWallet, p.SessionID, err)
		return
	}
	c.send(converters.EventWalletAdded, walletAdded(s.ID, s.Binding()))
}

func (c *socketConn) deleteSession(p converters.SessionRef) {
	if !c.app.Registry.Delete(p.SessionID) {
		c.sendError(converters.EventDeleteSession, p.SessionID,
			apperrors.New(apperrors.ErrCodeSessionNotFound, "Session not found: "+p.SessionID, nil))
		return
	}
	c.log.Info("Session deleted", "sessionID", p.SessionID)
	c.send(converters.EventSessionDeleted, converters.MessagePayload{
		SessionID: p.SessionID,
		Message:   "Session deleted",
	})
}

// goingAway tells the client the server is stopping and unblocks the read loop
func (c *socketConn) goingAway() {
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.writeMu.Unlock()
	_ = c.conn.Close()
}

func (c *socketConn) send(event string, payload interface{}) error {
	frame, err := converters.NewFrame(event, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(frame)
}

func (c *socketConn) sendError(event, sessionID string, err error) {
	_ = c.send(converters.EventError, converters.NewErrorPayload(event, sessionID, err))
}

func walletAdded(sessionID string, b *session.Binding) converters.WalletAdded {
	out := converters.WalletAdded{
		SessionID: sessionID,
		Message:   "Wallet added",
	}
	if b != nil && b.Wallet != nil {
		out.Address = b.Wallet.Address()
		out.Network = b.Wallet.Network()
	}
	return out
}
