package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// SessionUserKey is the cookie session key holding the logged-in identity.
const SessionUserKey = "user"

type Options struct {
	ReadLimit     int64
	PingPeriod    time.Duration
	SendBuffer    int
	AllowAnonAuth bool
	AdminPassword string
	RateLimit     int
	RateInterval  time.Duration
}

func (o *Options) setDefaults() {
	if o.ReadLimit <= 0 {
		o.ReadLimit = 32768
	}
	if o.PingPeriod <= 0 {
		o.PingPeriod = 54 * time.Second
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 64
	}
}

type SignalWSController struct {
	Orch    *app.Orchestrator
	Auth    core.Authenticator
	Limiter *RoomRateLimiter
	opts    Options
}

func NewSignalWSController(orch *app.Orchestrator, auth core.Authenticator, opts Options) *SignalWSController {
	opts.setDefaults()
	ctl := &SignalWSController{Orch: orch, Auth: auth, opts: opts}
	if opts.RateLimit > 0 && opts.RateInterval > 0 {
		ctl.Limiter = NewRoomRateLimiter(opts.RateLimit, opts.RateInterval)
	}
	return ctl
}

// WsSignalConn implements core.SignalConnection over a websocket.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// connState is per-connection data owned by its read loop.
type connState struct {
	sid         core.SessionID
	conn        *WsSignalConn
	sessionUser domain.Identity
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(uuid.NewString())
	var sessionUser domain.Identity
	if v, ok := sessions.Default(c).Get(SessionUserKey).(string); ok {
		sessionUser = domain.Identity(v)
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("session_user", string(sessionUser)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.opts.ReadLimit)

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Connect(sid, conn, cancel)

	st := &connState{sid: sid, conn: conn, sessionUser: sessionUser}
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, st)
}
