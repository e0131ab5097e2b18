package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Collab/internal/app/orch"
	"github.com/dkeye/Collab/internal/core"
	"github.com/dkeye/Collab/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Auth is the channel access check done on join. An empty Token accepts
// any token.
type Auth struct {
	AppID string
	Token string
}

func (a Auth) Allow(appID, token string) bool {
	if appID != a.AppID {
		return false
	}
	return a.Token == "" || token == a.Token
}

type Options struct {
	Auth       Auth
	ICEServers []string
	ReadLimit  int64
	PingPeriod time.Duration
	SendQueue  int
	// JoinLimit joins per JoinWindow per client token.
	JoinLimit  int
	JoinWindow time.Duration
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	opts     Options
	limiter  *RoomRateLimiter
	validate *validator.Validate
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	if opts.SendQueue <= 0 {
		opts.SendQueue = 32
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	if opts.JoinLimit <= 0 {
		opts.JoinLimit = 5
	}
	if opts.JoinWindow <= 0 {
		opts.JoinWindow = 10 * time.Second
	}
	return &SignalWSController{
		Orch:     o,
		opts:     opts,
		limiter:  NewRoomRateLimiter(opts.JoinLimit, opts.JoinWindow),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame
	// jobs runs subscription changes one at a time and off the read loop,
	// which must stay free to deliver renegotiation answers.
	jobs chan func()

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
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

func (ctl *SignalWSController) BroadcastFrom(sid core.SessionID, v any) {
	for _, mate := range ctl.Orch.Registry.RoomMates(sid) {
		if sc := mate.Session.Signal(); sc != nil {
			_ = ctl.sendJSON(sc, v)
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.opts.ReadLimit > 0 {
		ws.SetReadLimit(ctl.opts.ReadLimit)
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendQueue),
		jobs: make(chan func(), ctl.opts.SendQueue),
	}

	identity := ctl.Orch.Registry.GetOrCreateIdentity(sid)
	meta := domain.NewMember(identity)
	sess := core.NewMemberSession(meta).UpdateSignal(conn)
	ctx, cancel := context.WithCancel(ctx)
	ctl.Orch.Registry.BindSignal(sid, sess, cancel)

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, sid, sess, conn)
	go conn.runJobs(ctx)
}

// enqueue schedules a job; false means the queue is full.
func (c *WsSignalConn) enqueue(job func()) bool {
	select {
	case c.jobs <- job:
		return true
	default:
		return false
	}
}

func (c *WsSignalConn) runJobs(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-c.jobs:
			job()
		}
	}
}

// RunJanitor prunes the join limiter until ctx is done.
func (ctl *SignalWSController) RunJanitor(ctx context.Context) {
	t := time.NewTicker(ctl.opts.JoinWindow)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ctl.limiter.Prune()
		}
	}
}
