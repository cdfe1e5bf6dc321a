package adapters

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/akarpov/agora/internal/app"
	"github.com/akarpov/agora/internal/config"
	"github.com/akarpov/agora/internal/core"
	"github.com/akarpov/agora/internal/domain"
)

var upgrader = websocket.Upgrader{
	// TODO: restrict origins once the frontend host is pinned down.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSController upgrades HTTP requests into sessions bound to one origin
// room and runs their read loop. A session's frames are processed one at
// a time in arrival order; different sessions run fully in parallel.
type WSController struct {
	Router *app.Router
	Cfg    *config.Config
}

func (ctl *WSController) Handle(ctx context.Context, c *gin.Context, user *domain.User, origin domain.RoomID) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Str("module", "adapters.ws").Err(err).Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)

	sid := core.SessionID(uuid.NewString())
	conn := NewWSConnection(ws, ctl.Cfg.SendBuffer, ctl.Cfg.WriteTimeout)
	sess := core.NewMemberSession(sid, user, conn)

	connCtx, cancel := context.WithCancel(ctx)
	ctl.Router.Orch.Connect(sess, cancel)
	conn.StartWriteLoop(connCtx)

	// Joins happen only after a successful upgrade, so a failed handshake
	// never occupies a group-call seat. A rejected join queues an error
	// frame for the client before the socket is torn down.
	if err := ctl.Router.OnConnect(connCtx, sess, origin); err != nil {
		log.Info().Str("module", "adapters.ws").Str("sid", string(sid)).Err(err).Msg("ws session rejected")
		ctl.Router.Orch.OnDisconnect(sid)
		cancel()
		return
	}

	log.Info().Str("module", "adapters.ws").Str("sid", string(sid)).Str("room", origin.String()).Msg("ws session opened")
	go ctl.readPump(connCtx, cancel, sess, origin, conn)
}

func (ctl *WSController) readPump(ctx context.Context, cancel context.CancelFunc, sess core.MemberSession, origin domain.RoomID, conn *WSConnection) {
	defer func() {
		// Teardown order matters: the departure is announced while the
		// other members are still reachable, then membership is removed.
		ctl.Router.OnClose(ctx, sess, origin)
		conn.Close()
		cancel()
		log.Info().Str("module", "adapters.ws").Str("sid", string(sess.ID())).Msg("ws session closed")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := conn.conn.ReadMessage()
			if err != nil {
				return
			}
			ctl.Router.OnFrame(ctx, sess, origin, core.Frame(data))
		}
	}
}
