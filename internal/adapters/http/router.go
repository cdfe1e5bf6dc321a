package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/akarpov/agora/internal/adapters"
	"github.com/akarpov/agora/internal/app"
	"github.com/akarpov/agora/internal/config"
	"github.com/akarpov/agora/internal/domain"
	"github.com/akarpov/agora/internal/presence"
)

// SetupRouter wires HTTP routes (REST + WS) with the event router.
// - Static files are served from cfg.StaticPath.
// - REST is under /api/*
// - WebSocket upgrades live under /ws/*
func SetupRouter(ctx context.Context, cfg *config.Config, router *app.Router, pr presence.Tracker) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(IdentityMiddleware(cfg.Secret))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	ctl := &adapters.WSController{Router: router, Cfg: cfg}

	// -------------------------
	// WebSocket endpoints
	// -------------------------

	// Forum room: anonymous sessions may connect and observe; posting
	// requires an identity, enforced per event by the router.
	r.GET("/ws/chat", func(c *gin.Context) {
		ctl.Handle(ctx, c, CurrentUser(c), domain.ForumRoom())
	})

	// 1:1 call room, participants only.
	r.GET("/ws/video-call/:call_id", RequireAuth(), func(c *gin.Context) {
		user := CurrentUser(c)
		callID, err := strconv.ParseInt(c.Param("call_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
			return
		}
		call, err := router.Store.CallByID(c.Request.Context(), callID)
		if err != nil {
			abortDomainErr(c, err)
			return
		}
		if user.ID != call.Caller && user.ID != call.Receiver {
			c.JSON(http.StatusForbidden, gin.H{"error": domain.ErrUnauthorized.Error()})
			return
		}
		ctl.Handle(ctx, c, user, domain.CallRoom(callID))
	})

	// Group call room: the participant seat is taken after the upgrade
	// succeeds, so a failed handshake never counts against the bound.
	// Only existence is checked here, for a clean 404.
	r.GET("/ws/group-call/:room_id", RequireAuth(), func(c *gin.Context) {
		token := c.Param("room_id")
		if _, err := router.Store.GroupCallByToken(c.Request.Context(), token); err != nil {
			abortDomainErr(c, err)
			return
		}
		ctl.Handle(ctx, c, CurrentUser(c), domain.GroupCallRoom(token))
	})

	// -------------------------
	// REST API
	// -------------------------
	api := r.Group("/api")

	api.GET("/rooms", RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": router.Orch.Rooms.List()})
	})

	api.GET("/presence", RequireAuth(), func(c *gin.Context) {
		online, err := pr.Online(c.Request.Context())
		if err != nil {
			log.Error().Str("module", "adapters.http").Err(err).Msg("presence lookup")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"online": online})
	})

	calls := api.Group("/calls", RequireAuth())

	calls.POST("/initiate/:user_id", func(c *gin.Context) {
		receiverID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		call, err := router.InitiateCall(c.Request.Context(), CurrentUser(c), domain.UserID(receiverID))
		if err != nil {
			abortDomainErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "call_id": call.ID, "status": call.Status})
	})

	calls.POST("/:id/accept", callTransition(router, func(ctx context.Context, by *domain.User, id int64) (*domain.CallSession, error) {
		return router.AcceptCall(ctx, by, id)
	}))
	calls.POST("/:id/reject", callTransition(router, func(ctx context.Context, by *domain.User, id int64) (*domain.CallSession, error) {
		return router.RejectCall(ctx, by, id)
	}))
	calls.POST("/:id/end", callTransition(router, func(ctx context.Context, by *domain.User, id int64) (*domain.CallSession, error) {
		return router.EndCall(ctx, by, id)
	}))

	calls.GET("/history", func(c *gin.Context) {
		history, err := router.Store.History(c.Request.Context(), CurrentUser(c).ID, 50)
		if err != nil {
			abortDomainErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"call_history": history})
	})

	groups := api.Group("/group-calls", RequireAuth())

	groups.POST("", func(c *gin.Context) {
		var req struct {
			Title           string `json:"title"`
			Description     string `json:"description"`
			MaxParticipants int    `json:"max_participants"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		if req.Title == "" {
			req.Title = "Group Call"
		}
		if req.MaxParticipants <= 0 {
			req.MaxParticipants = cfg.MaxParticipants
		}
		gc, err := router.Store.CreateGroupCall(c.Request.Context(), CurrentUser(c).ID, req.Title, req.Description, req.MaxParticipants)
		if err != nil {
			abortDomainErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":       true,
			"room_id":       gc.RoomToken,
			"group_call_id": gc.ID,
			"title":         gc.Title,
		})
	})

	groups.POST("/:room_id/join", func(c *gin.Context) {
		gc, err := router.Store.JoinGroupCall(c.Request.Context(), c.Param("room_id"), CurrentUser(c).ID)
		if err != nil {
			abortDomainErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":       true,
			"room_id":       gc.RoomToken,
			"group_call_id": gc.ID,
			"title":         gc.Title,
		})
	})

	return r
}

func callTransition(router *app.Router, op func(context.Context, *domain.User, int64) (*domain.CallSession, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid call id"})
			return
		}
		call, err := op(c.Request.Context(), CurrentUser(c), id)
		if err != nil {
			abortDomainErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "call_id": call.ID, "status": call.Status})
	}
}

func abortDomainErr(c *gin.Context, err error) {
	var perr *domain.PersistenceError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrGroupCallFull):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &perr):
		log.Error().Str("module", "adapters.http").Err(err).Msg("persistence failure")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	default:
		log.Error().Str("module", "adapters.http").Err(err).Msg("unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
