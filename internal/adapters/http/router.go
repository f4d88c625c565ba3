package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/hearth/internal/adapters/signal"
	"github.com/dkeye/hearth/internal/app/orch"
	"github.com/dkeye/hearth/internal/config"
	"github.com/dkeye/hearth/internal/domain"
)

const (
	sessionName = "HearthSessions"
	tokenKey    = "token"
	userKey     = "user"
)

func SetupRouter(cfg *config.Config, o *orch.Orchestrator, ctl *signal.SignalWSController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	secret := cfg.Secret
	if secret == "" {
		secret = uuid.NewString()
	}
	store := cookie.NewStore([]byte(secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &handlers{orch: o}
	api := r.Group("/api")
	api.GET("/health", h.health)
	api.POST("/session", h.login)
	api.DELETE("/session", h.logout)

	authed := api.Group("", AuthMiddleware(o))
	authed.GET("/ws", func(c *gin.Context) {
		ctl.HandleSignal(c, currentUser(c))
	})
	authed.PATCH("/servers/:id", h.renameServer)
	authed.POST("/servers/:id/channels", h.createChannel)
	authed.PATCH("/channels/:id", h.updateChannel)
	authed.DELETE("/channels/:id", h.deleteChannel)
	authed.GET("/channels/:id/search", h.searchChannel)
	authed.POST("/dms", h.openDM)
	authed.GET("/voice/:channelId", h.voiceRoster)

	return r
}

// AuthMiddleware resolves the bearer token from the Authorization header,
// the token query parameter (browsers cannot set headers on WebSocket
// upgrades) or the session cookie.
func AuthMiddleware(o *orch.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := requestToken(c)
		if token == "" {
			abort(c, http.StatusUnauthorized, "missing token")
			return
		}
		user, err := o.Store.UserForToken(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				log.Error().Err(err).Str("module", "adapters.http").Msg("token lookup failed")
				abort(c, http.StatusInternalServerError, "internal error")
				return
			}
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func requestToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if t := c.Query("token"); t != "" {
		return t
	}
	if t, ok := sessions.Default(c).Get(tokenKey).(string); ok {
		return t
	}
	return ""
}

func currentUser(c *gin.Context) domain.User {
	u, _ := c.Get(userKey)
	user, _ := u.(domain.User)
	return user
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

type handlers struct {
	orch *orch.Orchestrator
}

func (h *handlers) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		abort(c, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrForbidden):
		abort(c, http.StatusForbidden, "forbidden")
	case errors.Is(err, orch.ErrInvalidName), errors.Is(err, orch.ErrSelfDM):
		abort(c, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
		abort(c, http.StatusInternalServerError, "internal error")
	}
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.orch.Gateway.SessionCount()})
}

type loginRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.orch.Store.UserForToken(c.Request.Context(), req.Token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			abort(c, http.StatusUnauthorized, "invalid token")
			return
		}
		h.fail(c, err)
		return
	}
	sess := sessions.Default(c)
	sess.Set(tokenKey, req.Token)
	if err := sess.Save(); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *handlers) logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	_ = sess.Save()
	c.Status(http.StatusNoContent)
}

type renameServerRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

func (h *handlers) renameServer(c *gin.Context) {
	var req renameServerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	srv, err := h.orch.RenameServer(c.Request.Context(), currentUser(c).ID, domain.ServerID(c.Param("id")), req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, srv)
}

type createChannelRequest struct {
	Name       string `json:"name" binding:"required,max=100"`
	Kind       string `json:"kind" binding:"required,oneof=text voice"`
	Persistent bool   `json:"persistent"`
	Locked     bool   `json:"locked"`
}

func (h *handlers) createChannel(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	ch, err := h.orch.CreateChannel(c.Request.Context(), currentUser(c).ID, domain.ServerID(c.Param("id")), orch.NewChannel{
		Name:       req.Name,
		Kind:       domain.ChannelKind(req.Kind),
		Persistent: req.Persistent,
		Locked:     req.Locked,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, ch)
}

type updateChannelRequest struct {
	Name   *string `json:"name" binding:"omitempty,max=100"`
	Locked *bool   `json:"locked"`
}

func (h *handlers) updateChannel(c *gin.Context) {
	var req updateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	ch, err := h.orch.UpdateChannel(c.Request.Context(), currentUser(c).ID, domain.ChannelID(c.Param("id")), orch.ChannelPatch{
		Name:   req.Name,
		Locked: req.Locked,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ch)
}

func (h *handlers) deleteChannel(c *gin.Context) {
	if err := h.orch.DeleteChannel(c.Request.Context(), currentUser(c).ID, domain.ChannelID(c.Param("id"))); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) searchChannel(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	msgs, err := h.orch.SearchChannel(c.Request.Context(), currentUser(c).ID, domain.ChannelID(c.Param("id")), c.Query("q"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type openDMRequest struct {
	UserID string `json:"userId" binding:"required"`
}

func (h *handlers) openDM(c *gin.Context) {
	var req openDMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	dm, err := h.orch.OpenDM(c.Request.Context(), currentUser(c).ID, domain.UserID(req.UserID))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dm)
}

func (h *handlers) voiceRoster(c *gin.Context) {
	ch := domain.ChannelID(c.Param("channelId"))
	c.JSON(http.StatusOK, gin.H{"channelId": ch, "participants": h.orch.VoiceRoster(ch)})
}
