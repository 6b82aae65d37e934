package relay

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"SharedBoard/internal/state"
	"SharedBoard/internal/store"
)

type Handler struct {
	relay          *Relay
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

func NewHandler(r *Relay, allowedOrigins []string) *Handler {
	h := &Handler{relay: r, allowedOrigins: allowedOrigins}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.originAllowed,
	}
	return h
}

func (h *Handler) allowAll() bool {
	return len(h.allowedOrigins) == 0 || slices.Contains(h.allowedOrigins, "*")
}

// originAllowed admits non-browser clients, which send no Origin header.
func (h *Handler) originAllowed(req *http.Request) bool {
	origin := req.Header.Get("Origin")
	return origin == "" || h.allowAll() || slices.Contains(h.allowedOrigins, origin)
}

// NewRouter builds the relay's HTTP surface.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
		MaxAge: 12 * time.Hour,
	}
	if h.allowAll() {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = h.allowedOrigins
	}
	r.Use(cors.New(corsConfig))

	r.GET("/health", h.Health)
	r.GET("/ws", h.Websocket)

	rooms := r.Group("/rooms/:room")
	{
		rooms.GET("/strokes", h.GetStrokes)
		rooms.DELETE("/strokes", h.ClearStrokes)
	}
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()
		log.Debug().
			Str("method", ctx.Request.Method).
			Str("path", ctx.Request.URL.Path).
			Int("status", ctx.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("[HTTP] request")
	}
}

func (h *Handler) Health(ctx *gin.Context) {
	rooms, members := h.relay.Stats()
	ctx.JSON(http.StatusOK, gin.H{"status": "healthy", "rooms": rooms, "members": members})
}

func (h *Handler) Websocket(ctx *gin.Context) {
	conn, err := h.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		// The upgrader has already replied.
		log.Warn().Err(err).Str("ip", ctx.ClientIP()).Msg("[HTTP] Websocket upgrade failed")
		return
	}
	h.relay.Serve(NewWebsocketConnection(conn, 2*h.relay.opts.PingInterval))
}

type strokesResponse struct {
	RoomID  string         `json:"roomId"`
	Strokes []state.Stroke `json:"strokes"`
}

func (h *Handler) GetStrokes(ctx *gin.Context) {
	roomID := ctx.Param("room")
	strokes, err := h.relay.Snapshots().GetStrokes(ctx.Request.Context(), roomID)
	if err != nil {
		h.abort(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, strokesResponse{RoomID: roomID, Strokes: strokes})
}

func (h *Handler) ClearStrokes(ctx *gin.Context) {
	if err := h.relay.ClearRoom(ctx.Request.Context(), ctx.Param("room")); err != nil {
		h.abort(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *Handler) abort(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidRoom):
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid-room"})
	case errors.Is(err, store.ErrUnavailable):
		log.Error().Err(err).Msg("[HTTP] Store unavailable")
		ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "store-unavailable"})
	default:
		log.Error().Err(err).Msg("[HTTP] Request failed")
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "unknown-error"})
	}
}
