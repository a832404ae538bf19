package api

import (
	"context"
	"net/http"

	"request-service/internal/livefeed"
	"request-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamClientRequests streams a client's request list over a websocket: one
// JSON snapshot immediately, then one per change.
func (h *Handler) streamClientRequests(c *gin.Context) {
	h.stream(c, func(ctx context.Context) (*livefeed.Subscription, error) {
		return h.views.SubscribeClient(ctx, c.Param("id"))
	})
}

// streamCompanyPending streams a company's pending request list.
func (h *Handler) streamCompanyPending(c *gin.Context) {
	h.stream(c, func(ctx context.Context) (*livefeed.Subscription, error) {
		return h.views.SubscribeCompanyPending(ctx, c.Param("id"))
	})
}

func (h *Handler) stream(c *gin.Context, subscribe func(ctx context.Context) (*livefeed.Subscription, error)) {
	logger := util.GetLogger()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	sub, err := subscribe(c.Request.Context())
	if err != nil {
		logger.Error("Failed to open live view", zap.Error(err))
		return
	}
	defer sub.Close()

	util.LiveViewSubscriptions.Inc()
	defer util.LiveViewSubscriptions.Dec()

	// Read pump: we only care about the close handshake.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Close()
				return
			}
		}
	}()

	for snapshot := range sub.Updates() {
		if err := conn.WriteJSON(snapshot); err != nil {
			return
		}
	}
}
