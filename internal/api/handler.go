package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"request-service/internal/livefeed"
	"request-service/internal/service"
	"request-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	svc              *service.RequestService
	views            *livefeed.Publisher
	defaultRetention time.Duration
}

// NewHandler creates a new HTTP handler
func NewHandler(svc *service.RequestService, views *livefeed.Publisher, defaultRetention time.Duration) *Handler {
	return &Handler{
		svc:              svc,
		views:            views,
		defaultRetention: defaultRetention,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/requests", h.createRequest)
		v1.GET("/requests/:id", h.getRequest)
		v1.POST("/requests/:id/decision", h.respondToRequest)
		v1.DELETE("/requests/:id", h.cancelRequest)
		v1.GET("/clients/:id/requests", h.listClientRequests)
		v1.POST("/clients/:id/requests/sweep", h.sweepStaleRequests)
		v1.GET("/companies/:id/requests/pending", h.listCompanyPending)
		v1.GET("/companies/:id/requests/pending/count", h.pendingCount)
	}

	ws := router.Group("/ws")
	{
		ws.GET("/clients/:id/requests", h.streamClientRequests)
		ws.GET("/companies/:id/requests/pending", h.streamCompanyPending)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// createRequest handles request creation
func (h *Handler) createRequest(c *gin.Context) {
	var in service.CreateRequestInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	req, err := h.svc.CreateRequest(c.Request.Context(), &in)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, req)
}

// getRequest handles fetching a single request
func (h *Handler) getRequest(c *gin.Context) {
	req, err := h.svc.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

type decisionBody struct {
	Decision string `json:"decision" binding:"required,oneof=approved rejected"`
}

// respondToRequest handles a company's approve/reject decision
func (h *Handler) respondToRequest(c *gin.Context) {
	var body decisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	req, err := h.svc.RespondToRequest(c.Request.Context(), c.Param("id"), body.Decision)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, req)
}

// cancelRequest handles client cancellation of a pending request
func (h *Handler) cancelRequest(c *gin.Context) {
	if err := h.svc.CancelPendingRequest(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// listClientRequests lists all of a client's requests, newest first
func (h *Handler) listClientRequests(c *gin.Context) {
	requests, err := h.svc.ListByClient(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// listCompanyPending lists a company's pending requests, newest first
func (h *Handler) listCompanyPending(c *gin.Context) {
	requests, err := h.svc.ListPendingByCompany(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// pendingCount serves the company's pending badge count
func (h *Handler) pendingCount(c *gin.Context) {
	count, err := h.svc.PendingCountByCompany(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

// sweepStaleRequests removes a client's stale pending requests
func (h *Handler) sweepStaleRequests(c *gin.Context) {
	retention := h.defaultRetention
	if hoursStr := c.Query("retention_hours"); hoursStr != "" {
		hours, err := strconv.Atoi(hoursStr)
		if err != nil || hours <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid retention_hours"})
			return
		}
		retention = time.Duration(hours) * time.Hour
	}

	count, err := h.svc.SweepStaleRequests(c.Request.Context(), c.Param("id"), retention)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": count})
}

// respondError maps domain errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var ise *service.InsufficientStockError
	switch {
	case errors.As(err, &ise):
		c.JSON(http.StatusConflict, gin.H{
			"error":     ise.Error(),
			"available": ise.Available,
			"requested": ise.Requested,
		})
	case errors.Is(err, service.ErrRequestNotFound),
		errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotCancelable),
		errors.Is(err, service.ErrRequestNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidDecision):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal error",
			"details": err.Error(),
		})
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
