package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/nixxel-company-limited/escpos-print-queue/queue"
)

// StatusQueue extends Submitter with the read-only observability surface
// health checks consume.
type StatusQueue interface {
	Submitter
	Pending() int
	Dispatching() bool
}

// ConnectionStatus reports the printer transport state.
type ConnectionStatus interface {
	IsConnected() bool
}

// PrintRequest is the POST /print body.
type PrintRequest struct {
	Text string `json:"text"`
}

// NewRouter builds the HTTP API. When token is non-empty every request
// must carry it as a bearer token.
func NewRouter(q StatusQueue, printer ConnectionStatus, token string, log zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	if token != "" {
		router.Use(bearerAuth(token))
	}

	h := &handlers{queue: q, printer: printer, log: log.With().Str("component", "http").Logger()}
	router.POST("/print", h.print)
	router.GET("/health", h.health)

	return router
}

func bearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if got != token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

type handlers struct {
	queue   StatusQueue
	printer ConnectionStatus
	log     zerolog.Logger
}

// print enqueues one job and answers with its terminal outcome, so a
// failed print surfaces its exhausted-attempts message to the caller.
func (h *handlers) print(c *gin.Context) {
	var req PrintRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid text"})
		return
	}

	done, err := h.queue.Submit(req.Text)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	if err := <-done; err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, queue.ErrQueueCleared) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "printed"})
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected":   h.printer.IsConnected(),
		"pending":     h.queue.Pending(),
		"dispatching": h.queue.Dispatching(),
	})
}
