package handlers

import (
	"net/http"
	"time"

	"github.com/Brownie44l1/leaf-api/pkg/back"
	"github.com/Brownie44l1/leaf-api/pkg/zlog"

	cors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

type RouterOptions struct {
	// SSLRedirect expects a TLS-terminating proxy in front that sets
	// X-Forwarded-Proto; requests it marks as https pass through.
	SSLRedirect bool
	// SSLHost is the redirect target host. Empty reuses the request host.
	SSLHost      string
	MaxBodyBytes int64
}

// NewRouter wires middleware and routes onto a fresh gin engine.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	ge := gin.New()
	ge.Use(gin.Recovery())
	ge.Use(RequestID())
	ge.Use(AccessLog())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type"}
	ge.Use(cors.New(corsConfig))

	ge.Use(Secure(opts))
	if opts.MaxBodyBytes > 0 {
		ge.Use(BodyLimit(opts.MaxBodyBytes))
	}

	ge.GET("/", h.Home)
	ge.GET("/health", h.Health)
	ge.POST("/predict", h.Predict)
	ge.POST("/predict/image", h.PredictFromImage)
	return ge
}

const requestIDHeader = "X-Request-ID"

// RequestID tags each request with an id, reusing the caller's when sent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(back.RequestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		zlog.Info("request",
			zap.String("request_id", c.GetString(back.RequestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.String("addr", c.ClientIP()),
			zap.Duration("latency", time.Since(start)))
	}
}

// Secure sets defensive response headers and, when enabled, redirects plain
// HTTP to HTTPS.
func Secure(opts RouterOptions) gin.HandlerFunc {
	mw := secure.New(secure.Options{
		SSLRedirect:        opts.SSLRedirect,
		SSLHost:            opts.SSLHost,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		FrameDeny:          true,
		ContentTypeNosniff: true,
	})
	return func(c *gin.Context) {
		if err := mw.Process(c.Writer, c.Request); err != nil {
			// secure has already written the redirect.
			c.Abort()
			return
		}
		c.Next()
	}
}

// BodyLimit caps request bodies at n bytes.
func BodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
