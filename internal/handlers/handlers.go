package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/Brownie44l1/leaf-api/internal/labels"
	"github.com/Brownie44l1/leaf-api/internal/predict"
	"github.com/Brownie44l1/leaf-api/pkg/back"
	"github.com/Brownie44l1/leaf-api/pkg/xerr"
	"github.com/Brownie44l1/leaf-api/pkg/zlog"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const liveness = "Leaf disease AI engine is running"

// Predictor is the pipeline surface the handlers depend on.
type Predictor interface {
	Predict(ctx context.Context, req predict.Request) (*predict.Result, error)
	PredictBytes(ctx context.Context, raw []byte) (*predict.Result, error)
	Labels() *labels.Registry
	InputShape() []int64
}

type Handler struct {
	svc Predictor
}

func NewHandler(svc Predictor) *Handler {
	return &Handler{svc: svc}
}

// Home is the plain-text liveness probe.
func (h *Handler) Home(c *gin.Context) {
	c.String(http.StatusOK, liveness)
}

type healthRespond struct {
	Status     string  `json:"status"`
	Classes    int     `json:"classes"`
	InputShape []int64 `json:"inputShape"`
}

func (h *Handler) Health(c *gin.Context) {
	back.Success(c, healthRespond{
		Status:     "healthy",
		Classes:    h.svc.Labels().Len(),
		InputShape: h.svc.InputShape(),
	})
}

// Predict handles POST /predict with {"imageUrl"?, "imageBase64"?}.
func (h *Handler) Predict(c *gin.Context) {
	var req predict.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, io.EOF) {
			back.Fail(c, xerr.Input("provide either 'imageUrl' or 'imageBase64'"))
			return
		}
		back.Fail(c, xerr.Input("invalid JSON body: %v", err))
		return
	}

	if req.ImageBase64 != "" {
		zlog.Info("analyzing image from base64", zap.String("request_id", c.GetString(back.RequestIDKey)))
	} else if req.ImageURL != "" {
		zlog.Info("downloading and analyzing image",
			zap.String("request_id", c.GetString(back.RequestIDKey)),
			zap.String("url", req.ImageURL))
	}

	data, err := h.svc.Predict(c.Request.Context(), req)
	back.Result(c, data, err)
}

// PredictFromImage handles a multipart upload in the "image" field.
func (h *Handler) PredictFromImage(c *gin.Context) {
	header, err := c.FormFile("image")
	if err != nil {
		back.Fail(c, xerr.Input("no image file provided. use 'image' as the form field name"))
		return
	}

	file, err := header.Open()
	if err != nil {
		back.Fail(c, xerr.Input("failed to open uploaded file"))
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		back.Fail(c, xerr.Input("failed to read uploaded file"))
		return
	}

	zlog.Info("received file",
		zap.String("request_id", c.GetString(back.RequestIDKey)),
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size))

	data, err := h.svc.PredictBytes(c.Request.Context(), raw)
	back.Result(c, data, err)
}
