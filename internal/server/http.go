package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-itemizer/constants"
	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
	"github.com/joseph-ayodele/receipt-itemizer/internal/uploads"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HTTPConfig configures the upload endpoint.
type HTTPConfig struct {
	UploadDir   string
	MaxUploadMB int
}

type HTTPHandler struct {
	cfg       HTTPConfig
	processor ImageProcessor
	receipts  ReceiptReader
	exporter  Exporter
	logger    *slog.Logger
}

func NewHTTPHandler(cfg HTTPConfig, processor ImageProcessor, receipts ReceiptReader, exporter Exporter, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "./uploads"
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = constants.MaxUploadMBDefault
	}
	return &HTTPHandler{cfg: cfg, processor: processor, receipts: receipts, exporter: exporter, logger: logger}
}

// Router builds the gin engine with every HTTP route registered.
func (h *HTTPHandler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestID(), h.accessLog())
	r.MaxMultipartMemory = int64(h.cfg.MaxUploadMB) << 20

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.POST("/upload", h.upload)
	r.GET("/receipts", h.listReceipts)
	r.GET("/receipts/export", h.exportReceipts)
	r.GET("/receipts/:id", h.getReceipt)
	return r
}

func (h *HTTPHandler) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if v := strings.TrimSpace(c.GetHeader(RequestIDHeader)); v != "" {
			ctx = common.WithRequestID(ctx, v)
		}
		ctx, rid := common.EnsureRequestID(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}

func (h *HTTPHandler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Info("http.request",
			"req_id", common.RequestIDFromContext(c.Request.Context()),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

// upload accepts multipart field "file", stages it under UploadDir and runs
// the pipeline. The staged file is removed whatever the outcome.
func (h *HTTPHandler) upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}
	if !constants.IsImageMIME(fh.Header.Get("Content-Type")) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only image uploads are accepted"})
		return
	}
	maxBytes := int64(h.cfg.MaxUploadMB) << 20
	if fh.Size > maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
		return
	}
	defer f.Close()

	tf, err := uploads.Materialize(h.cfg.UploadDir, fh.Filename, f, maxBytes, h.logger)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}

	out, err := h.processor.ProcessUpload(c.Request.Context(), tf)
	if err != nil {
		var data any
		if out != nil {
			data = out
		}
		h.writeError(c, err, data)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Receipt processed successfully", "data": out})
}

func (h *HTTPHandler) listReceipts(c *gin.Context) {
	recs, err := h.receipts.ListReceipts(c.Request.Context())
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	if recs == nil {
		c.JSON(http.StatusOK, gin.H{"data": []any{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": recs})
}

func (h *HTTPHandler) getReceipt(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receipt id must be a UUID"})
		return
	}
	rec, err := h.receipts.GetReceipt(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rec})
}

func (h *HTTPHandler) exportReceipts(c *gin.Context) {
	b, err := h.exporter.ExportReceiptsXLSX(c.Request.Context())
	if err != nil {
		h.writeError(c, err, nil)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="receipts.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, b)
}

func (h *HTTPHandler) writeError(c *gin.Context, err error, data any) {
	code := httpStatus(err)
	h.logger.Error("http.request.failed",
		"req_id", common.RequestIDFromContext(c.Request.Context()),
		"status", code,
		"error", err,
	)
	body := gin.H{"error": err.Error()}
	if data != nil {
		body["data"] = data
	}
	c.JSON(code, body)
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrInputValidation), errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrExternalService):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
