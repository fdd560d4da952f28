package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
	"github.com/joseph-ayodele/receipt-itemizer/internal/entity"
	"github.com/joseph-ayodele/receipt-itemizer/internal/pipeline"
	"github.com/joseph-ayodele/receipt-itemizer/internal/uploads"
)

// ImageProcessor is the part of pipeline.Processor the transports use.
type ImageProcessor interface {
	ProcessReceiptImage(ctx context.Context, data []byte) (*pipeline.Outcome, error)
	ProcessUpload(ctx context.Context, res uploads.Resource) (*pipeline.Outcome, error)
}

// ReceiptReader is the read side of the receipt store.
type ReceiptReader interface {
	ListReceipts(ctx context.Context) ([]*entity.Receipt, error)
	GetReceipt(ctx context.Context, id uuid.UUID) (*entity.Receipt, error)
}

// Exporter renders stored receipts as an XLSX workbook.
type Exporter interface {
	ExportReceiptsXLSX(ctx context.Context) ([]byte, error)
}

// RequestIDHeader carries a caller-chosen request ID on both transports.
const RequestIDHeader = "x-request-id"

// RequestIDInterceptor puts the caller's x-request-id (or a fresh one) on the context.
func RequestIDInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(RequestIDHeader); len(v) > 0 && strings.TrimSpace(v[0]) != "" {
				ctx = common.WithRequestID(ctx, strings.TrimSpace(v[0]))
			}
		}
		ctx, rid := common.EnsureRequestID(ctx)
		logger.Debug("grpc.request", "req_id", rid, "method", info.FullMethod)
		return handler(ctx, req)
	}
}

// toStruct converts any JSON-serializable value into a protobuf Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
