package server

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
	"github.com/joseph-ayodele/receipt-itemizer/internal/entity"
)

const receiptsServiceName = "receipts.v1.ReceiptsService"

// Full method names of ReceiptsService.
const (
	ProcessReceiptMethod = "/" + receiptsServiceName + "/ProcessReceipt"
	ListReceiptsMethod   = "/" + receiptsServiceName + "/ListReceipts"
	GetReceiptMethod     = "/" + receiptsServiceName + "/GetReceipt"
)

// ReceiptsServer is served over gRPC using well-known wrapper types, so no
// generated stubs are needed by clients.
type ReceiptsServer interface {
	ProcessReceipt(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error)
	ListReceipts(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	GetReceipt(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error)
}

type ReceiptService struct {
	processor ImageProcessor
	receipts  ReceiptReader
	logger    *slog.Logger
}

func NewReceiptService(processor ImageProcessor, receipts ReceiptReader, logger *slog.Logger) *ReceiptService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReceiptService{processor: processor, receipts: receipts, logger: logger}
}

// ProcessReceipt runs the pipeline over the image bytes and returns the outcome.
func (s *ReceiptService) ProcessReceipt(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.Struct, error) {
	if len(in.GetValue()) == 0 {
		return nil, common.InvalidArgumentError("image bytes are required")
	}
	out, err := s.processor.ProcessReceiptImage(ctx, in.GetValue())
	if err != nil {
		s.logger.Error("grpc.process_receipt.failed", "req_id", common.RequestIDFromContext(ctx), "error", err)
		return nil, common.GRPCError(err)
	}
	return s.encode(ctx, map[string]any{"message": "Receipt processed successfully", "data": out})
}

func (s *ReceiptService) ListReceipts(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	recs, err := s.receipts.ListReceipts(ctx)
	if err != nil {
		s.logger.Error("grpc.list_receipts.failed", "req_id", common.RequestIDFromContext(ctx), "error", err)
		return nil, common.GRPCError(err)
	}
	if recs == nil {
		recs = []*entity.Receipt{}
	}
	s.logger.Info("grpc.list_receipts.ok", "req_id", common.RequestIDFromContext(ctx), "count", len(recs))
	return s.encode(ctx, map[string]any{"receipts": recs})
}

func (s *ReceiptService) GetReceipt(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	id, err := uuid.Parse(strings.TrimSpace(in.GetValue()))
	if err != nil {
		return nil, common.InvalidArgumentError("receipt id must be a UUID")
	}
	rec, err := s.receipts.GetReceipt(ctx, id)
	if err != nil {
		s.logger.Warn("grpc.get_receipt.failed", "req_id", common.RequestIDFromContext(ctx), "receipt_id", id, "error", err)
		return nil, common.GRPCError(err)
	}
	return s.encode(ctx, rec)
}

func (s *ReceiptService) encode(ctx context.Context, v any) (*structpb.Struct, error) {
	st, err := toStruct(v)
	if err != nil {
		s.logger.Error("grpc.encode.failed", "req_id", common.RequestIDFromContext(ctx), "error", err)
		return nil, common.GRPCError(err)
	}
	return st, nil
}

// RegisterReceiptsServer registers srv on s.
func RegisterReceiptsServer(s grpc.ServiceRegistrar, srv ReceiptsServer) {
	s.RegisterService(&ReceiptsServiceDesc, srv)
}

func processReceiptHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReceiptsServer).ProcessReceipt(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ProcessReceiptMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReceiptsServer).ProcessReceipt(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func listReceiptsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReceiptsServer).ListReceipts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListReceiptsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReceiptsServer).ListReceipts(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getReceiptHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReceiptsServer).GetReceipt(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetReceiptMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReceiptsServer).GetReceipt(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// ReceiptsServiceDesc is the grpc.ServiceDesc for ReceiptsService.
var ReceiptsServiceDesc = grpc.ServiceDesc{
	ServiceName: receiptsServiceName,
	HandlerType: (*ReceiptsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProcessReceipt", Handler: processReceiptHandler},
		{MethodName: "ListReceipts", Handler: listReceiptsHandler},
		{MethodName: "GetReceipt", Handler: getReceiptHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "receipts/v1/receipts.proto",
}
