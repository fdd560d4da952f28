package server

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-itemizer/constants"
	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
	"github.com/joseph-ayodele/receipt-itemizer/internal/entity"
	"github.com/joseph-ayodele/receipt-itemizer/internal/layout"
	"github.com/joseph-ayodele/receipt-itemizer/internal/pipeline"
	"github.com/joseph-ayodele/receipt-itemizer/internal/uploads"
)

type fakeProcessor struct {
	mu       sync.Mutex
	got      [][]byte
	names    []string
	requests []string
	err      error
}

func (f *fakeProcessor) outcome(ctx context.Context) *pipeline.Outcome {
	return &pipeline.Outcome{
		RequestID: common.RequestIDFromContext(ctx),
		State:     constants.StateReconciled,
		Rows:      []layout.Row{{Text: "2 Coke 3.50"}},
		Result:    &entity.ExtractionResult{Items: []entity.ExtractedItem{{Name: "Coke", Quantity: 2}}, TotalPrice: 7},
		Timings:   map[constants.Stage]int64{},
	}
}

func (f *fakeProcessor) ProcessReceiptImage(ctx context.Context, data []byte) (*pipeline.Outcome, error) {
	f.mu.Lock()
	f.got = append(f.got, data)
	f.requests = append(f.requests, common.RequestIDFromContext(ctx))
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome(ctx), nil
}

func (f *fakeProcessor) ProcessUpload(ctx context.Context, res uploads.Resource) (*pipeline.Outcome, error) {
	defer func() { _ = res.Release() }()
	data, err := res.Bytes()
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.names = append(f.names, res.Name())
	f.mu.Unlock()
	return f.ProcessReceiptImage(ctx, data)
}

type fakeReceipts struct {
	recs []*entity.Receipt
}

func (f *fakeReceipts) ListReceipts(context.Context) ([]*entity.Receipt, error) { return f.recs, nil }

func (f *fakeReceipts) GetReceipt(_ context.Context, id uuid.UUID) (*entity.Receipt, error) {
	for _, r := range f.recs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, common.NewNotFoundError("receipt " + id.String() + " not found")
}

type fakeExporter struct{}

func (fakeExporter) ExportReceiptsXLSX(context.Context) ([]byte, error) { return []byte("PK-xlsx"), nil }
