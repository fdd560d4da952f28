package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-itemizer/constants"
	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
	"github.com/joseph-ayodele/receipt-itemizer/internal/llm"
	"github.com/joseph-ayodele/receipt-itemizer/internal/ocr"
	"github.com/joseph-ayodele/receipt-itemizer/internal/repository"
	"github.com/joseph-ayodele/receipt-itemizer/internal/uploads"
)

type stubEngine struct {
	fragments []ocr.Fragment
	err       error
	calls     int
}

func (s *stubEngine) Name() string { return "stub-ocr" }

func (s *stubEngine) Detect(context.Context, []byte) ([]ocr.Fragment, error) {
	s.calls++
	return s.fragments, s.err
}

type stubCapability struct {
	out   string
	err   error
	calls int
}

func (s *stubCapability) Name() string { return "stub-llm" }

func (s *stubCapability) Generate(context.Context, llm.GenerateRequest) (string, error) {
	s.calls++
	return s.out, s.err
}

type stubStore struct {
	id         uuid.UUID
	receipts   []repository.NewReceipt
	items      []repository.NewItem
	receiptErr error
	itemsErr   error
}

func (s *stubStore) CreateReceipt(_ context.Context, in repository.NewReceipt) (uuid.UUID, error) {
	if s.receiptErr != nil {
		return uuid.Nil, s.receiptErr
	}
	s.receipts = append(s.receipts, in)
	return s.id, nil
}

func (s *stubStore) CreateItems(_ context.Context, items []repository.NewItem) error {
	if s.itemsErr != nil {
		return s.itemsErr
	}
	s.items = append(s.items, items...)
	return nil
}

type stubResource struct {
	data     []byte
	readErr  error
	released int
}

func (s *stubResource) Name() string { return "stub.png" }
func (s *stubResource) Bytes() ([]byte, error) { return s.data, s.readErr }
func (s *stubResource) Release() error { s.released++; return nil }

var _ uploads.Resource = (*stubResource)(nil)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

func line(id, text string, top, left float64) ocr.Fragment {
	return ocr.Fragment{
		ID:        id,
		BlockType: constants.BlockTypeLine,
		Text:      text,
		Box:       &ocr.BoundingBox{Top: top, Left: left, Width: 0.2, Height: 0.02},
	}
}

func receiptFragments() []ocr.Fragment {
	return []ocr.Fragment{
		{ID: "p", BlockType: constants.BlockTypePage},
		line("store", "CORNER DINER", 0.05, 0.3),
		line("qty", "2", 0.20, 0.05),
		line("item", "Coke 3.50", 0.205, 0.15),
		line("total", "TOTAL 7.00", 0.40, 0.05),
	}
}

const cokeJSON = `{"items":[{"name":"Coke","quantity":2,"price":3.5,"lineTotal":null}],"totalPrice":null,"receipt":{"storeName":"Corner Diner","purchaseDate":"2024-06-01"}}`

func TestProcessReceiptImagePersists(t *testing.T) {
	engine := &stubEngine{fragments: receiptFragments()}
	capability := &stubCapability{out: cokeJSON}
	store := &stubStore{id: uuid.New()}
	p := NewProcessor(engine, llm.NewRequester(capability, nil), nil, store, nil)

	out, err := p.ProcessReceiptImage(context.Background(), pngBytes(t))
	require.NoError(t, err)

	assert.Equal(t, constants.StatePersisted, out.State)
	assert.True(t, out.State.Terminal())
	assert.Empty(t, out.FailedStage)
	assert.NotEmpty(t, out.RequestID)
	assert.Equal(t, []string{"CORNER DINER", "2 Coke 3.50", "TOTAL 7.00"}, []string{out.Rows[0].Text, out.Rows[1].Text, out.Rows[2].Text})
	require.NotNil(t, out.Result)
	assert.Equal(t, 7.0, out.Result.TotalPrice)
	assert.Equal(t, store.id, out.ReceiptID)
	for _, st := range []constants.Stage{constants.StageInput, constants.StageOCR, constants.StageLines, constants.StageRows, constants.StageExtraction, constants.StageReconcile, constants.StagePersist} {
		assert.Contains(t, out.Timings, st)
	}

	require.Len(t, store.receipts, 1)
	assert.Equal(t, "Corner Diner", store.receipts[0].StoreName)
	assert.Equal(t, 7.0, store.receipts[0].TotalAmount)
	require.NotNil(t, store.receipts[0].PurchaseDate)
	assert.Equal(t, "2024-06-01", store.receipts[0].PurchaseDate.Format("2006-01-02"))

	require.Len(t, store.items, 1)
	assert.Equal(t, store.id, store.items[0].ReceiptID)
	assert.Equal(t, 2, store.items[0].Quantity)
	require.NotNil(t, store.items[0].LineTotal)
	assert.Equal(t, 7.0, *store.items[0].LineTotal)
}

func TestProcessReceiptImageDryRun(t *testing.T) {
	p := NewProcessor(&stubEngine{fragments: receiptFragments()}, llm.NewRequester(&stubCapability{out: cokeJSON}, nil), nil, nil, nil)

	out, err := p.ProcessReceiptImage(context.Background(), pngBytes(t))
	require.NoError(t, err)
	assert.Equal(t, constants.StateReconciled, out.State)
	assert.False(t, out.State.Terminal())
	assert.Equal(t, uuid.Nil, out.ReceiptID)
	assert.NotContains(t, out.Timings, constants.StagePersist)
}

func TestProcessReceiptImageRejectsEmptyBytes(t *testing.T) {
	engine := &stubEngine{}
	p := NewProcessor(engine, nil, nil, nil, nil)

	out, err := p.ProcessReceiptImage(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInputValidation))
	assert.Equal(t, constants.StateFailed, out.State)
	assert.Equal(t, constants.StageInput, out.FailedStage)
	assert.Zero(t, engine.calls)

	out, err = p.ProcessReceiptImage(context.Background(), []byte("not an image"))
	assert.True(t, errors.Is(err, common.ErrInputValidation))
	assert.Equal(t, constants.StageInput, out.FailedStage)
}

func TestProcessReceiptImageOCRFailureIsExternal(t *testing.T) {
	p := NewProcessor(&stubEngine{err: errors.New("throttled")}, nil, nil, nil, nil)

	out, err := p.ProcessReceiptImage(context.Background(), pngBytes(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrExternalService))
	assert.Equal(t, "stub-ocr", common.ServiceOf(err))
	assert.Equal(t, constants.StateFailed, out.State)
	assert.Equal(t, constants.StageOCR, out.FailedStage)
}

func TestProcessReceiptImageCapabilityFailure(t *testing.T) {
	store := &stubStore{id: uuid.New()}
	p := NewProcessor(&stubEngine{fragments: receiptFragments()}, llm.NewRequester(&stubCapability{err: errors.New("503")}, nil), nil, store, nil)

	out, err := p.ProcessReceiptImage(context.Background(), pngBytes(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrExternalService))
	assert.Equal(t, "stub-llm", common.ServiceOf(err))
	assert.Equal(t, constants.StateFailed, out.State)
	assert.Len(t, out.Rows, 3)
	assert.Empty(t, store.receipts)
}

func TestProcessReceiptImageUnparsedIsNotPersisted(t *testing.T) {
	store := &stubStore{id: uuid.New()}
	p := NewProcessor(&stubEngine{fragments: receiptFragments()}, llm.NewRequester(&stubCapability{out: "Sorry, I cannot help."}, nil), nil, store, nil)

	out, err := p.ProcessReceiptImage(context.Background(), pngBytes(t))
	require.NoError(t, err)
	assert.True(t, out.Unparsed)
	assert.Equal(t, "Sorry, I cannot help.", out.Raw)
	assert.Nil(t, out.Result)
	assert.Empty(t, store.receipts)
	assert.NotEmpty(t, out.Warnings)
}

func TestProcessReceiptImageWithoutCapabilityPersistsEmptyResult(t *testing.T) {
	store := &stubStore{id: uuid.New()}
	p := NewProcessor(&stubEngine{fragments: receiptFragments()}, llm.NewRequester(nil, nil), nil, store, nil)

	out, err := p.ProcessReceiptImage(context.Background(), pngBytes(t))
	require.NoError(t, err)
	require.NotNil(t, out.Result)
	assert.Empty(t, out.Result.Items)
	assert.Equal(t, 0.0, out.Result.TotalPrice)
	assert.Equal(t, constants.StatePersisted, out.State)
	require.Len(t, store.receipts, 1)
	assert.Empty(t, store.items)
}

func TestProcessReceiptImageNoLinesWarns(t *testing.T) {
	capability := &stubCapability{out: cokeJSON}
	p := NewProcessor(&stubEngine{}, llm.NewRequester(capability, nil), nil, nil, nil)

	out, err := p.ProcessReceiptImage(context.Background(), pngBytes(t))
	require.NoError(t, err)
	assert.Empty(t, out.Rows)
	assert.Contains(t, out.Warnings, "no usable text lines found in image")
	assert.Zero(t, capability.calls)
	assert.Empty(t, out.Result.Items)
}

func TestProcessReceiptImagePersistenceFailure(t *testing.T) {
	store := &stubStore{id: uuid.New(), itemsErr: errors.New("disk full")}
	p := NewProcessor(&stubEngine{fragments: receiptFragments()}, llm.NewRequester(&stubCapability{out: cokeJSON}, nil), nil, store, nil)

	out, err := p.ProcessReceiptImage(context.Background(), pngBytes(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrPersistence))
	assert.Equal(t, constants.StateFailed, out.State)
	require.NotNil(t, out.Result)
	assert.Equal(t, 7.0, out.Result.TotalPrice)
}

func TestProcessUploadReleasesOnce(t *testing.T) {
	p := NewProcessor(&stubEngine{fragments: receiptFragments()}, llm.NewRequester(&stubCapability{out: cokeJSON}, nil), nil, nil, nil)

	ok := &stubResource{data: pngBytes(t)}
	_, err := p.ProcessUpload(context.Background(), ok)
	require.NoError(t, err)
	assert.Equal(t, 1, ok.released)

	bad := &stubResource{data: []byte{}}
	_, err = p.ProcessUpload(context.Background(), bad)
	require.Error(t, err)
	assert.Equal(t, 1, bad.released)

	unreadable := &stubResource{readErr: errors.New("gone")}
	out, err := p.ProcessUpload(context.Background(), unreadable)
	assert.True(t, errors.Is(err, common.ErrInputValidation))
	assert.Equal(t, constants.StageInput, out.FailedStage)
	assert.True(t, out.State.Terminal())
	assert.Equal(t, 1, unreadable.released)
}

func TestProcessUploadRemovesTempFile(t *testing.T) {
	p := NewProcessor(&stubEngine{err: errors.New("down")}, nil, nil, nil, nil)
	dir := t.TempDir()
	tf, err := uploads.Materialize(dir, "r.png", bytes.NewReader(pngBytes(t)), 0, nil)
	require.NoError(t, err)

	_, err = p.ProcessUpload(context.Background(), tf)
	require.Error(t, err)
	_, statErr := os.Stat(tf.Path())
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestProcessFileKeepsFile(t *testing.T) {
	p := NewProcessor(&stubEngine{fragments: receiptFragments()}, nil, nil, nil, nil)
	path := filepath.Join(t.TempDir(), "r.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t), 0o600))

	out, err := p.ProcessFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, constants.StateReconciled, out.State)
	_, err = os.Stat(path)
	assert.NoError(t, err)

	out, err = p.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	assert.True(t, errors.Is(err, common.ErrInputValidation))
	assert.Equal(t, constants.StageInput, out.FailedStage)
}

func TestRowsOnly(t *testing.T) {
	p := NewProcessor(&stubEngine{fragments: receiptFragments()}, nil, nil, nil, nil)
	rows, err := p.Rows(context.Background(), pngBytes(t))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, strings.HasPrefix(rows[1].Text, "2 Coke"))
}
