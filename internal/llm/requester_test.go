package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
	"github.com/joseph-ayodele/receipt-itemizer/internal/layout"
)

type stubCapability struct {
	out   string
	err   error
	calls int
	last  GenerateRequest
}

func (s *stubCapability) Name() string { return "stub" }

func (s *stubCapability) Generate(_ context.Context, req GenerateRequest) (string, error) {
	s.calls++
	s.last = req
	return s.out, s.err
}

var coke = layout.ParsedReceipt{Rows: []layout.Row{{Text: "2 Coke 3.50"}, {Text: "TOTAL 7.00"}}}

func TestRequesterWithoutCapabilityReturnsEmpty(t *testing.T) {
	r := NewRequester(nil, nil)
	cand, err := r.Request(context.Background(), coke)
	require.NoError(t, err)
	assert.True(t, cand.Skipped)
	assert.Equal(t, []any{}, cand.Object["items"])
	assert.Equal(t, 0.0, cand.Object["totalPrice"])
	assert.False(t, r.Available())
}

func TestRequesterSkipsCallForNoRows(t *testing.T) {
	stub := &stubCapability{}
	cand, err := NewRequester(stub, nil).Request(context.Background(), layout.ParsedReceipt{})
	require.NoError(t, err)
	assert.True(t, cand.Skipped)
	assert.Zero(t, stub.calls)
}

func TestRequesterBuildsPromptAndSchema(t *testing.T) {
	stub := &stubCapability{out: `{"items":[{"name":"Coke","quantity":2,"price":3.5,"lineTotal":7}],"totalPrice":7,"receipt":{"storeName":"Diner","purchaseDate":""}}`}
	cand, err := NewRequester(stub, nil).Request(context.Background(), coke)
	require.NoError(t, err)

	assert.Equal(t, 1, stub.calls)
	assert.Contains(t, stub.last.Prompt, `INPUT_JSON_ROWS: {"rows":[{"text":"2 Coke 3.50"},{"text":"TOTAL 7.00"}]}`)
	assert.Contains(t, stub.last.Prompt, "HARD RULES (do not break):")
	assert.Contains(t, stub.last.Prompt, "differ by <= 2%")
	assert.Less(t, strings.Index(stub.last.Prompt, "HARD RULES"), strings.Index(stub.last.Prompt, "INPUT_JSON_ROWS"))
	assert.Equal(t, ExtractionSchemaName, stub.last.SchemaName)
	assert.Equal(t, []string{"items", "totalPrice", "receipt"}, stub.last.Schema["required"])

	assert.False(t, cand.Unparsed)
	assert.Empty(t, cand.Warnings)
	assert.Equal(t, "Diner", cand.Object["receipt"].(map[string]any)["storeName"])
}

func TestRequesterCapabilityFailureIsExternal(t *testing.T) {
	stub := &stubCapability{err: context.DeadlineExceeded}
	_, err := NewRequester(stub, nil).Request(context.Background(), coke)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExternalService)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "stub", common.ServiceOf(err))
}

func TestRequesterKeepsProviderServiceName(t *testing.T) {
	stub := &stubCapability{err: common.NewExternalServiceError("gemini", "generate content", errors.New("503"))}
	_, err := NewRequester(stub, nil).Request(context.Background(), coke)
	assert.Equal(t, "gemini", common.ServiceOf(err))
}

func TestRequesterUnparsableOutputFallsBackToRaw(t *testing.T) {
	for _, out := range []string{"Sorry, I cannot read this receipt.", `[1,2,3]`, `"just a string"`} {
		stub := &stubCapability{out: out}
		cand, err := NewRequester(stub, nil).Request(context.Background(), coke)
		require.NoError(t, err, out)
		assert.True(t, cand.Unparsed, out)
		assert.Nil(t, cand.Object)
		assert.Equal(t, out, cand.Raw)
		require.Len(t, cand.Warnings, 1)
		assert.Contains(t, cand.Warnings[0], "SCHEMA_PARSE")
	}
}

func TestRequesterRecordsSchemaViolations(t *testing.T) {
	stub := &stubCapability{out: "```json\n{\"items\":\"none\",\"totalPrice\":\"12.50\",\"note\":\"x\"}\n```"}
	cand, err := NewRequester(stub, nil).Request(context.Background(), coke)
	require.NoError(t, err)
	assert.False(t, cand.Unparsed)
	assert.Equal(t, 12.5, cand.Object["totalPrice"])
	assert.NotContains(t, cand.Object, "note")
	require.Len(t, cand.Warnings, 2)
	assert.Contains(t, cand.Warnings[1], "json does not match schema")
}
