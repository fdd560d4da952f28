package gemini

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/joseph-ayodele/receipt-itemizer/internal/common"
	"github.com/joseph-ayodele/receipt-itemizer/internal/llm"
)

type fakeContentAPI struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
	resp     *genai.GenerateContentResponse
	err      error
}

func (f *fakeContentAPI) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: genai.RoleModel}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: content, FinishReason: genai.FinishReasonStop}},
	}
}

func TestGenerateContent(t *testing.T) {
	api := &fakeContentAPI{resp: textResponse(`{"items":[],`, `"totalPrice":0}`)}
	c := NewClientWithAPI(api, Config{Temperature: 0.1}, nil)

	out, err := c.Generate(context.Background(), llm.GenerateRequest{Prompt: "rows", Schema: llm.ExtractionJSONSchema()})
	require.NoError(t, err)
	assert.Equal(t, `{"items":[],"totalPrice":0}`, out)

	assert.Equal(t, DefaultModel, api.model)
	require.Len(t, api.contents, 1)
	require.Len(t, api.contents[0].Parts, 1)
	assert.Equal(t, "rows", api.contents[0].Parts[0].Text)
	assert.Equal(t, "application/json", api.config.ResponseMIMEType)
	require.NotNil(t, api.config.Temperature)
	assert.Equal(t, float32(0.1), *api.config.Temperature)
	require.NotNil(t, api.config.ResponseSchema)
	assert.Equal(t, genai.TypeObject, api.config.ResponseSchema.Type)
}

func TestGenerateSkipsThoughtParts(t *testing.T) {
	resp := textResponse(`{"items":[]}`)
	resp.Candidates[0].Content.Parts = append([]*genai.Part{{Text: "thinking", Thought: true}}, resp.Candidates[0].Content.Parts...)
	out, err := NewClientWithAPI(&fakeContentAPI{resp: resp}, Config{}, nil).Generate(context.Background(), llm.GenerateRequest{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, out)
}

func TestGenerateBlockedPrompt(t *testing.T) {
	api := &fakeContentAPI{resp: &genai.GenerateContentResponse{
		PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
	}}
	_, err := NewClientWithAPI(api, Config{}, nil).Generate(context.Background(), llm.GenerateRequest{Prompt: "p"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExternalService)
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestGenerateAPIError(t *testing.T) {
	cause := errors.New("quota exceeded")
	_, err := NewClientWithAPI(&fakeContentAPI{err: cause}, Config{}, nil).Generate(context.Background(), llm.GenerateRequest{Prompt: "p"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrExternalService)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "gemini", common.ServiceOf(err))
}

func TestGenerateOverHTTP(t *testing.T) {
	var path, key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, key = r.URL.Path, r.Header.Get("x-goog-api-key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"items\":[]}"}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(context.Background(), Config{APIKey: "g-key", BaseURL: srv.URL + "/"}, nil)
	require.NoError(t, err)
	out, err := c.Generate(context.Background(), llm.GenerateRequest{Prompt: "p", Schema: llm.ExtractionJSONSchema()})
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, out)
	assert.Contains(t, path, "models/"+DefaultModel+":generateContent")
	assert.Equal(t, "g-key", key)
}

func TestResponseSchemaConvertsNullableUnions(t *testing.T) {
	rs := ResponseSchema(llm.ExtractionJSONSchema())
	items := rs.Properties["items"]
	require.NotNil(t, items)
	assert.Equal(t, genai.TypeArray, items.Type)

	props := items.Items.Properties
	assert.Equal(t, genai.TypeNumber, props["price"].Type)
	require.NotNil(t, props["price"].Nullable)
	assert.True(t, *props["price"].Nullable)
	assert.Equal(t, genai.TypeInteger, props["quantity"].Type)
	assert.Nil(t, props["quantity"].Nullable)
	assert.Equal(t, []string{"name", "quantity", "price", "lineTotal"}, items.Items.PropertyOrdering)
	assert.NotEmpty(t, rs.Properties["receipt"].Properties["purchaseDate"].Description)
}
