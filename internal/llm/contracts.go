package llm

import "context"

// GenerateRequest is one structured-output call to a generative model.
// Schema is a JSON Schema (draft 2020-12 subset) the output must satisfy.
type GenerateRequest struct {
	Prompt     string
	SchemaName string
	Schema     map[string]any
}

// Capability is a generative model that returns text for a prompt under a
// response schema. Implementations report transport and provider failures
// as errors and return the model text verbatim otherwise.
type Capability interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Candidate is what the model produced for one receipt, before reconciliation.
type Candidate struct {
	// Object is the decoded JSON object; nil when Unparsed.
	Object map[string]any
	// Raw is the model text as received.
	Raw string
	// Unparsed is set when Raw could not be decoded into a JSON object.
	Unparsed bool
	// Skipped is set when no model call was made (no capability or no rows).
	Skipped bool
	// Warnings collects recoverable problems (schema violations, parse failure).
	Warnings []string
}
