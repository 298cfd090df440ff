package label

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used for part labeling.
const DefaultModel = "gemini-2.5-flash"

// defaultMaxRetries bounds re-asks when the model returns a response that
// fails ParseResponse validation.
const defaultMaxRetries = 5

const labelPrompt = `[System]: You are a CAD geometry recognition expert. Your tasks are:
1. Identify the part's continuity and provide structured tags
2. Add a one-sentence description of the part

[User]: Based on the provided CAD figure:
1. Determine if the model represents a single continuous part or multiple separate components
2. Identify the part's most salient geometric or functional features
   Return exactly 4 structured tags using the strict format: [continuity/primary_type/secondary_type/key_feature]
3. Provide a one-sentence description of the part within 20 words, ignore colour and focus on geometric features

Strict output requirements:
- Line 1: Only the bracketed tags
- Line 2: Only the description sentence
- Do not include any other text, numbering, or explanations

Valid tag types include:
- Continuity: single or multiple
- Primary type (e.g., shaft, bracket, housing, gear, plate)
- Secondary or sub-type (e.g., flanged, stepped, ribbed, mounting)
- Key geometric or functional feature (e.g., cylindrical hole, threaded slot, coupling face)

Example with multiple parts:
[multiple/bracket/mounting/holes]
a mounting bracket with two separate attachment plates.`

// GeminiOracle labels parts through the Gemini API.
type GeminiOracle struct {
	client     *genai.Client
	model      string
	maxRetries int
}

// NewGeminiOracle creates a Gemini-backed oracle. model defaults to
// DefaultModel when empty.
func NewGeminiOracle(ctx context.Context, apiKey, model string) (*GeminiOracle, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("label: Gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("label: create Gemini client: %w", err)
	}
	return &GeminiOracle{client: client, model: model, maxRetries: defaultMaxRetries}, nil
}

// Label sends the preview image plus the labeling prompt and parses the
// two-line response. Malformed responses are retried up to the oracle's
// retry budget.
func (o *GeminiOracle) Label(ctx context.Context, png []byte) (Labels, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(png, "image/png"),
			genai.NewPartFromText(labelPrompt),
		}, genai.RoleUser),
	}

	var lastErr error
	for attempt := 0; attempt < o.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Labels{}, err
		}
		resp, err := o.client.Models.GenerateContent(ctx, o.model, contents, nil)
		if err != nil {
			lastErr = fmt.Errorf("label: generate content: %w", err)
			continue
		}
		labels, err := ParseResponse(resp.Text())
		if err != nil {
			lastErr = err
			continue
		}
		return labels, nil
	}
	return Labels{}, fmt.Errorf("label: no valid response after %d attempts: %w", o.maxRetries, lastErr)
}
