package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/framelight/previz-server/internal/db/models"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ImageAnalysis is the structured quality judgment stored on an asset and
// later consumed as planner input.
type ImageAnalysis struct {
	Verdict      string   `json:"verdict"`
	StyleScore   float64  `json:"style_score"`
	RealismScore float64  `json:"realism_score"`
	Issues       []string `json:"issues,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
	Summary      string   `json:"summary,omitempty"`
}

const analyzerSystemPrompt = `You are a film pre-production image reviewer. Judge the image for use as a shot reference.

Respond with a single JSON object:
{
  "verdict": "usable" | "needs_work" | "unusable",
  "style_score": number (0-10),
  "realism_score": number (0-10),
  "issues": [string],
  "improvements": [string],
  "summary": string
}`

type Analyzer interface {
	Analyze(ctx context.Context, asset *models.Asset) (*ImageAnalysis, error)
}

type OpenAIAnalyzer struct {
	client *openai.Client
}

func NewOpenAIAnalyzer(apiKey string) (*OpenAIAnalyzer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	return &OpenAIAnalyzer{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
	}, nil
}

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, asset *models.Asset) (*ImageAnalysis, error) {
	completion, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(analyzerSystemPrompt),
			openai.UserMessageParts(
				openai.ImagePart(asset.Url),
				openai.TextPart("Review this image."),
			),
		}),
		ResponseFormat: openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
			openai.ResponseFormatJSONObjectParam{
				Type: openai.F(openai.ResponseFormatJSONObjectTypeJSONObject),
			},
		),
		Model:       openai.F(openai.ChatModelGPT4o),
		Temperature: openai.F(0.2),
	})
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}

	if len(completion.Choices) == 0 || len(completion.Choices[0].Message.Content) == 0 {
		return nil, fmt.Errorf("empty analysis response")
	}

	var result ImageAnalysis
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &result); err != nil {
		return nil, fmt.Errorf("could not parse analysis: %w", err)
	}

	return &result, nil
}
