package planner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/framelight/previz-server/internal/db/models"
	"github.com/framelight/previz-server/internal/db/repository"
	"github.com/framelight/previz-server/internal/registry"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

const plannerSeed int64 = 73

// ReferenceImage is a caller-supplied conditioning image shown to the
// reasoning model alongside the candidate.
type ReferenceImage struct {
	AssetID  string `json:"asset_id,omitempty"`
	Role     string `json:"role,omitempty"`
	ImageUrl string `json:"image_url"`
}

type Options struct {
	SourceModel     string
	SourcePrompt    string
	ReferenceImages []ReferenceImage
}

type Service interface {
	BuildPlan(ctx context.Context, asset *models.Asset, opts Options) (*RefinementPlan, error)
}

// Planner composes the reasoning-model call that decides how an asset
// should be refined, and persists the resulting plan onto the asset.
type Planner struct {
	client   *openai.Client
	registry *registry.Registry
	assets   repository.IAssetRepository
	logger   *zap.Logger
}

func NewPlanner(apiKey string, reg *registry.Registry, assets repository.IAssetRepository, logger *zap.Logger) (*Planner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	return &Planner{
		client:   openai.NewClient(option.WithAPIKey(apiKey)),
		registry: reg,
		assets:   assets,
		logger:   logger,
	}, nil
}

func (p *Planner) BuildPlan(ctx context.Context, asset *models.Asset, opts Options) (*RefinementPlan, error) {
	sourceModel := opts.SourceModel
	if sourceModel == "" && asset.SourceModel != nil {
		sourceModel = *asset.SourceModel
	}
	sourcePrompt := opts.SourcePrompt
	if sourcePrompt == "" && asset.SourcePrompt != nil {
		sourcePrompt = *asset.SourcePrompt
	}

	raw, err := p.invoke(ctx, asset, sourceModel, sourcePrompt, opts.ReferenceImages)
	if err != nil {
		return nil, err
	}

	plan, err := parsePlan(raw, p.registry)
	if err != nil {
		return nil, err
	}

	// Known provenance passes through unchanged; the model's reconstruction
	// only stands in when nothing is known.
	if sourcePrompt != "" {
		plan.ReverseEngineeredPrompt = sourcePrompt
	}
	if sourceModel != "" {
		plan.EstimatedSourceModel = sourceModel
	}

	if err := p.persist(ctx, asset, plan, sourceModel, sourcePrompt); err != nil {
		return nil, err
	}

	p.logger.Info("refinement plan built",
		zap.String("asset_id", asset.ID.String()),
		zap.Bool("use_as_reference", plan.UseAsReference),
		zap.String("recommended_model", plan.RecommendedModel))

	return plan, nil
}

func (p *Planner) invoke(ctx context.Context, asset *models.Asset, sourceModel, sourcePrompt string, refs []ReferenceImage) (string, error) {
	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.ImagePart(asset.Url),
	}
	for _, ref := range refs {
		parts = append(parts, openai.ImagePart(ref.ImageUrl))
		if ref.Role != "" {
			parts = append(parts, openai.TextPart(fmt.Sprintf("The previous image is a %s reference.", ref.Role)))
		}
	}
	parts = append(parts, openai.TextPart(userPrompt(string(asset.Analysis), sourceModel, sourcePrompt)))

	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(p.registry)),
			openai.UserMessageParts(parts...),
		}),
		ResponseFormat: openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
			openai.ResponseFormatJSONObjectParam{
				Type: openai.F(openai.ResponseFormatJSONObjectTypeJSONObject),
			},
		),
		Seed:        openai.F(plannerSeed),
		Model:       openai.F(openai.ChatModelGPT4o),
		Temperature: openai.F(0.2),
	})
	if err != nil {
		return "", fmt.Errorf("reasoning model request failed: %w", err)
	}

	if len(completion.Choices) == 0 || len(completion.Choices[0].Message.Content) == 0 {
		return "", &ParseError{Err: fmt.Errorf("empty completion")}
	}

	return completion.Choices[0].Message.Content, nil
}

func (p *Planner) persist(ctx context.Context, asset *models.Asset, plan *RefinementPlan, sourceModel, sourcePrompt string) error {
	encoded, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}

	asset.Refinement = encoded
	if asset.SourceModel == nil && sourceModel != "" {
		asset.SourceModel = &sourceModel
	}
	if asset.SourcePrompt == nil && sourcePrompt != "" {
		asset.SourcePrompt = &sourcePrompt
	}

	if _, err := p.assets.UpdateByID(ctx, asset.ID.String(), asset); err != nil {
		return fmt.Errorf("failed to persist plan: %w", err)
	}

	return nil
}
