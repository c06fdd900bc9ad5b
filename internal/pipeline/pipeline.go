package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/framelight/previz-server/internal/adapters"
	"github.com/framelight/previz-server/internal/db/models"
	"github.com/framelight/previz-server/internal/planner"
	"github.com/framelight/previz-server/internal/registry"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// Upscale always runs at this factor; the product exposes no knob.
	DefaultUpscaleFactor = 2
	DefaultUpscaleModel  = "real-esrgan"

	// Applied when a refine step is requested without an instruction.
	DefaultRefineInstruction = "fix remaining artifacts and inconsistencies while keeping composition, subject identity and lighting unchanged"
)

var ErrNoPlan = errors.New("asset has no refinement plan; build a plan or supply prompt_override")

// AssetStore is the slice of the asset repository the controller needs: a
// transactional insert of the next lineage member.
type AssetStore interface {
	CreateChild(ctx context.Context, parentID uuid.UUID, child *models.Asset) (*models.Asset, error)
}

// Mirror persists a provider-hosted or inline image into our own storage
// and returns the served URL plus a thumbnail URL.
type Mirror interface {
	Mirror(ctx context.Context, img adapters.GeneratedImage) (url string, thumbnailUrl string, err error)
}

// StepResult reports one pipeline step. Exactly one of Asset, Error, or the
// prompt-only fields is meaningful: a prompt-only outcome is not an error.
type StepResult struct {
	Asset        *models.Asset  `json:"asset,omitempty"`
	Error        string         `json:"error,omitempty"`
	APIAvailable *bool          `json:"api_available,omitempty"`
	Prompt       string         `json:"prompt,omitempty"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	Message      string         `json:"message,omitempty"`
}

func (s *StepResult) ok() bool { return s != nil && s.Asset != nil }

// Run is the ephemeral result of one pipeline invocation. Steps appear in
// generate -> refine -> upscale order; Iterations holds the assets actually
// created, in creation order.
type Run struct {
	Step1Generate  *StepResult     `json:"step1_generate,omitempty"`
	Step2Refine    *StepResult     `json:"step2_refine,omitempty"`
	Step3Upscale   *StepResult     `json:"step3_upscale,omitempty"`
	Iterations     []*models.Asset `json:"iterations"`
	CompletedSteps int             `json:"completed_steps"`
}

type RunParams struct {
	Prompt       string
	Model        string
	RefineModel  string
	RefinePrompt string
	Upscale      bool
	UpscaleModel string

	FilmStock   string
	RealismLock bool

	NumImages       int
	ImageSize       string
	NumSteps        int
	GuidanceScale   float64
	UseReference    bool
	ReferenceImages []string
}

type GenerateParams struct {
	Model           string
	PromptOverride  string
	FilmStock       string
	RealismLock     bool
	NumImages       int
	ReferenceImages []string
}

// GenerateOutcome is the result of a single generation call outside a full
// pipeline run.
type GenerateOutcome struct {
	Assets       []*models.Asset `json:"generated"`
	UseReference bool            `json:"useReference"`
	Prompt       string          `json:"prompt"`
	Model        string          `json:"model"`

	// Set instead of Assets when the chosen backend is prompt-only.
	PromptOnly *adapters.GenerateResult `json:"prompt_only,omitempty"`
}

// Controller sequences generation steps against the adapter layer,
// persisting a new lineage member after each success and isolating
// failures per step.
type Controller struct {
	assets   AssetStore
	resolver adapters.Resolver
	registry *registry.Registry
	mirror   Mirror
	logger   *zap.Logger
}

func NewController(assets AssetStore, resolver adapters.Resolver, reg *registry.Registry, mirror Mirror, logger *zap.Logger) *Controller {
	return &Controller{
		assets:   assets,
		resolver: resolver,
		registry: reg,
		mirror:   mirror,
		logger:   logger,
	}
}

// Run executes GENERATE -> [REFINE] -> [UPSCALE] strictly in order. A
// generate failure terminates the run; a refine failure does not stop the
// upscale, which falls back to the best prior result.
func (c *Controller) Run(ctx context.Context, subject *models.Asset, p RunParams) (*Run, error) {
	run := &Run{Iterations: []*models.Asset{}}

	run.Step1Generate = c.generateStep(ctx, subject, p)
	if !run.Step1Generate.ok() {
		// Nothing to refine or upscale against.
		return run, nil
	}
	run.Iterations = append(run.Iterations, run.Step1Generate.Asset)
	run.CompletedSteps++
	best := run.Step1Generate.Asset

	if p.RefineModel != "" {
		run.Step2Refine = c.refineStep(ctx, subject, best, p)
		if run.Step2Refine.ok() {
			run.Iterations = append(run.Iterations, run.Step2Refine.Asset)
			run.CompletedSteps++
			best = run.Step2Refine.Asset
		}
	}

	if p.Upscale {
		run.Step3Upscale = c.upscaleStep(ctx, subject, best, p)
		if run.Step3Upscale.ok() {
			run.Iterations = append(run.Iterations, run.Step3Upscale.Asset)
			run.CompletedSteps++
		}
	}

	return run, nil
}

func (c *Controller) generateStep(ctx context.Context, subject *models.Asset, p RunParams) *StepResult {
	gen, err := c.resolver.Generator(p.Model)
	if err != nil {
		return &StepResult{Error: err.Error()}
	}

	refs := p.ReferenceImages
	if p.UseReference && len(refs) == 0 {
		refs = []string{subject.Url}
	}

	refContext := ""
	if p.UseReference {
		refContext = ReferenceContext(len(refs))
	}
	prompt := ComposePrompt(refContext, p.FilmStock, p.Prompt, p.RealismLock)

	numImages := p.NumImages
	if numImages <= 0 {
		numImages = 1
	}

	result, err := gen.Generate(ctx, adapters.GenerateRequest{
		Model:           p.Model,
		Prompt:          prompt,
		UseReference:    p.UseReference,
		ReferenceImages: refs,
		NumImages:       numImages,
		ImageSize:       p.ImageSize,
		NumSteps:        p.NumSteps,
		GuidanceScale:   p.GuidanceScale,
	})
	if err != nil {
		c.logger.Error("generate step failed", zap.String("model", p.Model), zap.Error(err))
		return &StepResult{Error: err.Error()}
	}
	if !result.APIAvailable {
		return promptOnlyStep(result)
	}

	return c.persistStep(ctx, subject, result, p.Model, prompt, "generated")
}

func (c *Controller) refineStep(ctx context.Context, subject, prior *models.Asset, p RunParams) *StepResult {
	editor, err := c.resolver.Editor(p.RefineModel)
	if err != nil {
		return &StepResult{Error: err.Error()}
	}

	instruction := p.RefinePrompt
	if instruction == "" {
		instruction = DefaultRefineInstruction
	}

	result, err := editor.Edit(ctx, adapters.GenerateRequest{
		Model:           p.RefineModel,
		Prompt:          instruction,
		UseReference:    true,
		ReferenceImages: []string{prior.Url},
		NumImages:       1,
	})
	if err != nil {
		c.logger.Error("refine step failed", zap.String("model", p.RefineModel), zap.Error(err))
		return &StepResult{Error: err.Error()}
	}
	if !result.APIAvailable {
		return promptOnlyStep(result)
	}

	return c.persistStep(ctx, subject, result, p.RefineModel, instruction, "refined")
}

func (c *Controller) upscaleStep(ctx context.Context, subject, prior *models.Asset, p RunParams) *StepResult {
	model := p.UpscaleModel
	if model == "" {
		model = DefaultUpscaleModel
	}

	upscaler, err := c.resolver.Upscaler(model)
	if err != nil {
		return &StepResult{Error: err.Error()}
	}

	result, err := upscaler.Upscale(ctx, prior.Url, DefaultUpscaleFactor)
	if err != nil {
		c.logger.Error("upscale step failed", zap.String("model", model), zap.Error(err))
		return &StepResult{Error: err.Error()}
	}
	if !result.APIAvailable {
		return promptOnlyStep(result)
	}

	return c.persistStep(ctx, subject, result, model, "", "upscaled")
}

func (c *Controller) persistStep(ctx context.Context, subject *models.Asset, result *adapters.GenerateResult, model, prompt, verb string) *StepResult {
	if len(result.Images) == 0 {
		return &StepResult{Error: adapters.ErrNoImages.Error()}
	}

	url, thumbUrl, err := c.mirror.Mirror(ctx, result.Images[0])
	if err != nil {
		return &StepResult{Error: fmt.Sprintf("failed to store image: %v", err)}
	}

	child := &models.Asset{
		Url:          url,
		ThumbnailUrl: thumbUrl,
		SourceModel:  &model,
		Status:       models.AssetStatusUnreviewed,
		Title:        fmt.Sprintf("%s (%s)", subject.Title, verb),
	}
	if prompt != "" {
		child.SourcePrompt = &prompt
	}

	created, err := c.assets.CreateChild(ctx, subject.ID, child)
	if err != nil {
		return &StepResult{Error: fmt.Sprintf("failed to persist asset: %v", err)}
	}

	return &StepResult{Asset: created}
}

// Generate runs a single generation step using the asset's stored plan, or
// a caller override. It fails before any provider call when neither exists.
func (c *Controller) Generate(ctx context.Context, subject *models.Asset, p GenerateParams) (*GenerateOutcome, error) {
	plan, err := PlanFromAsset(subject)
	if err != nil {
		return nil, err
	}
	if plan == nil && p.PromptOverride == "" {
		return nil, ErrNoPlan
	}

	basePrompt := p.PromptOverride
	useReference := false
	model := p.Model
	var settings planner.GenerationSettings

	if plan != nil {
		if basePrompt == "" {
			basePrompt = plan.RefinedPrompt
		}
		if model == "" {
			model = plan.RecommendedModel
		}
		useReference = plan.UseAsReference
		if plan.GenerationSettings != nil {
			settings = *plan.GenerationSettings
		}
	}
	if model == "" {
		def, err := c.registry.DefaultModel(registry.CapabilityGenerate)
		if err != nil {
			return nil, err
		}
		model = def.ID
	}
	if _, err := c.registry.GetModelByID(model); err != nil {
		return nil, err
	}

	gen, err := c.resolver.Generator(model)
	if err != nil {
		return nil, err
	}

	refs := p.ReferenceImages
	if useReference {
		refs = append([]string{subject.Url}, refs...)
	}

	refContext := ""
	if useReference {
		refContext = ReferenceContext(len(refs))
	}
	prompt := ComposePrompt(refContext, p.FilmStock, basePrompt, p.RealismLock)

	numImages := p.NumImages
	if numImages <= 0 {
		numImages = 1
	}

	result, err := gen.Generate(ctx, adapters.GenerateRequest{
		Model:           model,
		Prompt:          prompt,
		UseReference:    useReference,
		ReferenceImages: refs,
		NumImages:       numImages,
		ImageSize:       settings.AspectRatio,
		NumSteps:        settings.NumSteps,
		GuidanceScale:   settings.GuidanceScale,
	})
	if err != nil {
		return nil, err
	}

	outcome := &GenerateOutcome{
		UseReference: useReference,
		Prompt:       prompt,
		Model:        model,
	}

	if !result.APIAvailable {
		outcome.PromptOnly = result
		return outcome, nil
	}

	for _, img := range result.Images {
		step := c.persistStep(ctx, subject, &adapters.GenerateResult{Images: []adapters.GeneratedImage{img}, APIAvailable: true}, model, prompt, "generated")
		if step.Error != "" {
			return nil, fmt.Errorf("%s", step.Error)
		}
		outcome.Assets = append(outcome.Assets, step.Asset)
	}

	return outcome, nil
}

// PlanFromAsset decodes the stored refinement plan, if any.
func PlanFromAsset(asset *models.Asset) (*planner.RefinementPlan, error) {
	if len(asset.Refinement) == 0 {
		return nil, nil
	}

	var plan planner.RefinementPlan
	if err := json.Unmarshal(asset.Refinement, &plan); err != nil {
		return nil, fmt.Errorf("stored refinement plan is corrupt: %w", err)
	}

	return &plan, nil
}

func promptOnlyStep(result *adapters.GenerateResult) *StepResult {
	available := false
	return &StepResult{
		APIAvailable: &available,
		Prompt:       result.Prompt,
		Parameters:   result.Parameters,
		Message:      result.Message,
	}
}
