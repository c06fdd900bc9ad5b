package api

import (
	"fmt"
	"net/http"

	"github.com/framelight/previz-server/internal/pipeline"
	"github.com/framelight/previz-server/internal/registry"

	"github.com/gin-gonic/gin"
)

type generateParams struct {
	Model           string   `json:"model"`
	PromptOverride  string   `json:"prompt_override"`
	FilmStock       string   `json:"film_stock"`
	RealismLock     bool     `json:"realism_lock"`
	NumImages       int      `json:"num_images"`
	ReferenceImages []string `json:"reference_images"`
}

func GenerateFromPlan(c *gin.Context) {
	asset, ok := assetFromPath(c)
	if !ok {
		return
	}

	params := generateParams{}
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&params); err != nil {
			badRequest(c, "failed to parse request body")
			return
		}
	}

	outcome, err := getApp(c).Pipeline.Generate(c.Request.Context(), asset, pipeline.GenerateParams{
		Model:           params.Model,
		PromptOverride:  params.PromptOverride,
		FilmStock:       params.FilmStock,
		RealismLock:     params.RealismLock,
		NumImages:       params.NumImages,
		ReferenceImages: params.ReferenceImages,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, outcome)
}

type pipelineParams struct {
	Prompt       string `json:"prompt"`
	Model        string `json:"model"`
	RefineModel  string `json:"refine_model"`
	RefinePrompt string `json:"refine_prompt"`
	Upscale      bool   `json:"upscale"`
	UpscaleModel string `json:"upscale_model"`

	FilmStock   string `json:"film_stock"`
	RealismLock bool   `json:"realism_lock"`

	NumImages       int      `json:"num_images"`
	ImageSize       string   `json:"image_size"`
	NumSteps        int      `json:"num_steps"`
	GuidanceScale   float64  `json:"guidance_scale"`
	UseReference    bool     `json:"use_reference"`
	ReferenceImages []string `json:"reference_images"`
}

func RunPipeline(c *gin.Context) {
	asset, ok := assetFromPath(c)
	if !ok {
		return
	}

	var params pipelineParams
	if err := c.BindJSON(&params); err != nil {
		badRequest(c, "failed to parse request body")
		return
	}

	if params.Prompt == "" && params.Model == "" {
		// Fall back to the asset's stored plan for prompt and model.
		plan, err := pipeline.PlanFromAsset(asset)
		if err != nil {
			writeError(c, err)
			return
		}
		if plan == nil {
			writeError(c, pipeline.ErrNoPlan)
			return
		}
		params.Prompt = plan.RefinedPrompt
		params.Model = plan.RecommendedModel
		params.UseReference = params.UseReference || plan.UseAsReference
	}
	if params.Prompt == "" {
		badRequest(c, "prompt is required")
		return
	}

	app := getApp(c)
	if params.Model == "" {
		def, err := app.Registry.DefaultModel(registry.CapabilityGenerate)
		if err != nil {
			writeError(c, err)
			return
		}
		params.Model = def.ID
	}
	if _, err := app.Registry.GetModelByID(params.Model); err != nil {
		writeError(c, err)
		return
	}

	// Every model the run will touch is validated up front, so a bad id
	// cannot surface mid-run after provider calls already happened.
	if params.RefineModel != "" {
		refine, err := app.Registry.GetModelByID(params.RefineModel)
		if err != nil {
			writeError(c, err)
			return
		}
		if !refine.Can(registry.CapabilityEdit) {
			badRequest(c, fmt.Sprintf("model %s cannot edit images", refine.ID))
			return
		}
	}
	if params.Upscale {
		upscaleModel := params.UpscaleModel
		if upscaleModel == "" {
			upscaleModel = pipeline.DefaultUpscaleModel
		}
		up, err := app.Registry.GetModelByID(upscaleModel)
		if err != nil {
			writeError(c, err)
			return
		}
		if !up.Can(registry.CapabilityUpscale) {
			badRequest(c, fmt.Sprintf("model %s cannot upscale images", up.ID))
			return
		}
	}

	run, err := app.Pipeline.Run(c.Request.Context(), asset, pipeline.RunParams{
		Prompt:          params.Prompt,
		Model:           params.Model,
		RefineModel:     params.RefineModel,
		RefinePrompt:    params.RefinePrompt,
		Upscale:         params.Upscale,
		UpscaleModel:    params.UpscaleModel,
		FilmStock:       params.FilmStock,
		RealismLock:     params.RealismLock,
		NumImages:       params.NumImages,
		ImageSize:       params.ImageSize,
		NumSteps:        params.NumSteps,
		GuidanceScale:   params.GuidanceScale,
		UseReference:    params.UseReference,
		ReferenceImages: params.ReferenceImages,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, run)
}
