package api

import (
	"net/http"

	"github.com/framelight/previz-server/internal/planner"

	"github.com/gin-gonic/gin"
)

type buildPlanParams struct {
	SourceModel     string                   `json:"source_model"`
	SourcePrompt    string                   `json:"source_prompt"`
	ReferenceImages []planner.ReferenceImage `json:"reference_images"`
}

func BuildRefinementPlan(c *gin.Context) {
	asset, ok := assetFromPath(c)
	if !ok {
		return
	}

	params := buildPlanParams{}
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&params); err != nil {
			badRequest(c, "failed to parse request body")
			return
		}
	}

	app := getApp(c)
	if app.Planner == nil {
		writeError(c, errPlannerDisabled)
		return
	}

	plan, err := app.Planner.BuildPlan(c.Request.Context(), asset, planner.Options{
		SourceModel:     params.SourceModel,
		SourcePrompt:    params.SourcePrompt,
		ReferenceImages: params.ReferenceImages,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"plan": plan, "asset": asset})
}
