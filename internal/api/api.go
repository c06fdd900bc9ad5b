package api

import (
	"errors"
	"net/http"

	"github.com/framelight/previz-server/internal/app"
	"github.com/framelight/previz-server/internal/db/models"
	"github.com/framelight/previz-server/internal/db/repository"
	"github.com/framelight/previz-server/internal/pipeline"
	"github.com/framelight/previz-server/internal/planner"
	"github.com/framelight/previz-server/internal/registry"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var (
	errPlannerDisabled  = errors.New("refinement planning is not configured; set OPENAI_API_KEY")
	errAnalysisDisabled = errors.New("image analysis is not configured; set OPENAI_API_KEY")
)

func getApp(c *gin.Context) *app.App {
	return c.MustGet("app").(*app.App)
}

// writeError maps domain errors onto the API's error envelope. Validation
// problems are 400, unknown assets and models are 404, everything else
// (provider failures included) is 500.
func writeError(c *gin.Context, err error) {
	var parseErr *planner.ParseError

	switch {
	case errors.Is(err, pipeline.ErrNoPlan):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrAssetNotFound), errors.Is(err, registry.ErrUnknownModel):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &parseErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// assetFromPath loads the asset named by the :id path param, writing the
// appropriate error response itself when that fails.
func assetFromPath(c *gin.Context) (*models.Asset, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid asset id")
		return nil, false
	}

	asset, err := getApp(c).AssetRepository.GetByID(c.Request.Context(), id.String())
	if err != nil {
		writeError(c, err)
		return nil, false
	}

	return asset, true
}
