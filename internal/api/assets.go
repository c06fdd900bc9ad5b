package api

import (
	"net/http"

	"github.com/framelight/previz-server/internal/db/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createAssetParams struct {
	Url          string  `json:"url"`
	ParentID     *string `json:"parent_asset_id"`
	Title        string  `json:"title"`
	Notes        string  `json:"notes"`
	SourceModel  *string `json:"source_model"`
	SourcePrompt *string `json:"source_prompt"`
}

func CreateAsset(c *gin.Context) {
	var params createAssetParams
	if err := c.BindJSON(&params); err != nil {
		badRequest(c, "failed to parse request body")
		return
	}
	if params.Url == "" {
		badRequest(c, "url is required")
		return
	}

	app := getApp(c)
	asset := &models.Asset{
		ID:           uuid.Must(uuid.NewRandom()),
		Url:          params.Url,
		Title:        params.Title,
		Notes:        params.Notes,
		SourceModel:  params.SourceModel,
		SourcePrompt: params.SourcePrompt,
		Status:       models.AssetStatusUnreviewed,
	}

	if params.ParentID != nil {
		parentID, err := uuid.Parse(*params.ParentID)
		if err != nil {
			badRequest(c, "invalid parent_asset_id")
			return
		}
		if _, err := app.AssetRepository.GetByID(c.Request.Context(), parentID.String()); err != nil {
			writeError(c, err)
			return
		}

		created, err := app.AssetRepository.CreateChild(c.Request.Context(), parentID, asset)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
		return
	}

	asset.Iteration = 1
	created, err := app.AssetRepository.Create(c.Request.Context(), asset)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

func GetAsset(c *gin.Context) {
	asset, ok := assetFromPath(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, asset)
}

func DeleteAsset(c *gin.Context) {
	asset, ok := assetFromPath(c)
	if !ok {
		return
	}

	// Removes the asset and its direct children only. Deeper descendants
	// are left in place.
	if err := getApp(c).AssetRepository.DeleteWithChildren(c.Request.Context(), asset.ID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "id": asset.ID})
}

type iterateParams struct {
	ImageUrl     string  `json:"image_url"`
	Title        string  `json:"title"`
	SourceModel  *string `json:"source_model"`
	SourcePrompt *string `json:"source_prompt"`
}

// IterateAsset registers an externally-produced image (for example a manual
// Midjourney render) as the next member of the asset's lineage.
func IterateAsset(c *gin.Context) {
	asset, ok := assetFromPath(c)
	if !ok {
		return
	}

	var params iterateParams
	if err := c.BindJSON(&params); err != nil {
		badRequest(c, "failed to parse request body")
		return
	}
	if params.ImageUrl == "" {
		badRequest(c, "image_url is required")
		return
	}

	child := &models.Asset{
		Url:          params.ImageUrl,
		Title:        params.Title,
		SourceModel:  params.SourceModel,
		SourcePrompt: params.SourcePrompt,
		Status:       models.AssetStatusUnreviewed,
	}

	created, err := getApp(c).AssetRepository.CreateChild(c.Request.Context(), asset.ID, child)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

func ListIterations(c *gin.Context) {
	asset, ok := assetFromPath(c)
	if !ok {
		return
	}

	lineage, err := getApp(c).AssetRepository.ListLineage(c.Request.Context(), asset.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"iterations": lineage})
}
