package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AnalyzeUnreviewed queues every unreviewed asset for background analysis
// and returns immediately.
func AnalyzeUnreviewed(c *gin.Context) {
	app := getApp(c)
	if app.Analysis == nil {
		writeError(c, errAnalysisDisabled)
		return
	}

	queued, err := app.Analysis.AnalyzeUnreviewed(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"queued": queued})
}

func AnalysisStatus(c *gin.Context) {
	app := getApp(c)
	if app.Analysis == nil {
		writeError(c, errAnalysisDisabled)
		return
	}

	c.JSON(http.StatusOK, app.Analysis.Status())
}
