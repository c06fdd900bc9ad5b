package server

import (
	"net/http"

	"github.com/framelight/previz-server/internal/api"
	"github.com/framelight/previz-server/internal/api/middleware"
	"github.com/framelight/previz-server/internal/app"
	"github.com/gin-gonic/gin"
)

func (s *Server) SetupRoutes(app *app.App) {
	// Health check endpoint
	s.ginEngine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Not an API, just a simple file server endpoint
	s.ginEngine.GET("/file/:filename", handlerWrapper(app, api.GetFile))

	apiV1 := s.ginEngine.Group("/api/v1")

	// Authentication middleware
	if !app.Config().DisableAuth {
		apiV1.Use(handlerWrapper(app, middleware.AuthenticationMiddleware))
	} else {
		apiV1.Use(handlerWrapper(app, func(c *gin.Context) { c.Next() }))
	}

	apiV1.POST("/assets", api.CreateAsset)
	apiV1.GET("/assets/:id", api.GetAsset)
	apiV1.DELETE("/assets/:id", api.DeleteAsset)
	apiV1.GET("/assets/:id/iterations", api.ListIterations)
	apiV1.POST("/assets/:id/iterate", api.IterateAsset)

	apiV1.POST("/assets/:id/refinement-plan", api.BuildRefinementPlan)
	apiV1.POST("/assets/:id/generate", api.GenerateFromPlan)
	apiV1.POST("/assets/:id/pipeline", api.RunPipeline)

	apiV1.POST("/analysis/unreviewed", api.AnalyzeUnreviewed)
	apiV1.GET("/analysis/unreviewed/status", api.AnalysisStatus)

	apiV1.GET("/models", api.ListModels)
	apiV1.GET("/models/active", api.ListActiveModels)
	apiV1.GET("/models/:id", api.GetModel)
}

func handlerWrapper(app *app.App, f func(c *gin.Context)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set("app", app)
		f(ctx)
	}
}
