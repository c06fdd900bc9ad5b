package api

import (
	"net/http"

	"github.com/framelight/previz-server/internal/config"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

func GetFile(c *gin.Context) {
	filename := c.Param("filename")
	app := getApp(c)

	if app.Config().FilesystemType != config.FilesystemLocal {
		// S3-backed files are served from their public URLs directly.
		c.JSON(http.StatusNotFound, gin.H{"error": "file serving is only available with local storage"})
		return
	}

	file, err := app.FileStorage.GetFile(filename)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	c.Data(http.StatusOK, mimetype.Detect(file.Content).String(), file.Content)
}
