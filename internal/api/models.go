package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": getApp(c).Registry.AllModels()})
}

func ListActiveModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": getApp(c).Registry.ActiveModels()})
}

func GetModel(c *gin.Context) {
	model, err := getApp(c).Registry.GetModelByID(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model)
}
