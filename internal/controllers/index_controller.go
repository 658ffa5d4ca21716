package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// indexController advertises the API surface as URI templates so clients
// can discover endpoints instead of hardcoding paths.
type indexController struct{}

func NewIndexController() *indexController {
	return &indexController{}
}

func (h *indexController) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"distributions":        "/distributions",
		"distribution":         "/distributions/{distribution}",
		"distribution_version": "/distributions/{distribution}/{version}",
		"users":                "/users",
		"user":                 "/users/{user}",
		"machines":             "/machines",
		"machine":              "/machines/{machine}",
		"queue":                "/machines/{machine}/queue",
		"results":              "/results",
		"result":               "/results/{uuid}",
		"stats":                "/stats",
	})
}
