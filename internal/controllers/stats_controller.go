package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pgxn-tester/server/internal/services"
)

type statsController struct{ stats services.StatsService }

func NewStatsController(stats services.StatsService) *statsController {
	return &statsController{stats: stats}
}

func (h *statsController) Handle(c *gin.Context) {
	overview, err := h.stats.Overview(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, overview)
}
