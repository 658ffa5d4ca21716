package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pgxn-tester/server/internal/services"
)

type queueController struct{ svc services.QueueService }

func NewQueueController(s services.QueueService) *queueController {
	return &queueController{svc: s}
}

func (h *queueController) Handle(c *gin.Context) {
	machine := c.Param("name")
	pgVersion := c.Query("pg_version")
	if pgVersion == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing pg_version parameter"})
		return
	}

	items, err := h.svc.Queue(c.Request.Context(), machine, pgVersion)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, items)
}
