package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pgxn-tester/server/internal/repository"
)

type listMachinesController struct{ repo repository.MachineRepository }

func NewListMachinesController(repo repository.MachineRepository) *listMachinesController {
	return &listMachinesController{repo: repo}
}

func (h *listMachinesController) Handle(c *gin.Context) {
	machines, err := h.repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, machines)
}

type getMachineController struct{ repo repository.MachineRepository }

func NewGetMachineController(repo repository.MachineRepository) *getMachineController {
	return &getMachineController{repo: repo}
}

func (h *getMachineController) Handle(c *gin.Context) {
	m, err := h.repo.Get(c.Request.Context(), c.Param("name"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown machine"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, m)
}
