package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pgxn-tester/server/internal/repository"
)

type listDistributionsController struct{ repo repository.DistributionRepository }

func NewListDistributionsController(repo repository.DistributionRepository) *listDistributionsController {
	return &listDistributionsController{repo: repo}
}

func (h *listDistributionsController) Handle(c *gin.Context) {
	dists, err := h.repo.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dists)
}

type getDistributionController struct{ repo repository.DistributionRepository }

func NewGetDistributionController(repo repository.DistributionRepository) *getDistributionController {
	return &getDistributionController{repo: repo}
}

func (h *getDistributionController) Handle(c *gin.Context) {
	dist, versions, err := h.repo.Get(c.Request.Context(), c.Param("name"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown distribution"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(versions) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no versions for the distribution"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"dist":     dist.Name,
		"user":     dist.User,
		"versions": versions,
	})
}

type getVersionController struct{ repo repository.DistributionRepository }

func NewGetVersionController(repo repository.DistributionRepository) *getVersionController {
	return &getVersionController{repo: repo}
}

func (h *getVersionController) Handle(c *gin.Context) {
	v, err := h.repo.GetVersion(c.Request.Context(), c.Param("name"), c.Param("version"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown distribution or version"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"dist":    v.DistName,
		"version": v.Version,
		"date":    v.Date,
		"status":  v.Status,
	})
}
