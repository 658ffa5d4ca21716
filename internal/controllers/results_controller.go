package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pgxn-tester/server/internal/repository"
)

type getResultController struct{ repo repository.ResultRepository }

func NewGetResultController(repo repository.ResultRepository) *getResultController {
	return &getResultController{repo: repo}
}

func (h *getResultController) Handle(c *gin.Context) {
	res, err := h.repo.Get(c.Request.Context(), c.Param("uuid"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown result uuid"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

type listResultsController struct{ repo repository.ResultRepository }

func NewListResultsController(repo repository.ResultRepository) *listResultsController {
	return &listResultsController{repo: repo}
}

func (h *listResultsController) Handle(c *gin.Context) {
	// version filtering only makes sense inside one distribution
	if c.Query("version") != "" && c.Query("distribution") == "" {
		c.JSON(http.StatusBadRequest,
			gin.H{"error": "when providing 'version' parameter, 'distribution' is required"})
		return
	}

	page := 0
	if p := c.Query("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
			return
		}
		page = n
	}

	f := repository.ResultFilter{
		Machine:      c.Query("machine"),
		User:         c.Query("user"),
		Distribution: c.Query("distribution"),
		Version:      c.Query("version"),
		PGVersion:    c.Query("pg_version"),
		Status:       c.Query("status"),
		Install:      c.Query("install"),
		Load:         c.Query("load"),
		Check:        c.Query("check"),
		Page:         page,
	}

	results, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, results)
}
