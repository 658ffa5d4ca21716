package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pgxn-tester/server/internal/repository"
)

type listUsersController struct{ repo repository.DistributionRepository }

func NewListUsersController(repo repository.DistributionRepository) *listUsersController {
	return &listUsersController{repo: repo}
}

func (h *listUsersController) Handle(c *gin.Context) {
	users, err := h.repo.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, users)
}

type getUserController struct{ repo repository.DistributionRepository }

func NewGetUserController(repo repository.DistributionRepository) *getUserController {
	return &getUserController{repo: repo}
}

func (h *getUserController) Handle(c *gin.Context) {
	user, releases, err := h.repo.GetUser(c.Request.Context(), c.Param("name"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown user"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "releases": releases})
}
