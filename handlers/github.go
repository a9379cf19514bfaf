package handlers

import (
	"errors"
	"net/http"
	"strings"

	"devconnector/github"
	"devconnector/models"

	"github.com/gin-gonic/gin"
)

// GitHubRepos proxies the latest repositories of a GitHub user.
func (h *Handler) GitHubRepos(c *gin.Context) {
	username := strings.TrimSpace(c.Param("username"))
	if username == "" {
		respondError(c, models.NewNotFoundError("GitHub profile"))
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	repos, err := h.github.Repos(ctx, username)
	switch {
	case errors.Is(err, github.ErrNotFound):
		respondError(c, models.NewNotFoundError("GitHub profile"))
		return
	case errors.Is(err, github.ErrUpstream):
		respondError(c, models.NewUpstreamError("Error connecting to GitHub"))
		return
	case err != nil:
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, repos)
}
