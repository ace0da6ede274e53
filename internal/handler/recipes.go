package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dishcovery/dishcovery-client/internal/domain"
	"github.com/dishcovery/dishcovery-client/internal/recipes"
)

// syncUserRequest is the profile sent by the identity provider session.
type syncUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

func (a *API) registerRecipeRoutes(api *gin.RouterGroup) {
	api.POST("/recipes", a.handleSaveRecipe)
	api.GET("/recipes", a.handleListRecipes)
	api.GET("/recipes/:id", a.handleGetRecipe)
	api.DELETE("/recipes/:id", a.handleDeleteRecipe)
	api.POST("/recipes/:id/favorite", a.handleToggleFavorite)

	api.POST("/users/sync", a.handleSyncUser)
	api.PUT("/users/preferences", a.handleUpdatePreferences)
}

// handleSaveRecipe saves the last successful generation.
func (a *API) handleSaveRecipe(c *gin.Context) {
	id, err := a.orchestrator.SaveLastRecipe(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (a *API) handleListRecipes(c *gin.Context) {
	ctx := c.Request.Context()
	list, err := a.recipes.List(ctx, recipes.UserFromContext(ctx))
	if err != nil {
		renderError(c, err)
		return
	}
	if list == nil {
		list = []domain.RecipeRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"recipes": list})
}

func (a *API) handleGetRecipe(c *gin.Context) {
	ctx := c.Request.Context()
	rec, err := a.recipes.Get(ctx, domain.RecordID(c.Param("id")), recipes.UserFromContext(ctx))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (a *API) handleDeleteRecipe(c *gin.Context) {
	ctx := c.Request.Context()
	if err := a.recipes.Delete(ctx, domain.RecordID(c.Param("id")), recipes.UserFromContext(ctx)); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *API) handleToggleFavorite(c *gin.Context) {
	ctx := c.Request.Context()
	rec, err := a.recipes.ToggleFavorite(ctx, domain.RecordID(c.Param("id")), recipes.UserFromContext(ctx))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// handleSyncUser mirrors the signed-in account. The id always comes from the
// identity header, never from the body.
func (a *API) handleSyncUser(c *gin.Context) {
	var req syncUserRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			renderError(c, domain.WrapAPIError(CodeBadRequest, "Invalid account body.", "", err))
			return
		}
	}
	if strings.TrimSpace(req.Email) == "" {
		req.Email = c.GetHeader(HeaderUserEmail)
	}

	user, err := a.recipes.SyncUser(c.Request.Context(), domain.User{
		ExternalID: recipes.UserFromContext(c.Request.Context()),
		Email:      req.Email,
		Name:       req.Name,
		ImageURL:   req.ImageURL,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (a *API) handleUpdatePreferences(c *gin.Context) {
	var prefs domain.UserPreferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		renderError(c, domain.WrapAPIError(CodeBadRequest, "Invalid preferences body.", "", err))
		return
	}
	ctx := c.Request.Context()
	user, err := a.recipes.UpdatePreferences(ctx, recipes.UserFromContext(ctx), prefs)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
