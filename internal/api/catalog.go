package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"substance-journal/internal/model"
)

func (s *Server) setupCatalogRoutes(rg *gin.RouterGroup) {
	units := rg.Group("/units")
	units.GET("", s.listUnits)
	units.POST("", s.createUnit)
	units.GET("/:id", s.getUnit)
	units.DELETE("/:id", s.deleteUnit)

	recipes := rg.Group("/recipes")
	recipes.GET("", s.listRecipes)
	recipes.POST("", s.createRecipe)
	recipes.GET("/:id", s.getRecipe)
	recipes.DELETE("/:id", s.deleteRecipe)

	substances := rg.Group("/custom-substances")
	substances.GET("", s.listSubstances)
	substances.POST("", s.createSubstance)
	substances.DELETE("/:id", s.deleteSubstance)
}

func (s *Server) listUnits(c *gin.Context) {
	units, err := s.svc.Catalog.ListUnits(c.Request.Context(), c.Query("archived") == "true")
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, units)
}

func (s *Server) createUnit(c *gin.Context) {
	var req model.CustomUnit
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	unit, err := s.svc.Catalog.CreateUnit(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, unit)
}

func (s *Server) getUnit(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	unit, err := s.svc.Catalog.GetUnit(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, unit)
}

func (s *Server) deleteUnit(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	archived, err := s.svc.Catalog.DeleteUnit(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": archived})
}

func (s *Server) listRecipes(c *gin.Context) {
	recipes, err := s.svc.Catalog.ListRecipes(c.Request.Context(), c.Query("archived") == "true")
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, recipes)
}

func (s *Server) createRecipe(c *gin.Context) {
	var req model.CustomRecipe
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	recipe, err := s.svc.Catalog.CreateRecipe(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

func (s *Server) getRecipe(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	recipe, err := s.svc.Catalog.GetRecipe(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (s *Server) deleteRecipe(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	archived, err := s.svc.Catalog.DeleteRecipe(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": archived})
}

func (s *Server) listSubstances(c *gin.Context) {
	list, err := s.svc.Catalog.ListSubstances(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createSubstance(c *gin.Context) {
	var req model.CustomSubstance
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	sub, err := s.svc.Catalog.CreateSubstance(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (s *Server) deleteSubstance(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := s.svc.Catalog.DeleteSubstance(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
