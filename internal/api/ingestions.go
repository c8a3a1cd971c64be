package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"substance-journal/internal/model"
	"substance-journal/internal/service"
)

// experienceRef picks the target experience: ExperienceID when set, a new
// experience named ExperienceTitle otherwise.
type experienceRef struct {
	ExperienceID    uint   `json:"experienceId"`
	ExperienceTitle string `json:"experienceTitle"`
}

func (r experienceRef) target() service.ExperienceTarget {
	return service.ExperienceTarget{ID: r.ExperienceID, Title: r.ExperienceTitle}
}

type ingestionRequest struct {
	experienceRef
	SubstanceName     string                    `json:"substanceName"`
	Route             model.AdministrationRoute `json:"administrationRoute"`
	Dose              *float64                  `json:"dose"`
	IsEstimate        bool                      `json:"isDoseAnEstimate"`
	StandardDeviation *float64                  `json:"estimatedDoseStandardDeviation"`
	Units             string                    `json:"units"`
	CustomUnitID      *uint                     `json:"customUnitId"`
	Time              time.Time                 `json:"time"`
	EndTime           *time.Time                `json:"endTime"`
	Notes             string                    `json:"notes"`
	StomachFullness   *model.StomachFullness    `json:"stomachFullness"`
	ConsumerName      string                    `json:"consumerName"`
	Color             *model.AdaptiveColor      `json:"color"`
}

type recipeIngestionRequest struct {
	experienceRef
	RecipeID          uint                   `json:"recipeId"`
	Dose              *float64               `json:"dose"`
	IsEstimate        bool                   `json:"isDoseAnEstimate"`
	StandardDeviation *float64               `json:"estimatedDoseStandardDeviation"`
	Time              time.Time              `json:"time"`
	EndTime           *time.Time             `json:"endTime"`
	Notes             string                 `json:"notes"`
	StomachFullness   *model.StomachFullness `json:"stomachFullness"`
	ConsumerName      string                 `json:"consumerName"`
}

func (s *Server) setupIngestionRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/ingestions")
	g.POST("", s.logIngestion)
	g.POST("/recipe", s.logRecipe)
	g.GET("/:id", s.getIngestion)
	g.DELETE("/:id", s.deleteIngestion)

	rg.GET("/suggestions", s.suggestions)
}

func (s *Server) logIngestion(c *gin.Context) {
	var req ingestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ing, err := s.svc.Ingestions.LogIngestion(c.Request.Context(), service.IngestionInput{
		Experience:        req.target(),
		SubstanceName:     req.SubstanceName,
		Route:             req.Route,
		Dose:              req.Dose,
		IsEstimate:        req.IsEstimate,
		StandardDeviation: req.StandardDeviation,
		Units:             req.Units,
		CustomUnitID:      req.CustomUnitID,
		Time:              req.Time,
		EndTime:           req.EndTime,
		Notes:             req.Notes,
		StomachFullness:   req.StomachFullness,
		ConsumerName:      req.ConsumerName,
		Color:             req.Color,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.ingestionsLogged(1)
	c.JSON(http.StatusCreated, ing)
}

func (s *Server) logRecipe(c *gin.Context) {
	var req recipeIngestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ings, err := s.svc.Ingestions.LogRecipe(c.Request.Context(), service.RecipeInput{
		Experience:        req.target(),
		RecipeID:          req.RecipeID,
		Dose:              req.Dose,
		IsEstimate:        req.IsEstimate,
		StandardDeviation: req.StandardDeviation,
		Time:              req.Time,
		EndTime:           req.EndTime,
		Notes:             req.Notes,
		StomachFullness:   req.StomachFullness,
		ConsumerName:      req.ConsumerName,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.metrics.ingestionsLogged(len(ings))
	c.JSON(http.StatusCreated, ings)
}

func (s *Server) getIngestion(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	ing, err := s.svc.Ingestions.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ing)
}

func (s *Server) deleteIngestion(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	n, err := s.svc.Ingestions.DeleteIngestion(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (s *Server) suggestions(c *gin.Context) {
	list, err := s.svc.Suggestions.Suggestions(c.Request.Context(), c.Query("q"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
