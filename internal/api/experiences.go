package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"substance-journal/internal/model"
	"substance-journal/internal/service"
)

type experienceRequest struct {
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	SortDate   time.Time      `json:"sortDate"`
	IsFavorite bool           `json:"isFavorite"`
	Location   model.Location `json:"location"`
}

func (r experienceRequest) input() service.ExperienceInput {
	return service.ExperienceInput{
		Title:      r.Title,
		Text:       r.Text,
		SortDate:   r.SortDate,
		IsFavorite: r.IsFavorite,
		Location:   r.Location,
	}
}

type ratingRequest struct {
	Option model.ShulginRatingOption `json:"option"`
	Time   time.Time                 `json:"time"`
}

type timedNoteRequest struct {
	Note             string              `json:"note"`
	Time             time.Time           `json:"time"`
	Color            model.AdaptiveColor `json:"color"`
	IsPartOfTimeline bool                `json:"isPartOfTimeline"`
}

func (s *Server) setupExperienceRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/experiences")
	g.GET("", s.listExperiences)
	g.POST("", s.createExperience)
	g.GET("/:id", s.experienceDetail)
	g.PUT("/:id", s.updateExperience)
	g.DELETE("/:id", s.deleteExperience)
	g.GET("/:id/doses", s.cumulativeDoses)
	g.POST("/:id/ratings", s.addRating)
	g.POST("/:id/notes", s.addTimedNote)

	rg.GET("/substances/usage", s.substanceUsage)
	rg.GET("/consumers", s.consumers)
}

func (s *Server) listExperiences(c *gin.Context) {
	exps, err := s.svc.Experiences.List(c.Request.Context(), c.Query("favorites") == "true")
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, exps)
}

func (s *Server) createExperience(c *gin.Context) {
	var req experienceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	exp, err := s.svc.Experiences.Create(c.Request.Context(), req.input())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, exp)
}

func (s *Server) experienceDetail(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	detail, err := s.svc.Experiences.Detail(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) updateExperience(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req experienceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	exp, err := s.svc.Experiences.Update(c.Request.Context(), id, req.input())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

func (s *Server) deleteExperience(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := s.svc.Experiences.Delete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) cumulativeDoses(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	doses, err := s.svc.Experiences.CumulativeDoses(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, doses)
}

func (s *Server) addRating(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req ratingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	rating, err := s.svc.Experiences.AddRating(c.Request.Context(), id, req.Option, req.Time)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rating)
}

func (s *Server) addTimedNote(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req timedNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	note, err := s.svc.Experiences.AddTimedNote(c.Request.Context(), id, service.TimedNoteInput{
		Note:             req.Note,
		Time:             req.Time,
		Color:            req.Color,
		IsPartOfTimeline: req.IsPartOfTimeline,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, note)
}

func (s *Server) substanceUsage(c *gin.Context) {
	usage, err := s.svc.Experiences.Usage(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, usage)
}

func (s *Server) consumers(c *gin.Context) {
	names, err := s.svc.Experiences.Consumers(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, names)
}
