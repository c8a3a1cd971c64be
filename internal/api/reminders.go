package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"substance-journal/internal/model"
	"substance-journal/internal/service"
)

type reminderRequest struct {
	Title         string                    `json:"title"`
	Time          string                    `json:"time"`
	RepeatPolicy  model.RepeatPolicy        `json:"repeatPolicy"`
	Weekday       time.Weekday              `json:"weekday"`
	Date          *time.Time                `json:"date"`
	IsEnabled     *bool                     `json:"isEnabled"`
	SubstanceName string                    `json:"substanceName"`
	Dose          *float64                  `json:"dose"`
	Units         string                    `json:"units"`
	Route         model.AdministrationRoute `json:"administrationRoute"`
}

func (r reminderRequest) input() service.ReminderInput {
	enabled := r.IsEnabled == nil || *r.IsEnabled
	return service.ReminderInput{
		Title:         r.Title,
		Time:          r.Time,
		RepeatPolicy:  r.RepeatPolicy,
		Weekday:       r.Weekday,
		Date:          r.Date,
		IsEnabled:     enabled,
		SubstanceName: r.SubstanceName,
		Dose:          r.Dose,
		Units:         r.Units,
		Route:         r.Route,
	}
}

func (s *Server) setupReminderRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/reminders")
	g.GET("", s.listReminders)
	g.POST("", s.createReminder)
	g.GET("/digest", s.digest)
	g.PUT("/:id", s.updateReminder)
	g.DELETE("/:id", s.deleteReminder)
}

func (s *Server) listReminders(c *gin.Context) {
	list, err := s.svc.Reminders.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createReminder(c *gin.Context) {
	var req reminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	r, err := s.svc.Reminders.Create(c.Request.Context(), req.input())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (s *Server) updateReminder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req reminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	r, err := s.svc.Reminders.Update(c.Request.Context(), id, req.input())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) deleteReminder(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := s.svc.Reminders.Delete(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) digest(c *gin.Context) {
	text, err := s.svc.Reminders.DailyDigest(c.Request.Context(), time.Now())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": text})
}
