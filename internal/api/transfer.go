package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) setupTransferRoutes(rg *gin.RouterGroup) {
	rg.GET("/export", s.exportJournal)
	rg.POST("/import", s.importJournal)
	rg.POST("/import/substances", s.importSubstances)
}

func (s *Server) exportJournal(c *gin.Context) {
	var buf bytes.Buffer
	sum, err := s.svc.Transfer.Export(c.Request.Context(), &buf)
	s.metrics.transfer("export", err)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.log.Info("journal exported", zap.Int("experiences", sum.Experiences), zap.Int("bytes", buf.Len()))
	name := "journal-" + time.Now().Format("20060102-150405") + ".json"
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/json", buf.Bytes())
}

func (s *Server) importJournal(c *gin.Context) {
	sum, err := s.svc.Transfer.Import(c.Request.Context(), c.Request.Body)
	s.metrics.transfer("import", err)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) importSubstances(c *gin.Context) {
	created, updated, err := s.svc.Transfer.ImportCustomSubstances(c.Request.Context(), c.Request.Body)
	s.metrics.transfer("import_substances", err)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"created": created, "updated": updated})
}
