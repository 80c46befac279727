package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tchayre/logsti/internal/charts"
	"github.com/tchayre/logsti/internal/export"
	"github.com/tchayre/logsti/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// GET /api/health. 503 when the backend does not answer.
func (s *Server) handleHealth(c *gin.Context) {
	status := s.gw.HealthCheck(c.Request.Context())
	code := http.StatusOK
	if !status.OK {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// GET /api/export?start_month=&start_year=&end_month=&end_year=&q=&status=
func (s *Server) handleExport(c *gin.Context) {
	var r export.DateRange
	if err := c.ShouldBindQuery(&r); err != nil {
		badRequest(c, "invalid range: "+err.Error())
		return
	}
	status, ok := statusQuery(c)
	if !ok {
		return
	}
	tickets, err := s.gw.Tickets().List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	tickets = models.FilterTickets(tickets, c.Query("q"), status)
	var buf bytes.Buffer
	if err := s.exporter.WriteSpreadsheet(&buf, tickets, r); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, r.FileName()))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// GET /api/charts
func (s *Server) handleCharts(c *gin.Context) {
	tickets, err := s.gw.Tickets().List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	res := charts.Aggregate(tickets, s.loc)
	if s.chartGauges != nil {
		s.chartGauges.Observe(res)
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) requireBackup(c *gin.Context) bool {
	if s.backup == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "backups are not configured"})
		return false
	}
	return true
}

func periodParams(c *gin.Context) (month, year int, ok bool) {
	month, err1 := strconv.Atoi(c.Param("month"))
	year, err2 := strconv.Atoi(c.Param("year"))
	if err1 != nil || err2 != nil {
		badRequest(c, "month and year must be numbers")
		return 0, 0, false
	}
	return month, year, true
}

// GET /api/backups
func (s *Server) handleListBackups(c *gin.Context) {
	if !s.requireBackup(c) {
		return
	}
	periods, err := s.backup.Periods(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, periods)
}

// POST /api/backups/:year/:month snapshots the month. A month without
// tickets stores nothing and reports zero rows.
func (s *Server) handleCreateBackup(c *gin.Context) {
	if !s.requireBackup(c) {
		return
	}
	month, year, ok := periodParams(c)
	if !ok {
		return
	}
	tickets, err := s.gw.Tickets().List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.backup.SnapshotBackup(c.Request.Context(), tickets, month, year); err != nil {
		respondError(c, err)
		return
	}
	rows := len(export.Filter(tickets, export.MonthRange(month, year), s.loc))
	c.JSON(http.StatusOK, gin.H{"key": s.backup.Key(month, year), "rows": rows})
}

// GET /api/backups/:year/:month
func (s *Server) handleGetBackup(c *gin.Context) {
	if !s.requireBackup(c) {
		return
	}
	month, year, ok := periodParams(c)
	if !ok {
		return
	}
	rows, found, err := s.backup.Load(c.Request.Context(), month, year)
	if err != nil {
		respondError(c, err)
		return
	}
	if !found {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no backup for " + s.backup.Key(month, year)})
		return
	}
	c.JSON(http.StatusOK, rows)
}
