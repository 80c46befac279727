package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tchayre/logsti/internal/models"
)

// statusQuery reads the optional status filter; an empty value matches every ticket.
func statusQuery(c *gin.Context) (models.TicketStatus, bool) {
	status := models.TicketStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		badRequest(c, "unknown status "+string(status))
		return "", false
	}
	return status, true
}

// GET /api/tickets?q=&status=
func (s *Server) handleListTickets(c *gin.Context) {
	status, ok := statusQuery(c)
	if !ok {
		return
	}
	tickets, err := s.gw.Tickets().List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.FilterTickets(tickets, c.Query("q"), status))
}

func (s *Server) handleCreateTicket(c *gin.Context) {
	var in models.TicketInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid ticket: "+err.Error())
		return
	}
	t, err := s.gw.Tickets().Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// PUT and PATCH both merge; absent fields are left untouched.
func (s *Server) handleUpdateTicket(c *gin.Context) {
	var patch models.TicketPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid ticket patch: "+err.Error())
		return
	}
	t, err := s.gw.Tickets().Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) handleDeleteTicket(c *gin.Context) {
	if err := s.gw.Tickets().Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
