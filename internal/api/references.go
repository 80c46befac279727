package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tchayre/logsti/internal/gateway"
	"github.com/tchayre/logsti/internal/models"
)

// referenceHandlers serves one reference kind.
type referenceHandlers struct {
	s    *Server
	kind models.ReferenceKind
}

func (h referenceHandlers) resource(c *gin.Context) (gateway.ReferenceResource, bool) {
	res := h.s.gw.References(h.kind)
	if res == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown kind " + string(h.kind)})
		return nil, false
	}
	return res, true
}

func (h referenceHandlers) list(c *gin.Context) {
	res, ok := h.resource(c)
	if !ok {
		return
	}
	refs, err := res.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, refs)
}

func (h referenceHandlers) create(c *gin.Context) {
	res, ok := h.resource(c)
	if !ok {
		return
	}
	var in models.ReferenceInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid "+h.kind.Singular()+": "+err.Error())
		return
	}
	ref, err := res.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ref)
}

func (h referenceHandlers) update(c *gin.Context) {
	res, ok := h.resource(c)
	if !ok {
		return
	}
	var patch models.ReferencePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid "+h.kind.Singular()+" patch: "+err.Error())
		return
	}
	ref, err := res.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ref)
}

// delete deactivates the record.
func (h referenceHandlers) delete(c *gin.Context) {
	res, ok := h.resource(c)
	if !ok {
		return
	}
	if err := res.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
