package handlers

import (
	"github.com/gin-gonic/gin"

	"facturo/internal/infrastructure/http/v1/dto"
)

// TotalsHandler prices unsaved document content.
type TotalsHandler struct {
	*BaseHandler
}

// NewTotalsHandler creates a new totals handler.
func NewTotalsHandler(base *BaseHandler) *TotalsHandler {
	return &TotalsHandler{BaseHandler: base}
}

// Preview handles POST /totals/preview
// Nothing is stored; the same rules as document creation apply.
func (h *TotalsHandler) Preview(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}

	var req dto.TotalsPreviewRequest
	if !h.BindJSON(c, &req) {
		return
	}
	doc, err := req.ToDocument(tc)
	if err != nil {
		h.Error(c, err)
		return
	}

	doc.Recalculate()
	if err := doc.Validate(c.Request.Context()); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromPreview(doc))
}
