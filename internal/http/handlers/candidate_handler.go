// README: Candidate handlers for donor responses, delivery receipts and fulfilment.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lifelink/internal/modules/cascade"
	"lifelink/internal/types"
)

type CandidateHandler struct {
	cascade Cascade
}

func NewCandidateHandler(c Cascade) *CandidateHandler {
	return &CandidateHandler{cascade: c}
}

type respondReq struct {
	Outcome string `json:"outcome"`
	Notes   string `json:"notes"`
}

// Respond records accept or reject. Late or repeated answers still return
// 200 with a result describing why nothing changed.
func (h *CandidateHandler) Respond(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req respondReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	res, err := h.cascade.RecordResponse(c.Request.Context(), types.ID(id), cascade.Outcome(req.Outcome), req.Notes)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toTransitionResponse(res))
}

func (h *CandidateHandler) Delivered(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.cascade.ConfirmDelivery(c.Request.Context(), types.ID(id)); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CandidateHandler) Fulfill(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cand, err := h.cascade.MarkFulfilled(c.Request.Context(), types.ID(id))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toCandidateResponse(cand))
}
