package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gate-access-backend/internal/gate"
	"gate-access-backend/internal/model"
	"gate-access-backend/internal/store"
)

type recordMovementRequest struct {
	EntityType   string  `json:"entity_type" binding:"required"`
	MovementType string  `json:"movement_type" binding:"required"`
	EntityRef    string  `json:"entity_ref" binding:"required"`
	OfficerRef   *string `json:"officer_ref"`
	Remarks      string  `json:"remarks"`
}

// PostMovement handles POST /api/movements: a student filing a self-service
// request, or an officer logging a witnessed movement.
func (h *Handler) PostMovement(c *gin.Context) {
	var req recordMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.svc.RecordMovement(c.Request.Context(), gate.RecordMovementParams{
		EntityType:   model.EntityType(req.EntityType),
		MovementType: model.MovementType(req.MovementType),
		EntityRef:    req.EntityRef,
		OfficerRef:   req.OfficerRef,
		Remarks:      req.Remarks,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

type resolveMovementRequest struct {
	OfficerRef      string `json:"officer_ref" binding:"required"`
	Outcome         string `json:"outcome" binding:"required"`
	RejectionReason string `json:"rejection_reason"`
}

// PostMovementResolution handles POST /api/movements/:id/resolution.
func (h *Handler) PostMovementResolution(c *gin.Context) {
	var req resolveMovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.svc.ResolveMovement(c.Request.Context(), c.Param("id"),
		req.OfficerRef, model.MovementStatus(req.Outcome), req.RejectionReason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetMovements handles GET /api/movements, the audit/ledger view. Without an
// explicit status filter only COMPLETED rows come back.
func (h *Handler) GetMovements(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	records, err := h.svc.ListMovements(c.Request.Context(), store.MovementFilter{
		EntityRef:    c.Query("entity_ref"),
		EntityType:   model.EntityType(c.Query("entity_type")),
		MovementType: model.MovementType(c.Query("movement_type")),
		Status:       model.MovementStatus(c.Query("status")),
		Limit:        limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetPendingMovements handles GET /api/movements/pending, the officer queue.
func (h *Handler) GetPendingMovements(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	records, err := h.svc.ListMovements(c.Request.Context(), store.MovementFilter{
		EntityRef:    c.Query("entity_ref"),
		MovementType: model.MovementType(c.Query("movement_type")),
		Status:       model.MovementPending,
		Limit:        limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}
