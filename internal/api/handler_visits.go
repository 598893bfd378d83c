package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"gate-access-backend/internal/gate"
	"gate-access-backend/internal/model"
	"gate-access-backend/internal/store"
)

type visitGuestRequest struct {
	Name     string `json:"name" binding:"required"`
	Relation string `json:"relation" binding:"required"`
	Mobile   string `json:"mobile"`
}

type createVisitRequest struct {
	StudentRef       string              `json:"student_ref" binding:"required"`
	Purpose          string              `json:"purpose" binding:"required"`
	ArrivalDate      time.Time           `json:"arrival_date" binding:"required"`
	EntryWindowStart time.Time           `json:"entry_window_start" binding:"required"`
	ExitWindowEnd    time.Time           `json:"exit_window_end" binding:"required"`
	VehicleNumbers   string              `json:"vehicle_numbers"`
	Guests           []visitGuestRequest `json:"guests" binding:"required,min=1,dive"`
}

// PostVisit handles POST /api/visits.
func (h *Handler) PostVisit(c *gin.Context) {
	var req createVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := gate.CreateVisitParams{
		StudentRef:       req.StudentRef,
		Purpose:          req.Purpose,
		ArrivalDate:      req.ArrivalDate,
		EntryWindowStart: req.EntryWindowStart,
		ExitWindowEnd:    req.ExitWindowEnd,
		VehicleNumbers:   req.VehicleNumbers,
	}
	for _, g := range req.Guests {
		params.Guests = append(params.Guests, gate.VisitGuestParams{
			Name:     g.Name,
			Relation: g.Relation,
			Mobile:   g.Mobile,
		})
	}

	visit, err := h.svc.CreateVisitRequest(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, visit)
}

type resolveVisitRequest struct {
	Outcome         string `json:"outcome" binding:"required"`
	ApproverRef     string `json:"approver_ref" binding:"required"`
	RejectionReason string `json:"rejection_reason"`
}

// PostVisitResolution handles POST /api/visits/:id/resolution. On approval
// the response carries any per-guest code issuance failures; the approval
// itself stands regardless.
func (h *Handler) PostVisitResolution(c *gin.Context) {
	var req resolveVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	visit, failures, err := h.svc.ResolveVisitRequest(c.Request.Context(), c.Param("id"),
		model.VisitStatus(req.Outcome), req.ApproverRef, req.RejectionReason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"visit":         visit,
		"code_failures": failures,
	})
}

// GetVisit handles GET /api/visits/:id.
func (h *Handler) GetVisit(c *gin.Context) {
	visit, err := h.svc.GetVisitRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, visit)
}

// GetVisits handles GET /api/visits with optional student/status filters.
func (h *Handler) GetVisits(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	visits, err := h.svc.ListVisitRequests(c.Request.Context(), store.VisitFilter{
		StudentRef: c.Query("student_ref"),
		Status:     model.VisitStatus(c.Query("status")),
		Limit:      limit,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, visits)
}

// GetGuestByCode handles GET /api/guests/lookup?code=NNNN, the gate-side
// verification of a guest's entry code.
func (h *Handler) GetGuestByCode(c *gin.Context) {
	visit, guest, err := h.svc.FindGuestByCode(c.Request.Context(), c.Query("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"guest": guest,
		"visit": visit,
	})
}
