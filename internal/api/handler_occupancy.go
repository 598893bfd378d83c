package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetOccupancy handles GET /api/occupancy/:ref for a single entity.
func (h *Handler) GetOccupancy(c *gin.Context) {
	occ, err := h.svc.GetOccupancy(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, occ)
}

// GetOccupancyBatch handles GET /api/occupancy, the dashboard view. With no
// refs parameter every known entity is reported.
func (h *Handler) GetOccupancyBatch(c *gin.Context) {
	var refs []string
	if raw := c.Query("refs"); raw != "" {
		for _, ref := range strings.Split(raw, ",") {
			if ref = strings.TrimSpace(ref); ref != "" {
				refs = append(refs, ref)
			}
		}
	}

	occupancies, err := h.svc.GetOccupancyBatch(c.Request.Context(), refs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, occupancies)
}
