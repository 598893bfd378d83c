package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gate-access-backend/internal/model"
)

// GetPersons handles GET /api/persons with an optional role filter.
func (h *Handler) GetPersons(c *gin.Context) {
	persons, err := h.store.ListPersons(c.Request.Context(), model.PersonRole(c.Query("role")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, persons)
}

// PostPersons handles POST /api/persons: batch upsert of directory persons.
func (h *Handler) PostPersons(c *gin.Context) {
	var persons []model.Person
	if err := c.ShouldBindJSON(&persons); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.RegisterPersons(c.Request.Context(), persons); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, persons)
}

// GetVendors handles GET /api/vendors.
func (h *Handler) GetVendors(c *gin.Context) {
	vendors, err := h.store.ListVendors(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vendors)
}

// PostVendors handles POST /api/vendors: batch upsert of directory vendors.
func (h *Handler) PostVendors(c *gin.Context) {
	var vendors []model.Vendor
	if err := c.ShouldBindJSON(&vendors); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.svc.RegisterVendors(c.Request.Context(), vendors); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vendors)
}
