package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voltride/rental-backend/middleware"
	"github.com/voltride/rental-backend/services"
)

type DamageController struct {
	Damage *services.DamageService
}

func (dc *DamageController) CreateReport(c *gin.Context) {
	var req struct {
		BookingID     string `json:"booking_id" binding:"required"`
		Description   string `json:"description" binding:"required"`
		PhotoURL      string `json:"photo_url"`
		EstimatedCost int64  `json:"estimated_cost" binding:"min=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}
	reporterID, err := uuid.Parse(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	report, err := dc.Damage.CreateReport(c.Request.Context(), services.CreateDamageReportRequest{
		BookingID:     bookingID,
		ReportedBy:    reporterID,
		Description:   req.Description,
		PhotoURL:      req.PhotoURL,
		EstimatedCost: req.EstimatedCost,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, report)
}

func (dc *DamageController) ListReports(c *gin.Context) {
	status := c.Query("status")
	page, pageSize := pagination(c)

	reports, total, err := dc.Damage.ListReports(c.Request.Context(), status, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"total":   total,
		"page":    page,
	})
}

// Settles an open damage report; the decision is final
func (dc *DamageController) Adjudicate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return
	}

	var req struct {
		Approve bool   `json:"approve"`
		Note    string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	staffID, err := uuid.Parse(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	report, err := dc.Damage.Adjudicate(c.Request.Context(), id, req.Approve, staffID, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
