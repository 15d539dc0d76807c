package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voltride/rental-backend/repository"
)

type VehicleController struct {
	Vehicles repository.VehicleRepository
}

func (vc *VehicleController) ListVehicles(c *gin.Context) {
	status := c.Query("status")
	page, pageSize := pagination(c)

	vehicles, total, err := vc.Vehicles.FindAll(c.Request.Context(), status, page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"vehicles": vehicles,
		"total":    total,
		"page":     page,
	})
}

func (vc *VehicleController) GetVehicle(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid vehicle id"})
		return
	}

	vehicle, err := vc.Vehicles.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "vehicle not found"})
		return
	}
	c.JSON(http.StatusOK, vehicle)
}
