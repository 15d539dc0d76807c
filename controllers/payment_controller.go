package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/voltride/rental-backend/services"
)

type PaymentController struct {
	Payments *services.PaymentService
}

// Live confirmation state: machine state, remaining window, code
// availability. Clients poll this while the payment modal is open; the
// remaining seconds come from the persisted deadline, so a reloaded
// client resumes the same countdown.
func (pc *PaymentController) GetStatus(c *gin.Context) {
	status, err := pc.Payments.Status(c.Request.Context(), c.Param("sessionID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// Serves the scannable code as PNG. While rendering is in flight the
// client gets 202 and retries; when rendering degraded permanently the
// raw payload is returned for manual copy.
func (pc *PaymentController) GetCode(c *gin.Context) {
	code, err := pc.Payments.Code(c.Request.Context(), c.Param("sessionID"))
	if err != nil {
		respondError(c, err)
		return
	}
	if code == nil {
		c.JSON(http.StatusAccepted, gin.H{"status": "rendering"})
		return
	}
	if code.PNG == nil {
		c.JSON(http.StatusOK, gin.H{"fallback_payload": code.Fallback})
		return
	}
	c.Data(http.StatusOK, "image/png", code.PNG)
}

// The "I have paid" affordance: one out-of-band status check, subject
// to the same overlap guard as scheduled checks.
func (pc *PaymentController) Recheck(c *gin.Context) {
	if err := pc.Payments.Recheck(c.Request.Context(), c.Param("sessionID")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "recheck requested"})
}

// Releases the session's controller when the client navigates away.
// The persisted deadline survives, so re-opening the session resumes
// the countdown.
func (pc *PaymentController) Dispose(c *gin.Context) {
	pc.Payments.Dispose(c.Param("sessionID"))
	c.JSON(http.StatusOK, gin.H{"status": "released"})
}
