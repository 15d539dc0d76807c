package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/voltride/rental-backend/repository"
)

type TransactionController struct {
	Transactions repository.TransactionRepository
}

func (tc *TransactionController) ListTransactions(c *gin.Context) {
	page, pageSize := pagination(c)

	txs, total, err := tc.Transactions.FindAll(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": txs,
		"total":        total,
		"page":         page,
	})
}

func (tc *TransactionController) ListByBooking(c *gin.Context) {
	bookingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid booking id"})
		return
	}

	txs, err := tc.Transactions.FindByBookingID(c.Request.Context(), bookingID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}
