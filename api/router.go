package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pos_checkout/internal/checkout"
)

// InitRoutes registers the terminal endpoints on the given Gin engine.
// Every session route is nested under /sessions/:id and binds to the
// matching checkout handler.
func InitRoutes(e *gin.Engine, checkoutService *checkout.Service, logger *zap.Logger) {
	checkoutHandler := NewCheckoutHandler(checkoutService, logger)

	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})

	e.GET("/clients/:clientId", checkoutHandler.handleGetClient)

	e.POST("/sessions", checkoutHandler.handleOpenSession)
	e.GET("/sessions", checkoutHandler.handleListSessions)

	s := e.Group("/sessions/:id")
	s.GET("", checkoutHandler.handleGetSession)
	s.DELETE("", checkoutHandler.handleCloseSession)

	s.POST("/scan", checkoutHandler.handleScan)
	s.POST("/items", checkoutHandler.handleAddItem)
	s.PATCH("/items/:lineId", checkoutHandler.handleUpdateItem)
	s.DELETE("/items/:lineId", checkoutHandler.handleRemoveItem)

	s.PUT("/client", checkoutHandler.handleSetClient)
	s.PUT("/payment", checkoutHandler.handleSetPayment)
	s.PUT("/notes", checkoutHandler.handleSetNotes)

	s.POST("/checkout", checkoutHandler.handleRequestCheckout)
	s.POST("/debt-warning/continue", checkoutHandler.handleContinueDebt)
	s.POST("/debt-warning/cancel", checkoutHandler.handleCancelDebt)
	s.POST("/back", checkoutHandler.handleBack)
	s.POST("/confirm", checkoutHandler.handleConfirm)
	s.POST("/receipt/dismiss", checkoutHandler.handleDismissReceipt)
}
