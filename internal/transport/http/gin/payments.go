package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/payment"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service"
)

// @Summary  Payment gateway notification
// @Description The reported status is verified against the gateway.
// @Param    req body  PaymentResultRequest  true  "payload"
// @Success  202
// @Failure  404 {object} ErrorResponse "no order for the intent"
// @Failure  502 {object} ErrorResponse
// @Router   /payments/webhook [post]
func handlePaymentWebhook(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PaymentResultRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := svcs.Orders.HandlePaymentResult(
			c.Request.Context(),
			req.PaymentIntentID,
			payment.Status(req.Status),
		); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

// @Summary  Settle a sandbox payment intent
// @Param    intent  path  string                true  "Payment intent ID"
// @Param    req     body  PaymentResultRequest  true  "payload; payment_intent_id is ignored"
// @Success  202
// @Router   /sandbox/payments/{intent}/settle [post]
func handleSandboxSettle(svcs *service.Services, sandbox *payment.Sandbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		intentID := c.Param("intent")

		var req struct {
			Status string `json:"status" binding:"required,oneof=paid failed"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}

		st := payment.Status(req.Status)
		if err := sandbox.Settle(intentID, st); err != nil {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
		if err := svcs.Orders.HandlePaymentResult(c.Request.Context(), intentID, st); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}
