package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/domain"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service/reservation"
)

// @Summary  Declare an inactive period on a court
// @Param    id  path  int                    true  "Court ID"
// @Param    req body  InactivePeriodRequest  true  "payload"
// @Success  201 {object} domain.CourtPeriod
// @Failure  409 {object} ErrorResponse "overlaps the reservation set"
// @Security BearerAuth
// @Router   /admin/courts/{id}/inactive-periods [post]
func handleAddInactivePeriod(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		courtID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		var req InactivePeriodRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			unprocessable(c, err)
			return
		}
		p, err := svcs.Reservation.AddInactivePeriod(c.Request.Context(), reservation.InactivePeriodInput{
			CourtID:   courtID,
			Principal: principal(c),
			Period:    domain.Period{From: req.From, To: req.To},
			Reason:    req.Reason,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

// @Summary  Remove an inactive period
// @Param    id   path  int  true  "Court ID"
// @Param    pid  path  int  true  "Period ID"
// @Success  204
// @Failure  404 {object} ErrorResponse
// @Security BearerAuth
// @Router   /admin/courts/{id}/inactive-periods/{pid} [delete]
func handleRemoveInactivePeriod(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		courtID, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		periodID, ok := parseInt64Param(c, "pid")
		if !ok {
			return
		}
		if err := svcs.Reservation.RemoveInactivePeriod(
			c.Request.Context(),
			principal(c),
			courtID,
			periodID,
		); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// @Summary  Mark an order played
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  200 {object} domain.Order
// @Failure  409 {object} ErrorResponse "not started / not confirmed"
// @Security BearerAuth
// @Router   /admin/orders/{id}/played [post]
func handleMarkPlayed(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		o, err := svcs.Orders.MarkPlayed(c.Request.Context(), principal(c), orderID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// @Summary  Confirm a payment without gateway verification
// @Param    req body  ConfirmPaymentRequest  true  "payload"
// @Success  200 {object} ConfirmPaymentResponse
// @Failure  404 {object} ErrorResponse
// @Security BearerAuth
// @Router   /admin/payments/confirm [post]
func handleConfirmPayment(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ConfirmPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		changed, err := svcs.Orders.ConfirmPayment(c.Request.Context(), req.PaymentIntentID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, ConfirmPaymentResponse{Changed: changed})
	}
}
