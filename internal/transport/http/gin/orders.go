package httpgin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service"
	"github.com/MinhNhatQA15101910/se121.badcourt-sub002/internal/service/orders"
)

// @Summary  Get order
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  200 {object} domain.Order
// @Failure  403 {object} ErrorResponse
// @Failure  404 {object} ErrorResponse
// @Security BearerAuth
// @Router   /orders/{id} [get]
func handleGetOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		o, err := svcs.Orders.Get(c.Request.Context(), principal(c), orderID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// @Summary  List the caller's orders
// @Param    limit  query  int  false "page size"
// @Param    offset query  int  false "offset"
// @Success  200 {array} domain.Order
// @Security BearerAuth
// @Router   /me/orders [get]
func handleListMyOrders(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := parseIntDefault(c.Query("limit"), 20)
		offset := parseIntDefault(c.Query("offset"), 0)

		list, err := svcs.Orders.ListByUser(c.Request.Context(), principal(c), limit, offset)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary  Cancel order and refund
// @Param    id  path  string  true  "Order ID (uuid)"
// @Success  200 {object} CancelResponse
// @Failure  409 {object} ErrorResponse "not cancellable / in progress"
// @Failure  502 {object} ErrorResponse "refund failed"
// @Security BearerAuth
// @Router   /orders/{id}/cancel [post]
func handleCancelOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		res, err := svcs.Orders.Cancel(c.Request.Context(), orders.CancelInput{
			OrderID:   orderID,
			Principal: principal(c),
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, CancelResponse{
			Order:    res.Order,
			Refund:   res.Refund,
			RefundID: res.RefundID,
		})
	}
}

// @Summary  Rate a played order
// @Param    id  path  string       true  "Order ID (uuid)"
// @Param    req body  RateRequest  true  "payload"
// @Success  200 {object} domain.Order
// @Failure  409 {object} ErrorResponse "not played / already rated"
// @Failure  422 {object} ErrorResponse "stars out of range / malformed body"
// @Security BearerAuth
// @Router   /orders/{id}/rating [post]
func handleRateOrder(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseUUIDParam(c, "id")
		if !ok {
			return
		}
		var req RateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			unprocessable(c, err)
			return
		}
		o, err := svcs.Orders.Rate(c.Request.Context(), orders.RateInput{
			OrderID:   orderID,
			Principal: principal(c),
			Stars:     req.Stars,
			Feedback:  req.Feedback,
		})
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}
