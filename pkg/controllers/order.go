package controllers

import (
	"net/http"

	"khoomi-api-io/checkout/pkg/services"
	"khoomi-api-io/checkout/pkg/util"

	"github.com/gin-gonic/gin"
)

type OrderController struct {
	orderService services.OrderService
}

// InitOrderController initializes a new OrderController with dependencies
func InitOrderController(orderService services.OrderService) *OrderController {
	return &OrderController{orderService: orderService}
}

// GetOrder returns the best available view of an order. Payment return
// pages pass their query through so a degraded view can be served.
func (oc *OrderController) GetOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel, session := SetupControllerContext(c)
		defer cancel()

		var landing services.LandingContext
		if err := c.ShouldBindQuery(&landing); err != nil {
			util.HandleError(c, http.StatusBadRequest, err)
			return
		}

		view, err := oc.orderService.GetOrderStatus(ctx, session, c.Param("orderId"), landing)
		if err != nil {
			HandleServiceError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "success", view)
	}
}

func (oc *OrderController) ListOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel, session := SetupControllerContext(c)
		defer cancel()

		orders, err := oc.orderService.ListOrders(ctx, session)
		if err != nil {
			HandleServiceError(c, err)
			return
		}

		util.HandleSuccessMeta(c, http.StatusOK, "success", orders, gin.H{"total": len(orders)})
	}
}

// VerifyPayment checks a gateway payment after the customer returns.
func (oc *OrderController) VerifyPayment() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel, session := SetupControllerContext(c)
		defer cancel()

		res, err := oc.orderService.VerifyPayment(ctx, session, c.Query("payment_id"), c.Query("order_id"))
		if err != nil {
			HandleServiceError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "success", gin.H{
			"verification": res,
			"paid":         res.Paid(),
		})
	}
}
