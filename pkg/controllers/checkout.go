package controllers

import (
	"errors"
	"net/http"

	"khoomi-api-io/checkout/pkg/models"
	"khoomi-api-io/checkout/pkg/services"
	"khoomi-api-io/checkout/pkg/util"

	"github.com/gin-gonic/gin"
)

type CheckoutController struct {
	checkoutService services.CheckoutService
}

// InitCheckoutController initializes a new CheckoutController with dependencies
func InitCheckoutController(checkoutService services.CheckoutService) *CheckoutController {
	return &CheckoutController{checkoutService: checkoutService}
}

// SaveAddress stores the delivery address and answers with its delivery tier.
func (cc *CheckoutController) SaveAddress() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel, session := SetupControllerContext(c)
		defer cancel()

		var address models.Address
		if !bindJSON(c, &address) {
			return
		}

		delivery, err := cc.checkoutService.SaveAddress(ctx, session, address)
		if err != nil {
			HandleServiceError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "Address saved", gin.H{
			"address":  address,
			"delivery": delivery,
		})
	}
}

func (cc *CheckoutController) GetAddress() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel, session := SetupControllerContext(c)
		defer cancel()

		address, ok := cc.checkoutService.GetAddress(ctx, session)
		if !ok {
			util.HandleError(c, http.StatusNotFound, services.ErrAddressRequired)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "success", address)
	}
}

func (cc *CheckoutController) Quote() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel, session := SetupControllerContext(c)
		defer cancel()

		var req models.QuoteRequest
		if !bindJSON(c, &req) {
			return
		}

		quote, err := cc.checkoutService.Quote(ctx, session, req)
		if err != nil {
			HandleServiceError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "success", quote)
	}
}

func (cc *CheckoutController) GetStep() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel, session := SetupControllerContext(c)
		defer cancel()

		util.HandleSuccess(c, http.StatusOK, "success", gin.H{"step": cc.checkoutService.CurrentStep(ctx, session)})
	}
}

func (cc *CheckoutController) AdvanceStep() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel, session := SetupControllerContext(c)
		defer cancel()

		var req models.CheckoutStepRequest
		if !bindJSON(c, &req) {
			return
		}

		step, err := cc.checkoutService.AdvanceStep(ctx, session, req.Event)
		if err != nil {
			HandleServiceError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "success", gin.H{"step": step})
	}
}

// PlaceOrder submits the order and starts its payment. A failed payment on
// a placed order still reports the order id so the client can retry
// payment from the order page.
func (cc *CheckoutController) PlaceOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel, session := SetupControllerContext(c)
		defer cancel()

		var req models.PlaceOrderRequest
		if !bindJSON(c, &req) {
			return
		}

		result, err := cc.checkoutService.PlaceOrder(ctx, session, req)
		if err != nil {
			if result.Order != nil && errors.Is(err, services.ErrMissingRedirectURL) {
				util.HandleErrorDetails(c, http.StatusBadGateway, err, gin.H{"orderId": result.Order.Id})
				return
			}
			HandleServiceError(c, err)
			return
		}

		switch result.Payment.Status {
		case services.PaymentChoiceRequired:
			util.HandleSuccess(c, http.StatusOK, result.Payment.Message, result)
		case services.PaymentRedirect:
			util.HandleSuccess(c, http.StatusCreated, "Redirecting to payment", result)
		default:
			util.HandleSuccess(c, http.StatusCreated, "Order placed", result)
		}
	}
}
