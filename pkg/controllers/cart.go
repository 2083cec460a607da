package controllers

import (
	"net/http"

	"khoomi-api-io/checkout/pkg/models"
	"khoomi-api-io/checkout/pkg/services"
	"khoomi-api-io/checkout/pkg/util"

	"github.com/gin-gonic/gin"
)

type CartController struct {
	cartService services.CartService
}

// InitCartController initializes a new CartController with dependencies
func InitCartController(cartService services.CartService) *CartController {
	return &CartController{cartService: cartService}
}

// GetCart returns the caller's cart, creating an empty one if needed.
func (cc *CartController) GetCart() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel, session := SetupControllerContext(c)
		defer cancel()

		cart, err := cc.cartService.EnsureCart(ctx, session)
		if err != nil {
			HandleServiceError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "success", cart)
	}
}

func (cc *CartController) AddItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel, session := SetupControllerContext(c)
		defer cancel()

		var req models.CartItemRequest
		if !bindJSON(c, &req) {
			return
		}

		cart, err := cc.cartService.AddItem(ctx, session, req)
		if err != nil {
			HandleServiceError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "Item added to cart", cart)
	}
}

func (cc *CartController) UpdateItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel, session := SetupControllerContext(c)
		defer cancel()

		var req models.CartQuantityRequest
		if !bindJSON(c, &req) {
			return
		}

		cart, err := cc.cartService.UpdateItemQuantity(ctx, session, c.Param("itemId"), req.Quantity)
		if err != nil {
			HandleServiceError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "Cart item updated", cart)
	}
}

func (cc *CartController) RemoveItem() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel, session := SetupControllerContext(c)
		defer cancel()

		cart, err := cc.cartService.RemoveItem(ctx, session, c.Param("itemId"))
		if err != nil {
			HandleServiceError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "Item removed from cart", cart)
	}
}

func (cc *CartController) ApplyPromo() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel, session := SetupControllerContext(c)
		defer cancel()

		var req models.PromoCodeRequest
		if !bindJSON(c, &req) {
			return
		}

		cart, err := cc.cartService.ApplyPromoCode(ctx, session, req.Code)
		if err != nil {
			HandleServiceError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "Promo code applied", cart)
	}
}

func (cc *CartController) RemovePromo() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel, session := SetupControllerContext(c)
		defer cancel()

		cart, err := cc.cartService.RemovePromoCode(ctx, session)
		if err != nil {
			HandleServiceError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "Promo code removed", cart)
	}
}

func (cc *CartController) ClearCart() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel, session := SetupControllerContext(c)
		defer cancel()

		if err := cc.cartService.ClearCart(ctx, session); err != nil {
			HandleServiceError(c, err)
			return
		}

		util.HandleSuccess(c, http.StatusOK, "Cart cleared", nil)
	}
}
