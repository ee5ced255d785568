package httpsvc

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/dailygoods/internal/service/order"
	"github.com/vladislavdragonenkov/dailygoods/internal/service/user"
)

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductsResponse(products))
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductResponse(product))
}

func (h *Handler) createProduct(c *gin.Context) {
	var req createProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.catalog.Create(c.Request.Context(), req.toDomain())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newProductResponse(product))
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req updateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.catalog.Update(c.Request.Context(), c.Param("id"), req.toPatch())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductResponse(product))
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Product deleted"})
}

func (h *Handler) getCart(c *gin.Context) {
	lines, err := h.carts.GetCart(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newExpandedCartResponse(lines))
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Неизвестный пользователь важнее некорректного тела.
		if lookupErr := h.carts.CheckUser(c.Request.Context(), c.Param("userId")); lookupErr != nil {
			h.writeError(c, lookupErr)
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	cart, err := h.carts.AddItem(c.Request.Context(), c.Param("userId"), req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

func (h *Handler) removeCartItem(c *gin.Context) {
	cart, err := h.carts.RemoveItem(c.Request.Context(), c.Param("userId"), c.Param("productId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCartResponse(cart))
}

func (h *Handler) checkout(c *gin.Context) {
	var req checkoutRequest
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.orders.Checkout(c.Request.Context(), order.CheckoutRequest{
		UserID:     req.UserID,
		Items:      req.items(),
		TotalPrice: req.TotalPrice,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newOrderResponse(created))
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), c.Param("userId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrdersResponse(orders))
}

func (h *Handler) registerUser(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	created, err := h.users.Register(c.Request.Context(), user.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newUserResponse(created))
}

func (h *Handler) getUser(c *gin.Context) {
	found, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(found))
}
