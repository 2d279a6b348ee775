package api

import (
	"net/http"

	"shop-service/internal/service"

	"github.com/gin-gonic/gin"
)

// Shops

func (h *Handler) listShops(c *gin.Context) {
	shops, err := h.svc.Shops.List(c.Request.Context())
	if err != nil {
		h.abort(c, err)
		return
	}
	out := make([]shopPayload, 0, len(shops))
	for i := range shops {
		out = append(out, newShopPayload(&shops[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) createShop(c *gin.Context) {
	var req service.ShopRequest
	if !h.bindBody(c, &req) {
		return
	}
	shop, err := h.svc.Shops.Create(c.Request.Context(), actorFrom(c), &req)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, newShopPayload(shop))
}

func (h *Handler) getShop(c *gin.Context) {
	ids, ok := h.pathIDs(c, "shop_id")
	if !ok {
		return
	}
	shop, err := h.svc.Shops.Get(c.Request.Context(), ids[0])
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newShopPayload(shop))
}

func (h *Handler) updateShop(c *gin.Context) {
	ids, ok := h.pathIDs(c, "shop_id")
	if !ok {
		return
	}
	var req service.ShopRequest
	if !h.bindBody(c, &req) {
		return
	}
	shop, err := h.svc.Shops.Update(c.Request.Context(), actorFrom(c), ids[0], &req, isPartial(c))
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newShopPayload(shop))
}

func (h *Handler) deleteShop(c *gin.Context) {
	ids, ok := h.pathIDs(c, "shop_id")
	if !ok {
		return
	}
	if err := h.svc.Shops.Delete(c.Request.Context(), actorFrom(c), ids[0]); err != nil {
		h.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Products

func (h *Handler) listProducts(c *gin.Context) {
	ids, ok := h.pathIDs(c, "shop_id")
	if !ok {
		return
	}
	products, err := h.svc.Products.List(c.Request.Context(), actorFrom(c), ids[0])
	if err != nil {
		h.abort(c, err)
		return
	}
	out := make([]productPayload, 0, len(products))
	for i := range products {
		out = append(out, newProductPayload(&products[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) createProduct(c *gin.Context) {
	ids, ok := h.pathIDs(c, "shop_id")
	if !ok {
		return
	}
	var req service.ProductRequest
	if !h.bindBody(c, &req) {
		return
	}
	product, err := h.svc.Products.Create(c.Request.Context(), actorFrom(c), ids[0], &req)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, newProductPayload(product))
}

func (h *Handler) getProduct(c *gin.Context) {
	ids, ok := h.pathIDs(c, "shop_id", "product_id")
	if !ok {
		return
	}
	product, err := h.svc.Products.Get(c.Request.Context(), ids[0], ids[1])
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductPayload(product))
}

func (h *Handler) updateProduct(c *gin.Context) {
	ids, ok := h.pathIDs(c, "shop_id", "product_id")
	if !ok {
		return
	}
	var req service.ProductRequest
	if !h.bindBody(c, &req) {
		return
	}
	product, err := h.svc.Products.Update(c.Request.Context(), actorFrom(c), ids[0], ids[1], &req, isPartial(c))
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductPayload(product))
}

func (h *Handler) deleteProduct(c *gin.Context) {
	ids, ok := h.pathIDs(c, "shop_id", "product_id")
	if !ok {
		return
	}
	if err := h.svc.Products.Delete(c.Request.Context(), actorFrom(c), ids[0], ids[1]); err != nil {
		h.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Orders

func (h *Handler) listOrders(c *gin.Context) {
	ids, ok := h.pathIDs(c, "shop_id")
	if !ok {
		return
	}
	orders, err := h.svc.Orders.List(c.Request.Context(), ids[0])
	if err != nil {
		h.abort(c, err)
		return
	}
	out := make([]orderPayload, 0, len(orders))
	for i := range orders {
		out = append(out, newOrderPayload(&orders[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) createOrder(c *gin.Context) {
	ids, ok := h.pathIDs(c, "shop_id")
	if !ok {
		return
	}
	order, err := h.svc.Orders.Create(c.Request.Context(), actorFrom(c), ids[0], c.GetHeader("Idempotency-Key"))
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, newOrderPayload(order))
}

func (h *Handler) getOrder(c *gin.Context) {
	ids, ok := h.pathIDs(c, "shop_id", "order_id")
	if !ok {
		return
	}
	order, err := h.svc.Orders.Get(c.Request.Context(), ids[0], ids[1])
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderPayload(order))
}

func (h *Handler) deleteOrder(c *gin.Context) {
	ids, ok := h.pathIDs(c, "shop_id", "order_id")
	if !ok {
		return
	}
	if err := h.svc.Orders.Delete(c.Request.Context(), actorFrom(c), ids[0], ids[1]); err != nil {
		h.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Line items

func (h *Handler) listLineItems(c *gin.Context) {
	ids, ok := h.pathIDs(c, "shop_id", "order_id")
	if !ok {
		return
	}
	items, err := h.svc.LineItems.List(c.Request.Context(), actorFrom(c), ids[0], ids[1])
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newLineItemPayloads(items))
}

func (h *Handler) createLineItem(c *gin.Context) {
	ids, ok := h.pathIDs(c, "shop_id", "order_id")
	if !ok {
		return
	}
	var req service.CreateLineItemRequest
	if !h.bindBody(c, &req) {
		return
	}
	item, err := h.svc.LineItems.Create(c.Request.Context(), actorFrom(c), ids[0], ids[1], &req)
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, newLineItemPayload(item))
}

func (h *Handler) getLineItem(c *gin.Context) {
	ids, ok := h.pathIDs(c, "shop_id", "order_id", "id")
	if !ok {
		return
	}
	item, err := h.svc.LineItems.Get(c.Request.Context(), actorFrom(c), ids[0], ids[1], ids[2])
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newLineItemPayload(item))
}

func (h *Handler) updateLineItem(c *gin.Context) {
	ids, ok := h.pathIDs(c, "shop_id", "order_id", "id")
	if !ok {
		return
	}
	var req service.UpdateLineItemRequest
	if !h.bindBody(c, &req) {
		return
	}
	item, err := h.svc.LineItems.Update(c.Request.Context(), actorFrom(c), ids[0], ids[1], ids[2], &req, isPartial(c))
	if err != nil {
		h.abort(c, err)
		return
	}
	c.JSON(http.StatusOK, newLineItemPayload(item))
}

func (h *Handler) deleteLineItem(c *gin.Context) {
	ids, ok := h.pathIDs(c, "shop_id", "order_id", "id")
	if !ok {
		return
	}
	if err := h.svc.LineItems.Delete(c.Request.Context(), actorFrom(c), ids[0], ids[1], ids[2]); err != nil {
		h.abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
