package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"storefront/internal/backend"
	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/service"
	"storefront/internal/tracking"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const sessionHeader = "X-Session-ID"

// Handler contains HTTP handlers
type Handler struct {
	carts           *cart.Manager
	checkoutService *service.CheckoutService
	orderService    *service.OrderService
	paymentService  *service.PaymentService
	hub             *tracking.Hub
}

// NewHandler creates a new HTTP handler
func NewHandler(
	carts *cart.Manager,
	checkoutService *service.CheckoutService,
	orderService *service.OrderService,
	paymentService *service.PaymentService,
	hub *tracking.Hub,
) *Handler {
	return &Handler{
		carts:           carts,
		checkoutService: checkoutService,
		orderService:    orderService,
		paymentService:  paymentService,
		hub:             hub,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/ws/track", h.trackSocket)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/cart", h.getCart)
		v1.POST("/cart/items", h.addCartItem)
		v1.PATCH("/cart/items/:productId", h.updateCartItem)
		v1.DELETE("/cart/items/:productId", h.removeCartItem)
		v1.DELETE("/cart", h.clearCart)
		v1.POST("/checkout", h.checkout)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/payment", h.payOrder)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) sessionStore(c *gin.Context) (*cart.Store, bool) {
	sessionID := c.GetHeader(sessionHeader)
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing " + sessionHeader + " header",
		})
		return nil, false
	}
	return h.carts.Store(c.Request.Context(), sessionID), true
}

type cartResponse struct {
	Cart          models.CartState `json:"cart"`
	TotalAmount   int64            `json:"total_amount"`
	TotalQuantity int              `json:"total_quantity"`
	IsEmpty       bool             `json:"is_empty"`
}

func newCartResponse(store *cart.Store) cartResponse {
	return cartResponse{
		Cart:          store.State(),
		TotalAmount:   store.TotalAmount(),
		TotalQuantity: store.TotalQuantity(),
		IsEmpty:       store.IsEmpty(),
	}
}

// getCart returns the session's cart with totals
func (h *Handler) getCart(c *gin.Context) {
	store, ok := h.sessionStore(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newCartResponse(store))
}

type addItemRequest struct {
	Product       models.Product `json:"product" binding:"required"`
	Quantity      int            `json:"quantity"`
	ReplaceVendor bool           `json:"replace_vendor"`
}

// addCartItem adds a product to the session's cart
func (h *Handler) addCartItem(c *gin.Context) {
	store, ok := h.sessionStore(c)
	if !ok {
		return
	}

	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	err := store.AddItem(c.Request.Context(), req.Product, req.Quantity, req.ReplaceVendor)
	var conflict *cart.VendorConflictError
	if errors.As(err, &conflict) {
		// The client re-submits with replace_vendor after the user confirms.
		c.JSON(http.StatusConflict, gin.H{
			"error":           "Cart holds items from another vendor",
			"current_vendor":  conflict.CurrentVendor,
			"incoming_vendor": conflict.IncomingVendor,
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, newCartResponse(store))
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// updateCartItem sets a line's quantity; zero or less removes the line
func (h *Handler) updateCartItem(c *gin.Context) {
	store, ok := h.sessionStore(c)
	if !ok {
		return
	}

	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	store.UpdateQuantity(c.Request.Context(), productID, req.Quantity)
	c.JSON(http.StatusOK, newCartResponse(store))
}

// removeCartItem removes a line from the cart
func (h *Handler) removeCartItem(c *gin.Context) {
	store, ok := h.sessionStore(c)
	if !ok {
		return
	}

	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	store.RemoveItem(c.Request.Context(), productID)
	c.JSON(http.StatusOK, newCartResponse(store))
}

// clearCart empties the session's cart
func (h *Handler) clearCart(c *gin.Context) {
	store, ok := h.sessionStore(c)
	if !ok {
		return
	}

	store.Clear(c.Request.Context())
	c.JSON(http.StatusOK, newCartResponse(store))
}

type checkoutRequest struct {
	DeliveryAddress      string   `json:"delivery_address"`
	DeliveryInstructions string   `json:"delivery_instructions"`
	DeliveryLatitude     *float64 `json:"delivery_latitude"`
	DeliveryLongitude    *float64 `json:"delivery_longitude"`
	IdempotencyKey       string   `json:"idempotency_key"`
}

// checkout submits the session's cart as an order
func (h *Handler) checkout(c *gin.Context) {
	sessionID := c.GetHeader(sessionHeader)
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Missing " + sessionHeader + " header",
		})
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	result, err := h.checkoutService.Checkout(c.Request.Context(), &service.CheckoutInput{
		SessionID:            sessionID,
		DeliveryAddress:      req.DeliveryAddress,
		DeliveryInstructions: req.DeliveryInstructions,
		DeliveryLatitude:     req.DeliveryLatitude,
		DeliveryLongitude:    req.DeliveryLongitude,
		IdempotencyKey:       req.IdempotencyKey,
	})
	if err != nil {
		h.writeServiceError(c, err, "Failed to create order")
		return
	}

	c.JSON(http.StatusCreated, result)
}

// getOrder returns an order with tracking info when out for delivery
func (h *Handler) getOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	detail, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		h.writeServiceError(c, err, "Failed to load order")
		return
	}

	c.JSON(http.StatusOK, detail)
}

type paymentRequest struct {
	Method string `json:"method" binding:"required"`
}

// payOrder runs the simulated payment flow for an order
func (h *Handler) payOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	result, err := h.paymentService.Pay(c.Request.Context(), orderID, req.Method)
	if err != nil {
		h.writeServiceError(c, err, "Payment processing failed")
		return
	}

	c.JSON(http.StatusOK, result)
}

// writeServiceError maps service failures to user-facing responses.
func (h *Handler) writeServiceError(c *gin.Context, err error, message string) {
	var validation *service.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Msg})
		return
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   message,
			"details": apiErr.Message,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
