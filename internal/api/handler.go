package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"settlement-service/internal/gateway"
	"settlement-service/internal/service"
	"settlement-service/internal/store"
	"settlement-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	settlement *service.SettlementService
	checkout   *service.CheckoutService
	cart       *service.CartService
	commission *service.CommissionService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	settlement *service.SettlementService,
	checkout *service.CheckoutService,
	cart *service.CartService,
	commission *service.CommissionService,
) *Handler {
	return &Handler{
		settlement: settlement,
		checkout:   checkout,
		cart:       cart,
		commission: commission,
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

	v1 := router.Group("/api/v1")
	v1.Use(identityMiddleware())
	{
		v1.POST("/admin/purchases", h.createAdminPurchase)
		v1.POST("/admin/purchases/:id/verify", h.verifyAdminPurchase)
		v1.PUT("/admin/lots/:id/price", h.updateResalePrice)

		v1.GET("/lots", h.listLots)
		v1.GET("/lots/:id", h.getLot)

		v1.GET("/cart", h.viewCart)
		v1.POST("/cart/lots", h.addLotToCart)
		v1.POST("/cart/listings", h.addListingToCart)
		v1.PUT("/cart/lines/:id", h.updateCartLine)
		v1.DELETE("/cart/lines/:id", h.removeCartLine)
		v1.POST("/checkout", h.doCheckout)

		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/payment", h.createBuyerPayment)
		v1.POST("/orders/:id/payment/verify", h.verifyBuyerPayment)

		v1.GET("/seller/listings", h.listSellerListings)
		v1.GET("/seller/sales", h.listSellerSales)

		v1.POST("/brokers", h.registerBroker)
		v1.GET("/brokers/me", h.brokerDashboard)
		v1.GET("/brokers/me/earnings", h.brokerEarnings)
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

// createAdminPurchase creates a payment intent to acquire listing stock
func (h *Handler) createAdminPurchase(c *gin.Context) {
	var req service.AdminPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	req.AdminID = currentUserID(c)

	resp, err := h.settlement.CreateAdminPurchase(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// verifyAdminPurchase verifies the payment and settles the acquisition
func (h *Handler) verifyAdminPurchase(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req service.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	req.OrderID = orderID

	resp, err := h.settlement.VerifyAdminPurchase(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// updateResalePrice changes a lot's selling price
func (h *Handler) updateResalePrice(c *gin.Context) {
	lotID, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		SellingPrice int64 `json:"selling_price" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.settlement.UpdateResalePrice(c.Request.Context(), currentUserID(c), lotID, req.SellingPrice); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lot_id": lotID, "selling_price": req.SellingPrice})
}

// listLots returns the buyer-facing resale catalog
func (h *Handler) listLots(c *gin.Context) {
	lots, err := h.settlement.ListResaleInventory(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lots": lots})
}

// getLot returns one resale lot
func (h *Handler) getLot(c *gin.Context) {
	lotID, ok := pathID(c)
	if !ok {
		return
	}

	lot, err := h.settlement.GetLot(c.Request.Context(), lotID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, lot)
}

// viewCart returns the buyer's cart with live pricing and availability
func (h *Handler) viewCart(c *gin.Context) {
	view, err := h.cart.View(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type addCartLineRequest struct {
	LotID     int64 `json:"lot_id"`
	ListingID int64 `json:"listing_id"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// addLotToCart adds a resale lot line to the cart
func (h *Handler) addLotToCart(c *gin.Context) {
	var req addCartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.LotID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lot_id and quantity are required"})
		return
	}

	line, err := h.cart.AddLot(c.Request.Context(), currentUserID(c), req.LotID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, line)
}

// addListingToCart adds a seller listing line to the cart
func (h *Handler) addListingToCart(c *gin.Context) {
	var req addCartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ListingID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "listing_id and quantity are required"})
		return
	}

	line, err := h.cart.AddListing(c.Request.Context(), currentUserID(c), req.ListingID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, line)
}

// updateCartLine replaces a line's quantity; zero removes it
func (h *Handler) updateCartLine(c *gin.Context) {
	lineID, ok := pathID(c)
	if !ok {
		return
	}

	var req struct {
		Quantity *int `json:"quantity" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity is required"})
		return
	}

	if err := h.cart.UpdateLine(c.Request.Context(), currentUserID(c), lineID, *req.Quantity); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"line_id": lineID, "quantity": *req.Quantity})
}

// removeCartLine deletes a cart line
func (h *Handler) removeCartLine(c *gin.Context) {
	lineID, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.cart.RemoveLine(c.Request.Context(), currentUserID(c), lineID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// doCheckout settles the buyer's cart
func (h *Handler) doCheckout(c *gin.Context) {
	resp, err := h.checkout.Checkout(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// listOrders returns the buyer's purchase history
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.checkout.ListPurchases(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// getOrder returns an order with its frozen items
func (h *Handler) getOrder(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	order, items, err := h.settlement.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}

// createBuyerPayment creates a gateway order for a pending buyer order
func (h *Handler) createBuyerPayment(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	resp, err := h.checkout.CreateBuyerPaymentOrder(c.Request.Context(), currentUserID(c), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// verifyBuyerPayment verifies the buyer's payment signature
func (h *Handler) verifyBuyerPayment(c *gin.Context) {
	orderID, ok := pathID(c)
	if !ok {
		return
	}

	var req service.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	req.OrderID = orderID

	order, err := h.checkout.VerifyBuyerPayment(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// listSellerListings returns the caller's listings
func (h *Handler) listSellerListings(c *gin.Context) {
	listings, err := h.settlement.ListSellerListings(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": listings})
}

// listSellerSales returns the admin purchases made against the caller
func (h *Handler) listSellerSales(c *gin.Context) {
	orders, err := h.settlement.ListSellerSales(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// registerBroker creates the caller's broker account if needed
func (h *Handler) registerBroker(c *gin.Context) {
	account, err := h.commission.EnsureBrokerAccount(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

// brokerDashboard returns the caller's broker account and recent commissions
func (h *Handler) brokerDashboard(c *gin.Context) {
	dashboard, err := h.commission.Dashboard(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboard)
}

// brokerEarnings returns the caller's accumulated earnings
func (h *Handler) brokerEarnings(c *gin.Context) {
	account, err := h.commission.Account(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":           account.Code,
		"total_earnings": account.TotalEarnings,
	})
}

const userIDKey = "userID"

// identityMiddleware reads the authenticated user id from the X-User-ID
// header set by the edge proxy
func identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.GetHeader("X-User-ID"), 10, 64)
		if err != nil || id < 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid X-User-ID header"})
			return
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(userIDKey)
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// respondError maps service and storage failures onto HTTP statuses
func respondError(c *gin.Context, err error) {
	var stockErr *store.InsufficientStockError
	if errors.As(err, &stockErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":        stockErr.Error(),
			"product_id":   stockErr.ProductID,
			"product_name": stockErr.ProductName,
			"available":    stockErr.Available,
			"requested":    stockErr.Requested,
		})
		return
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrAlreadyPaid),
		errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, gateway.ErrCredentialsMissing),
		errors.Is(err, gateway.ErrInvalidSignature),
		errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrCartEmpty):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
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
