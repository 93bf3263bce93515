package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/xfarydz/rydstore-backend/internal/auction"
	"github.com/xfarydz/rydstore-backend/internal/cart"
	"github.com/xfarydz/rydstore-backend/internal/checkout"
	"github.com/xfarydz/rydstore-backend/internal/identity"
	"github.com/xfarydz/rydstore-backend/internal/models"
	"github.com/xfarydz/rydstore-backend/internal/pgstore"
)

// Catalog is the product read/write surface the API exposes, plus the
// archived bid history. Implemented by pgstore.Client.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	ListProducts(ctx context.Context) ([]*models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, id string, patch *models.ProductPatch) (*models.Product, error)
	GetBidHistory(ctx context.Context, itemID string, limit int) ([]*models.Bid, error)
}

// Handler contains HTTP request handlers
type Handler struct {
	auction  *auction.Service
	cart     *cart.Service
	checkout *checkout.Service
	catalog  Catalog
}

// NewHandler creates a new HTTP handler
func NewHandler(auctionSvc *auction.Service, cartSvc *cart.Service, checkoutSvc *checkout.Service, catalog Catalog) *Handler {
	return &Handler{
		auction:  auctionSvc,
		cart:     cartSvc,
		checkout: checkoutSvc,
		catalog:  catalog,
	}
}

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	// Auction
	api.HandleFunc("/items", h.ListItems).Methods("GET")
	api.HandleFunc("/items", h.CreateItem).Methods("POST")
	api.HandleFunc("/items/{id}", h.GetItem).Methods("GET")
	api.HandleFunc("/items/{id}", h.DeleteItem).Methods("DELETE")
	api.HandleFunc("/items/{id}/start", h.StartItem).Methods("POST")
	api.HandleFunc("/items/{id}/bid", h.PlaceBid).Methods("POST")
	api.HandleFunc("/items/{id}/bids", h.GetBidHistory).Methods("GET")

	// Catalog
	api.HandleFunc("/products", h.ListProducts).Methods("GET")
	api.HandleFunc("/products", h.CreateProduct).Methods("POST")
	api.HandleFunc("/products/{id}", h.GetProduct).Methods("GET")
	api.HandleFunc("/products/{id}", h.UpdateProduct).Methods("PATCH")

	// Cart
	api.HandleFunc("/cart", h.GetCart).Methods("GET")
	api.HandleFunc("/cart/items", h.AddCartItem).Methods("POST")
	api.HandleFunc("/cart/items/{productId}", h.SetCartItemQuantity).Methods("PUT")
	api.HandleFunc("/cart/items/{productId}", h.RemoveCartItem).Methods("DELETE")

	// Checkout
	api.HandleFunc("/checkout", h.CreateOrder).Methods("POST")
	api.HandleFunc("/orders/{id}", h.GetOrder).Methods("GET")
	api.HandleFunc("/payments/callback", h.PaymentCallback).Methods("POST")

	// Middleware
	router.Use(loggingMiddleware)
	router.Use(corsMiddleware)

	return router
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "api",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// --- auction ---

// ListItems returns the live state of every auction item.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.auction.ListItems(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list items")
		return
	}
	respondJSON(w, http.StatusOK, items)
}

// CreateItem registers a new auction item. Operator action.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string     `json:"name"`
		Description string     `json:"description"`
		ImageURL    string     `json:"image_url"`
		BasePrice   float64    `json:"base_price"`
		StartTime   *time.Time `json:"start_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if req.BasePrice < 0 {
		respondError(w, http.StatusBadRequest, "Base price must not be negative")
		return
	}

	item, err := h.auction.CreateItem(r.Context(), req.Name, req.Description, req.ImageURL, req.BasePrice, req.StartTime)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create item")
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

// GetItem retrieves the live bid state for an item.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	item, err := h.auction.GetItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, auction.ErrItemNotFound) {
			respondError(w, http.StatusNotFound, "Item not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to retrieve item")
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// DeleteItem removes an auction item. Operator action.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	if err := h.auction.DeleteItem(r.Context(), itemID); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartItem opens bidding on an item for the requested duration.
func (h *Handler) StartItem(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]

	var req struct {
		DurationSeconds int `json:"duration_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.DurationSeconds <= 0 {
		respondError(w, http.StatusBadRequest, "Duration must be positive")
		return
	}

	item, err := h.auction.StartItem(r.Context(), itemID, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		switch {
		case errors.Is(err, auction.ErrItemNotFound):
			respondError(w, http.StatusNotFound, "Item not found")
		case errors.Is(err, auction.ErrAuctionEnded):
			respondError(w, http.StatusConflict, "Auction already ended")
		default:
			respondError(w, http.StatusInternalServerError, "Failed to start item")
		}
		return
	}
	respondJSON(w, http.StatusOK, item)
}

// PlaceBid handles bid placement requests. Rejections are reported to
// the submitting caller only, with a human-readable reason; an accepted
// bid returns 201.
func (h *Handler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]

	var bidReq models.BidRequest
	if err := json.NewDecoder(r.Body).Decode(&bidReq); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if bidReq.Amount <= 0 {
		respondError(w, http.StatusBadRequest, "Bid amount must be positive")
		return
	}

	user := identity.CurrentUser(r)
	response, err := h.auction.PlaceBid(r.Context(), itemID, user, bidReq.Amount)
	if err != nil {
		if errors.Is(err, auction.ErrItemNotFound) {
			respondError(w, http.StatusNotFound, "Item not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to place bid")
		return
	}

	statusCode := http.StatusOK
	if response.Accepted {
		statusCode = http.StatusCreated
	}
	respondJSON(w, statusCode, response)
}

// GetBidHistory returns the archived bids for an item, newest first.
func (h *Handler) GetBidHistory(w http.ResponseWriter, r *http.Request) {
	itemID := mux.Vars(r)["id"]
	bids, err := h.catalog.GetBidHistory(r.Context(), itemID, 50)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to retrieve bid history")
		return
	}
	respondJSON(w, http.StatusOK, bids)
}

// --- catalog ---

// ListProducts returns the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list products")
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// CreateProduct adds a catalog product. Operator action.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if product.ID == "" || product.Name == "" {
		respondError(w, http.StatusBadRequest, "Product id and name are required")
		return
	}
	if err := h.catalog.CreateProduct(r.Context(), &product); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create product")
		return
	}
	respondJSON(w, http.StatusCreated, product)
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgstore.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "Product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to retrieve product")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// UpdateProduct applies a partial update to a product. Operator action.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var patch models.ProductPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	product, err := h.catalog.UpdateProduct(r.Context(), id, &patch)
	if err != nil {
		if errors.Is(err, pgstore.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "Product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to update product")
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// --- cart ---

// GetCart returns the current user's cart with freshly computed totals.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	user := identity.CurrentUser(r)
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	view, err := h.cart.Get(r.Context(), user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to retrieve cart")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// AddCartItem adds a product to the current user's cart.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	user := identity.CurrentUser(r)
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	view, err := h.cart.AddProduct(r.Context(), user.ID, req.ProductID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, pgstore.ErrProductNotFound):
			respondError(w, http.StatusNotFound, "Product not found")
		case errors.Is(err, cart.ErrProductUnavailable):
			respondError(w, http.StatusConflict, "Product is no longer available")
		case errors.Is(err, cart.ErrInvalidQuantity):
			respondError(w, http.StatusBadRequest, "Quantity must be at least 1")
		default:
			respondError(w, http.StatusInternalServerError, "Failed to add to cart")
		}
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// SetCartItemQuantity sets a line's quantity; zero removes the line.
func (h *Handler) SetCartItemQuantity(w http.ResponseWriter, r *http.Request) {
	user := identity.CurrentUser(r)
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	productID := mux.Vars(r)["productId"]

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := h.cart.SetQuantity(r.Context(), user.ID, productID, req.Quantity)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update cart")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// RemoveCartItem deletes a line from the current user's cart.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	user := identity.CurrentUser(r)
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	productID := mux.Vars(r)["productId"]

	view, err := h.cart.RemoveProduct(r.Context(), user.ID, productID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update cart")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// --- checkout ---

// CreateOrder snapshots the current cart into a pending order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	user := identity.CurrentUser(r)
	if user == nil {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	order, err := h.checkout.CreateOrder(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, checkout.ErrEmptyCart) {
			respondError(w, http.StatusBadRequest, "Cart is empty")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to create order")
		return
	}
	respondJSON(w, http.StatusCreated, order)
}

// GetOrder returns an order by id.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := mux.Vars(r)["id"]
	order, err := h.checkout.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgstore.ErrOrderNotFound) {
			respondError(w, http.StatusNotFound, "Order not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to retrieve order")
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// PaymentCallback maps the payment gateway's callback into the single
// "payment succeeded for order O" event the checkout core reacts to.
// Gateway-specific fields stop here.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"order_id"`
		Status  string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.OrderID == "" {
		respondError(w, http.StatusBadRequest, "Order ID is required")
		return
	}
	if req.Status != "success" {
		// Failed or pending payments leave the order untouched.
		respondJSON(w, http.StatusOK, map[string]string{"result": "ignored"})
		return
	}

	order, err := h.checkout.ConfirmPayment(r.Context(), req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, pgstore.ErrOrderNotFound):
			respondError(w, http.StatusNotFound, "Order not found")
		case errors.Is(err, pgstore.ErrOrderNotPending):
			respondError(w, http.StatusConflict, "Order is not pending")
		default:
			respondError(w, http.StatusInternalServerError, "Payment recorded but could not be applied; order flagged for reconciliation")
		}
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// loggingMiddleware logs all HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		duration := time.Since(start)
		println(time.Now().Format(time.RFC3339), r.Method, r.RequestURI, duration.String())
	})
}

// corsMiddleware adds CORS headers (for development)
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-Id, X-User-Name, X-User-Email")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
