package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/allshop-fulfillment/internal/core/domain"
	"github.com/rl1809/allshop-fulfillment/internal/core/service"
	"github.com/rl1809/allshop-fulfillment/internal/logger"
	"github.com/rl1809/allshop-fulfillment/internal/port"
)

const (
	actorKey          = "actor"
	actorEmailHeader  = "X-Actor-Email"
	authorizationHead = "Authorization"
)

type HTTPHandler struct {
	fulfillment *service.FulfillmentService
	inventory   *service.InventoryService
	identity    port.IdentityProvider
}

type OpenSessionRequest struct {
	OrderID string `json:"orderId" binding:"required"`
}

type ScanRequest struct {
	Code string `json:"code" binding:"required"`
}

type SelectUnitRequest struct {
	Serial string `json:"serial" binding:"required"`
}

type CommitRequest struct {
	TrackingNumber string `json:"trackingNumber" binding:"max=64"`
}

type RegisterLotRequest struct {
	ProductID     string          `json:"productId" binding:"required"`
	ProductName   string          `json:"productName"`
	Variant       string          `json:"variant"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	Serials       []string        `json:"serials" binding:"required,min=1,dive,required"`
}

type ErrorResponse struct {
	Code    string               `json:"code"`
	Message string               `json:"message"`
	Session *service.SessionView `json:"session,omitempty"`
}

func NewHTTPHandler(fulfillment *service.FulfillmentService, inventory *service.InventoryService, identity port.IdentityProvider) *HTTPHandler {
	return &HTTPHandler{
		fulfillment: fulfillment,
		inventory:   inventory,
		identity:    identity,
	}
}

// Register mounts all routes on the engine.
func (h *HTTPHandler) Register(r *gin.Engine) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api", h.authenticate)
	api.GET("/orders/:id", h.GetOrder)

	api.GET("/lots", h.ListLots)
	api.GET("/lots/:id", h.GetLot)
	api.POST("/lots", h.RegisterLot)

	f := api.Group("/fulfillments")
	f.POST("", h.OpenSession)
	f.GET("/:id", h.GetSession)
	f.DELETE("/:id", h.CancelSession)
	f.POST("/:id/scans", h.Scan)
	f.GET("/:id/items/:key/candidates", h.Candidates)
	f.POST("/:id/items/:key/select", h.SelectUnit)
	f.POST("/:id/commit", h.Commit)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) GetOrder(c *gin.Context) {
	order, err := h.fulfillment.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *HTTPHandler) ListLots(c *gin.Context) {
	lots, err := h.inventory.ListLots(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lots)
}

func (h *HTTPHandler) GetLot(c *gin.Context) {
	lot, err := h.inventory.GetLot(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, lot)
}

func (h *HTTPHandler) RegisterLot(c *gin.Context) {
	var req RegisterLotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	lot, err := h.inventory.RegisterLot(c.Request.Context(), service.RegisterLotInput{
		ProductID:     req.ProductID,
		ProductName:   req.ProductName,
		Variant:       req.Variant,
		PurchasePrice: req.PurchasePrice,
		Serials:       req.Serials,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, lot)
}

func (h *HTTPHandler) OpenSession(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.fulfillment.OpenSession(c.Request.Context(), req.OrderID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *HTTPHandler) GetSession(c *gin.Context) {
	view, err := h.fulfillment.Session(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *HTTPHandler) CancelSession(c *gin.Context) {
	if err := h.fulfillment.Cancel(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTPHandler) Scan(c *gin.Context) {
	var req ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.fulfillment.Scan(c.Param("id"), req.Code)
	h.respondScan(c, view, err)
}

func (h *HTTPHandler) SelectUnit(c *gin.Context) {
	var req SelectUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	view, err := h.fulfillment.SelectUnit(c.Param("id"), c.Param("key"), req.Serial)
	h.respondScan(c, view, err)
}

func (h *HTTPHandler) Candidates(c *gin.Context) {
	candidates, err := h.fulfillment.Candidates(c.Param("id"), c.Param("key"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if candidates == nil {
		candidates = []service.Candidate{}
	}
	c.JSON(http.StatusOK, candidates)
}

func (h *HTTPHandler) Commit(c *gin.Context) {
	var req CommitRequest
	// the body is optional; chunked bodies report no length
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err)
			return
		}
	}

	result, err := h.fulfillment.Commit(c.Request.Context(), c.Param("id"), actorFrom(c), req.TrackingNumber)
	if err != nil {
		if service.IsConflict(err) || errors.Is(err, port.ErrTransactionConflict) {
			resp := ErrorResponse{Code: "CONFLICT", Message: err.Error()}
			if view, verr := h.fulfillment.Session(c.Param("id")); verr == nil {
				resp.Session = &view
			}
			c.JSON(http.StatusConflict, resp)
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *HTTPHandler) respondScan(c *gin.Context, view service.SessionView, err error) {
	if err == nil {
		c.JSON(http.StatusOK, view)
		return
	}
	if service.IsOperatorError(err) {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Code:    "SCAN_REJECTED",
			Message: err.Error(),
			Session: &view,
		})
		return
	}
	h.fail(c, err)
}

// authenticate resolves the acting operator. A bearer token takes precedence
// over the plain email header.
func (h *HTTPHandler) authenticate(c *gin.Context) {
	credential := c.GetHeader(authorizationHead)
	if credential == "" {
		credential = c.GetHeader(actorEmailHeader)
	}

	actor, err := h.identity.Resolve(c.Request.Context(), credential)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Code: "UNAUTHENTICATED", Message: err.Error()})
		return
	}

	c.Set(actorKey, actor)
	c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(),
		logger.FromContext(c.Request.Context()).With(zap.String("actor", actor.DisplayName()))))
	c.Next()
}

func actorFrom(c *gin.Context) domain.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(domain.Actor); ok {
			return actor
		}
	}
	return domain.Actor{}
}

func (h *HTTPHandler) fail(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("request failed", zap.Error(err))
		_ = c.Error(err)
		c.JSON(status, ErrorResponse{Code: code, Message: "internal error"})
		return
	}
	c.JSON(status, ErrorResponse{Code: code, Message: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Code: "INVALID_REQUEST", Message: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, port.ErrUnauthenticated):
		return http.StatusUnauthorized, "UNAUTHENTICATED"
	case service.IsOperatorError(err):
		return http.StatusUnprocessableEntity, "SCAN_REJECTED"
	case errors.Is(err, service.ErrIncompleteScan):
		return http.StatusBadRequest, "INCOMPLETE_SCAN"
	case errors.Is(err, service.ErrInvalidLot):
		return http.StatusBadRequest, "INVALID_LOT"
	case errors.Is(err, service.ErrNothingToFulfill):
		return http.StatusUnprocessableEntity, "NOTHING_TO_FULFILL"
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrOrderNotFound),
		errors.Is(err, service.ErrLotNotFound),
		errors.Is(err, service.ErrUnknownLineItem):
		return http.StatusNotFound, "NOT_FOUND"
	case service.IsConflict(err), errors.Is(err, port.ErrTransactionConflict):
		return http.StatusConflict, "CONFLICT"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
