package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"order-sync-service/internal/apperrors"
	"order-sync-service/internal/models"
	"order-sync-service/internal/service"
	"order-sync-service/internal/store"
	"order-sync-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const principalKey = "principal"

// SheetSyncer runs a manual mirror pass for one proposal.
type SheetSyncer interface {
	SyncProposal(ctx context.Context, event *models.ProposalAcceptedEvent) error
}

// Handler contains HTTP handlers
type Handler struct {
	store        *store.Store
	applier      *service.ChangeApplier
	acceptance   *service.AcceptanceService
	reclassifier *service.Reclassifier
	syncer       SheetSyncer
}

// NewHandler creates a new HTTP handler
func NewHandler(
	st *store.Store,
	applier *service.ChangeApplier,
	acceptance *service.AcceptanceService,
	reclassifier *service.Reclassifier,
	syncer SheetSyncer,
) *Handler {
	return &Handler{
		store:        st,
		applier:      applier,
		acceptance:   acceptance,
		reclassifier: reclassifier,
		syncer:       syncer,
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
	v1.Use(principalMiddleware())
	{
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/changes", h.applyChanges)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.POST("/proposals/:id/resolve", h.resolveProposal)
		v1.POST("/proposals/:id/reclassify", h.reclassifyProposal)
		v1.POST("/sheet-sync", h.sheetSync)
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

// getOrder returns one order with all of its lines, soft-deleted included.
func (h *Handler) getOrder(c *gin.Context) {
	orderID := c.Param("id")

	order, err := h.store.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !h.authorizeOrg(c, order.OrganizationID) {
		return
	}

	lines, err := h.store.GetOrderLines(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"lines": lines,
	})
}

type applyChangesRequest struct {
	Lines             []service.ChangeLine `json:"lines" binding:"omitempty,dive"`
	CancelEntireOrder bool                 `json:"cancel_entire_order"`
}

// applyChanges applies a batch of line changes to one order, or cancels it
// outright when cancel_entire_order is set.
func (h *Handler) applyChanges(c *gin.Context) {
	orderID := c.Param("id")

	var req applyChangesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if !req.CancelEntireOrder && len(req.Lines) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No changes provided"})
		return
	}

	order, err := h.store.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !h.authorizeOrg(c, order.OrganizationID) {
		return
	}

	if req.CancelEntireOrder {
		metadata := models.JSONMap{"cancelled_by": principal(c)}
		if err := h.applier.CancelOrder(c.Request.Context(), orderID, metadata); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Order cancelled"})
		return
	}

	result, err := h.applier.ApplyChanges(c.Request.Context(), orderID, req.Lines)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type cancelOrderRequest struct {
	Reason *string `json:"reason,omitempty"`
}

// cancelOrder cancels one order outright.
func (h *Handler) cancelOrder(c *gin.Context) {
	orderID := c.Param("id")

	// The body is optional; a bare POST cancels with no recorded reason.
	var req cancelOrderRequest
	_ = c.ShouldBindJSON(&req)

	order, err := h.store.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !h.authorizeOrg(c, order.OrganizationID) {
		return
	}

	metadata := models.JSONMap{"cancelled_by": principal(c)}
	if req.Reason != nil {
		metadata["reason"] = *req.Reason
	}

	if err := h.applier.CancelOrder(c.Request.Context(), orderID, metadata); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "order_id": orderID})
}

// resolveProposal accepts or rejects a pending proposal.
func (h *Handler) resolveProposal(c *gin.Context) {
	proposalID := c.Param("id")

	var req service.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	proposal, err := h.store.GetProposal(c.Request.Context(), proposalID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !h.authorizeOrg(c, proposal.OrganizationID) {
		return
	}

	result, err := h.acceptance.ResolveProposal(c.Request.Context(), proposalID, &req, principal(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type reclassifyRequest struct {
	Action        string  `json:"action" binding:"required"`
	TargetOrderID *string `json:"target_order_id,omitempty"`
}

// reclassifyProposal rejects a misrouted proposal and reroutes its intake
// event.
func (h *Handler) reclassifyProposal(c *gin.Context) {
	proposalID := c.Param("id")

	var req reclassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	proposal, err := h.store.GetProposal(c.Request.Context(), proposalID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !h.authorizeOrg(c, proposal.OrganizationID) {
		return
	}

	result, err := h.reclassifier.Reclassify(c.Request.Context(), proposalID, req.Action, req.TargetOrderID, principal(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type sheetSyncRequest struct {
	ProposalID string `json:"proposal_id" binding:"required"`
}

// sheetSync re-runs the spreadsheet mirror for one resolved proposal, for
// operators reconciling after a failed or manually edited sync.
func (h *Handler) sheetSync(c *gin.Context) {
	var req sheetSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	proposalID := req.ProposalID
	ctx := c.Request.Context()

	proposal, err := h.store.GetProposal(ctx, proposalID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !h.authorizeOrg(c, proposal.OrganizationID) {
		return
	}
	if proposal.OrderID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Proposal has no associated order"})
		return
	}

	order, err := h.store.GetOrder(ctx, *proposal.OrderID)
	if err != nil {
		respondError(c, err)
		return
	}
	proposalLines, err := h.store.GetProposalLines(ctx, proposalID)
	if err != nil {
		respondError(c, err)
		return
	}

	lines := make([]models.ChangeLineData, 0, len(proposalLines))
	for i := range proposalLines {
		l := &proposalLines[i]
		data := models.ChangeLineData{
			ChangeType:  l.ChangeType,
			ItemName:    l.ItemName,
			Quantity:    l.Quantity(),
			OrderLineID: l.OrderLineID,
		}
		if code := l.VariantCode(); code != "" {
			data.VariantCode = &code
		}
		lines = append(lines, data)
	}

	event := &models.ProposalAcceptedEvent{
		ProposalID:   proposal.ID,
		ProposalType: proposal.ResolvedType(),
		OrderID:      order.ID,
		OrderStatus:  order.Status,
		CustomerName: order.CustomerName,
		DeliveryDate: order.DeliveryDate,
		Recurring:    proposal.IsRecurring(),
		Lines:        lines,
	}

	if err := h.syncer.SyncProposal(ctx, event); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "proposal_id": proposalID})
}

// authorizeOrg verifies the caller belongs to the organization that owns the
// resource. Membership failures read as 404 so resource existence does not
// leak across tenants.
func (h *Handler) authorizeOrg(c *gin.Context, organizationID string) bool {
	ok, err := h.store.UserInOrganization(c.Request.Context(), principal(c), organizationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Authorization check failed"})
		return false
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return false
	}
	return true
}

func principal(c *gin.Context) string {
	return c.GetString(principalKey)
}

// principalMiddleware requires an authenticated user id on every API call.
// Authentication itself happens at the gateway; this service only consumes
// the forwarded identity.
func principalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing X-User-ID header"})
			return
		}
		if _, err := uuid.Parse(userID); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid X-User-ID header"})
			return
		}
		c.Set(principalKey, userID)
		c.Next()
	}
}

// respondError maps domain errors onto HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrOrderNotFound),
		errors.Is(err, apperrors.ErrLineNotFound),
		errors.Is(err, apperrors.ErrProposalNotFound),
		errors.Is(err, apperrors.ErrTargetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrMissingTarget),
		errors.Is(err, apperrors.ErrInvalidAction),
		errors.Is(err, apperrors.ErrProposalResolved):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrOrderLocked):
		status = http.StatusConflict
	}

	c.JSON(status, gin.H{"error": err.Error()})
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
