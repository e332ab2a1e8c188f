package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sitewise/procure/internal/domain/entity"
	"github.com/sitewise/procure/internal/draft"
	"github.com/sitewise/procure/internal/rfq"
	"github.com/sitewise/procure/internal/store"
	"github.com/sitewise/procure/pkg/utils"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Deps
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Deps, logger *zap.Logger) *Handlers {
	return &Handlers{deps: deps, logger: logger}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// DraftResponse represents an open draft session in API responses
type DraftResponse struct {
	Draft          *entity.Draft `json:"draft"`
	Resumed        bool          `json:"resumed"`
	Conflict       bool          `json:"conflict"`
	ServerModified string        `json:"server_modified"`
}

// CommitResponse represents the outcome of a committed draft
type CommitResponse struct {
	WorkflowState string                     `json:"workflow_state"`
	Orders        []*entity.ProcurementOrder `json:"orders"`
	SentBacks     []*entity.SentBackCategory `json:"sent_backs"`
}

// ExportResponse carries the path of a generated workbook
type ExportResponse struct {
	Path string `json:"path"`
}

// AddVendorRequest is the body of POST /api/prs/:id/vendors
type AddVendorRequest struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name"`
}

// SetQuoteRequest is the body of POST /api/prs/:id/quotes
type SetQuoteRequest struct {
	ItemID   string  `json:"item_id" binding:"required"`
	VendorID string  `json:"vendor_id" binding:"required"`
	Amount   float64 `json:"amount"`
	Make     string  `json:"make"`
}

// AddMakeRequest is the body of POST /api/prs/:id/makes
type AddMakeRequest struct {
	Category string `json:"category" binding:"required"`
	Make     string `json:"make" binding:"required"`
}

// EditItemRequest is the body of POST /api/prs/:id/draft/items/:itemId.
// Absent fields are left untouched.
type EditItemRequest struct {
	Quantity     *float64 `json:"quantity"`
	Comment      *string  `json:"comment"`
	Make         *string  `json:"make"`
	Tax          *float64 `json:"tax"`
	Status       *string  `json:"status"`
	SentBackType *string  `json:"sent_back_type"`
}

// SelectVendorRequest is the body of POST /api/prs/:id/draft/items/:itemId/vendor
type SelectVendorRequest struct {
	VendorID string `json:"vendor_id" binding:"required"`
}

// CommentRequest is the body of POST /api/prs/:id/draft/comment
type CommentRequest struct {
	Comment string `json:"comment"`
}

// CommitRequest is the body of POST /api/prs/:id/draft/commit
type CommitRequest struct {
	Force bool `json:"force"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// ListPRs handles GET /api/prs?project=
func (h *Handlers) ListPRs(c *gin.Context) {
	project := c.Query("project")
	if project == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "project query parameter is required"})
		return
	}

	prs, err := h.deps.PRs.ListByProject(c.Request.Context(), project)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: prs})
}

// GetPR handles GET /api/prs/:id
func (h *Handlers) GetPR(c *gin.Context) {
	pr, err := h.deps.PRs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: pr})
}

// AddVendor handles POST /api/prs/:id/vendors
func (h *Handlers) AddVendor(c *gin.Context) {
	var req AddVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	pr, err := h.deps.PRs.Get(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	rfq.NewMatrix(pr).AddVendor(entity.VendorRef{ID: req.ID, Name: req.Name})
	if err := h.deps.PRs.Update(ctx, pr, pr.Modified); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: pr})
}

// SetQuote handles POST /api/prs/:id/quotes
func (h *Handlers) SetQuote(c *gin.Context) {
	var req SetQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	pr, err := h.deps.PRs.Get(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := utils.ValidateQuoteAmount(req.Amount); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	matrix := rfq.NewMatrix(pr)
	if err := matrix.SetQuote(req.ItemID, req.VendorID, req.Amount); err != nil {
		h.fail(c, err)
		return
	}
	if req.Make != "" {
		if err := matrix.SetMake(req.ItemID, req.VendorID, req.Make); err != nil {
			h.fail(c, err)
			return
		}
	}
	if err := h.deps.PRs.Update(ctx, pr, pr.Modified); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: pr})
}

// AddCategoryMake handles POST /api/prs/:id/makes
func (h *Handlers) AddCategoryMake(c *gin.Context) {
	var req AddMakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	pr, err := h.deps.PRs.Get(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	if err := rfq.NewMatrix(pr).AddCategoryMake(req.Category, req.Make); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.deps.PRs.Update(ctx, pr, pr.Modified); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: pr})
}

// ExportQuoteComparison handles GET /api/prs/:id/export
func (h *Handlers) ExportQuoteComparison(c *gin.Context) {
	pr, err := h.deps.PRs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	path, err := h.deps.Exporter.QuoteComparison(pr)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: ExportResponse{Path: path}})
}

// OpenDraft handles POST /api/prs/:id/draft
func (h *Handlers) OpenDraft(c *gin.Context) {
	result, err := h.deps.Drafts.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: draftResponse(result)})
}

// EditItem handles POST /api/prs/:id/draft/items/:itemId
func (h *Handlers) EditItem(c *gin.Context) {
	var req EditItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	result, err := h.deps.Drafts.Open(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	if req.Comment != nil {
		clean := utils.SanitizeString(*req.Comment)
		req.Comment = &clean
	}
	patch := draft.Patch{
		Quantity:     req.Quantity,
		Comment:      req.Comment,
		Make:         req.Make,
		Tax:          req.Tax,
		Status:       req.Status,
		SentBackType: req.SentBackType,
	}
	if err := h.deps.Drafts.Edit(ctx, result.Draft, c.Param("itemId"), patch); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result.Draft})
}

// AddDraftItem handles POST /api/prs/:id/draft/items
func (h *Handlers) AddDraftItem(c *gin.Context) {
	var item entity.ProcurementItem
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	result, err := h.deps.Drafts.Open(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.deps.Drafts.AddItem(ctx, result.Draft, item); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result.Draft})
}

// RemoveDraftItem handles DELETE /api/prs/:id/draft/items/:itemId
func (h *Handlers) RemoveDraftItem(c *gin.Context) {
	ctx := c.Request.Context()
	result, err := h.deps.Drafts.Open(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.deps.Drafts.RemoveItem(ctx, result.Draft, c.Param("itemId")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result.Draft})
}

// SelectVendor handles POST /api/prs/:id/draft/items/:itemId/vendor
func (h *Handlers) SelectVendor(c *gin.Context) {
	var req SelectVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	result, err := h.deps.Drafts.Open(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.deps.Drafts.SelectVendor(ctx, result.Draft, c.Param("itemId"), req.VendorID); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result.Draft})
}

// SetDraftComment handles POST /api/prs/:id/draft/comment
func (h *Handlers) SetDraftComment(c *gin.Context) {
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	result, err := h.deps.Drafts.Open(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.deps.Drafts.SetComment(ctx, result.Draft, utils.SanitizeString(req.Comment)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result.Draft})
}

// UndoDraft handles POST /api/prs/:id/draft/undo
func (h *Handlers) UndoDraft(c *gin.Context) {
	ctx := c.Request.Context()
	result, err := h.deps.Drafts.Open(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.deps.Drafts.Undo(ctx, result.Draft); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result.Draft})
}

// CommitDraft handles POST /api/prs/:id/draft/commit. A draft whose
// baseline has diverged is rejected with 409 unless force is set, in
// which case it is re-baselined onto the current server revision first.
func (h *Handlers) CommitDraft(c *gin.Context) {
	var req CommitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
			return
		}
	}

	ctx := c.Request.Context()
	result, err := h.deps.Drafts.Open(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if result.Conflict {
		if !req.Force {
			c.JSON(http.StatusConflict, Response{Success: false, Error: "draft baseline has diverged; discard or force"})
			return
		}
		if err := h.deps.Drafts.ForceApply(ctx, result.Draft); err != nil {
			h.fail(c, err)
			return
		}
	}

	commit, err := h.deps.Drafts.Commit(ctx, result.Draft)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: CommitResponse{
		WorkflowState: commit.WorkflowState,
		Orders:        commit.Orders,
		SentBacks:     commit.SentBacks,
	}})
}

// DiscardDraft handles DELETE /api/prs/:id/draft
func (h *Handlers) DiscardDraft(c *gin.Context) {
	if err := h.deps.Drafts.Discard(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ListOrders handles GET /api/prs/:id/orders
func (h *Handlers) ListOrders(c *gin.Context) {
	orders, err := h.deps.POs.ListBySource(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: orders})
}

// ListSentBacks handles GET /api/prs/:id/sentbacks
func (h *Handlers) ListSentBacks(c *gin.Context) {
	sbs, err := h.deps.SentBacks.ListByParent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: sbs})
}

// ExportOrderSheet handles GET /api/orders/:id/export
func (h *Handlers) ExportOrderSheet(c *gin.Context) {
	po, err := h.deps.POs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	path, err := h.deps.Exporter.OrderSheet(po)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: ExportResponse{Path: path}})
}

func draftResponse(result *draft.OpenResult) DraftResponse {
	return DraftResponse{
		Draft:          result.Draft,
		Resumed:        result.Resumed,
		Conflict:       result.Conflict,
		ServerModified: result.ServerModified.UTC().Format(time.RFC3339Nano),
	}
}

// fail maps engine errors onto HTTP status codes and writes the
// standard error envelope.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	var validation *entity.ValidationError
	var incomplete *entity.IncompleteApprovalError
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, draft.ErrUnknownItem),
		errors.Is(err, rfq.ErrUnknownItem):
		status = http.StatusNotFound
	case store.IsConflict(err), errors.Is(err, draft.ErrCommitInFlight):
		status = http.StatusConflict
	case errors.As(err, &incomplete):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &validation),
		errors.Is(err, rfq.ErrInvalidQuote),
		errors.Is(err, rfq.ErrUnknownMake):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.Error(err))
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}
