package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/tallai/tallai/internal/invoice"
	"github.com/tallai/tallai/internal/provision"
	"github.com/tallai/tallai/internal/reconcile"
	"github.com/tallai/tallai/internal/store"
	"github.com/tallai/tallai/internal/tally"
	"github.com/tallai/tallai/internal/voucher"
)

// DocumentReader extracts the text layer of an uploaded document.
type DocumentReader interface {
	Text(path string) (string, error)
}

// Extractor turns document text into a typed invoice.
type Extractor interface {
	Extract(ctx context.Context, documentText string) (*invoice.Invoice, string, error)
}

// Reconciler matches raw labels against current backend masters.
type Reconciler interface {
	Snapshot(ctx context.Context) (*reconcile.MasterSet, error)
	Reconcile(ctx context.Context, inv *invoice.Invoice, masters *reconcile.MasterSet) *invoice.Invoice
}

// Provisioner creates the masters an invoice still needs.
type Provisioner interface {
	Provision(ctx context.Context, inv *invoice.Invoice) (*invoice.Invoice, *provision.Result)
}

// Poster assembles and submits balanced vouchers.
type Poster interface {
	Build(inv *invoice.Invoice) (*tally.Voucher, error)
	Submit(ctx context.Context, v *tally.Voucher) error
}

// WorkbookBuilder renders a stored record as an Excel review workbook.
type WorkbookBuilder interface {
	Build(rec *store.Record) (*excelize.File, error)
}

// Gateway exposes backend connectivity checks for the health endpoint.
type Gateway interface {
	Ping(ctx context.Context) error
	ActiveCompany(ctx context.Context) (string, error)
}

// Handlers contains all HTTP request handlers.
type Handlers struct {
	store       *store.Store
	reader      DocumentReader
	extractor   Extractor
	reconciler  Reconciler
	provisioner Provisioner
	poster      Poster
	workbooks   WorkbookBuilder
	gateway     Gateway
	tol         invoice.Tolerance
	company     string
	uploadDir   string
	logger      *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	st *store.Store,
	reader DocumentReader,
	extractor Extractor,
	reconciler Reconciler,
	provisioner Provisioner,
	poster Poster,
	workbooks WorkbookBuilder,
	gateway Gateway,
	tol invoice.Tolerance,
	company string,
	uploadDir string,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		store:       st,
		reader:      reader,
		extractor:   extractor,
		reconciler:  reconciler,
		provisioner: provisioner,
		poster:      poster,
		workbooks:   workbooks,
		gateway:     gateway,
		tol:         tol,
		company:     company,
		uploadDir:   uploadDir,
		logger:      logger,
	}
}

// Response represents a standard JSON response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// RecordResponse represents a stored invoice in API responses.
type RecordResponse struct {
	ID         int64            `json:"id"`
	Company    string           `json:"company"`
	Kind       string           `json:"kind"`
	Status     string           `json:"status"`
	SourceFile string           `json:"source_file,omitempty"`
	Violations []string         `json:"violations"`
	Unresolved []string         `json:"unresolved"`
	Invoice    *invoice.Invoice `json:"invoice"`
	CreatedAt  string           `json:"created_at"`
	UpdatedAt  string           `json:"updated_at"`
}

// ExportResponse reports a posted voucher.
type ExportResponse struct {
	ID                int64    `json:"id"`
	VoucherType       string   `json:"voucher_type"`
	Date              string   `json:"date"`
	Reference         string   `json:"reference,omitempty"`
	Created           []string `json:"created_masters"`
	ProvisionFailures []string `json:"provision_failures,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Backend   string `json:"backend"`
	Company   string `json:"company,omitempty"`
}

// ExportRequest carries the reviewer's export options.
type ExportRequest struct {
	Override bool `json:"override"`
}

// HealthCheck handles GET /health.
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Backend:   "reachable",
	}

	if err := h.gateway.Ping(c.Request.Context()); err != nil {
		resp.Status = "degraded"
		resp.Backend = "unreachable"
	} else if company, err := h.gateway.ActiveCompany(c.Request.Context()); err == nil {
		resp.Company = company
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: resp})
}

// UploadInvoice handles POST /api/v1/invoices. The uploaded PDF runs
// through extraction, verification and matching; the result is stored
// for review, never posted directly.
func (h *Handlers) UploadInvoice(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "missing file upload"})
		return
	}
	if ext := strings.ToLower(filepath.Ext(file.Filename)); ext != ".pdf" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "only PDF uploads are supported"})
		return
	}

	path := filepath.Join(h.uploadDir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), filepath.Base(file.Filename)))
	if err := c.SaveUploadedFile(file, path); err != nil {
		h.logger.Error("Failed to save upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to save upload"})
		return
	}
	defer os.Remove(path)

	text, err := h.reader.Text(path)
	if err != nil {
		h.logger.Error("Failed to read PDF text", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: "failed to read PDF: " + err.Error()})
		return
	}

	inv, _, err := h.extractor.Extract(c.Request.Context(), text)
	if err != nil {
		h.logger.Error("Extraction failed", zap.String("file", file.Filename), zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, Response{Success: false, Error: "extraction failed: " + err.Error()})
		return
	}

	violations := invoice.Verify(inv, h.tol)
	inv = h.reconcileBestEffort(c.Request.Context(), inv)

	company := c.PostForm("company")
	if company == "" {
		company = h.company
	}

	rec := &store.Record{
		Company:    company,
		Kind:       inv.Kind,
		Status:     store.StatusPendingReview,
		SourceFile: file.Filename,
		Invoice:    inv,
		Violations: violations,
	}
	if err := h.store.Create(rec); err != nil {
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to store invoice"})
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: toRecordResponse(rec)})
}

// reconcileBestEffort annotates resolved names when the backend is
// reachable. An unreachable backend leaves everything unresolved for
// the reviewer instead of failing the upload.
func (h *Handlers) reconcileBestEffort(ctx context.Context, inv *invoice.Invoice) *invoice.Invoice {
	masters, err := h.reconciler.Snapshot(ctx)
	if err != nil {
		h.logger.Warn("Master snapshot failed, storing unmatched", zap.Error(err))
		return inv
	}
	return h.reconciler.Reconcile(ctx, inv, masters)
}

// ListInvoices handles GET /api/v1/invoices.
func (h *Handlers) ListInvoices(c *gin.Context) {
	status := store.Status(c.Query("status"))

	records, err := h.store.List(status)
	if err != nil {
		h.logger.Error("Failed to list invoices", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to retrieve invoices"})
		return
	}

	responses := make([]RecordResponse, 0, len(records))
	for _, rec := range records {
		responses = append(responses, toRecordResponse(rec))
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: responses})
}

// GetInvoice handles GET /api/v1/invoices/:id.
func (h *Handlers) GetInvoice(c *gin.Context) {
	rec, ok := h.recordFromPath(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toRecordResponse(rec)})
}

// UpdateInvoice handles PUT /api/v1/invoices/:id. The reviewer submits
// the edited invoice; arithmetic is re-verified against the edit.
func (h *Handlers) UpdateInvoice(c *gin.Context) {
	rec, ok := h.recordFromPath(c)
	if !ok {
		return
	}
	if rec.Status == store.StatusExported {
		c.JSON(http.StatusConflict, Response{Success: false, Error: "invoice already exported"})
		return
	}

	var inv invoice.Invoice
	if err := c.ShouldBindJSON(&inv); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid invoice payload: " + err.Error()})
		return
	}
	if err := inv.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid invoice payload: " + err.Error()})
		return
	}

	rec.Invoice = &inv
	rec.Kind = inv.Kind
	rec.Status = store.StatusPendingReview
	rec.Violations = invoice.Verify(&inv, h.tol)

	if err := h.store.Update(rec); err != nil {
		h.logger.Error("Failed to update invoice", zap.Int64("id", rec.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to update invoice"})
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: toRecordResponse(rec)})
}

// ExportInvoice handles POST /api/v1/invoices/:id/export. Export is
// refused while violations or unresolved names remain, unless the
// reviewer overrides; then missing masters are provisioned and the
// voucher posted.
func (h *Handlers) ExportInvoice(c *gin.Context) {
	rec, ok := h.recordFromPath(c)
	if !ok {
		return
	}
	if rec.Status == store.StatusExported {
		c.JSON(http.StatusConflict, Response{Success: false, Error: "invoice already exported"})
		return
	}

	var req ExportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid export request: " + err.Error()})
			return
		}
	}

	violations := invoice.Verify(rec.Invoice, h.tol)
	unresolved := rec.Invoice.Unresolved()
	if (len(violations) > 0 || len(unresolved) > 0) && !req.Override {
		c.JSON(http.StatusConflict, Response{
			Success: false,
			Error:   "invoice has open issues; review or override",
			Data: gin.H{
				"violations": violations,
				"unresolved": unresolved,
			},
		})
		return
	}

	ctx := c.Request.Context()
	provisioned, result := h.provisioner.Provision(ctx, rec.Invoice)
	// failed creates are non-fatal: the intended names are already
	// written, so posting proceeds and the gateway has the last word
	provisionFailures := make([]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		provisionFailures = append(provisionFailures, f.Error())
	}
	if len(provisionFailures) > 0 {
		h.logger.Warn("Some masters could not be provisioned",
			zap.Int64("id", rec.ID),
			zap.Strings("failures", provisionFailures))
	}

	v, err := h.poster.Build(provisioned)
	if err != nil {
		if errors.Is(err, voucher.ErrUnbalanced) {
			c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
			return
		}
		h.failExport(c, rec, http.StatusInternalServerError, "failed to build voucher: "+err.Error())
		return
	}

	if err := h.poster.Submit(ctx, v); err != nil {
		h.failExport(c, rec, http.StatusBadGateway, err.Error())
		return
	}

	rec.Invoice = provisioned
	rec.Status = store.StatusExported
	rec.Violations = violations
	if err := h.store.Update(rec); err != nil {
		h.logger.Error("Voucher posted but record update failed", zap.Int64("id", rec.ID), zap.Error(err))
	}

	h.logger.Info("Invoice exported",
		zap.Int64("id", rec.ID),
		zap.String("voucher_type", v.Type),
		zap.Strings("created_masters", result.Created))

	c.JSON(http.StatusOK, Response{Success: true, Data: ExportResponse{
		ID:                rec.ID,
		VoucherType:       v.Type,
		Date:              string(v.Date),
		Reference:         v.Reference,
		Created:           result.Created,
		ProvisionFailures: provisionFailures,
	}})
}

func (h *Handlers) failExport(c *gin.Context, rec *store.Record, status int, msg string) {
	h.logger.Error("Export failed", zap.Int64("id", rec.ID), zap.String("reason", msg))
	if err := h.store.UpdateStatus(rec.ID, store.StatusFailed); err != nil {
		h.logger.Error("Failed to mark record failed", zap.Int64("id", rec.ID), zap.Error(err))
	}
	c.JSON(status, Response{Success: false, Error: msg})
}

// DownloadWorkbook handles GET /api/v1/invoices/:id/workbook.
func (h *Handlers) DownloadWorkbook(c *gin.Context) {
	rec, ok := h.recordFromPath(c)
	if !ok {
		return
	}

	f, err := h.workbooks.Build(rec)
	if err != nil {
		h.logger.Error("Failed to build workbook", zap.Int64("id", rec.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to build workbook"})
		return
	}
	defer f.Close()

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="invoice_%d.xlsx"`, rec.ID))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(c.Writer); err != nil {
		h.logger.Error("Failed to stream workbook", zap.Int64("id", rec.ID), zap.Error(err))
	}
}

func (h *Handlers) recordFromPath(c *gin.Context) (*store.Record, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid invoice ID"})
		return nil, false
	}

	rec, err := h.store.Get(id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "invoice not found"})
		return nil, false
	}
	if err != nil {
		h.logger.Error("Failed to load invoice", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to load invoice"})
		return nil, false
	}
	return rec, true
}

func toRecordResponse(rec *store.Record) RecordResponse {
	resp := RecordResponse{
		ID:         rec.ID,
		Company:    rec.Company,
		Kind:       string(rec.Kind),
		Status:     string(rec.Status),
		SourceFile: rec.SourceFile,
		Violations: rec.Violations,
		Unresolved: []string{},
		Invoice:    rec.Invoice,
		CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  rec.UpdatedAt.Format(time.RFC3339),
	}
	if rec.Invoice != nil {
		resp.Unresolved = rec.Invoice.Unresolved()
	}
	if resp.Violations == nil {
		resp.Violations = []string{}
	}
	return resp
}
