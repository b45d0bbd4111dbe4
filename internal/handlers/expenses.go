package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/charlesng35/expensely/internal/extraction"
	"github.com/charlesng35/expensely/internal/models"
	"github.com/charlesng35/expensely/internal/services"
	"github.com/charlesng35/expensely/pkg/errors"
	"github.com/charlesng35/expensely/pkg/response"
)

// ExpenseHandler exposes expense records, their review workflow and receipt extraction.
type ExpenseHandler struct {
	profiles   *services.ProfileService
	expenses   *services.ExpenseService
	extraction *services.ExtractionService
}

// NewExpenseHandler wires the handler. extraction may be nil, in which case the
// extract endpoint reports that the feature is unavailable.
func NewExpenseHandler(profiles *services.ProfileService, expenses *services.ExpenseService, extraction *services.ExtractionService) (*ExpenseHandler, error) {
	if profiles == nil || expenses == nil {
		return nil, fmt.Errorf("expense handler: profile and expense services are required")
	}
	return &ExpenseHandler{profiles: profiles, expenses: expenses, extraction: extraction}, nil
}

type expenseItemRequest struct {
	Name     string          `json:"name" validate:"notblank,max=256"`
	Quantity int             `json:"quantity"`
	NetPrice decimal.Decimal `json:"net_price" validate:"gte=0"`
}

type expenseRequest struct {
	VendorName    string               `json:"vendor_name" validate:"notblank,max=256"`
	Items         []expenseItemRequest `json:"items" validate:"required,min=1,max=200,dive"`
	Category      string               `json:"category" validate:"required,category"`
	PaymentMethod string               `json:"payment_method" validate:"required,payment_method"`
	ExpenseDate   string               `json:"expense_date"`
	Notes         string               `json:"notes" validate:"max=1024"`
	Source        string               `json:"source" validate:"omitempty,oneof=manual extraction"`
}

type extractRequest struct {
	Image string `json:"image" validate:"required"`
}

func (r expenseRequest) toInput() (services.ExpenseInput, error) {
	input := services.ExpenseInput{
		VendorName:    r.VendorName,
		Category:      models.Category(strings.ToLower(r.Category)),
		PaymentMethod: models.PaymentMethod(strings.ToLower(r.PaymentMethod)),
		Notes:         r.Notes,
		Source:        models.ExpenseSource(r.Source),
		Items:         make([]services.ExpenseItemInput, 0, len(r.Items)),
	}
	for _, item := range r.Items {
		input.Items = append(input.Items, services.ExpenseItemInput{
			Name:     item.Name,
			Quantity: item.Quantity,
			NetPrice: item.NetPrice,
		})
	}
	if strings.TrimSpace(r.ExpenseDate) != "" {
		date, err := parseDate(r.ExpenseDate)
		if err != nil {
			return input, errors.NewBadRequest("expense date must be formatted as YYYY-MM-DD")
		}
		input.ExpenseDate = date
	}
	return input, nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}

func parseListOptions(c *gin.Context) (services.ExpenseListOptions, error) {
	opts := services.ExpenseListOptions{
		Status:   models.ExpenseStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
		Category: models.Category(strings.ToLower(strings.TrimSpace(c.Query("category")))),
		Scope:    services.ExpenseScope(strings.ToLower(strings.TrimSpace(c.Query("scope")))),
		Page:     parseIntQuery(c, "page", 1),
		PageSize: parseIntQuery(c, "per_page", 20),
	}
	for key, dest := range map[string]**time.Time{"from": &opts.From, "to": &opts.To} {
		raw := strings.TrimSpace(c.Query(key))
		if raw == "" {
			continue
		}
		t, err := parseDate(raw)
		if err != nil {
			return opts, errors.NewBadRequest(fmt.Sprintf("%s must be formatted as YYYY-MM-DD", key))
		}
		*dest = &t
	}
	return opts, nil
}

// POST /api/expenses
func (h *ExpenseHandler) Create(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	var req expenseRequest
	if !bindAndValidate(c, &req) {
		return
	}
	input, err := req.toInput()
	if err != nil {
		response.Error(c, err)
		return
	}

	expense, err := h.expenses.Create(requestContext(c), actor, input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, expense)
}

// GET /api/expenses
func (h *ExpenseHandler) List(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	opts, err := parseListOptions(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	expenses, total, err := h.expenses.List(requestContext(c), actor, opts)
	if err != nil {
		response.Error(c, err)
		return
	}

	page, perPage := opts.Page, opts.PageSize
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	response.SuccessWithMeta(c, http.StatusOK, expenses, response.NewMeta(page, perPage, total))
}

// GET /api/expenses/summary
func (h *ExpenseHandler) Summary(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	opts, err := parseListOptions(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	summary, err := h.expenses.Summary(requestContext(c), actor, opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, summary)
}

// GET /api/expenses/:id
func (h *ExpenseHandler) Get(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	expense, err := h.expenses.Get(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, expense)
}

// PATCH /api/expenses/:id
func (h *ExpenseHandler) Update(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	var req expenseRequest
	if !bindAndValidate(c, &req) {
		return
	}
	input, err := req.toInput()
	if err != nil {
		response.Error(c, err)
		return
	}

	expense, err := h.expenses.Update(requestContext(c), actor, c.Param("id"), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, expense)
}

// DELETE /api/expenses/:id
func (h *ExpenseHandler) Delete(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	if err := h.expenses.Delete(requestContext(c), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/expenses/:id/approve
func (h *ExpenseHandler) Approve(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	expense, err := h.expenses.Approve(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, expense)
}

// POST /api/expenses/:id/reject
func (h *ExpenseHandler) Reject(c *gin.Context) {
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}
	expense, err := h.expenses.Reject(requestContext(c), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, expense)
}

// POST /api/expenses/extract
//
// Accepts either a JSON body {"image": "data:image/...;base64,..."} or a
// multipart upload with the file in the "receipt" field.
func (h *ExpenseHandler) Extract(c *gin.Context) {
	if h.extraction == nil {
		response.Error(c, errors.New("EXTRACTION_DISABLED", "Receipt extraction is not configured", http.StatusServiceUnavailable))
		return
	}
	actor, ok := resolveActor(c, h.profiles)
	if !ok {
		return
	}

	dataURI, ok := receiptDataURI(c)
	if !ok {
		return
	}

	receipt, err := h.extraction.Extract(requestContext(c), actor, dataURI)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"vendor_name":    receipt.VendorName,
		"items":          receipt.Items,
		"category":       receipt.Category,
		"payment_method": receipt.PaymentMethod,
		"expense_date":   receipt.ExpenseDate.Format("2006-01-02"),
		"total_amount":   receipt.TotalAmount,
	})
}

func receiptDataURI(c *gin.Context) (string, bool) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var req extractRequest
		if !bindAndValidate(c, &req) {
			return "", false
		}
		return strings.TrimSpace(req.Image), true
	}

	header, err := c.FormFile("receipt")
	if err != nil {
		response.Error(c, errors.NewBadRequest("receipt file is required"))
		return "", false
	}
	if header.Size > extraction.MaxImageBytes {
		response.Error(c, extraction.InvalidImage(extraction.ErrImageTooLarge))
		return "", false
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, errors.NewBadRequest("receipt file could not be read"))
		return "", false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, extraction.MaxImageBytes+1))
	if err != nil {
		response.Error(c, errors.NewBadRequest("receipt file could not be read"))
		return "", false
	}
	uri, err := extraction.EncodeDataURI(data)
	if err != nil {
		response.Error(c, extraction.InvalidImage(err))
		return "", false
	}
	return uri, true
}
