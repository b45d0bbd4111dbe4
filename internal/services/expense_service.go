package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/expensely/internal/models"
	"github.com/charlesng35/expensely/internal/permissions"
	"github.com/charlesng35/expensely/internal/workflow"
	"github.com/charlesng35/expensely/pkg/metrics"

	apperrors "github.com/charlesng35/expensely/pkg/errors"
)

// ErrExpenseNotFound indicates no expense matches the id.
var ErrExpenseNotFound = apperrors.ErrNotFound.WithMessage("expense not found")

const maxExpenseItems = 200

// ExpenseItemInput is one line of an expense as submitted.
type ExpenseItemInput struct {
	Name     string
	Quantity int
	NetPrice decimal.Decimal
}

// ExpenseInput carries the editable fields of an expense.
type ExpenseInput struct {
	VendorName    string
	Items         []ExpenseItemInput
	Category      models.Category
	PaymentMethod models.PaymentMethod
	ExpenseDate   time.Time
	Notes         string
	Source        models.ExpenseSource
}

// ExpenseScope narrows a listing to personal or company expenses.
type ExpenseScope string

const (
	ExpenseScopeAll      ExpenseScope = ""
	ExpenseScopePersonal ExpenseScope = "personal"
	ExpenseScopeCompany  ExpenseScope = "company"
)

// ExpenseListOptions controls filtering and pagination of expense listings.
type ExpenseListOptions struct {
	Status   models.ExpenseStatus
	Category models.Category
	Scope    ExpenseScope
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// SummaryBucket aggregates a group of expenses.
type SummaryBucket struct {
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// ExpenseSummary totals the expenses visible to the actor.
type ExpenseSummary struct {
	Count      int64                                 `json:"count"`
	Total      decimal.Decimal                       `json:"total"`
	ByCategory map[models.Category]SummaryBucket      `json:"by_category"`
	ByStatus   map[models.ExpenseStatus]SummaryBucket `json:"by_status"`
}

// ExpenseService manages expenses and their review workflow.
type ExpenseService struct {
	db    *gorm.DB
	audit *AuditService
	now   func() time.Time
}

// NewExpenseService constructs an ExpenseService.
func NewExpenseService(db *gorm.DB, audit *AuditService) (*ExpenseService, error) {
	if db == nil {
		return nil, errors.New("expense service: db is required")
	}
	return &ExpenseService{db: db, audit: audit, now: time.Now}, nil
}

// buildItems validates input lines, floors quantities at 1 and returns the items with their total.
func buildItems(inputs []ExpenseItemInput) ([]models.ExpenseItem, decimal.Decimal, error) {
	if len(inputs) == 0 {
		return nil, decimal.Zero, apperrors.NewBadRequest("at least one item is required")
	}
	if len(inputs) > maxExpenseItems {
		return nil, decimal.Zero, apperrors.NewBadRequest(fmt.Sprintf("an expense may have at most %d items", maxExpenseItems))
	}

	items := make([]models.ExpenseItem, 0, len(inputs))
	for i, in := range inputs {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			return nil, decimal.Zero, apperrors.NewBadRequest(fmt.Sprintf("item %d: name is required", i+1))
		}
		if in.NetPrice.IsNegative() {
			return nil, decimal.Zero, apperrors.NewBadRequest(fmt.Sprintf("item %d: net price cannot be negative", i+1))
		}
		quantity := in.Quantity
		if quantity < 1 {
			quantity = 1
		}
		items = append(items, models.ExpenseItem{
			Position: i,
			Name:     name,
			Quantity: quantity,
			NetPrice: in.NetPrice.Round(2),
		})
	}
	return items, models.SumNetPrices(items), nil
}

func (s *ExpenseService) validateInput(input ExpenseInput) (ExpenseInput, error) {
	input.VendorName = strings.TrimSpace(input.VendorName)
	if input.VendorName == "" {
		return input, apperrors.NewBadRequest("vendor name is required")
	}
	if _, ok := models.ParseCategory(string(input.Category)); !ok {
		return input, apperrors.NewBadRequest(fmt.Sprintf("unknown category %q", input.Category))
	}
	if _, ok := models.ParsePaymentMethod(string(input.PaymentMethod)); !ok {
		return input, apperrors.NewBadRequest(fmt.Sprintf("unknown payment method %q", input.PaymentMethod))
	}
	if input.ExpenseDate.IsZero() {
		input.ExpenseDate = s.now()
	}
	y, m, d := input.ExpenseDate.Date()
	input.ExpenseDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if input.Source == "" {
		input.Source = models.ExpenseSourceManual
	}
	input.Notes = strings.TrimSpace(input.Notes)
	return input, nil
}

// Create stores a new expense for the actor. Company members create company
// expenses that start pending; personal expenses start approved.
func (s *ExpenseService) Create(ctx context.Context, actor permissions.Actor, input ExpenseInput) (*models.Expense, error) {
	ctx = ensureContext(ctx)

	if err := permissions.CanCreateExpense(actor); err != nil {
		return nil, err
	}
	input, err := s.validateInput(input)
	if err != nil {
		return nil, err
	}
	items, total, err := buildItems(input.Items)
	if err != nil {
		return nil, err
	}

	expense := &models.Expense{
		UserID:        actor.UserID,
		CompanyID:     stringPtr(actor.CompanyID),
		VendorName:    input.VendorName,
		Items:         items,
		Category:      input.Category,
		TotalAmount:   total,
		ExpenseDate:   datatypes.Date(input.ExpenseDate),
		PaymentMethod: input.PaymentMethod,
		Status:        workflow.InitialExpenseStatus(actor.CompanyID),
		Source:        input.Source,
		Notes:         input.Notes,
	}
	if err := s.db.WithContext(ctx).Create(expense).Error; err != nil {
		return nil, fmt.Errorf("expense service: create expense: %w", err)
	}

	metrics.ExpenseTransitions.WithLabelValues(string(expense.Status)).Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:    actor.UserID,
		CompanyID: actor.CompanyID,
		Action:    "expense.create",
		Resource:  expense.ID,
		Result:    auditResultSuccess,
		Metadata:  map[string]any{"total": total.StringFixed(2), "source": input.Source},
	})
	return expense, nil
}

func (s *ExpenseService) load(ctx context.Context, db *gorm.DB, id string) (*models.Expense, error) {
	var expense models.Expense
	err := db.WithContext(ctx).
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("position ASC") }).
		Take(&expense, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrExpenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("expense service: load expense: %w", err)
	}
	return &expense, nil
}

// Get returns an expense the actor may read.
func (s *ExpenseService) Get(ctx context.Context, actor permissions.Actor, id string) (*models.Expense, error) {
	ctx = ensureContext(ctx)

	expense, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := permissions.CanReadExpense(actor, permissions.ExpenseRefOf(expense)); err != nil {
		return nil, err
	}
	return expense, nil
}

// visibleTo restricts query to expenses the actor may read.
func visibleTo(query *gorm.DB, actor permissions.Actor, scope ExpenseScope) *gorm.DB {
	personal := "expenses.user_id = ? AND expenses.company_id IS NULL"
	if !actor.InCompany() {
		if scope == ExpenseScopeCompany {
			return query.Where("1 = 0")
		}
		return query.Where(personal, actor.UserID)
	}

	var company *gorm.DB
	if permissions.CanReadCompanyExpenses(actor) {
		company = query.Session(&gorm.Session{NewDB: true}).Where("expenses.company_id = ?", actor.CompanyID)
	} else {
		company = query.Session(&gorm.Session{NewDB: true}).Where("expenses.company_id = ? AND expenses.user_id = ?", actor.CompanyID, actor.UserID)
	}

	switch scope {
	case ExpenseScopePersonal:
		return query.Where(personal, actor.UserID)
	case ExpenseScopeCompany:
		return query.Where(company)
	default:
		return query.Where(query.Session(&gorm.Session{NewDB: true}).Where(personal, actor.UserID).Or(company))
	}
}

func (s *ExpenseService) filtered(ctx context.Context, actor permissions.Actor, opts ExpenseListOptions) (*gorm.DB, error) {
	query := s.db.WithContext(ctx).Model(&models.Expense{})
	query = visibleTo(query, actor, opts.Scope)

	if opts.Status != "" {
		if !opts.Status.Valid() {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown status %q", opts.Status))
		}
		query = query.Where("expenses.status = ?", opts.Status)
	}
	if opts.Category != "" {
		if _, ok := models.ParseCategory(string(opts.Category)); !ok {
			return nil, apperrors.NewBadRequest(fmt.Sprintf("unknown category %q", opts.Category))
		}
		query = query.Where("expenses.category = ?", opts.Category)
	}
	if opts.From != nil {
		query = query.Where("expenses.expense_date >= ?", datatypes.Date(*opts.From))
	}
	if opts.To != nil {
		query = query.Where("expenses.expense_date <= ?", datatypes.Date(*opts.To))
	}
	return query, nil
}

// List returns the expenses visible to the actor, newest expense date first.
func (s *ExpenseService) List(ctx context.Context, actor permissions.Actor, opts ExpenseListOptions) ([]models.Expense, int64, error) {
	ctx = ensureContext(ctx)

	switch opts.Scope {
	case ExpenseScopeAll, ExpenseScopePersonal, ExpenseScopeCompany:
	default:
		return nil, 0, apperrors.NewBadRequest(fmt.Sprintf("unknown scope %q", opts.Scope))
	}

	query, err := s.filtered(ctx, actor, opts)
	if err != nil {
		return nil, 0, err
	}
	page, perPage := normalisePage(opts.Page, opts.PageSize)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("expense service: count expenses: %w", err)
	}

	var expenses []models.Expense
	if err := query.
		Preload("Items", func(q *gorm.DB) *gorm.DB { return q.Order("position ASC") }).
		Order("expenses.expense_date DESC").
		Order("expenses.created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&expenses).Error; err != nil {
		return nil, 0, fmt.Errorf("expense service: list expenses: %w", err)
	}
	return expenses, total, nil
}

// Update replaces the editable fields and items of an expense. The status is unchanged.
func (s *ExpenseService) Update(ctx context.Context, actor permissions.Actor, id string, input ExpenseInput) (*models.Expense, error) {
	ctx = ensureContext(ctx)

	input, err := s.validateInput(input)
	if err != nil {
		return nil, err
	}
	items, total, err := buildItems(input.Items)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expense, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := permissions.CanUpdateExpense(actor, permissions.ExpenseRefOf(expense)); err != nil {
			return err
		}

		res := tx.Model(&models.Expense{}).
			Where("id = ? AND status = ?", id, expense.Status).
			Updates(map[string]any{
				"vendor_name":    input.VendorName,
				"category":       input.Category,
				"payment_method": input.PaymentMethod,
				"expense_date":   datatypes.Date(input.ExpenseDate),
				"notes":          input.Notes,
				"total_amount":   total,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NewConflict("expense was reviewed while it was being edited")
		}

		if err := tx.Where("expense_id = ?", id).Delete(&models.ExpenseItem{}).Error; err != nil {
			return fmt.Errorf("replace items: %w", err)
		}
		for i := range items {
			items[i].ExpenseID = id
		}
		return tx.Create(&items).Error
	})
	if err != nil {
		return nil, wrapTxError("expense service", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:    actor.UserID,
		CompanyID: actor.CompanyID,
		Action:    "expense.update",
		Resource:  id,
		Result:    auditResultSuccess,
		Metadata:  map[string]any{"total": total.StringFixed(2)},
	})
	return s.load(ctx, s.db, id)
}

// Delete removes an expense and its items.
func (s *ExpenseService) Delete(ctx context.Context, actor permissions.Actor, id string) error {
	ctx = ensureContext(ctx)

	expense, err := s.load(ctx, s.db, id)
	if err != nil {
		return err
	}
	if err := permissions.CanDeleteExpense(actor, permissions.ExpenseRefOf(expense)); err != nil {
		recordAudit(s.audit, ctx, AuditEntry{
			UserID:    actor.UserID,
			CompanyID: actor.CompanyID,
			Action:    "expense.delete",
			Resource:  id,
			Result:    auditResultDenied,
		})
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("expense_id = ?", id).Delete(&models.ExpenseItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Expense{}, "id = ?", id).Error
	})
	if err != nil {
		return fmt.Errorf("expense service: delete expense: %w", err)
	}

	recordAudit(s.audit, ctx, AuditEntry{
		UserID:    actor.UserID,
		CompanyID: expense.CompanyIDValue(),
		Action:    "expense.delete",
		Resource:  id,
		Result:    auditResultSuccess,
		Metadata:  map[string]any{"owner_id": expense.UserID},
	})
	return nil
}

// Approve moves a pending company expense to approved.
func (s *ExpenseService) Approve(ctx context.Context, actor permissions.Actor, id string) (*models.Expense, error) {
	return s.review(ctx, actor, id, models.ExpenseStatusApproved)
}

// Reject moves a pending company expense to rejected.
func (s *ExpenseService) Reject(ctx context.Context, actor permissions.Actor, id string) (*models.Expense, error) {
	return s.review(ctx, actor, id, models.ExpenseStatusRejected)
}

func (s *ExpenseService) review(ctx context.Context, actor permissions.Actor, id string, to models.ExpenseStatus) (*models.Expense, error) {
	ctx = ensureContext(ctx)

	expense, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if err := permissions.CanReviewExpense(actor, permissions.ExpenseRefOf(expense)); err != nil {
		return nil, err
	}
	if err := workflow.ExpenseTransition(expense.Status, to); err != nil {
		return nil, err
	}

	now := s.now()
	res := s.db.WithContext(ctx).Model(&models.Expense{}).
		Where("id = ? AND status = ?", id, models.ExpenseStatusPending).
		Updates(map[string]any{
			"status":      to,
			"reviewed_by": actor.UserID,
			"reviewed_at": now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("expense service: review expense: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		current, err := s.load(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		return nil, workflow.ExpenseTransition(current.Status, to)
	}

	metrics.ExpenseTransitions.WithLabelValues(string(to)).Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		UserID:    actor.UserID,
		CompanyID: expense.CompanyIDValue(),
		Action:    "expense." + reviewAction(to),
		Resource:  id,
		Result:    auditResultSuccess,
	})
	return s.load(ctx, s.db, id)
}

func reviewAction(status models.ExpenseStatus) string {
	if status == models.ExpenseStatusApproved {
		return "approve"
	}
	return "reject"
}

type summaryRow struct {
	Category models.Category
	Status   models.ExpenseStatus
	Count    int64
	Total    decimal.NullDecimal
}

// Summary totals the expenses visible to the actor by category and status.
func (s *ExpenseService) Summary(ctx context.Context, actor permissions.Actor, opts ExpenseListOptions) (*ExpenseSummary, error) {
	ctx = ensureContext(ctx)

	query, err := s.filtered(ctx, actor, opts)
	if err != nil {
		return nil, err
	}

	var rows []summaryRow
	if err := query.
		Select("expenses.category AS category, expenses.status AS status, COUNT(*) AS count, SUM(expenses.total_amount) AS total").
		Group("expenses.category").
		Group("expenses.status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("expense service: summarise expenses: %w", err)
	}

	summary := &ExpenseSummary{
		Total:      decimal.Zero,
		ByCategory: make(map[models.Category]SummaryBucket),
		ByStatus:   make(map[models.ExpenseStatus]SummaryBucket),
	}
	for _, row := range rows {
		total := decimal.Zero
		if row.Total.Valid {
			total = row.Total.Decimal.Round(2)
		}
		summary.Count += row.Count
		summary.Total = summary.Total.Add(total)

		c := summary.ByCategory[row.Category]
		c.Count += row.Count
		c.Total = c.Total.Add(total)
		summary.ByCategory[row.Category] = c

		st := summary.ByStatus[row.Status]
		st.Count += row.Count
		st.Total = st.Total.Add(total)
		summary.ByStatus[row.Status] = st
	}
	return summary, nil
}
