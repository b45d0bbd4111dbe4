package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Expense is a spend record. A nil CompanyID marks a personal expense.
type Expense struct {
	BaseModel

	UserID        string          `gorm:"type:uuid;not null;index" json:"user_id"`
	CompanyID     *string         `gorm:"type:uuid;index" json:"company_id"`
	VendorName    string          `gorm:"size:256" json:"vendor_name"`
	Items         []ExpenseItem   `gorm:"foreignKey:ExpenseID;constraint:OnDelete:CASCADE" json:"items"`
	Category      Category        `gorm:"size:32;not null" json:"category"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"total_amount"`
	ExpenseDate   datatypes.Date  `gorm:"not null;index" json:"expense_date"`
	PaymentMethod PaymentMethod   `gorm:"size:16;not null" json:"payment_method"`
	Status        ExpenseStatus   `gorm:"size:16;not null;index" json:"status"`
	Source        ExpenseSource   `gorm:"size:16;not null;default:manual" json:"source"`
	Notes         string          `gorm:"size:1024" json:"notes,omitempty"`

	ReviewedBy *string    `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time `json:"reviewed_at,omitempty"`
}

// IsCompanyExpense reports whether the expense belongs to a company workspace.
func (e *Expense) IsCompanyExpense() bool {
	return e != nil && e.CompanyID != nil && *e.CompanyID != ""
}

// CompanyIDValue returns the company id or an empty string for personal expenses.
func (e *Expense) CompanyIDValue() string {
	if !e.IsCompanyExpense() {
		return ""
	}
	return *e.CompanyID
}

// ExpenseItem is a single receipt line. NetPrice is the final amount for the line.
type ExpenseItem struct {
	ID        string          `gorm:"primaryKey;type:uuid" json:"id"`
	ExpenseID string          `gorm:"type:uuid;not null;index" json:"-"`
	Position  int             `gorm:"not null;default:0" json:"-"`
	Name      string          `gorm:"size:256;not null" json:"name"`
	Quantity  int             `gorm:"not null;default:1" json:"quantity"`
	NetPrice  decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"net_price"`
}

// BeforeCreate assigns an id to new line items.
func (i *ExpenseItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// SumNetPrices returns the exact total of the items' net prices.
func SumNetPrices(items []ExpenseItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.NetPrice)
	}
	return total
}
