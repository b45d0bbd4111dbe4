package models

import "strings"

// ExpenseStatus tracks the approval workflow of company expenses.
type ExpenseStatus string

const (
	ExpenseStatusPending  ExpenseStatus = "pending"
	ExpenseStatusApproved ExpenseStatus = "approved"
	ExpenseStatusRejected ExpenseStatus = "rejected"
)

// Valid reports whether s is a known expense status.
func (s ExpenseStatus) Valid() bool {
	switch s {
	case ExpenseStatusPending, ExpenseStatusApproved, ExpenseStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further review is possible.
func (s ExpenseStatus) Terminal() bool {
	return s == ExpenseStatusApproved || s == ExpenseStatusRejected
}

// InvitationStatus tracks the lifecycle of a company invitation.
type InvitationStatus string

const (
	InvitationStatusPending  InvitationStatus = "pending"
	InvitationStatusAccepted InvitationStatus = "accepted"
	InvitationStatusDeclined InvitationStatus = "declined"
	InvitationStatusExpired  InvitationStatus = "expired"
)

// Valid reports whether s is a known invitation status.
func (s InvitationStatus) Valid() bool {
	switch s {
	case InvitationStatusPending, InvitationStatusAccepted, InvitationStatusDeclined, InvitationStatusExpired:
		return true
	}
	return false
}

// Category classifies an expense.
type Category string

const (
	CategoryFood          Category = "food"
	CategoryTravel        Category = "travel"
	CategorySupplies      Category = "supplies"
	CategoryEntertainment Category = "entertainment"
	CategoryOther         Category = "other"
)

// Categories returns the allow-list of expense categories.
func Categories() []Category {
	return []Category{CategoryFood, CategoryTravel, CategorySupplies, CategoryEntertainment, CategoryOther}
}

// ParseCategory matches value case-insensitively against the allow-list.
func ParseCategory(value string) (Category, bool) {
	candidate := Category(strings.ToLower(strings.TrimSpace(value)))
	for _, c := range Categories() {
		if c == candidate {
			return c, true
		}
	}
	return "", false
}

// PaymentMethod records how an expense was paid.
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodOther  PaymentMethod = "other"
)

// PaymentMethods returns the allow-list of payment methods.
func PaymentMethods() []PaymentMethod {
	return []PaymentMethod{PaymentMethodCard, PaymentMethodCash, PaymentMethodOnline, PaymentMethodOther}
}

// ParsePaymentMethod matches value case-insensitively against the allow-list.
func ParsePaymentMethod(value string) (PaymentMethod, bool) {
	candidate := PaymentMethod(strings.ToLower(strings.TrimSpace(value)))
	for _, m := range PaymentMethods() {
		if m == candidate {
			return m, true
		}
	}
	return "", false
}

// ExpenseSource records how an expense was captured.
type ExpenseSource string

const (
	ExpenseSourceManual     ExpenseSource = "manual"
	ExpenseSourceExtraction ExpenseSource = "extraction"
)
