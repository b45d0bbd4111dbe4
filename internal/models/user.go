package models

import "time"

// User is the stored profile of a verified identity.
type User struct {
	BaseModel

	Email       string `gorm:"uniqueIndex;not null;size:320" json:"email"`
	DisplayName string `gorm:"size:128" json:"display_name"`
	Password    string `gorm:"not null" json:"-"`

	// CompanyID is nil in personal mode; Role is only meaningful when it is set.
	CompanyID *string `gorm:"type:uuid;index" json:"company_id"`
	Role      Role    `gorm:"size:16" json:"role,omitempty"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// InCompany reports whether the user belongs to a company workspace.
func (u *User) InCompany() bool {
	return u != nil && u.CompanyID != nil && *u.CompanyID != ""
}

// CompanyIDValue returns the company id or an empty string in personal mode.
func (u *User) CompanyIDValue() string {
	if !u.InCompany() {
		return ""
	}
	return *u.CompanyID
}
