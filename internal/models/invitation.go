package models

import "time"

// Invitation offers membership of a company to an email address.
type Invitation struct {
	BaseModel

	CompanyID   string           `gorm:"type:uuid;not null;index" json:"company_id"`
	CompanyName string           `gorm:"size:128" json:"company_name"`
	Email       string           `gorm:"not null;size:320;index:idx_invitations_email_status" json:"email"`
	InvitedBy   string           `gorm:"type:uuid;not null" json:"invited_by"`
	Role        Role             `gorm:"size:16;not null" json:"role"`
	Status      InvitationStatus `gorm:"size:16;not null;default:pending;index:idx_invitations_email_status" json:"status"`
	ExpiresAt   *time.Time       `gorm:"index" json:"expires_at,omitempty"`

	AcceptedBy *string    `gorm:"type:uuid" json:"accepted_by,omitempty"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
}

// Lapsed reports whether a pending invitation is past its expiry at now.
func (i *Invitation) Lapsed(now time.Time) bool {
	return i.Status == InvitationStatusPending && i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}
