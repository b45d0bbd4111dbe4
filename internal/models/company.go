package models

import "time"

// Company is a shared workspace. OwnerID is always one of the members.
type Company struct {
	BaseModel

	Name    string          `gorm:"not null;size:128" json:"name"`
	OwnerID string          `gorm:"type:uuid;not null;index" json:"owner_id"`
	Members []CompanyMember `gorm:"foreignKey:CompanyID" json:"members,omitempty"`
}

// HasMember reports whether userID is in the member set.
func (c *Company) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// MemberIDs returns the ids of all members.
func (c *Company) MemberIDs() []string {
	ids := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// CompanyMember links a user to a company.
type CompanyMember struct {
	CompanyID string    `gorm:"primaryKey;type:uuid" json:"company_id"`
	UserID    string    `gorm:"primaryKey;type:uuid;index" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	JoinedAt  time.Time `gorm:"autoCreateTime" json:"joined_at"`
}
