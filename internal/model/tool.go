package model

import "time"

// Tool represents a physical tool listed for borrowing.
//
// Availability is derived state: it is false exactly while one approved,
// not-yet-reconciled booking references the tool. The booking service is the
// only writer of this flag.
type Tool struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	OwnerID      int64     `gorm:"index;not null" json:"ownerId"` // immutable after creation
	Name         string    `gorm:"size:256;not null" json:"name"`
	Category     string    `gorm:"size:128" json:"category"`
	Description  string    `json:"description"`
	Condition    string    `gorm:"size:64" json:"condition"`
	ImageURL     string    `gorm:"size:512" json:"imageUrl"`
	Availability bool      `gorm:"not null" json:"availability"`
	CreatedAt    time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"not null" json:"updatedAt"`

	// Associations
	Owner User `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"owner,omitempty"`
}
