package models

import (
	"tbs/src/types"
	"time"
)

type User struct {
	ID            uint            `gorm:"primarykey" json:"id"`
	Name          string          `json:"name,omitempty"`
	Email         string          `json:"email,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Role          string          `json:"role,omitempty"`
	UID           string          `json:"uid,omitempty"`
	ActiveAgency  uint            `json:"active_agency,omitempty"`
	EmailVerified bool            `json:"email_verified,omitempty"`
	PhoneVerified bool            `json:"phone_verified,omitempty"`
	VerifiedAt    time.Time       `json:"verified_at,omitempty"`
	Metadata      *types.Metadata `gorm:"type:jsonb"`

	TripRequests []TripRequest `gorm:"foreignKey:traveler_id" json:"trip_requests,omitempty"`
	Agencies     []Agency      `gorm:"foreignKey:owner_id" json:"agencies,omitempty"`

	types.Timestamps
}
