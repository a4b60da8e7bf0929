package models

import (
	"tbs/src/types"
)

type Agency struct {
	ID                   uint               `gorm:"primarykey;uniqueIndex:slugid" json:"id"`
	Name                 string             `json:"name,omitempty"`
	About                string             `json:"about,omitempty"`
	Country              string             `json:"country,omitempty"`
	OwnerID              uint               `json:"owner_id,omitempty"`
	StripeAccountID      *string            `json:"stripe_account_id,omitempty"`
	Metadata             *types.Metadata    `gorm:"type:jsonb" json:"metadata,omitempty"`
	ContactEmail         string             `json:"email,omitempty"`
	ConnectOnboardingURL *string            `json:"connect_onboarding_url,omitempty"`
	Status               types.AgencyStatus `gorm:"default:'active'" json:"status,omitempty"`
	Verified             bool               `gorm:"default:false" json:"verified,omitempty"`
	PaymentVerified      bool               `gorm:"default:false" json:"payment_verified,omitempty"`
	Slug                 string             `gorm:"uniqueIndex:slugid" json:"slug"`

	Bids  []Bid `gorm:"foreignKey:agency_id" json:"-"`
	Owner User  `gorm:"foreignKey:owner_id" json:"-"`

	types.Timestamps
}
