package models

import (
	"tbs/src/types"
	"time"
)

type Bid struct {
	ID                 uint            `gorm:"primarykey" json:"id"`
	TripID             uint            `gorm:"index" json:"trip_id,omitempty"`
	AgencyID           uint            `gorm:"index" json:"agency_id,omitempty"`
	AgencyName         string          `json:"agency_name,omitempty"`
	Itinerary          string          `json:"itinerary,omitempty"`
	Price              float64         `json:"price,omitempty"`
	Currency           string          `gorm:"default:'usd'" json:"currency,omitempty"`
	PriceBreakdown     *types.JSONB    `gorm:"type:jsonb" json:"price_breakdown,omitempty"`
	AccommodationPlan  string          `json:"accommodation_plan,omitempty"`
	TransportationPlan string          `json:"transportation_plan,omitempty"`
	FoodPlan           string          `json:"food_plan,omitempty"`
	Attachments        []string        `gorm:"serializer:json" json:"attachments,omitempty"`
	Status             types.BidStatus `gorm:"default:'pending'" json:"status,omitempty"`
	SubmittedAt        *time.Time      `json:"submitted_at,omitempty"`
	SubmittedBy        string          `json:"submitted_by,omitempty"`
	Metadata           *types.Metadata `gorm:"type:jsonb" json:"metadata,omitempty"`

	Trip   TripRequest `gorm:"foreignKey:trip_id" json:"-"`
	Agency Agency      `gorm:"foreignKey:agency_id" json:"-"`

	types.Timestamps
}
