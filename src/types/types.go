package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any
type JSONBArray []any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

func (a JSONBArray) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONBArray) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Model struct {
	Timestamps

	ID uint `gorm:"id,primaryKey"`
}

type Metadata map[string]any

type Env string

const (
	Development Env = "development"
	Test        Env = "test"
	Production  Env = "production"
)

type UserRole string

const (
	ROLE_TRAVELER     UserRole = "traveler"
	ROLE_AGENCY_AGENT UserRole = "agency_agent"
)

type TripStatus string

const (
	TRIP_PENDING  TripStatus = "pending"
	TRIP_ACCEPTED TripStatus = "accepted"
	TRIP_CANCELED TripStatus = "canceled"
	TRIP_EXPIRED  TripStatus = "expired"
)

type BidStatus string

const (
	BID_PENDING  BidStatus = "pending"
	BID_ACCEPTED BidStatus = "accepted"
	BID_REJECTED BidStatus = "rejected"
)

type AgencyStatus string

const (
	AGENCY_ACTIVE     AgencyStatus = "active"
	AGENCY_ONBOARDING AgencyStatus = "onboarding"
	AGENCY_SUSPENDED  AgencyStatus = "suspended"
)

type TravelType string

const (
	TRAVEL_SOLO  TravelType = "Solo"
	TRAVEL_GROUP TravelType = "Group"
)

type RegisterUserRequestBody struct {
	Email string `json:"email" binding:"required"`
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"`
}

type CreateAgencyRequestBody struct {
	Name         string `json:"name" binding:"required"`
	About        string `json:"about,omitempty"`
	Country      string `json:"country,omitempty"`
	OwnerID      uint   `json:"owner,omitempty"`
	ContactEmail string `json:"email" binding:"required"`
}

// TripOptionPatch mirrors the tri-state preference fields: a nil pointer
// leaves the stored value untouched, a non-nil pointer replaces it whole.
type TripOptionPatch struct {
	Requested bool   `json:"requested"`
	Details   string `json:"details,omitempty"`
}

// SaveTripDraftRequestBody carries a partial trip draft. Only non-nil
// fields overwrite the stored draft; each field is replaced as a unit.
type SaveTripDraftRequestBody struct {
	StartDate       *string          `json:"start_date,omitempty" binding:"omitempty,bookabledate" time_format:"2006-01-02"`
	EndDate         *string          `json:"end_date,omitempty" binding:"omitempty,bookabledate,gtdate=StartDate" time_format:"2006-01-02"`
	PreferredTime   *string          `json:"preferred_time,omitempty"`
	Destinations    *[]string        `json:"destinations,omitempty"`
	CustomLocations *[]string        `json:"custom_locations,omitempty"`
	TravelType      *string          `json:"travel_type,omitempty"`
	Adults          *uint8           `json:"adults,omitempty"`
	Children        *uint8           `json:"children,omitempty"`
	Accommodation   *TripOptionPatch `json:"accommodation,omitempty"`
	Transportation  *TripOptionPatch `json:"transportation,omitempty"`
	Food            *TripOptionPatch `json:"food,omitempty"`
	Interests       *[]string        `json:"interests,omitempty"`
	Remarks         *string          `json:"remarks,omitempty"`
	AcceptTerms     *bool            `json:"accept_terms,omitempty"`
}

type SubmitTripRequestBody struct {
	BiddingDeadline *string `json:"bidding_deadline,omitempty" binding:"omitempty,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
}

// CreateBidRequestBody binds from JSON or multipart form; attachments
// ride alongside as multipart files and never appear in the body itself.
type CreateBidRequestBody struct {
	Itinerary          string  `json:"itinerary" form:"itinerary" binding:"required"`
	Price              float64 `json:"price" form:"price" binding:"required,gt=0"`
	Currency           string  `json:"currency,omitempty" form:"currency"`
	PriceBreakdown     *JSONB  `json:"price_breakdown,omitempty" form:"-"`
	AccommodationPlan  string  `json:"accommodation_plan,omitempty" form:"accommodation_plan"`
	TransportationPlan string  `json:"transportation_plan,omitempty" form:"transportation_plan"`
	FoodPlan           string  `json:"food_plan,omitempty" form:"food_plan"`
}

type PostMessageRequestBody struct {
	Text string `json:"text" binding:"required"`
}

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type TripBidURIParams struct {
	TripID uint `uri:"id" binding:"required"`
	BidID  uint `uri:"bidId" binding:"required"`
}

type ChatRoomURIParams struct {
	TripID   uint `uri:"id" binding:"required"`
	AgencyID uint `uri:"agencyId" binding:"required"`
}

type TripQueryFilters struct {
	Status        string `form:"status,omitempty"`
	CreatedBefore string `form:"created_before,omitempty"`
	CreatedAfter  string `form:"created_after,omitempty"`
	Destination   string `form:"destination,omitempty"`
	Own           bool   `form:"own,omitempty"`
}

type APIResponseUser struct {
	ID       uint    `json:"id"`
	Name     string  `json:"name,omitempty"`
	Email    string  `json:"email,omitempty"`
	Phone    string  `json:"phone,omitempty"`
	Role     string  `json:"role,omitempty"`
	UID      *string `json:"uid,omitempty"`
	AgencyID *uint   `json:"agency_id,omitempty"`

	Agencies []*APIResponseAgency `json:"agencies,omitempty"`
}

type APIResponseAgency struct {
	ID           uint   `json:"id"`
	Name         string `json:"name,omitempty"`
	Slug         string `json:"slug,omitempty"`
	About        string `json:"about,omitempty"`
	Country      string `json:"country,omitempty"`
	ContactEmail string `json:"email,omitempty"`
	OwnerID      uint   `json:"owner_id,omitempty"`
	Status       string `json:"status,omitempty"`

	Owner *APIResponseUser `json:"owner,omitempty"`
}

type APIResponseTrip struct {
	ID              uint       `json:"id,omitempty"`
	TravelerID      uint       `json:"traveler_id,omitempty"`
	TravelerEmail   string     `json:"traveler_email,omitempty"`
	Status          string     `json:"status,omitempty"`
	BiddingDeadline *time.Time `json:"bidding_deadline,omitempty"`
	Details         any        `json:"details,omitempty"`

	Bids []*APIResponseBid `json:"bids,omitempty"`

	Timestamps
}

type APIResponseBid struct {
	ID          uint       `json:"id"`
	TripID      uint       `json:"trip_id,omitempty"`
	AgencyID    uint       `json:"agency_id,omitempty"`
	AgencyName  string     `json:"agency_name,omitempty"`
	Itinerary   string     `json:"itinerary,omitempty"`
	Price       float64    `json:"price,omitempty"`
	Currency    string     `json:"currency,omitempty"`
	Status      string     `json:"status,omitempty"`
	Attachments []string   `json:"attachments,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`

	Trip   *APIResponseTrip   `json:"trip,omitempty"`
	Agency *APIResponseAgency `json:"agency,omitempty"`
}

type APIResponseMessage struct {
	ID       uint      `json:"id"`
	RoomKey  string    `json:"room,omitempty"`
	SenderID uint      `json:"sender_id,omitempty"`
	Role     string    `json:"role,omitempty"`
	Text     string    `json:"text,omitempty"`
	SentAt   time.Time `json:"sent_at,omitzero"`
}

type CloseTripStatusJobFn func(id uint)

type Handler func(payload string)
