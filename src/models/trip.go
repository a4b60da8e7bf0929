package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"slices"
	"tbs/src/config"
	"tbs/src/types"
	"time"
)

// TripOption is a requested preference. A nil *TripOption on TripDetails
// means the traveler did not request it at all.
type TripOption struct {
	Details string `json:"details,omitempty"`
}

type TripDetails struct {
	StartDate       *time.Time  `json:"start_date,omitempty"`
	EndDate         *time.Time  `json:"end_date,omitempty"`
	PreferredTime   string      `json:"preferred_time,omitempty"`
	Destinations    []string    `json:"destinations,omitempty"`
	CustomLocations []string    `json:"custom_locations,omitempty"`
	TravelType      string      `json:"travel_type,omitempty"`
	Adults          uint8       `json:"adults,omitempty"`
	Children        uint8       `json:"children,omitempty"`
	Accommodation   *TripOption `json:"accommodation,omitempty"`
	Transportation  *TripOption `json:"transportation,omitempty"`
	Food            *TripOption `json:"food,omitempty"`
	Interests       []string    `json:"interests,omitempty"`
	Remarks         string      `json:"remarks,omitempty"`
	AcceptTerms     bool        `json:"accept_terms,omitempty"`
}

func (d TripDetails) Value() (driver.Value, error) {
	valueString, err := json.Marshal(d)
	return string(valueString), err
}
func (d *TripDetails) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	return nil
}

// Merge overwrites the fields present in the patch. Each field is replaced
// as a whole; there is no deep merge below the field level.
func (d *TripDetails) Merge(patch *types.SaveTripDraftRequestBody) error {
	if patch.StartDate != nil {
		startDate, err := time.Parse(config.DATE_PARSE_FORMAT, *patch.StartDate)
		if err != nil {
			return err
		}
		d.StartDate = &startDate
	}
	if patch.EndDate != nil {
		endDate, err := time.Parse(config.DATE_PARSE_FORMAT, *patch.EndDate)
		if err != nil {
			return err
		}
		d.EndDate = &endDate
	}
	if patch.PreferredTime != nil {
		d.PreferredTime = *patch.PreferredTime
	}
	if patch.Destinations != nil {
		d.Destinations = *patch.Destinations
	}
	if patch.CustomLocations != nil {
		d.CustomLocations = *patch.CustomLocations
	}
	if patch.TravelType != nil {
		d.TravelType = *patch.TravelType
	}
	if patch.Adults != nil {
		d.Adults = *patch.Adults
	}
	if patch.Children != nil {
		d.Children = *patch.Children
	}
	if patch.Accommodation != nil {
		d.Accommodation = optionFromPatch(patch.Accommodation)
	}
	if patch.Transportation != nil {
		d.Transportation = optionFromPatch(patch.Transportation)
	}
	if patch.Food != nil {
		d.Food = optionFromPatch(patch.Food)
	}
	if patch.Interests != nil {
		d.Interests = *patch.Interests
	}
	if patch.Remarks != nil {
		d.Remarks = *patch.Remarks
	}
	if patch.AcceptTerms != nil {
		d.AcceptTerms = *patch.AcceptTerms
	}
	return nil
}

func optionFromPatch(p *types.TripOptionPatch) *TripOption {
	if !p.Requested {
		return nil
	}
	return &TripOption{Details: p.Details}
}

// Validate checks the draft is complete enough to submit.
func (d *TripDetails) Validate() error {
	if d.StartDate == nil || d.EndDate == nil {
		return errors.New("travel dates are required")
	}
	if d.EndDate.Before(*d.StartDate) {
		return errors.New("end date must not be before start date")
	}
	if len(d.Destinations) == 0 && len(d.CustomLocations) == 0 {
		return errors.New("at least one destination is required")
	}
	if d.TravelType == string(types.TRAVEL_GROUP) && d.Adults == 0 && d.Children == 0 {
		return errors.New("group trips need at least one traveler")
	}
	if !d.AcceptTerms {
		return errors.New("terms and conditions must be accepted")
	}
	return nil
}

func (d *TripDetails) HasDestination(tag string) bool {
	return slices.Contains(d.Destinations, tag)
}

type TripRequest struct {
	ID              uint             `gorm:"primarykey" json:"id"`
	TravelerID      uint             `json:"traveler_id,omitempty"`
	TravelerEmail   string           `json:"traveler_email,omitempty"`
	TravelerRole    string           `json:"traveler_role,omitempty"`
	Details         TripDetails      `gorm:"type:jsonb" json:"details"`
	Status          types.TripStatus `gorm:"default:'pending'" json:"status,omitempty"`
	BiddingDeadline *time.Time       `json:"bidding_deadline,omitempty"`
	AcceptedBidID   *uint            `json:"accepted_bid_id,omitempty"`
	Metadata        *types.Metadata  `gorm:"type:jsonb" json:"metadata,omitempty"`

	Traveler User  `gorm:"foreignKey:traveler_id" json:"-"`
	Bids     []Bid `gorm:"foreignKey:trip_id" json:"bids,omitempty"`

	types.Timestamps
}

// CanReceiveBids reports whether the trip is visible for bidding at the
// given instant: status pending, and the deadline (if any) not yet passed.
func (t *TripRequest) CanReceiveBids(at time.Time) bool {
	if t.Status != types.TRIP_PENDING {
		return false
	}
	if t.BiddingDeadline != nil && !at.Before(*t.BiddingDeadline) {
		return false
	}
	return true
}

// HasBidFrom reports whether the loaded bids contain one from the agency.
func (t *TripRequest) HasBidFrom(agencyId uint) bool {
	for _, b := range t.Bids {
		if b.AgencyID == agencyId {
			return true
		}
	}
	return false
}

// NewTripRequestFromDraft binds the traveler's identity snapshot to the
// draft details. The draft must already be validated.
func NewTripRequestFromDraft(details TripDetails, traveler *User) TripRequest {
	return TripRequest{
		TravelerID:    traveler.ID,
		TravelerEmail: traveler.Email,
		TravelerRole:  traveler.Role,
		Details:       details,
		Status:        types.TRIP_PENDING,
	}
}
