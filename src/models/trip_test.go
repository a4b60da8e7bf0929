package models

import (
	"tbs/src/types"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func strptr(s string) *string { return &s }
func boolptr(b bool) *bool    { return &b }
func u8ptr(v uint8) *uint8    { return &v }
func dateptr(s string) *time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return &t
}

func validDetails() TripDetails {
	return TripDetails{
		StartDate:    dateptr("2026-09-10"),
		EndDate:      dateptr("2026-09-20"),
		Destinations: []string{"Palawan"},
		TravelType:   string(types.TRAVEL_SOLO),
		Adults:       1,
		AcceptTerms:  true,
	}
}

func TestTripDetailsMerge(t *testing.T) {
	details := TripDetails{
		Destinations: []string{"Palawan", "Siargao"},
		Remarks:      "original remarks",
	}
	patch := types.SaveTripDraftRequestBody{
		StartDate:    strptr("2026-09-10"),
		EndDate:      strptr("2026-09-20"),
		Destinations: &[]string{"Bohol"},
		Adults:       u8ptr(2),
		AcceptTerms:  boolptr(true),
	}
	err := details.Merge(&patch)
	assert.Nil(t, err)

	// patched fields are replaced whole, untouched fields survive
	assert.Equal(t, []string{"Bohol"}, details.Destinations)
	assert.Equal(t, "original remarks", details.Remarks)
	assert.Equal(t, uint8(2), details.Adults)
	assert.Equal(t, 2026, details.StartDate.Year())
	assert.True(t, details.AcceptTerms)
}

func TestTripDetailsMergeRejectsBadDate(t *testing.T) {
	var details TripDetails
	patch := types.SaveTripDraftRequestBody{
		StartDate: strptr("next tuesday"),
	}
	assert.NotNil(t, details.Merge(&patch))
}

func TestTripDetailsMergeOptions(t *testing.T) {
	var details TripDetails
	patch := types.SaveTripDraftRequestBody{
		Accommodation: &types.TripOptionPatch{Requested: true, Details: "4-star hotel"},
		Food:          &types.TripOptionPatch{Requested: false},
	}
	assert.Nil(t, details.Merge(&patch))
	assert.NotNil(t, details.Accommodation)
	assert.Equal(t, "4-star hotel", details.Accommodation.Details)
	assert.Nil(t, details.Food)
	assert.Nil(t, details.Transportation)
}

func TestTripDetailsValidate(t *testing.T) {
	details := validDetails()
	assert.Nil(t, details.Validate())

	noDates := validDetails()
	noDates.StartDate = nil
	assert.NotNil(t, noDates.Validate())

	reversed := validDetails()
	reversed.StartDate = dateptr("2026-09-20")
	reversed.EndDate = dateptr("2026-09-10")
	assert.NotNil(t, reversed.Validate())

	noDestination := validDetails()
	noDestination.Destinations = nil
	assert.NotNil(t, noDestination.Validate())

	customOnly := validDetails()
	customOnly.Destinations = nil
	customOnly.CustomLocations = []string{"grandma's village"}
	assert.Nil(t, customOnly.Validate())

	emptyGroup := validDetails()
	emptyGroup.TravelType = string(types.TRAVEL_GROUP)
	emptyGroup.Adults = 0
	emptyGroup.Children = 0
	assert.NotNil(t, emptyGroup.Validate())

	noTerms := validDetails()
	noTerms.AcceptTerms = false
	assert.NotNil(t, noTerms.Validate())
}

func TestTripDetailsJSONRoundTrip(t *testing.T) {
	details := validDetails()
	details.Accommodation = &TripOption{Details: "homestay"}

	value, err := details.Value()
	assert.Nil(t, err)

	var decoded TripDetails
	err = decoded.Scan([]byte(value.(string)))
	assert.Nil(t, err)
	assert.Equal(t, details.Destinations, decoded.Destinations)
	assert.Equal(t, details.Accommodation.Details, decoded.Accommodation.Details)
	assert.Nil(t, decoded.Food)
	assert.True(t, decoded.HasDestination("Palawan"))
	assert.False(t, decoded.HasDestination("Cebu"))
}

func TestCanReceiveBids(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	open := TripRequest{Status: types.TRIP_PENDING}
	assert.True(t, open.CanReceiveBids(now))

	withDeadline := TripRequest{Status: types.TRIP_PENDING, BiddingDeadline: &later}
	assert.True(t, withDeadline.CanReceiveBids(now))

	pastDeadline := TripRequest{Status: types.TRIP_PENDING, BiddingDeadline: &earlier}
	assert.False(t, pastDeadline.CanReceiveBids(now))

	atDeadline := TripRequest{Status: types.TRIP_PENDING, BiddingDeadline: &now}
	assert.False(t, atDeadline.CanReceiveBids(now))

	accepted := TripRequest{Status: types.TRIP_ACCEPTED, BiddingDeadline: &later}
	assert.False(t, accepted.CanReceiveBids(now))
}

func TestHasBidFrom(t *testing.T) {
	trip := TripRequest{
		Bids: []Bid{
			{AgencyID: 3},
			{AgencyID: 7},
		},
	}
	assert.True(t, trip.HasBidFrom(7))
	assert.False(t, trip.HasBidFrom(9))
}

func TestNewTripRequestFromDraft(t *testing.T) {
	traveler := User{ID: 42, Email: "traveler@example.com", Role: string(types.ROLE_TRAVELER)}
	details := validDetails()
	trip := NewTripRequestFromDraft(details, &traveler)

	assert.Equal(t, uint(42), trip.TravelerID)
	assert.Equal(t, "traveler@example.com", trip.TravelerEmail)
	assert.Equal(t, string(types.ROLE_TRAVELER), trip.TravelerRole)
	assert.Equal(t, types.TRIP_PENDING, trip.Status)
	assert.Nil(t, trip.BiddingDeadline)
}

// The duplicate check is a point read against the bids loaded with the
// trip, not atomic with the insert. Two submissions that both read the
// trip before either bid lands both pass the check.
func TestDuplicateBidCheckRaceWindow(t *testing.T) {
	trip := TripRequest{ID: 12, Status: types.TRIP_PENDING}

	firstSees := trip.HasBidFrom(7)
	secondSees := trip.HasBidFrom(7)
	assert.False(t, firstSees)
	assert.False(t, secondSees)

	// both submissions proceed past the check
	trip.Bids = append(trip.Bids, Bid{TripID: trip.ID, AgencyID: 7, Price: 100})
	trip.Bids = append(trip.Bids, Bid{TripID: trip.ID, AgencyID: 7, Price: 120})

	duplicates := 0
	for _, b := range trip.Bids {
		if b.AgencyID == 7 {
			duplicates++
		}
	}
	assert.Equal(t, 2, duplicates)

	// a submission that reads the trip after the first insert is rejected
	assert.True(t, trip.HasBidFrom(7))
}

func TestTripSubmissionThenBidScenario(t *testing.T) {
	details := TripDetails{
		StartDate:    dateptr("2025-06-01"),
		EndDate:      dateptr("2025-06-05"),
		Destinations: []string{"Palawan"},
		TravelType:   string(types.TRAVEL_SOLO),
		Adults:       1,
		AcceptTerms:  true,
	}
	assert.Nil(t, details.Validate())

	traveler := User{ID: 42, Email: "traveler@example.com", Role: string(types.ROLE_TRAVELER)}
	trip := NewTripRequestFromDraft(details, &traveler)
	assert.Equal(t, types.TRIP_PENDING, trip.Status)
	assert.Equal(t, "2025-06-01", trip.Details.StartDate.Format("2006-01-02"))
	assert.Equal(t, string(types.TRAVEL_SOLO), trip.Details.TravelType)
	assert.Empty(t, trip.Bids)

	now := time.Now()
	trip.Bids = append(trip.Bids, Bid{
		TripID:      trip.ID,
		AgencyID:    7,
		Price:       499.99,
		Status:      types.BID_PENDING,
		SubmittedAt: &now,
	})
	assert.Len(t, trip.Bids, 1)
	assert.Equal(t, 499.99, trip.Bids[0].Price)
	assert.Equal(t, types.BID_PENDING, trip.Bids[0].Status)
}

func TestChatRoomKey(t *testing.T) {
	assert.Equal(t, "trip:12:agency:7", ChatRoomKey(12, 7))
	// distinct pairs never collide
	assert.NotEqual(t, ChatRoomKey(1, 27), ChatRoomKey(12, 7))
}
