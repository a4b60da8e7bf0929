package models

import (
	"fmt"
	"tbs/src/types"
	"time"
)

// ChatRoomKey derives the room identifier for a (trip, agency) pair. The
// same pair always yields the same key, so both sides land in one room.
func ChatRoomKey(tripId uint, agencyId uint) string {
	return fmt.Sprintf("trip:%d:agency:%d", tripId, agencyId)
}

type Message struct {
	ID       uint      `gorm:"primarykey" json:"id"`
	RoomKey  string    `gorm:"index" json:"room,omitempty"`
	TripID   uint      `json:"trip_id,omitempty"`
	AgencyID uint      `json:"agency_id,omitempty"`
	SenderID uint      `json:"sender_id,omitempty"`
	Role     string    `json:"role,omitempty"`
	Text     string    `json:"text,omitempty"`
	SentAt   time.Time `json:"sent_at,omitzero"`

	Trip   TripRequest `gorm:"foreignKey:trip_id" json:"-"`
	Agency Agency      `gorm:"foreignKey:agency_id" json:"-"`

	types.Timestamps
}
