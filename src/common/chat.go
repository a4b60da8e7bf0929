package common

import (
	"errors"
	"log"
	"strings"
	"sync"
	"tbs/src/db"
	"tbs/src/lib"
	"tbs/src/models"
	"time"

	"gorm.io/gorm"
)

// ChatBroker fans out room messages to in-process subscribers. Messages
// for a room are delivered in publish order; the server timestamp is
// assigned before publish.
type ChatBroker struct {
	mu     sync.Mutex
	nextId uint64
	rooms  map[string]map[uint64]chan *models.Message
}

// ChatSubscription is a live feed for one room. Dispose releases it;
// reading from C after Dispose yields closed-channel zero values.
type ChatSubscription struct {
	C <-chan *models.Message

	room   string
	id     uint64
	broker *ChatBroker
	once   sync.Once
}

func (s *ChatSubscription) Dispose() {
	s.once.Do(func() {
		s.broker.unsubscribe(s.room, s.id)
	})
}

func NewChatBroker() *ChatBroker {
	return &ChatBroker{
		rooms: make(map[string]map[uint64]chan *models.Message),
	}
}

var chatBroker *ChatBroker
var chatBrokerOnce sync.Once

func GetChatBroker() *ChatBroker {
	chatBrokerOnce.Do(func() {
		chatBroker = NewChatBroker()
	})
	return chatBroker
}

func (b *ChatBroker) Subscribe(roomKey string) *ChatSubscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan *models.Message, 16)
	subs, ok := b.rooms[roomKey]
	if !ok {
		subs = make(map[uint64]chan *models.Message)
		b.rooms[roomKey] = subs
	}
	b.nextId++
	id := b.nextId
	subs[id] = ch
	return &ChatSubscription{
		C:      ch,
		room:   roomKey,
		id:     id,
		broker: b,
	}
}

func (b *ChatBroker) Publish(msg *models.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.rooms[msg.RoomKey] {
		select {
		case ch <- msg:
		default:
			log.Printf("[chat] dropping message for slow subscriber in room %s\n", msg.RoomKey)
		}
	}
}

func (b *ChatBroker) unsubscribe(roomKey string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.rooms[roomKey]
	if !ok {
		return
	}
	if ch, ok := subs[id]; ok {
		close(ch)
		delete(subs, id)
	}
	if len(subs) == 0 {
		delete(b.rooms, roomKey)
	}
}

// CreateChatMessage appends a message to the (trip, agency) room,
// timestamps it on the server, and fans it out to pusher and the
// in-process broker.
func CreateChatMessage(tripId uint, agencyId uint, senderId uint, role string, text string) (*models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("message text must not be empty")
	}
	roomKey := models.ChatRoomKey(tripId, agencyId)
	now := time.Now()
	message := models.Message{
		RoomKey:  roomKey,
		TripID:   tripId,
		AgencyID: agencyId,
		SenderID: senderId,
		Role:     role,
		Text:     text,
		SentAt:   now,
	}
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&message).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("Error storing chat message for room [%s]: %s\n", roomKey, err.Error())
		return nil, err
	}

	go func() {
		pc := lib.GetPusherClient()
		if err := pc.Trigger(roomKey, "message", &message); err != nil {
			log.Printf("[pusher] Error triggering event for room [%s]: %s\n", roomKey, err.Error())
		}
	}()
	GetChatBroker().Publish(&message)
	return &message, nil
}

// GetChatMessages lists a room's history ordered by server timestamp.
func GetChatMessages(tripId uint, agencyId uint) ([]models.Message, error) {
	roomKey := models.ChatRoomKey(tripId, agencyId)
	var messages []models.Message
	db := db.GetDb()
	err := db.
		Model(&models.Message{}).
		Where(&models.Message{RoomKey: roomKey}).
		Order("sent_at asc").
		Find(&messages).
		Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
