package common

import (
	"fmt"
	"tbs/src/models"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatBrokerDeliversInOrder(t *testing.T) {
	broker := NewChatBroker()
	room := models.ChatRoomKey(1, 2)
	sub := broker.Subscribe(room)
	defer sub.Dispose()

	for i := 1; i <= 3; i++ {
		broker.Publish(&models.Message{RoomKey: room, Text: fmt.Sprintf("msg %d", i)})
	}

	for i := 1; i <= 3; i++ {
		msg := <-sub.C
		assert.Equal(t, fmt.Sprintf("msg %d", i), msg.Text)
	}
}

func TestChatBrokerRoomIsolation(t *testing.T) {
	broker := NewChatBroker()
	subA := broker.Subscribe(models.ChatRoomKey(1, 2))
	subB := broker.Subscribe(models.ChatRoomKey(3, 4))
	defer subA.Dispose()
	defer subB.Dispose()

	broker.Publish(&models.Message{RoomKey: models.ChatRoomKey(1, 2), Text: "for A"})

	msg := <-subA.C
	assert.Equal(t, "for A", msg.Text)
	select {
	case leaked := <-subB.C:
		t.Fatalf("room B received message for room A: %s", leaked.Text)
	default:
	}
}

func TestChatSubscriptionDispose(t *testing.T) {
	broker := NewChatBroker()
	room := models.ChatRoomKey(5, 6)
	sub := broker.Subscribe(room)

	sub.Dispose()
	// Dispose is idempotent
	sub.Dispose()

	_, open := <-sub.C
	assert.False(t, open)

	// publishing into a fully disposed room must not panic
	broker.Publish(&models.Message{RoomKey: room, Text: "nobody home"})
}

func TestChatBrokerSlowSubscriberDoesNotBlock(t *testing.T) {
	broker := NewChatBroker()
	room := models.ChatRoomKey(7, 8)
	sub := broker.Subscribe(room)
	defer sub.Dispose()

	// overflow the subscription buffer; the excess is dropped instead of
	// stalling the publisher
	for i := 0; i < 40; i++ {
		broker.Publish(&models.Message{RoomKey: room, Text: "flood"})
	}

	received := 0
	for {
		select {
		case <-sub.C:
			received++
			continue
		default:
		}
		break
	}
	assert.Greater(t, received, 0)
	assert.LessOrEqual(t, received, 16)
}

func TestCreateChatMessageRejectsEmptyText(t *testing.T) {
	_, err := CreateChatMessage(1, 2, 3, "traveler", "   ")
	assert.NotNil(t, err)
}
