package common

import (
	"context"
	"encoding/json"
	"tbs/src/config"
	"tbs/src/lib"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "sessions:42", SessionKey(42))
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	session := Session{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, session.Expired(now))
	assert.True(t, session.Expired(now.Add(time.Hour)))
	assert.True(t, session.Expired(now.Add(2*time.Hour)))
}

func TestCreateSession(t *testing.T) {
	rd, mock := redismock.NewClientMock()
	lib.NewRedisClient(rd)

	mock.Regexp().ExpectSet(SessionKey(7), `.*`, config.SESSION_TTL).SetVal("OK")

	session, err := CreateSession(context.Background(), 7, "someone@example.com", "traveler", "uid-123")
	assert.Nil(t, err)
	assert.NotNil(t, session)
	assert.Equal(t, uint(7), session.UserID)
	// expiry is fixed at creation time
	assert.WithinDuration(t, session.LoggedInAt.Add(config.SESSION_TTL), session.ExpiresAt, time.Second)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestGetSessionMissing(t *testing.T) {
	rd, mock := redismock.NewClientMock()
	lib.NewRedisClient(rd)

	mock.ExpectGet(SessionKey(9)).RedisNil()

	session, err := GetSession(context.Background(), 9)
	assert.Nil(t, err)
	assert.Nil(t, session)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestGetSessionLive(t *testing.T) {
	rd, mock := redismock.NewClientMock()
	lib.NewRedisClient(rd)

	now := time.Now()
	stored := Session{
		UserID:     11,
		Email:      "someone@example.com",
		Role:       "traveler",
		UID:        "uid-456",
		LoggedInAt: now,
		ExpiresAt:  now.Add(time.Hour),
	}
	body, _ := json.Marshal(&stored)
	mock.ExpectGet(SessionKey(11)).SetVal(string(body))

	session, err := GetSession(context.Background(), 11)
	assert.Nil(t, err)
	assert.NotNil(t, session)
	assert.Equal(t, "someone@example.com", session.Email)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestGetSessionExpiredIsDeletedOnRead(t *testing.T) {
	rd, mock := redismock.NewClientMock()
	lib.NewRedisClient(rd)

	now := time.Now()
	stored := Session{
		UserID:     13,
		LoggedInAt: now.Add(-25 * time.Hour),
		ExpiresAt:  now.Add(-time.Hour),
	}
	body, _ := json.Marshal(&stored)
	mock.ExpectGet(SessionKey(13)).SetVal(string(body))
	mock.ExpectDel(SessionKey(13)).SetVal(1)

	session, err := GetSession(context.Background(), 13)
	assert.Nil(t, err)
	assert.Nil(t, session)
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestDeleteSession(t *testing.T) {
	rd, mock := redismock.NewClientMock()
	lib.NewRedisClient(rd)

	mock.ExpectDel(SessionKey(21)).SetVal(1)

	assert.Nil(t, DeleteSession(context.Background(), 21))
	assert.Nil(t, mock.ExpectationsWereMet())
}

func TestSweepExpiredSessions(t *testing.T) {
	rd, mock := redismock.NewClientMock()
	lib.NewRedisClient(rd)

	now := time.Now()
	live := Session{UserID: 1, ExpiresAt: now.Add(time.Hour)}
	dead := Session{UserID: 2, ExpiresAt: now.Add(-time.Hour)}
	liveBody, _ := json.Marshal(&live)
	deadBody, _ := json.Marshal(&dead)

	mock.ExpectScan(0, "sessions:*", 100).SetVal([]string{"sessions:1", "sessions:2", "sessions:3"}, 0)
	mock.ExpectGet("sessions:1").SetVal(string(liveBody))
	mock.ExpectGet("sessions:2").SetVal(string(deadBody))
	mock.ExpectDel("sessions:2").SetVal(1)
	mock.ExpectGet("sessions:3").SetVal("not json")
	mock.ExpectDel("sessions:3").SetVal(1)

	SweepExpiredSessions(context.Background())
	assert.Nil(t, mock.ExpectationsWereMet())
}
