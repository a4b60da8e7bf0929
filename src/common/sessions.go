package common

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"tbs/src/config"
	"tbs/src/lib"
	"time"

	"github.com/redis/go-redis/v9"
)

// Session is the login record held in redis. Its lifetime is fixed at
// creation; activity does not extend it.
type Session struct {
	UserID     uint      `json:"user_id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	UID        string    `json:"uid"`
	LoggedInAt time.Time `json:"logged_in_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func SessionKey(userId uint) string {
	return fmt.Sprintf("sessions:%d", userId)
}

func (s *Session) Expired(at time.Time) bool {
	return !at.Before(s.ExpiresAt)
}

func CreateSession(ctx context.Context, userId uint, email string, role string, uid string) (*Session, error) {
	now := time.Now()
	session := Session{
		UserID:     userId,
		Email:      email,
		Role:       role,
		UID:        uid,
		LoggedInAt: now,
		ExpiresAt:  now.Add(config.SESSION_TTL),
	}
	body, err := json.Marshal(&session)
	if err != nil {
		return nil, err
	}
	rd := lib.GetRedisClient()
	if err := rd.Set(ctx, SessionKey(userId), string(body), config.SESSION_TTL).Err(); err != nil {
		log.Printf("Error storing session for user [%d]: %s\n", userId, err.Error())
		return nil, err
	}
	return &session, nil
}

// GetSession returns nil without error when there is no live session. A
// stored session past its expiry is deleted on read, so the caller
// observes it as logged out even before the sweep runs.
func GetSession(ctx context.Context, userId uint) (*Session, error) {
	rd := lib.GetRedisClient()
	val, err := rd.Get(ctx, SessionKey(userId)).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		log.Printf("Error retrieving session for user [%d]: %s\n", userId, err.Error())
		return nil, err
	}
	var session Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		log.Printf("Error parsing session for user [%d]: %s\n", userId, err.Error())
		return nil, err
	}
	if session.Expired(time.Now()) {
		if err := rd.Del(ctx, SessionKey(userId)).Err(); err != nil {
			log.Printf("Error deleting expired session for user [%d]: %s\n", userId, err.Error())
		}
		return nil, nil
	}
	return &session, nil
}

func DeleteSession(ctx context.Context, userId uint) error {
	rd := lib.GetRedisClient()
	if err := rd.Del(ctx, SessionKey(userId)).Err(); err != nil {
		log.Printf("Error deleting session for user [%d]: %s\n", userId, err.Error())
		return err
	}
	return nil
}

// SweepExpiredSessions force-expires session blobs whose expiry has
// passed. Redis also drops them via the key TTL; the sweep covers blobs
// whose recorded expiry is earlier than the key TTL.
func SweepExpiredSessions(ctx context.Context) {
	rd := lib.GetRedisClient()
	var cursor uint64
	for {
		keys, next, err := rd.Scan(ctx, cursor, "sessions:*", 100).Result()
		if err != nil {
			log.Printf("Error scanning session keys: %s\n", err.Error())
			return
		}
		for _, key := range keys {
			val, err := rd.Get(ctx, key).Result()
			if err != nil {
				continue
			}
			var session Session
			if err := json.Unmarshal([]byte(val), &session); err != nil {
				log.Printf("Dropping unreadable session [%s]: %s\n", key, err.Error())
				rd.Del(ctx, key)
				continue
			}
			if session.Expired(time.Now()) {
				if err := rd.Del(ctx, key).Err(); err != nil {
					log.Printf("Error deleting session [%s]: %s\n", key, err.Error())
					continue
				}
				log.Printf("Force expired session for user [%d]\n", session.UserID)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
}

// StartSessionSweeper runs the sweep at minute granularity.
func StartSessionSweeper() {
	jid, err := lib.CreateCronJob(func() {
		SweepExpiredSessions(context.Background())
	}, time.Minute)
	if err != nil {
		log.Printf("Error scheduling session sweep: %s\n", err.Error())
		return
	}
	log.Printf("Session sweep scheduled: %s\n", *jid)
}
