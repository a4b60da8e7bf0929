package common

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"tbs/src/config"
	"tbs/src/db"
	"tbs/src/lib"
	awslib "tbs/src/lib/aws"
	"tbs/src/lib/mailer"
	"tbs/src/models"
	"tbs/src/types"
	"tbs/src/utils"

	"github.com/redis/go-redis/v9"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

func TripDraftKey(userId uint) string {
	return fmt.Sprintf("trips:draft:%d", userId)
}

// GetTripDraft returns the stored draft, or an empty draft when none
// exists yet.
func GetTripDraft(ctx context.Context, userId uint) (*models.TripDetails, error) {
	rd := lib.GetRedisClient()
	val, err := rd.JSONGet(ctx, TripDraftKey(userId), "$").Result()
	if err == redis.Nil || val == "" {
		return &models.TripDetails{}, nil
	} else if err != nil {
		log.Printf("Error retrieving trip draft for user [%d]: %s\n", userId, err.Error())
		return nil, err
	}
	var drafts []models.TripDetails
	if err := json.Unmarshal([]byte(val), &drafts); err != nil {
		log.Printf("Error parsing trip draft for user [%d]: %s\n", userId, err.Error())
		return nil, err
	}
	if len(drafts) == 0 {
		return &models.TripDetails{}, nil
	}
	return &drafts[0], nil
}

// SaveTripDraft merges the patch into the stored draft and writes the
// whole document back. Concurrent saves are last write wins; there is no
// version token.
func SaveTripDraft(ctx context.Context, userId uint, patch *types.SaveTripDraftRequestBody) (*models.TripDetails, error) {
	draft, err := GetTripDraft(ctx, userId)
	if err != nil {
		return nil, err
	}
	if err := draft.Merge(patch); err != nil {
		return nil, err
	}
	rd := lib.GetRedisClient()
	if err := rd.JSONSet(ctx, TripDraftKey(userId), "$", draft).Err(); err != nil {
		log.Printf("Error storing trip draft for user [%d]: %s\n", userId, err.Error())
		return nil, err
	}
	return draft, nil
}

// ResetTripDraft clears the draft after a successful submission.
func ResetTripDraft(ctx context.Context, userId uint) error {
	rd := lib.GetRedisClient()
	if err := rd.Del(ctx, TripDraftKey(userId)).Err(); err != nil {
		log.Printf("Error resetting trip draft for user [%d]: %s\n", userId, err.Error())
		return err
	}
	return nil
}

func sendTripExpiredNotifications(tripId uint) {
	var trip models.TripRequest
	db := db.GetDb()
	if err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where(&models.TripRequest{ID: tripId}).
			Preload("Traveler").
			First(&trip).
			Error; err != nil {
			return err
		}
		return nil
	}); err != nil {
		log.Printf("[TripsToCloseConsumer] Error on running database transaction: %s\n", err.Error())
		return
	}

	senderFrom := os.Getenv("SMTP_FROM")
	input := &lib.SendMailInput{
		Subject:  fmt.Sprintf("Trip Request #%d: bidding closed", trip.ID),
		From:     senderFrom,
		FromName: "noreply",
		To: []string{
			trip.Traveler.Email,
		},
		Body: fmt.Sprintf(`
			<p>Bidding for your trip request <b>#%d</b> has closed.</p>
			<p>You can review the bids you received <a href="%s/trips/%d/bids">here</a></p>
			<p>This is a system-generated message. Do not reply to this email.</p>
			`,
			trip.ID,
			os.Getenv("APP_HOST"),
			trip.ID,
		),
		Html: true,
	}
	if err := mailer.NewMailerMessage(input); err != nil {
		log.Printf("[mailer] Error sending message: %s\n", err.Error())
		return
	}
}

// closeTripForBidding expires a trip whose bidding window has closed and
// notifies the traveler.
var closeTripForBidding types.CloseTripStatusJobFn = func(tripId uint) {
	go utils.UpdateTripStatus(tripId, types.TRIP_EXPIRED, types.TRIP_PENDING)
	go sendTripExpiredNotifications(tripId)
}

func KafkaTripsToCloseConsumer(spayload string) {
	topic := gjson.Get(spayload, "topic").String()
	if !gjson.Valid(spayload) {
		log.Printf("[%s]: Received invalid json body. Aborting", topic)
		return
	}
	val := gjson.Get(spayload, "id")
	payloadId := gjson.Get(spayload, "payloadId").String()
	var payload types.JSONB
	if err := json.Unmarshal([]byte(spayload), &payload); err != nil {
		log.Printf("[%s] Error deserializing JSON: %s\n", topic, err.Error())
		return
	}
	tripId := uint(val.Int())
	log.Printf("tripId: %d\n", tripId)
	closeTripForBidding(tripId)
	// UPDATE JOB
	go func() {
		db := db.GetDb()
		err := db.Transaction(func(tx *gorm.DB) error {
			err := tx.Where(&models.JobTask{PayloadID: payloadId}).Updates(&models.JobTask{Status: "done"}).Error
			if err != nil {
				return err
			}
			return nil
		})
		if err != nil {
			log.Printf("Error updating trip status: %s\n", err.Error())
		}
	}()
}

func TripsToCloseConsumer() {
	qname := utils.WithSuffix("TripsToClose")
	log.Printf("%s: Listening for messages...", qname)
	c := awslib.NewSQSConsumer(qname, func(body string) {
		if !gjson.Valid(body) {
			log.Printf("[%s]: Received invalid json body. Aborting", qname)
			return
		}
		var payload types.JSONB
		err := json.Unmarshal([]byte(body), &payload)
		if err != nil {
			log.Printf("Error deserializing JSON: %s\n", err.Error())
			return
		}
		message := payload["Message"].(string)
		var msg types.JSONB
		json.Unmarshal([]byte(message), &msg)
		id := msg["id"].(float64)
		tripId := uint(id)
		log.Printf("tripId: %d\n", tripId)
		// Close the trip for bidding
		closeTripForBidding(tripId)
		// UPDATE JOB
		go func() {
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				payloadId := msg["payloadId"].(string)
				err := tx.Where(&models.JobTask{PayloadID: payloadId}).Updates(&models.JobTask{Status: "done"}).Error
				if err != nil {
					return err
				}
				return nil
			})
			if err != nil {
				log.Printf("Error updating trip status: %s\n", err.Error())
			}
		}()
	})
	c.Listen()
}

// TripOpenProducer and TripCloseProducer publish trip lifecycle events
// for external subscribers. Deployed environments publish through SNS;
// everywhere else the event lands on the Kafka topic directly.
func TripOpenProducer(id uint, payload types.JSONB) error {
	if config.API_ENV == string(types.Production) || config.API_ENV == string(types.Test) {
		return lib.SNSPublishMessage(utils.WithSuffix("trips-open"), &payload)
	}
	err := lib.KafkaProduceMessage("trips_open_producer", "trips-open", &payload)
	if err != nil {
		log.Printf("Error on producing message: %s\n", err.Error())
		return err
	}
	return nil
}

func TripCloseProducer(id uint, payload types.JSONB) error {
	if config.API_ENV == string(types.Production) || config.API_ENV == string(types.Test) {
		return lib.SNSPublishMessage(utils.WithSuffix("trips-close"), &payload)
	}
	err := lib.KafkaProduceMessage("trips_close_producer", "trips-close", &payload)
	if err != nil {
		log.Printf("Error on producing message: %s\n", err.Error())
		return err
	}
	return nil
}
