package common

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"tbs/src/db"
	"tbs/src/lib"
	"tbs/src/lib/mailer"
	"tbs/src/models"
	"tbs/src/types"

	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

func BidSubmittedProducer(id uint, payload types.JSONB) error {
	err := lib.KafkaProduceMessage("bids_submitted_producer", "bids-submitted", &payload)
	if err != nil {
		log.Printf("Error on producing message: %s\n", err.Error())
		return err
	}
	return nil
}

func sendBidSubmittedNotifications(bidId uint) {
	var bid models.Bid
	db := db.GetDb()
	if err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where(&models.Bid{ID: bidId}).
			Preload("Trip").
			Preload("Agency").
			First(&bid).
			Error; err != nil {
			return err
		}
		return nil
	}); err != nil {
		log.Printf("[BidsSubmittedConsumer] Error on running database transaction: %s\n", err.Error())
		return
	}

	senderFrom := os.Getenv("SMTP_FROM")
	input := &lib.SendMailInput{
		Subject:  fmt.Sprintf("New bid on your trip request #%d", bid.TripID),
		From:     senderFrom,
		FromName: bid.Agency.Name,
		To: []string{
			bid.Trip.TravelerEmail,
		},
		Body: fmt.Sprintf(`
			<p><b>%s</b> has placed a bid of %.2f %s on your trip request <b>#%d</b>.</p>
			<p>You can review the bid <a href="%s/trips/%d/bids">here</a></p>
			<p>This is a system-generated message. Do not reply to this email.</p>
			`,
			bid.AgencyName,
			bid.Price,
			bid.Currency,
			bid.TripID,
			os.Getenv("APP_HOST"),
			bid.TripID,
		),
		Html: true,
	}
	if err := mailer.NewMailerMessage(input); err != nil {
		log.Printf("[mailer] Error sending message: %s\n", err.Error())
		return
	}
}

// SendBidAcceptedNotifications mails the winning agency the acceptance
// notice together with the deposit payment link from the bid metadata.
func SendBidAcceptedNotifications(bidId uint) {
	var bid models.Bid
	db := db.GetDb()
	if err := db.
		Where(&models.Bid{ID: bidId}).
		Preload("Trip").
		Preload("Agency").
		First(&bid).
		Error; err != nil {
		log.Printf("[BidAccepted] Error retrieving bid: %s\n", err.Error())
		return
	}

	paymentLink := ""
	if bid.Metadata != nil {
		if v, ok := (*bid.Metadata)["payment_link"].(string); ok {
			paymentLink = v
		}
	}
	senderFrom := os.Getenv("SMTP_FROM")
	input := &lib.SendMailInput{
		Subject:  fmt.Sprintf("Your bid on trip request #%d was accepted", bid.TripID),
		From:     senderFrom,
		FromName: "noreply",
		To: []string{
			bid.Agency.ContactEmail,
		},
		Body: fmt.Sprintf(`
			<p>Congratulations! Your bid of %.2f %s on trip request <b>#%d</b> has been accepted.</p>
			<p>The traveler has been asked to settle the deposit <a href="%s">here</a></p>
			<p>This is a system-generated message. Do not reply to this email.</p>
			`,
			bid.Price,
			bid.Currency,
			bid.TripID,
			paymentLink,
		),
		Html: true,
	}
	if err := mailer.NewMailerMessage(input); err != nil {
		log.Printf("[mailer] Error sending message: %s\n", err.Error())
		return
	}

	travelerInput := &lib.SendMailInput{
		Subject:  fmt.Sprintf("Deposit for trip request #%d", bid.TripID),
		From:     senderFrom,
		FromName: bid.Agency.Name,
		To: []string{
			bid.Trip.TravelerEmail,
		},
		Body: fmt.Sprintf(`
			<p>You accepted the bid from <b>%s</b> on your trip request <b>#%d</b>.</p>
			<p>Please settle the deposit <a href="%s">here</a> to confirm the booking.</p>
			<p>This is a system-generated message. Do not reply to this email.</p>
			`,
			bid.AgencyName,
			bid.TripID,
			paymentLink,
		),
		Html: true,
	}
	if err := mailer.NewMailerMessage(travelerInput); err != nil {
		log.Printf("[mailer] Error sending message: %s\n", err.Error())
	}
}

func KafkaBidsSubmittedConsumer(spayload string) {
	topic := gjson.Get(spayload, "topic").String()
	if !gjson.Valid(spayload) {
		log.Printf("[%s]: Received invalid json body. Aborting", topic)
		return
	}
	val := gjson.Get(spayload, "id")
	var payload types.JSONB
	if err := json.Unmarshal([]byte(spayload), &payload); err != nil {
		log.Printf("[%s] Error deserializing JSON: %s\n", topic, err.Error())
		return
	}
	bidId := uint(val.Int())
	log.Printf("bidId: %d\n", bidId)
	go sendBidSubmittedNotifications(bidId)
}
