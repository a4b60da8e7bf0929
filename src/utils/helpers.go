package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"tbs/src/config"
	"tbs/src/db"
	"tbs/src/lib"
	awslib "tbs/src/lib/aws"
	"tbs/src/models"
	"tbs/src/models/scopes"
	"tbs/src/types"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WithSuffix appends the environment suffix to a queue or topic name so
// deployments do not share queues.
func WithSuffix(name string) string {
	suffix := os.Getenv("QUEUE_SUFFIX")
	if suffix == "" {
		return name
	}
	return fmt.Sprintf("%s_%s", name, suffix)
}

func GenerateJWT(email string, id uint, agency uint) (string, error) {
	now := time.Now()
	claims := types.Claims{
		Username: email,
		Agency:   agency,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(id),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(config.SESSION_TTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString([]byte(os.Getenv("JWT_SECRET")))
}

// CreateTripRequest is the first phase of trip submission: it binds the
// traveler's identity snapshot to the validated draft and persists the
// trip as pending. The caller resets the draft only after this returns
// without error.
func CreateTripRequest(ctx *gin.Context, details models.TripDetails, params *types.SubmitTripRequestBody, travelerId uint) (uint, error) {
	if err := details.Validate(); err != nil {
		return 0, err
	}

	var deadline *time.Time
	if params.BiddingDeadline != nil {
		d, err := time.Parse(config.TIME_PARSE_FORMAT, *params.BiddingDeadline)
		if err != nil {
			log.Printf("Error parsing bidding_deadline: %s\n", err.Error())
			return 0, err
		}
		d = time.Date(
			d.Year(),
			d.Month(),
			d.Day(),
			d.Hour(),
			d.Minute(),
			0,
			0,
			d.Location(),
		)
		deadline = &d
	}

	// Best effort geocoding of free-text locations; failures leave the
	// location as entered.
	var metadata *types.Metadata
	if len(details.CustomLocations) > 0 {
		md := types.Metadata{}
		for _, loc := range details.CustomLocations {
			result, err := lib.GeocodeLocation(context.Background(), loc)
			if err != nil || result == nil {
				continue
			}
			md[loc] = result.FormattedAddress
		}
		if len(md) > 0 {
			metadata = &md
		}
	}

	var trip models.TripRequest
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		var traveler models.User
		if err := tx.Where(&models.User{ID: travelerId}).First(&traveler).Error; err != nil {
			return err
		}
		trip = models.NewTripRequestFromDraft(details, &traveler)
		trip.BiddingDeadline = deadline
		trip.Metadata = metadata
		if err := tx.Create(&trip).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	tripId := trip.ID

	// Set a schedule for closing the bidding
	if deadline != nil {
		go func() {
			runsAt := *deadline
			runDate := time.Date(
				runsAt.UTC().Year(),
				runsAt.UTC().Month(),
				runsAt.UTC().Day(),
				runsAt.UTC().Hour(),
				runsAt.UTC().Minute(),
				0,
				0,
				runsAt.UTC().Location(),
			)
			log.Printf("[BiddingDeadline] job scheduled at: %s\n", runDate)
			jobTaskID := uuid.New()
			payloadId := jobTaskID.String()
			jobTask := models.JobTask{
				Name:    fmt.Sprintf("Trip_%d_BiddingDeadline", tripId),
				JobType: "OneTimeJobStartDateTime",
				RunsAt:  runDate,
				HandlerParams: []any{
					tripId,
				},
				PayloadID: payloadId,
				Payload: map[string]any{
					"payloadId":        payloadId,
					"id":               int64(tripId),
					"producerClientId": "TripsToCloseProducer",
					"topic":            "TripsToClose",
					"table":            "trip_requests",
				},
				Source:     "TripRequests",
				SourceType: "table",
				Topic:      "TripsToClose",
			}
			id, err := jobTask.CreateAndEnqueueJobTask(jobTask)
			if err != nil {
				log.Printf("Error creating job for TripRequest: id=%d error=%s\n", tripId, err.Error())
				return
			}
			log.Printf("Created job for TripRequest[%d] with ID %s\n", tripId, id)
		}()
	}
	return tripId, nil
}

func UpdateTripStatus(id uint, newStatus types.TripStatus, oldStatus types.TripStatus) error {
	db := db.GetDb()
	log.Println("UpdateTripStatus: Begin Transaction")
	err := db.Transaction(func(tx *gorm.DB) error {
		var trip models.TripRequest
		conds := &models.TripRequest{ID: id, Status: oldStatus}
		if err := tx.
			Clauses(clause.Locking{
				Strength: "UPDATE",
				Table:    clause.Table{Name: clause.CurrentTable},
			}).
			Where(conds).
			First(&trip).
			Error; err != nil {
			log.Printf("Failed to update trip status: %s\n", err.Error())
			return err
		}
		if err := tx.
			Model(&models.TripRequest{}).
			Where(conds).
			Update("status", newStatus).
			Error; err != nil {
			log.Printf("Trip status update did not complete successfully: %s\n", err.Error())
			return err
		}
		return nil
	})
	if err != nil {
		log.Printf("Error on transaction: %s\n", err.Error())
		return err
	}
	log.Println("UpdateTripStatus: End Transaction")
	return nil
}

// AttachmentUploader uploads one attachment and returns its download URL.
type AttachmentUploader func(key string, body io.Reader, contentType string) (*string, error)

type BidAttachment struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// PrepareBidAttachments uploads all attachments before the bid record is
// written. The first failure aborts the whole submission; objects already
// uploaded stay in the bucket.
func PrepareBidAttachments(upload AttachmentUploader, tripId uint, agencyId uint, files []BidAttachment) ([]string, error) {
	urls := make([]string, 0, len(files))
	for i, f := range files {
		key := fmt.Sprintf("bids/%d/%d/%d_%s", tripId, agencyId, i, slug.Make(f.Name))
		url, err := upload(key, f.Body, f.ContentType)
		if err != nil {
			log.Printf("Error uploading attachment [%s]: %s\n", key, err.Error())
			return nil, fmt.Errorf("could not upload attachment %s", f.Name)
		}
		urls = append(urls, *url)
	}
	return urls, nil
}

// AcceptBid marks one bid accepted and its siblings rejected, closes the
// trip, and sets up the deposit payment link and voucher for the winning
// agency.
func AcceptBid(tripId uint, bidId uint, travelerId uint) (*models.Bid, error) {
	var bid models.Bid
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		var trip models.TripRequest
		if err := tx.
			Clauses(clause.Locking{
				Strength: "UPDATE",
				Table:    clause.Table{Name: clause.CurrentTable},
			}).
			Where(&models.TripRequest{ID: tripId}).
			First(&trip).
			Error; err != nil {
			return errors.New("trip request not found")
		}
		if trip.TravelerID != travelerId {
			return errors.New("not enough permissions to perform this action")
		}
		if trip.Status != types.TRIP_PENDING {
			return fmt.Errorf("trip request is already %s", trip.Status)
		}
		if err := tx.
			Where(&models.Bid{ID: bidId, TripID: tripId}).
			Preload("Agency").
			First(&bid).
			Error; err != nil {
			return errors.New("bid not found")
		}
		if err := tx.
			Model(&models.Bid{}).
			Where(&models.Bid{ID: bidId}).
			Update("status", types.BID_ACCEPTED).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.Bid{}).
			Where("trip_id = ? AND id <> ?", tripId, bidId).
			Update("status", types.BID_REJECTED).
			Error; err != nil {
			return err
		}
		if err := tx.
			Model(&models.TripRequest{}).
			Where(&models.TripRequest{ID: tripId}).
			Updates(map[string]any{
				"status":          types.TRIP_ACCEPTED,
				"accepted_bid_id": bidId,
			}).Error; err != nil {
			return err
		}

		if bid.Agency.StripeAccountID == nil {
			return errors.New("could not accept bid. Reason: agency not properly setup")
		}
		const MINIMUM_UNITS float64 = 100
		const DEPOSIT_RATE float64 = 0.2
		sc := lib.GetStripeClient()
		product, err := sc.V1Products.Create(context.Background(), &stripe.ProductCreateParams{
			Name: stripe.String(fmt.Sprintf("Trip %d deposit", tripId)),
			DefaultPriceData: &stripe.ProductCreateDefaultPriceDataParams{
				Currency:          stripe.String(bid.Currency),
				UnitAmountDecimal: stripe.Float64(bid.Price * MINIMUM_UNITS * DEPOSIT_RATE),
			},
			Metadata: map[string]string{
				"trip_id":   fmt.Sprint(tripId),
				"bid_id":    fmt.Sprint(bidId),
				"agency_id": fmt.Sprint(bid.AgencyID),
			},
			Params: stripe.Params{
				StripeAccount: bid.Agency.StripeAccountID,
			},
		})
		if err != nil {
			return err
		}
		paymentLink, err := lib.CreatePaymentLink(product.DefaultPrice.ID)
		if err != nil {
			return err
		}

		voucherCode := fmt.Sprintf("trip-%d-bid-%d-%s", tripId, bidId, uuid.NewString())
		voucherFile, err := lib.GenerateVoucherQR(voucherCode)
		if err != nil {
			return err
		}
		voucherURL, err := awslib.S3UploadAsset(fmt.Sprintf("vouchers/%s.jpeg", voucherCode), voucherFile)
		if err != nil {
			return err
		}

		md := types.Metadata{
			"payment_link": paymentLink,
			"voucher_code": voucherCode,
			"voucher_url":  *voucherURL,
		}
		if err := tx.
			Model(&models.Bid{}).
			Where(&models.Bid{ID: bidId}).
			Update("metadata", &md).
			Error; err != nil {
			return err
		}
		bid.Status = types.BID_ACCEPTED
		bid.Metadata = &md
		return nil
	})
	if err != nil {
		log.Printf("AcceptBid failed: %s\n", err.Error())
		return nil, err
	}
	return &bid, nil
}

func CreateNewAgency(ctx *gin.Context, params *types.CreateAgencyRequestBody) (uint, error) {
	agency := models.Agency{
		Name:         params.Name,
		About:        params.About,
		Country:      params.Country,
		OwnerID:      params.OwnerID,
		ContactEmail: params.ContactEmail,
		Status:       types.AGENCY_ACTIVE,
		Slug:         slug.Make(params.Name),
	}

	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Create(&agency).Error
		if err != nil {
			return err
		}
		sc := lib.GetStripeClient()
		acc, err := sc.V1Accounts.Create(context.Background(), &stripe.AccountCreateParams{
			BusinessProfile: &stripe.AccountCreateBusinessProfileParams{
				Name:         stripe.String(agency.Name),
				SupportEmail: stripe.String(agency.ContactEmail),
			},
			BusinessType: stripe.String("company"),
			Company: &stripe.AccountCreateCompanyParams{
				Name: stripe.String(agency.Name),
			},
			Type:     stripe.String("express"),
			Email:    stripe.String(agency.ContactEmail),
			Metadata: map[string]string{"agencyId": fmt.Sprintf("%d", agency.ID)},
			Capabilities: &stripe.AccountCreateCapabilitiesParams{
				CardPayments: &stripe.AccountCreateCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
				Transfers: &stripe.AccountCreateCapabilitiesTransfersParams{
					Requested: stripe.Bool(true),
				},
			},
		})
		if err != nil {
			log.Printf("Error creating account for agency: %s\n", err.Error())
			return errors.New("error creating account for agency")
		}
		err = tx.
			Model(&models.Agency{}).
			Where(&models.Agency{ID: agency.ID}).
			Update("stripe_account_id", acc.ID).
			Error
		if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return agency.ID, err
}

// GetOpenTripRequests lists trips that are currently visible for bidding.
func GetOpenTripRequests(filters *types.TripQueryFilters) ([]*models.TripRequest, error) {
	var trips []*models.TripRequest
	db := db.GetDb()
	tx := db.Session(&gorm.Session{PrepareStmt: true})
	q := tx.
		Model(&models.TripRequest{}).
		Scopes(scopes.WithPendingStatus).
		Where("bidding_deadline IS NULL OR bidding_deadline > ?", time.Now())
	if filters != nil {
		if filters.CreatedAfter != "" {
			q = q.Where("created_at > ?", filters.CreatedAfter)
		}
		if filters.CreatedBefore != "" {
			q = q.Where("created_at < ?", filters.CreatedBefore)
		}
		if filters.Destination != "" {
			q = q.Where("details->'destinations' @> ?", fmt.Sprintf("[%q]", filters.Destination))
		}
	}
	err := q.
		Order("created_at desc").
		Find(&trips).
		Error
	if err != nil {
		return nil, err
	}
	return trips, nil
}
