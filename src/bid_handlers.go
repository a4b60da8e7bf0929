package main

import (
	"errors"
	"log"
	"net/http"
	"tbs/src/common"
	"tbs/src/db"
	awslib "tbs/src/lib/aws"
	"tbs/src/models"
	"tbs/src/models/scopes"
	"tbs/src/types"
	"tbs/src/utils"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// bidAttachmentUploader is swapped out in tests.
var bidAttachmentUploader utils.AttachmentUploader = awslib.S3UploadAttachment

func bidHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/trips/:id/bids", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			role := ctx.GetString("role")
			agencyId := ctx.GetUint("agency")
			if role != string(types.ROLE_AGENCY_AGENT) || agencyId < 1 {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "only agency accounts can place bids"})
				return
			}
			// Field validation runs before any storage or network call,
			// so a non-positive price never reaches the uploader.
			var body types.CreateBidRequestBody
			if err := ctx.ShouldBind(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			tripId := params.ID
			db := db.GetDb()
			var trip models.TripRequest
			if err := db.
				Where(&models.TripRequest{ID: tripId}).
				Preload("Bids").
				First(&trip).
				Error; err != nil {
				log.Printf("Error finding trip %d: %s\n", tripId, err.Error())
				ctx.JSON(http.StatusNotFound, gin.H{"error": "trip request does not exist"})
				return
			}
			if trip.Status != types.TRIP_PENDING {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "trip request is no longer open for bidding"})
				return
			}
			if !trip.CanReceiveBids(time.Now()) {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "bidding deadline has passed"})
				return
			}
			// Point read, not atomic with the insert below; two
			// concurrent submissions from the same agency can both pass.
			if trip.HasBidFrom(agencyId) {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "your agency has already placed a bid on this trip request"})
				return
			}

			var agency models.Agency
			if err := db.
				Where(&models.Agency{ID: agencyId}).
				First(&agency).
				Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "agency does not exist"})
				return
			}

			attachments := make([]utils.BidAttachment, 0)
			if form, err := ctx.MultipartForm(); err == nil && form != nil {
				for _, fh := range form.File["attachments"] {
					f, err := fh.Open()
					if err != nil {
						ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
						return
					}
					defer f.Close()
					attachments = append(attachments, utils.BidAttachment{
						Name:        fh.Filename,
						ContentType: fh.Header.Get("Content-Type"),
						Body:        f,
					})
				}
			}
			urls, err := utils.PrepareBidAttachments(bidAttachmentUploader, tripId, agencyId, attachments)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			currency := body.Currency
			if currency == "" {
				currency = "usd"
			}
			now := time.Now()
			bid := models.Bid{
				TripID:             tripId,
				AgencyID:           agencyId,
				AgencyName:         agency.Name,
				Itinerary:          body.Itinerary,
				Price:              body.Price,
				Currency:           currency,
				PriceBreakdown:     body.PriceBreakdown,
				AccommodationPlan:  body.AccommodationPlan,
				TransportationPlan: body.TransportationPlan,
				FoodPlan:           body.FoodPlan,
				Attachments:        urls,
				Status:             types.BID_PENDING,
				SubmittedAt:        &now,
				SubmittedBy:        ctx.GetString("email"),
			}
			if err := db.Transaction(func(tx *gorm.DB) error {
				return tx.Create(&bid).Error
			}); err != nil {
				log.Printf("Error creating bid: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}

			go common.BidSubmittedProducer(bid.ID, types.JSONB{
				"id":    bid.ID,
				"trip":  tripId,
				"topic": "BidsSubmitted",
			})
			ctx.JSON(http.StatusCreated, gin.H{"id": bid.ID})
		}).
		GET("/trips/:id/bids", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			agencyId := ctx.GetUint("agency")
			db := db.GetDb()
			var trip models.TripRequest
			if err := db.
				Where(&models.TripRequest{ID: params.ID}).
				First(&trip).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "trip request does not exist"})
				return
			}
			var bids []models.Bid
			q := db.
				Model(&models.Bid{}).
				Scopes(scopes.WithTrip(params.ID))
			// Agencies only ever see their own bid on someone else's trip.
			if trip.TravelerID != userId {
				if agencyId < 1 {
					ctx.Status(http.StatusForbidden)
					return
				}
				q = q.Scopes(scopes.WithAgency(agencyId))
			}
			if err := q.
				Order("created_at desc").
				Find(&bids).
				Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bids, "count": len(bids)})
		}).
		POST("/trips/:id/bids/:bidId/accept", func(ctx *gin.Context) {
			var params types.TripBidURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			bid, err := utils.AcceptBid(params.TripID, params.BidID, userId)
			if err != nil {
				if errors.Is(gorm.ErrRecordNotFound, err) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			go common.SendBidAcceptedNotifications(bid.ID)
			go common.TripCloseProducer(params.TripID, types.JSONB{
				"id":     params.TripID,
				"status": string(types.TRIP_ACCEPTED),
				"bid":    bid.ID,
			})
			ctx.JSON(http.StatusOK, gin.H{"id": bid.ID, "status": bid.Status})
		})

	return g
}
