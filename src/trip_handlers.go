package main

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"tbs/src/common"
	"tbs/src/db"
	"tbs/src/models"
	"tbs/src/models/scopes"
	"tbs/src/types"
	"tbs/src/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func tripHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/trips/draft", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			draft, err := common.GetTripDraft(ctx, userId)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": draft})
		}).
		PUT("/trips/draft", func(ctx *gin.Context) {
			var body types.SaveTripDraftRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			draft, err := common.SaveTripDraft(ctx, userId, &body)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": draft})
		}).
		POST("/trips", func(ctx *gin.Context) {
			var body types.SubmitTripRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			draft, err := common.GetTripDraft(ctx, userId)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			id, err := utils.CreateTripRequest(ctx.Copy(), *draft, &body, userId)
			if err != nil {
				log.Printf("error creating trip request: %s", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			// The draft survives a failed submission; it is only cleared
			// once the trip is persisted.
			if err := common.ResetTripDraft(ctx, userId); err != nil {
				log.Printf("Error resetting draft for user [%d]: %s\n", userId, err.Error())
			}
			go common.TripOpenProducer(id, types.JSONB{
				"id":     int64(id),
				"status": string(types.TRIP_PENDING),
			})
			ctx.JSON(http.StatusCreated, gin.H{"id": id})
		}).
		GET("/trips", func(ctx *gin.Context) {
			var filters types.TripQueryFilters
			if err := ctx.ShouldBindQuery(&filters); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			role := ctx.GetString("role")
			if role == string(types.ROLE_AGENCY_AGENT) && !filters.Own {
				trips, err := utils.GetOpenTripRequests(&filters)
				if err != nil {
					ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
					return
				}
				ctx.JSON(http.StatusOK, gin.H{"data": trips, "count": len(trips)})
				return
			}
			var trips []models.TripRequest
			db := db.GetDb()
			q := db.
				Model(&models.TripRequest{}).
				Where(&models.TripRequest{TravelerID: userId})
			if filters.Status != "" {
				q = q.Where("status = ?", filters.Status)
			}
			if err := q.
				Order("created_at desc").
				Find(&trips).
				Error; err != nil {
				log.Printf("Error retrieving trip requests: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": trips, "count": len(trips)})
		}).
		GET("/trips/:id", func(ctx *gin.Context) {
			id := ctx.Params.ByName("id")
			atoi, err := strconv.Atoi(id)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			tripId := uint(atoi)
			var trip models.TripRequest
			db := db.GetDb()
			err = db.
				Model(&models.TripRequest{}).
				Scopes(scopes.WithID(tripId)).
				First(&trip).
				Error
			if err != nil {
				log.Printf("Error finding trip %d: %s\n", tripId, err.Error())
				err := errors.New("trip request does not exist")
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			if trip.TravelerID != userId && trip.Status != types.TRIP_PENDING {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "trip request does not exist"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": trip})
		}).
		PATCH("/trips/:id/cancel", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			if err := db.Transaction(func(tx *gorm.DB) error {
				var trip models.TripRequest
				if err := tx.
					Where(&models.TripRequest{ID: params.ID, TravelerID: userId}).
					First(&trip).
					Error; err != nil {
					return err
				}
				if trip.Status != types.TRIP_PENDING {
					return errors.New("only pending trip requests can be canceled")
				}
				return nil
			}); err != nil {
				if errors.Is(gorm.ErrRecordNotFound, err) {
					ctx.Status(http.StatusNotFound)
					return
				}
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := utils.UpdateTripStatus(params.ID, types.TRIP_CANCELED, types.TRIP_PENDING); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			go common.TripCloseProducer(params.ID, types.JSONB{
				"id":     params.ID,
				"status": string(types.TRIP_CANCELED),
			})
			ctx.JSON(http.StatusOK, gin.H{"id": params.ID})
		})

	return g
}
