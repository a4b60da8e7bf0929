package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"tbs/src/db"
	"tbs/src/lib"
	"tbs/src/models"
	"tbs/src/types"
	"tbs/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

func agencyHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/agencies", func(ctx *gin.Context) {
			var body types.CreateAgencyRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			body.OwnerID = userId
			id, err := utils.CreateNewAgency(ctx.Copy(), &body)
			if err != nil {
				log.Printf("error creating agency: %s", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			db := db.GetDb()
			if err := db.
				Model(&models.User{}).
				Where(&models.User{ID: userId}).
				Update("active_agency", id).
				Error; err != nil {
				log.Printf("Error setting active agency for user [%d]: %s\n", userId, err.Error())
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": id})
		}).
		GET("/agencies", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			var agencies []models.Agency
			db := db.GetDb()
			if err := db.
				Model(&models.Agency{}).
				Where(&models.Agency{OwnerID: userId}).
				Order("created_at desc").
				Find(&agencies).
				Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": agencies, "count": len(agencies)})
		}).
		GET("/agencies/:id", func(ctx *gin.Context) {
			id := ctx.Params.ByName("id")
			atoi, err := strconv.Atoi(id)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			agencyId := uint(atoi)
			var agency models.Agency
			db := db.GetDb()
			err = db.
				Model(&models.Agency{}).
				Where(&models.Agency{ID: agencyId}).
				First(&agency).
				Error
			if err != nil {
				log.Printf("Error finding agency %d: %s\n", agencyId, err.Error())
				ctx.JSON(http.StatusNotFound, gin.H{"error": "agency does not exist"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": agency})
		}).
		POST("/agencies/:id/onboarding", func(ctx *gin.Context) {
			id := ctx.Params.ByName("id")
			atoi, err := strconv.Atoi(id)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			agencyId := uint(atoi)
			userId := ctx.GetUint("id")
			var accLinkURL string
			db := db.GetDb()
			err = db.Transaction(func(tx *gorm.DB) error {
				var agency models.Agency
				err := tx.
					Model(&models.Agency{}).
					Where(&models.Agency{ID: agencyId, OwnerID: userId}).
					First(&agency).
					Error
				if err != nil {
					return err
				}
				if agency.ConnectOnboardingURL != nil {
					accLinkURL = *agency.ConnectOnboardingURL
					return nil
				}
				if agency.StripeAccountID == nil {
					err := fmt.Errorf("agency is not setup properly: %d", agencyId)
					return err
				}
				sc := lib.GetStripeClient()
				acc, err := sc.V1Accounts.GetByID(context.Background(), *agency.StripeAccountID, nil)
				if err != nil {
					log.Printf("Error retrieving Account: %s\n", err.Error())
					return err
				}
				if acc == nil {
					err := errors.New("account not found")
					return err
				}
				accLink, err := sc.V1AccountLinks.Create(context.Background(), &stripe.AccountLinkCreateParams{
					Account:    agency.StripeAccountID,
					Type:       stripe.String("account_onboarding"),
					ReturnURL:  stripe.String(fmt.Sprint(os.Getenv("APP_HOST"), "/dashboard")),
					RefreshURL: stripe.String(fmt.Sprint(os.Getenv("APP_HOST"), "/callback/account/refresh")),
				})
				if err != nil {
					return err
				}
				err = tx.Model(&models.Agency{}).Where("id = ?", agency.ID).Updates(&models.Agency{
					ConnectOnboardingURL: &accLink.URL,
					Status:               types.AGENCY_ONBOARDING,
				}).Error
				if err != nil {
					return err
				}
				accLinkURL = accLink.URL
				return nil
			})
			if err != nil {
				log.Printf("Error while setting up Stripe Account: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"url": accLinkURL})
		})

	return g
}
