package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"tbs/src/common"
	"tbs/src/db"
	"tbs/src/lib"
	"tbs/src/models"
	"tbs/src/types"
	"tbs/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

func AuthLogin(ctx *gin.Context) (token *string, status int, err error) {
	var body types.RegisterUserRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	auth, err := lib.GetFirebaseAuth()
	if err != nil {
		log.Printf("Error initializing FirebaseAuth client: %s\n", err.Error())
		return nil, http.StatusBadRequest, err
	}
	user, err := auth.GetUserByEmail(context.Background(), body.Email)
	if err != nil {
		log.Printf("error from Firebase: %s\n", err.Error())
		return nil, http.StatusNotFound, errors.New("no account found for this email")
	}

	db := db.GetDb()
	var muser models.User
	if err = db.
		Model(&models.User{}).
		Select("id", "name", "email", "role", "uid", "active_agency").
		Where(&models.User{Email: user.Email}).
		First(&muser).
		Error; err != nil {
		log.Printf("error: %s\n", err.Error())
		return nil, http.StatusNotFound, errors.New("no account found for this email")
	}

	if _, err := common.CreateSession(ctx, muser.ID, muser.Email, muser.Role, muser.UID); err != nil {
		log.Printf("Error creating session for user [%d]: %s\n", muser.ID, err.Error())
		return nil, http.StatusBadRequest, errors.New("could not log you in. Please try again")
	}

	jwt, _ := utils.GenerateJWT(user.Email, muser.ID, muser.ActiveAgency)

	rd := lib.GetRedisClient()
	_, err = rd.JSONSet(ctx, fmt.Sprintf("%d:user", muser.ID), "$", &muser).Result()
	if err != nil {
		log.Printf("[redis] Error updating user cache: %s\n", err.Error())
	}

	return &jwt, http.StatusOK, nil
}

func AuthRegister(ctx *gin.Context) (uid *string, status int, err error) {
	var body types.RegisterUserRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		return nil, http.StatusBadRequest, err
	}
	auth, err := lib.GetFirebaseAuth()
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	user, err := auth.GetUserByEmail(context.Background(), body.Email)
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("no account found for this email")
	}

	role := body.Role
	if role == "" {
		role = string(types.ROLE_TRAVELER)
	}

	db := db.GetDb()
	err = db.Transaction(func(tx *gorm.DB) error {
		var muser models.User
		if err := tx.
			Model(&models.User{}).
			Select("id").
			Where("email = ?", body.Email).
			First(&muser).
			Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.New("could not complete transaction")
			}
		}
		if muser.ID > 0 {
			err := errors.New("user is already registered in the system. Please proceed to Log In")
			log.Printf("error: %s\n", err.Error())
			return err
		}

		newUser := models.User{
			Email: user.Email,
			UID:   user.UID,
			Role:  role,
			Name:  user.DisplayName,
			Phone: body.Phone,
		}
		if err := tx.Create(&newUser).Error; err != nil {
			log.Printf("Error creating user: %s\n", err.Error())
			return fmt.Errorf("error creating user: %s", user.Email)
		}

		if role != string(types.ROLE_AGENCY_AGENT) {
			return nil
		}

		newAgency := models.Agency{
			Name:         fmt.Sprintf("%s's agency", user.DisplayName),
			OwnerID:      newUser.ID,
			ContactEmail: user.Email,
			Status:       types.AGENCY_ACTIVE,
		}
		if err := tx.Create(&newAgency).Error; err != nil {
			return err
		}
		sc := lib.GetStripeClient()
		acc, err := sc.V1Accounts.Create(context.Background(), &stripe.AccountCreateParams{
			BusinessProfile: &stripe.AccountCreateBusinessProfileParams{
				Name:         stripe.String(newAgency.Name),
				SupportEmail: stripe.String(newAgency.ContactEmail),
			},
			BusinessType: stripe.String("individual"),
			Company: &stripe.AccountCreateCompanyParams{
				Name: stripe.String(newAgency.Name),
			},
			Type:     stripe.String("express"),
			Email:    stripe.String(newAgency.ContactEmail),
			Metadata: map[string]string{"agencyId": fmt.Sprintf("%d", newAgency.ID)},
			Capabilities: &stripe.AccountCreateCapabilitiesParams{
				CardPayments: &stripe.AccountCreateCapabilitiesCardPaymentsParams{
					Requested: stripe.Bool(true),
				},
				Transfers: &stripe.AccountCreateCapabilitiesTransfersParams{
					Requested: stripe.Bool(true),
				},
			},
		})
		if err != nil {
			log.Printf("Error creating account for agency: %s\n", err.Error())
			return errors.New("error creating account for agency")
		}
		if err := tx.
			Model(&models.Agency{}).
			Where("id = ?", newAgency.ID).
			Updates(&models.Agency{
				StripeAccountID: &acc.ID,
			}).Error; err != nil {
			log.Printf("Error creating Connect account: %s\n", err.Error())
		}

		err = tx.
			Model(&models.User{}).
			Where(&models.User{ID: newUser.ID}).
			Update("active_agency", newAgency.ID).Error
		if err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, http.StatusBadRequest, err
	}
	return &user.UID, http.StatusOK, nil
}

// AuthLogout deletes the live session and revokes firebase refresh
// tokens; failures are logged and the caller still ends up logged out.
func AuthLogout(ctx *gin.Context) (status int, err error) {
	userId := ctx.GetUint("id")
	uid := ctx.GetString("uid")
	if err := common.DeleteSession(ctx, userId); err != nil {
		log.Printf("Error deleting session for user [%d]: %s\n", userId, err.Error())
	}
	auth, err := lib.GetFirebaseAuth()
	if err != nil {
		log.Printf("Error initializing FirebaseAuth client: %s\n", err.Error())
		return http.StatusOK, nil
	}
	if err := auth.RevokeRefreshTokens(context.Background(), uid); err != nil {
		log.Printf("Error revoking refresh tokens for [%s]: %s\n", uid, err.Error())
	}
	return http.StatusOK, nil
}
