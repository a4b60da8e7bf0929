package main

import (
	"net/http"
	"tbs/src/common"
	"tbs/src/db"
	"tbs/src/models"
	"tbs/src/types"

	"github.com/gin-gonic/gin"
)

func messageResponse(m *models.Message) *types.APIResponseMessage {
	return &types.APIResponseMessage{
		ID:       m.ID,
		RoomKey:  m.RoomKey,
		SenderID: m.SenderID,
		Role:     m.Role,
		Text:     m.Text,
		SentAt:   m.SentAt,
	}
}

// chatRoomParticipant reports whether the caller may read or post in the
// room for the given trip and agency pair.
func chatRoomParticipant(ctx *gin.Context, tripId uint, agencyId uint) bool {
	userId := ctx.GetUint("id")
	activeAgency := ctx.GetUint("agency")
	var trip models.TripRequest
	db := db.GetDb()
	if err := db.
		Model(&models.TripRequest{}).
		Select("id", "traveler_id").
		Where(&models.TripRequest{ID: tripId}).
		First(&trip).
		Error; err != nil {
		return false
	}
	if trip.TravelerID == userId {
		return true
	}
	return activeAgency > 0 && activeAgency == agencyId
}

func chatHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/trips/:id/chat/:agencyId/messages", func(ctx *gin.Context) {
			var params types.ChatRoomURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.PostMessageRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if !chatRoomParticipant(ctx, params.TripID, params.AgencyID) {
				ctx.Status(http.StatusForbidden)
				return
			}
			userId := ctx.GetUint("id")
			role := ctx.GetString("role")
			message, err := common.CreateChatMessage(params.TripID, params.AgencyID, userId, role, body.Text)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": messageResponse(message)})
		}).
		GET("/trips/:id/chat/:agencyId/messages", func(ctx *gin.Context) {
			var params types.ChatRoomURIParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			if !chatRoomParticipant(ctx, params.TripID, params.AgencyID) {
				ctx.Status(http.StatusForbidden)
				return
			}
			messages, err := common.GetChatMessages(params.TripID, params.AgencyID)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			data := make([]*types.APIResponseMessage, 0, len(messages))
			for i := range messages {
				data = append(data, messageResponse(&messages[i]))
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data, "count": len(data)})
		})

	return g
}
