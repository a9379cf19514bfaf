package handlers

import (
	"net/http"

	"devconnector/logutil"
	"devconnector/models"

	"github.com/gin-gonic/gin"
)

type PushKeys struct {
	P256dh string `json:"p256dh" binding:"required"`
	Auth   string `json:"auth" binding:"required"`
}

type SubscribeRequest struct {
	Endpoint string   `json:"endpoint" binding:"required,url"`
	Keys     PushKeys `json:"keys"`
}

func (h *Handler) VAPIDPublicKey(c *gin.Context) {
	if h.vapidKey == "" {
		respondError(c, models.NewNotFoundError("VAPID public key"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": h.vapidKey})
}

// SubscribePush stores the caller's browser push subscription, replacing any
// earlier one.
func (h *Handler) SubscribePush(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	var req SubscribeRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	sub := &models.PushSubscription{
		UserID:   id,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if err := h.subscriptions.Save(ctx, sub); err != nil {
		respondError(c, err)
		return
	}
	log := logutil.GetOrDefault(ctx)
	log.Info().Str("user_id", id.Hex()).Msg("Push subscription saved")
	message(c, http.StatusCreated, "Push subscription saved")
}
