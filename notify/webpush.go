package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"devconnector/database"
	"devconnector/models"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const sendTimeout = 5 * time.Second

type SubscriptionStore interface {
	FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.PushSubscription, error)
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) error
}

type VAPID struct {
	PublicKey  string
	PrivateKey string
	Subscriber string
}

// WebPush sends a browser notification to a post's author when someone else
// likes or comments on it.
type WebPush struct {
	subs   SubscriptionStore
	keys   VAPID
	client webpush.HTTPClient
	log    zerolog.Logger
}

func NewWebPush(subs SubscriptionStore, keys VAPID, log zerolog.Logger) *WebPush {
	return &WebPush{
		subs:   subs,
		keys:   keys,
		client: &http.Client{Timeout: sendTimeout},
		log:    log,
	}
}

// Notify sends in the background so the request is not held up by the push service.
func (w *WebPush) Notify(_ context.Context, ev models.PostEvent) {
	if !wantsPush(ev) {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		if err := w.Send(ctx, ev); err != nil {
			w.log.Warn().Err(err).Str("recipient", ev.RecipientID).Str("type", ev.Type).Msg("Push notification failed")
		}
	}()
}

func wantsPush(ev models.PostEvent) bool {
	if ev.RecipientID == "" || ev.RecipientID == ev.ActorID {
		return false
	}
	return ev.Type == models.EventPostLiked || ev.Type == models.EventCommentAdded
}

// Send delivers ev synchronously. A recipient without a subscription is not
// an error. A subscription the push service reports as gone is deleted.
func (w *WebPush) Send(ctx context.Context, ev models.PostEvent) error {
	if !wantsPush(ev) {
		return nil
	}
	userID, err := primitive.ObjectIDFromHex(ev.RecipientID)
	if err != nil {
		return fmt.Errorf("notify: recipient id: %w", err)
	}

	sub, err := w.subs.FindByUser(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("notify: load subscription: %w", err)
	}

	payload, err := json.Marshal(message(ev))
	if err != nil {
		return err
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}, &webpush.Options{
		HTTPClient:      w.client,
		Subscriber:      w.keys.Subscriber,
		VAPIDPublicKey:  w.keys.PublicKey,
		VAPIDPrivateKey: w.keys.PrivateKey,
		TTL:             30,
	})
	if err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		w.log.Info().Str("recipient", ev.RecipientID).Msg("Push subscription expired, deleting")
		return w.subs.DeleteByUser(ctx, userID)
	case resp.StatusCode >= 300:
		return fmt.Errorf("notify: push service returned %d", resp.StatusCode)
	}
	return nil
}

type pushMessage struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

func message(ev models.PostEvent) pushMessage {
	who := ev.ActorName
	if who == "" {
		who = "Someone"
	}
	m := pushMessage{Data: map[string]string{"url": "/posts/" + ev.PostID}}
	switch ev.Type {
	case models.EventPostLiked:
		m.Title = "New like"
		m.Body = who + " liked your post"
	case models.EventCommentAdded:
		m.Title = "New comment"
		m.Body = who + " commented on your post"
	}
	return m
}
