package database

import (
	"context"

	"devconnector/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SubscriptionStore struct {
	coll *mongo.Collection
}

// Save stores the user's push subscription, replacing any previous one.
func (s *SubscriptionStore) Save(ctx context.Context, sub *models.PushSubscription) error {
	_, err := s.coll.UpdateOne(
		ctx,
		bson.M{"user": sub.UserID},
		bson.M{"$set": bson.M{
			"endpoint": sub.Endpoint,
			"p256dh":   sub.P256dh,
			"auth":     sub.Auth,
		}},
		options.Update().SetUpsert(true),
	)
	return translate(err)
}

func (s *SubscriptionStore) FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.PushSubscription, error) {
	var sub models.PushSubscription
	if err := s.coll.FindOne(ctx, bson.M{"user": userID}).Decode(&sub); err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (s *SubscriptionStore) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"user": userID})
	return translate(err)
}
