package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// PushSubscription is a browser web-push endpoint registered by a user.
type PushSubscription struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID   primitive.ObjectID `bson:"user" json:"user"`
	Endpoint string             `bson:"endpoint" json:"endpoint"`
	P256dh   string             `bson:"p256dh" json:"p256dh"`
	Auth     string             `bson:"auth" json:"auth"`
}
