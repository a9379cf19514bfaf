package database

import (
	"context"

	"devconnector/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type UserStore struct {
	coll *mongo.Collection
}

// Create inserts u, assigning an id when it has none. A taken email yields ErrDuplicate.
func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, u)
	return translate(err)
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.coll.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *UserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *UserStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	return translate(err)
}
