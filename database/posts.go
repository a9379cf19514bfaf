package database

import (
	"context"

	"devconnector/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PostStore struct {
	coll *mongo.Collection
}

func (s *PostStore) Create(ctx context.Context, p *models.Post) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, p)
	return translate(err)
}

// List returns posts newest first; a zero author lists every post.
func (s *PostStore) List(ctx context.Context, author primitive.ObjectID) ([]models.Post, error) {
	filter := bson.M{}
	if !author.IsZero() {
		filter["user"] = author
	}
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (s *PostStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var p models.Post
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// Replace overwrites the stored post, likes and comments included.
// Concurrent replaces are last-write-wins.
func (s *PostStore) Replace(ctx context.Context, p *models.Post) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostStore) DeleteByAuthor(ctx context.Context, author primitive.ObjectID) error {
	_, err := s.coll.DeleteMany(ctx, bson.M{"user": author})
	return translate(err)
}
