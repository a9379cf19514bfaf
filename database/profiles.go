package database

import (
	"context"
	"time"

	"devconnector/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ProfileStore struct {
	coll *mongo.Collection
}

// profileWithOwner is the shape produced by the owner $lookup.
type profileWithOwner struct {
	models.Profile `bson:",inline"`
	Owner          *models.UserSummary `bson:"owner"`
}

func withOwner(match bson.D) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "date", Value: -1}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: usersCollection},
			{Key: "localField", Value: "user"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "owner"},
		}}},
		{{Key: "$unwind", Value: bson.D{
			{Key: "path", Value: "$owner"},
			{Key: "preserveNullAndEmptyArrays", Value: true},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "owner.password", Value: 0},
			{Key: "owner.email", Value: 0},
		}}},
	}
}

func (s *ProfileStore) aggregate(ctx context.Context, match bson.D) ([]models.Profile, error) {
	cursor, err := s.coll.Aggregate(ctx, withOwner(match))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []profileWithOwner
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]models.Profile, len(rows))
	for i, r := range rows {
		out[i] = r.Profile
		out[i].User = r.Owner
	}
	return out, nil
}

// List returns every profile with the owner's name and avatar populated.
func (s *ProfileStore) List(ctx context.Context) ([]models.Profile, error) {
	return s.aggregate(ctx, bson.D{})
}

func (s *ProfileStore) FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.Profile, error) {
	rows, err := s.aggregate(ctx, bson.D{{Key: "user", Value: userID}})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// Upsert applies a sparse update to the user's profile, creating it first if needed.
func (s *ProfileStore) Upsert(ctx context.Context, userID primitive.ObjectID, u models.ProfileUpdate) (*models.Profile, error) {
	set := bson.M{}
	for k, v := range u.Fields() {
		set[k] = v
	}
	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"date":       time.Now().UTC(),
			"experience": bson.A{},
			"education":  bson.A{},
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var p models.Profile
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"user": userID}, update, opts).Decode(&p)
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// Replace overwrites the stored profile with p. Concurrent replaces are last-write-wins.
func (s *ProfileStore) Replace(ctx context.Context, p *models.Profile) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ProfileStore) DeleteByUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"user": userID})
	return translate(err)
}
