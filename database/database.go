package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate key")
)

const (
	usersCollection         = "users"
	profilesCollection      = "profiles"
	postsCollection         = "posts"
	subscriptionsCollection = "push_subscriptions"
)

// DB owns the Mongo client and the collections the stores use.
type DB struct {
	Client *mongo.Client

	users         *mongo.Collection
	profiles      *mongo.Collection
	posts         *mongo.Collection
	subscriptions *mongo.Collection
}

// Connect dials uri, retrying up to attempts times, and pings the server.
func Connect(ctx context.Context, uri, dbName string, attempts int, log zerolog.Logger) (*DB, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := connectOnce(ctx, uri, dbName)
		if err == nil {
			log.Info().Str("database", dbName).Msg("Connected to MongoDB")
			return db, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", i).Msg("MongoDB connection attempt failed")
		if i < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(2 * time.Second):
			}
		}
	}
	return nil, fmt.Errorf("database: connect: %w", lastErr)
}

func connectOnce(ctx context.Context, uri, dbName string) (*DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	db := client.Database(dbName)
	return &DB{
		Client:        client,
		users:         db.Collection(usersCollection),
		profiles:      db.Collection(profilesCollection),
		posts:         db.Collection(postsCollection),
		subscriptions: db.Collection(subscriptionsCollection),
	}, nil
}

// EnsureIndexes creates the unique indexes the application relies on:
// one account per email, one profile per user, one push subscription per user.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	unique := func(coll *mongo.Collection, field string) error {
		_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetUnique(true),
		})
		if err != nil {
			return fmt.Errorf("database: index %s.%s: %w", coll.Name(), field, err)
		}
		return nil
	}
	if err := unique(db.users, "email"); err != nil {
		return err
	}
	if err := unique(db.profiles, "user"); err != nil {
		return err
	}
	if err := unique(db.subscriptions, "user"); err != nil {
		return err
	}
	_, err := db.posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "date", Value: -1}}},
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "date", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("database: index posts: %w", err)
	}
	return nil
}

func (db *DB) Ping(ctx context.Context) error {
	return db.Client.Ping(ctx, nil)
}

func (db *DB) Disconnect(ctx context.Context) error {
	if db == nil || db.Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.Client.Disconnect(ctx)
}

func (db *DB) Users() *UserStore {
	return &UserStore{coll: db.users}
}

func (db *DB) Profiles() *ProfileStore {
	return &ProfileStore{coll: db.profiles}
}

func (db *DB) Posts() *PostStore {
	return &PostStore{coll: db.posts}
}

func (db *DB) Subscriptions() *SubscriptionStore {
	return &SubscriptionStore{coll: db.subscriptions}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}
