package handlers

import (
	"context"

	"devconnector/auth"
	"devconnector/github"
	"devconnector/metrics"
	"devconnector/models"
	"devconnector/notify"

	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type ProfileStore interface {
	List(ctx context.Context) ([]models.Profile, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.Profile, error)
	Upsert(ctx context.Context, userID primitive.ObjectID, u models.ProfileUpdate) (*models.Profile, error)
	Replace(ctx context.Context, p *models.Profile) error
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) error
}

type PostStore interface {
	Create(ctx context.Context, p *models.Post) error
	List(ctx context.Context, author primitive.ObjectID) ([]models.Post, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	Replace(ctx context.Context, p *models.Post) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByAuthor(ctx context.Context, author primitive.ObjectID) error
}

type SubscriptionStore interface {
	Save(ctx context.Context, sub *models.PushSubscription) error
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) error
}

type TokenIssuer interface {
	Issue(userID string) (string, error)
}

type RepoLister interface {
	Repos(ctx context.Context, username string) ([]github.Repo, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps is everything the route handlers need. Notifier, Metrics and DB may
// be nil.
type Deps struct {
	Users         UserStore
	Profiles      ProfileStore
	Posts         PostStore
	Subscriptions SubscriptionStore

	Hasher *auth.Hasher
	Issuer TokenIssuer
	GitHub RepoLister

	Notifier       notify.Notifier
	Metrics        metrics.Recorder
	DB             Pinger
	VAPIDPublicKey string
}

type Handler struct {
	users         UserStore
	profiles      ProfileStore
	posts         PostStore
	subscriptions SubscriptionStore

	hasher *auth.Hasher
	issuer TokenIssuer
	github RepoLister

	notifier  notify.Notifier
	metrics   metrics.Recorder
	db        Pinger
	vapidKey  string
	sanitizer *bluemonday.Policy
}

func New(d Deps) *Handler {
	if d.Hasher == nil {
		d.Hasher = auth.NewHasher(auth.Cost)
	}
	if d.Notifier == nil {
		d.Notifier = notify.Nop{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Nop{}
	}
	return &Handler{
		users:         d.Users,
		profiles:      d.Profiles,
		posts:         d.Posts,
		subscriptions: d.Subscriptions,
		hasher:        d.Hasher,
		issuer:        d.Issuer,
		github:        d.GitHub,
		notifier:      d.Notifier,
		metrics:       d.Metrics,
		db:            d.DB,
		vapidKey:      d.VAPIDPublicKey,
		sanitizer:     bluemonday.StrictPolicy(),
	}
}
