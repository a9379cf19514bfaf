package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"devconnector/database"
	"devconnector/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Stores is an in-memory stand-in for the MongoDB stores. Values are copied
// on the way in and out so callers cannot alias stored state.
type Stores struct {
	mu       sync.Mutex
	users    map[primitive.ObjectID]models.User
	profiles map[primitive.ObjectID]models.Profile
	posts    map[primitive.ObjectID]models.Post
	subs     map[primitive.ObjectID]models.PushSubscription
}

func NewStores() *Stores {
	return &Stores{
		users:    map[primitive.ObjectID]models.User{},
		profiles: map[primitive.ObjectID]models.Profile{},
		posts:    map[primitive.ObjectID]models.Post{},
		subs:     map[primitive.ObjectID]models.PushSubscription{},
	}
}

func (s *Stores) Users() *UserStore                 { return &UserStore{s} }
func (s *Stores) Profiles() *ProfileStore           { return &ProfileStore{s} }
func (s *Stores) Posts() *PostStore                 { return &PostStore{s} }
func (s *Stores) Subscriptions() *SubscriptionStore { return &SubscriptionStore{s} }

type UserStore struct{ s *Stores }

func (u *UserStore) Create(_ context.Context, user *models.User) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.users {
		if existing.Email == user.Email {
			return database.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	u.s.users[user.ID] = *user
	return nil
}

func (u *UserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	for _, existing := range u.s.users {
		if existing.Email == email {
			cp := existing
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (u *UserStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	existing, ok := u.s.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &existing, nil
}

func (u *UserStore) Delete(_ context.Context, id primitive.ObjectID) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	delete(u.s.users, id)
	return nil
}

type ProfileStore struct{ s *Stores }

func (p *ProfileStore) withOwner(profile models.Profile) models.Profile {
	profile.Skills = append([]string(nil), profile.Skills...)
	profile.Experience = append([]models.Experience{}, profile.Experience...)
	profile.Education = append([]models.Education{}, profile.Education...)
	if u, ok := p.s.users[profile.UserID]; ok {
		profile.User = u.Summary()
	}
	return profile
}

func (p *ProfileStore) List(_ context.Context) ([]models.Profile, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	out := make([]models.Profile, 0, len(p.s.profiles))
	for _, profile := range p.s.profiles {
		out = append(out, p.withOwner(profile))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (p *ProfileStore) FindByUser(_ context.Context, userID primitive.ObjectID) (*models.Profile, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	profile, ok := p.s.profiles[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := p.withOwner(profile)
	return &out, nil
}

func (p *ProfileStore) Upsert(_ context.Context, userID primitive.ObjectID, u models.ProfileUpdate) (*models.Profile, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	profile, ok := p.s.profiles[userID]
	if !ok {
		profile = models.Profile{
			ID:         primitive.NewObjectID(),
			UserID:     userID,
			Experience: []models.Experience{},
			Education:  []models.Education{},
			Date:       time.Now().UTC(),
		}
	}
	u.Apply(&profile)
	p.s.profiles[userID] = profile
	out := p.withOwner(profile)
	out.User = nil
	return &out, nil
}

func (p *ProfileStore) Replace(_ context.Context, profile *models.Profile) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	existing, ok := p.s.profiles[profile.UserID]
	if !ok || existing.ID != profile.ID {
		return database.ErrNotFound
	}
	cp := *profile
	cp.User = nil
	cp.Experience = append([]models.Experience{}, profile.Experience...)
	cp.Education = append([]models.Education{}, profile.Education...)
	p.s.profiles[profile.UserID] = cp
	return nil
}

func (p *ProfileStore) DeleteByUser(_ context.Context, userID primitive.ObjectID) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	delete(p.s.profiles, userID)
	return nil
}

type PostStore struct{ s *Stores }

func copyPost(p models.Post) models.Post {
	p.Likes = append([]models.Like{}, p.Likes...)
	p.Comments = append([]models.Comment{}, p.Comments...)
	return p
}

func (ps *PostStore) Create(_ context.Context, p *models.Post) error {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	ps.s.posts[p.ID] = copyPost(*p)
	return nil
}

func (ps *PostStore) List(_ context.Context, author primitive.ObjectID) ([]models.Post, error) {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	out := []models.Post{}
	for _, p := range ps.s.posts {
		if author.IsZero() || p.UserID == author {
			out = append(out, copyPost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (ps *PostStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	p, ok := ps.s.posts[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := copyPost(p)
	return &cp, nil
}

func (ps *PostStore) Replace(_ context.Context, p *models.Post) error {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	if _, ok := ps.s.posts[p.ID]; !ok {
		return database.ErrNotFound
	}
	ps.s.posts[p.ID] = copyPost(*p)
	return nil
}

func (ps *PostStore) Delete(_ context.Context, id primitive.ObjectID) error {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	if _, ok := ps.s.posts[id]; !ok {
		return database.ErrNotFound
	}
	delete(ps.s.posts, id)
	return nil
}

func (ps *PostStore) DeleteByAuthor(_ context.Context, author primitive.ObjectID) error {
	ps.s.mu.Lock()
	defer ps.s.mu.Unlock()
	for id, p := range ps.s.posts {
		if p.UserID == author {
			delete(ps.s.posts, id)
		}
	}
	return nil
}

type SubscriptionStore struct{ s *Stores }

func (ss *SubscriptionStore) Save(_ context.Context, sub *models.PushSubscription) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	ss.s.subs[sub.UserID] = *sub
	return nil
}

func (ss *SubscriptionStore) FindByUser(_ context.Context, userID primitive.ObjectID) (*models.PushSubscription, error) {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	sub, ok := ss.s.subs[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &sub, nil
}

func (ss *SubscriptionStore) DeleteByUser(_ context.Context, userID primitive.ObjectID) error {
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	delete(ss.s.subs, userID)
	return nil
}
