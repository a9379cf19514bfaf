package models

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name     string             `bson:"name" json:"name"`
	Email    string             `bson:"email" json:"email"`
	Password string             `bson:"password" json:"-"` // bcrypt hash
	Avatar   string             `bson:"avatar" json:"avatar"`
	Date     time.Time          `bson:"date" json:"date"`
}

// UserSummary is the public slice of a user embedded in profile listings.
type UserSummary struct {
	ID     primitive.ObjectID `bson:"_id" json:"id"`
	Name   string             `bson:"name" json:"name"`
	Avatar string             `bson:"avatar" json:"avatar"`
}

func (u *User) Summary() *UserSummary {
	return &UserSummary{ID: u.ID, Name: u.Name, Avatar: u.Avatar}
}

// NormalizeEmail trims and lower-cases an address before it is stored or looked up.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AvatarURL returns the Gravatar image for email: 200px, pg rated, mystery-man fallback.
func AvatarURL(email string) string {
	sum := md5.Sum([]byte(NormalizeEmail(email)))
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?s=200&r=pg&d=mm"
}
