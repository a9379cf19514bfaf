package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrAlreadyLiked = errors.New("post already liked by user")
	ErrNotLiked     = errors.New("post not liked by user")
)

type Post struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID   primitive.ObjectID `bson:"user" json:"user"`
	Text     string             `bson:"text" json:"text"`
	Name     string             `bson:"name" json:"name"`
	Avatar   string             `bson:"avatar" json:"avatar"`
	Likes    []Like             `bson:"likes" json:"likes"`
	Comments []Comment          `bson:"comments" json:"comments"`
	Date     time.Time          `bson:"date" json:"date"`
}

type Like struct {
	UserID primitive.ObjectID `bson:"user" json:"user"`
}

type Comment struct {
	ID     primitive.ObjectID `bson:"_id" json:"id"`
	UserID primitive.ObjectID `bson:"user" json:"user"`
	Text   string             `bson:"text" json:"text"`
	Name   string             `bson:"name" json:"name"`
	Avatar string             `bson:"avatar" json:"avatar"`
	Date   time.Time          `bson:"date" json:"date"`
}

func (p *Post) LikeIndex(userID primitive.ObjectID) (int, bool) {
	for i := range p.Likes {
		if p.Likes[i].UserID == userID {
			return i, true
		}
	}
	return 0, false
}

// Like prepends userID to the likes; a user can like a post once.
func (p *Post) Like(userID primitive.ObjectID) error {
	if _, ok := p.LikeIndex(userID); ok {
		return ErrAlreadyLiked
	}
	p.Likes = append([]Like{{UserID: userID}}, p.Likes...)
	return nil
}

func (p *Post) Unlike(userID primitive.ObjectID) error {
	i, ok := p.LikeIndex(userID)
	if !ok {
		return ErrNotLiked
	}
	p.Likes = append(p.Likes[:i], p.Likes[i+1:]...)
	return nil
}

func (p *Post) AddComment(c Comment) {
	p.Comments = append([]Comment{c}, p.Comments...)
}

func (p *Post) CommentIndex(id primitive.ObjectID) (int, bool) {
	for i := range p.Comments {
		if p.Comments[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

// RemoveComment drops the comment at i; callers get i from CommentIndex.
func (p *Post) RemoveComment(i int) {
	p.Comments = append(p.Comments[:i], p.Comments[i+1:]...)
}
