package models

import "time"

const (
	EventPostCreated    = "post_created"
	EventPostDeleted    = "post_deleted"
	EventPostLiked      = "post_liked"
	EventPostUnliked    = "post_unliked"
	EventCommentAdded   = "comment_added"
	EventCommentRemoved = "comment_removed"
)

// PostEvent describes a change to the feed. RecipientID is the post author,
// set when the change was made by someone else.
type PostEvent struct {
	Type        string    `json:"type"`
	PostID      string    `json:"postId"`
	ActorID     string    `json:"actorId"`
	ActorName   string    `json:"actorName,omitempty"`
	RecipientID string    `json:"-"`
	Time        time.Time `json:"time"`
}
