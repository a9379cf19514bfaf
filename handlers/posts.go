package handlers

import (
	"context"
	"errors"
	"html"
	"net/http"
	"strings"
	"time"

	"devconnector/database"
	"devconnector/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TextRequest struct {
	Text string `json:"text" binding:"required"`
}

// cleanText strips markup so stored text is plain.
func (h *Handler) cleanText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(h.sanitizer.Sanitize(raw)))
}

func (h *Handler) bindText(c *gin.Context) (string, bool) {
	var req TextRequest
	if !bindJSON(c, &req) {
		return "", false
	}
	text := h.cleanText(req.Text)
	if text == "" {
		respondError(c, invalidField("text", "text is required"))
		return "", false
	}
	return text, true
}

func (h *Handler) ListPosts(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	posts, err := h.posts.List(ctx, primitive.NilObjectID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *Handler) MyPosts(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	posts, err := h.posts.List(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

func (h *Handler) GetPost(c *gin.Context) {
	postID, ok := idParam(c, "id", "Post")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.FindByID(ctx, postID)
	if err != nil {
		respondPostError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

func (h *Handler) CreatePost(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	text, ok := h.bindText(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.caller(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	post := &models.Post{
		UserID:   id,
		Text:     text,
		Name:     user.Name,
		Avatar:   user.Avatar,
		Likes:    []models.Like{},
		Comments: []models.Comment{},
		Date:     time.Now().UTC(),
	}
	if err := h.posts.Create(ctx, post); err != nil {
		respondError(c, err)
		return
	}
	h.publish(ctx, models.EventPostCreated, post, id, user.Name)
	c.JSON(http.StatusCreated, post)
}

// DeletePost removes a post. Only its author may do so.
func (h *Handler) DeletePost(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	postID, ok := idParam(c, "id", "Post")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.FindByID(ctx, postID)
	if err != nil {
		respondPostError(c, err)
		return
	}
	if post.UserID != id {
		respondError(c, models.NewForbiddenError("User not authorized"))
		return
	}
	if err := h.posts.Delete(ctx, postID); err != nil {
		respondPostError(c, err)
		return
	}
	h.publish(ctx, models.EventPostDeleted, post, id, "")
	message(c, http.StatusOK, "Post removed")
}

func (h *Handler) LikePost(c *gin.Context) {
	h.toggleLike(c, true)
}

func (h *Handler) UnlikePost(c *gin.Context) {
	h.toggleLike(c, false)
}

func (h *Handler) toggleLike(c *gin.Context, like bool) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	postID, ok := idParam(c, "id", "Post")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.FindByID(ctx, postID)
	if err != nil {
		respondPostError(c, err)
		return
	}

	event := models.EventPostLiked
	if like {
		err = post.Like(id)
	} else {
		event = models.EventPostUnliked
		err = post.Unlike(id)
	}
	switch {
	case errors.Is(err, models.ErrAlreadyLiked):
		respondError(c, models.NewAlreadyLikedError())
		return
	case errors.Is(err, models.ErrNotLiked):
		respondError(c, models.NewNotLikedError())
		return
	}

	if err := h.posts.Replace(ctx, post); err != nil {
		respondPostError(c, err)
		return
	}
	h.publish(ctx, event, post, id, "")
	c.JSON(http.StatusOK, post.Likes)
}

func (h *Handler) AddComment(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	postID, ok := idParam(c, "id", "Post")
	if !ok {
		return
	}
	text, ok := h.bindText(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.caller(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	post, err := h.posts.FindByID(ctx, postID)
	if err != nil {
		respondPostError(c, err)
		return
	}
	post.AddComment(models.Comment{
		ID:     primitive.NewObjectID(),
		UserID: id,
		Text:   text,
		Name:   user.Name,
		Avatar: user.Avatar,
		Date:   time.Now().UTC(),
	})
	if err := h.posts.Replace(ctx, post); err != nil {
		respondPostError(c, err)
		return
	}
	h.publish(ctx, models.EventCommentAdded, post, id, user.Name)
	c.JSON(http.StatusOK, post.Comments)
}

// DeleteComment removes a comment. Only the comment's author may do so.
func (h *Handler) DeleteComment(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	postID, ok := idParam(c, "post_id", "Post")
	if !ok {
		return
	}
	commentID, ok := idParam(c, "comment_id", "Comment")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	post, err := h.posts.FindByID(ctx, postID)
	if err != nil {
		respondPostError(c, err)
		return
	}
	i, found := post.CommentIndex(commentID)
	if !found {
		respondError(c, models.NewNotFoundError("Comment"))
		return
	}
	if post.Comments[i].UserID != id {
		respondError(c, models.NewForbiddenError("User not authorized"))
		return
	}
	post.RemoveComment(i)
	if err := h.posts.Replace(ctx, post); err != nil {
		respondPostError(c, err)
		return
	}
	h.publish(ctx, models.EventCommentRemoved, post, id, "")
	c.JSON(http.StatusOK, post.Comments)
}

// caller loads the authenticated user for name and avatar snapshots.
func (h *Handler) caller(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	user, err := h.users.FindByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, models.NewNotFoundError("User")
	}
	return user, err
}

// publish tells the notifier about a change to post made by actor. The post
// author is the recipient unless they made the change themselves.
func (h *Handler) publish(ctx context.Context, typ string, post *models.Post, actor primitive.ObjectID, actorName string) {
	ev := models.PostEvent{
		Type:    typ,
		PostID:  post.ID.Hex(),
		ActorID: actor.Hex(),
		Time:    time.Now().UTC(),
	}
	if post.UserID != actor {
		ev.RecipientID = post.UserID.Hex()
		if actorName == "" {
			if u, err := h.users.FindByID(ctx, actor); err == nil {
				actorName = u.Name
			}
		}
	}
	ev.ActorName = actorName
	h.notifier.Notify(ctx, ev)
}

func respondPostError(c *gin.Context, err error) {
	if errors.Is(err, database.ErrNotFound) {
		respondError(c, models.NewNotFoundError("Post"))
		return
	}
	respondError(c, err)
}
