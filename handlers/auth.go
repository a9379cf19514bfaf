package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"devconnector/database"
	"devconnector/logutil"
	"devconnector/models"

	"github.com/gin-gonic/gin"
)

// bcrypt ignores everything past 72 bytes.
const maxPasswordBytes = 72

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UnmarshalJSON trims the email so the email rule sees the address the
// client meant.
func (r *RegisterRequest) UnmarshalJSON(b []byte) error {
	type plain RegisterRequest
	if err := json.Unmarshal(b, (*plain)(r)); err != nil {
		return err
	}
	r.Email = strings.TrimSpace(r.Email)
	return nil
}

func (r *LoginRequest) UnmarshalJSON(b []byte) error {
	type plain LoginRequest
	if err := json.Unmarshal(b, (*plain)(r)); err != nil {
		return err
	}
	r.Email = strings.TrimSpace(r.Email)
	return nil
}

type TokenResponse struct {
	Token string `json:"token"`
}

// Register creates an account and returns a token for it.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	if len(req.Password) > maxPasswordBytes {
		respondError(c, invalidField("password", "password must be at most 72 bytes"))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(c, invalidField("name", "name is required"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	email := models.NormalizeEmail(req.Email)
	_, err := h.users.FindByEmail(ctx, email)
	if err == nil {
		respondError(c, models.NewUserExistsError())
		return
	}
	if !errors.Is(err, database.ErrNotFound) {
		respondError(c, err)
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	user := &models.User{
		Name:     name,
		Email:    email,
		Password: hash,
		Avatar:   models.AvatarURL(email),
		Date:     time.Now().UTC(),
	}
	if err := h.users.Create(ctx, user); err != nil {
		// lost a race with a concurrent signup for the same email
		if errors.Is(err, database.ErrDuplicate) {
			respondError(c, models.NewUserExistsError())
			return
		}
		respondError(c, err)
		return
	}

	token, err := h.issuer.Issue(user.ID.Hex())
	if err != nil {
		respondError(c, err)
		return
	}
	h.metrics.RecordTokenIssued()
	log := logutil.GetOrDefault(ctx)
	log.Info().Str("user_id", user.ID.Hex()).Msg("User registered")

	c.JSON(http.StatusCreated, TokenResponse{Token: token})
}

// Login exchanges credentials for a token. Unknown email and wrong password
// produce the same response and cost the same bcrypt work.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.users.FindByEmail(ctx, models.NormalizeEmail(req.Email))
	switch {
	case errors.Is(err, database.ErrNotFound):
		h.hasher.Burn(req.Password)
		respondError(c, models.NewInvalidCredentialsError())
		return
	case err != nil:
		respondError(c, err)
		return
	}

	if !h.hasher.Verify(req.Password, user.Password) {
		respondError(c, models.NewInvalidCredentialsError())
		return
	}

	token, err := h.issuer.Issue(user.ID.Hex())
	if err != nil {
		respondError(c, err)
		return
	}
	h.metrics.RecordTokenIssued()

	c.JSON(http.StatusOK, TokenResponse{Token: token})
}

// CurrentUser returns the authenticated user without the password hash.
func (h *Handler) CurrentUser(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.users.FindByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(c, models.NewNotFoundError("User"))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
