package handlers

import (
	"errors"
	"net/http"
	"strings"

	"devconnector/database"
	"devconnector/logutil"
	"devconnector/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProfileRequest struct {
	Status         string  `json:"status" binding:"required"`
	Skills         string  `json:"skills" binding:"required"`
	Company        *string `json:"company"`
	Website        *string `json:"website"`
	Location       *string `json:"location"`
	Bio            *string `json:"bio"`
	GitHubUsername *string `json:"githubusername"`
	YouTube        *string `json:"youtube"`
	Twitter        *string `json:"twitter"`
	Facebook       *string `json:"facebook"`
	LinkedIn       *string `json:"linkedin"`
	Instagram      *string `json:"instagram"`
}

func (r ProfileRequest) update() models.ProfileUpdate {
	status := strings.TrimSpace(r.Status)
	return models.ProfileUpdate{
		Status:         &status,
		Skills:         models.SplitSkills(r.Skills),
		Company:        r.Company,
		Website:        r.Website,
		Location:       r.Location,
		Bio:            r.Bio,
		GitHubUsername: r.GitHubUsername,
		YouTube:        r.YouTube,
		Twitter:        r.Twitter,
		Facebook:       r.Facebook,
		LinkedIn:       r.LinkedIn,
		Instagram:      r.Instagram,
	}
}

type ExperienceRequest struct {
	Title       string `json:"title" binding:"required"`
	Company     string `json:"company" binding:"required"`
	Location    string `json:"location"`
	From        string `json:"from" binding:"required"`
	To          string `json:"to"`
	Current     bool   `json:"current"`
	Description string `json:"description"`
}

type EducationRequest struct {
	School       string `json:"school" binding:"required"`
	Degree       string `json:"degree" binding:"required"`
	FieldOfStudy string `json:"fieldofstudy" binding:"required"`
	From         string `json:"from" binding:"required"`
	To           string `json:"to"`
	Current      bool   `json:"current"`
	Description  string `json:"description"`
}

func (h *Handler) MyProfile(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.profiles.FindByUser(ctx, id)
	if err != nil {
		respondProfileError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ListProfiles(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	profiles, err := h.profiles.List(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	if profiles == nil {
		profiles = []models.Profile{}
	}
	c.JSON(http.StatusOK, profiles)
}

func (h *Handler) ProfileByUser(c *gin.Context) {
	id, ok := idParam(c, "user_id", "Profile")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.profiles.FindByUser(ctx, id)
	if err != nil {
		respondProfileError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpsertProfile creates the caller's profile or updates the fields present
// in the request.
func (h *Handler) UpsertProfile(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	var req ProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	update := req.update()
	var missing []models.FieldError
	if *update.Status == "" {
		missing = append(missing, models.FieldError{Field: "status", Message: "status is required"})
	}
	if len(update.Skills) == 0 {
		missing = append(missing, models.FieldError{Field: "skills", Message: "skills is required"})
	}
	if len(missing) > 0 {
		respondError(c, models.NewValidationError(missing))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if _, err := h.profiles.Upsert(ctx, id, update); err != nil {
		respondError(c, err)
		return
	}
	p, err := h.profiles.FindByUser(ctx, id)
	if err != nil {
		respondProfileError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteAccount removes the caller's posts, profile, push subscription and user.
func (h *Handler) DeleteAccount(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.posts.DeleteByAuthor(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	if err := h.profiles.DeleteByUser(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	if h.subscriptions != nil {
		if err := h.subscriptions.DeleteByUser(ctx, id); err != nil {
			respondError(c, err)
			return
		}
	}
	if err := h.users.Delete(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	log := logutil.GetOrDefault(ctx)
	log.Info().Str("user_id", id.Hex()).Msg("Account deleted")
	message(c, http.StatusOK, "User deleted")
}

func (h *Handler) AddExperience(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	var req ExperienceRequest
	if !bindJSON(c, &req) {
		return
	}
	from, err := parseDate(req.From)
	if err != nil {
		respondError(c, invalidField("from", "from must be a date (YYYY-MM-DD)"))
		return
	}
	to, err := parseOptionalDate(req.To)
	if err != nil {
		respondError(c, invalidField("to", "to must be a date (YYYY-MM-DD)"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.profiles.FindByUser(ctx, id)
	if err != nil {
		respondProfileError(c, err)
		return
	}
	p.AddExperience(models.Experience{
		ID:          primitive.NewObjectID(),
		Title:       req.Title,
		Company:     req.Company,
		Location:    req.Location,
		From:        from,
		To:          to,
		Current:     req.Current,
		Description: req.Description,
	})
	if err := h.profiles.Replace(ctx, p); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) AddEducation(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	var req EducationRequest
	if !bindJSON(c, &req) {
		return
	}
	from, err := parseDate(req.From)
	if err != nil {
		respondError(c, invalidField("from", "from must be a date (YYYY-MM-DD)"))
		return
	}
	to, err := parseOptionalDate(req.To)
	if err != nil {
		respondError(c, invalidField("to", "to must be a date (YYYY-MM-DD)"))
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.profiles.FindByUser(ctx, id)
	if err != nil {
		respondProfileError(c, err)
		return
	}
	p.AddEducation(models.Education{
		ID:           primitive.NewObjectID(),
		School:       req.School,
		Degree:       req.Degree,
		FieldOfStudy: req.FieldOfStudy,
		From:         from,
		To:           to,
		Current:      req.Current,
		Description:  req.Description,
	})
	if err := h.profiles.Replace(ctx, p); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) DeleteExperience(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	expID, ok := idParam(c, "exp_id", "Experience")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.profiles.FindByUser(ctx, id)
	if err != nil {
		respondProfileError(c, err)
		return
	}
	if !p.RemoveExperience(expID) {
		respondError(c, models.NewNotFoundError("Experience"))
		return
	}
	if err := h.profiles.Replace(ctx, p); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) DeleteEducation(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		return
	}
	eduID, ok := idParam(c, "edu_id", "Education")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	p, err := h.profiles.FindByUser(ctx, id)
	if err != nil {
		respondProfileError(c, err)
		return
	}
	if !p.RemoveEducation(eduID) {
		respondError(c, models.NewNotFoundError("Education"))
		return
	}
	if err := h.profiles.Replace(ctx, p); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func respondProfileError(c *gin.Context, err error) {
	if errors.Is(err, database.ErrNotFound) {
		respondError(c, models.NewNotFoundError("Profile"))
		return
	}
	respondError(c, err)
}
