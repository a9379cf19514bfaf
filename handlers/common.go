package handlers

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"devconnector/logutil"
	"devconnector/middleware"
	"devconnector/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const requestTimeout = 10 * time.Second

func init() {
	// report json names, not Go field names, in validation errors
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	}
}

func requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

// respondError writes err as an APIError body. Anything that is not already
// an APIError is logged and reported as a generic 500.
func respondError(c *gin.Context, err error) {
	var apiErr *models.APIError
	if !errors.As(err, &apiErr) {
		log := logutil.GetOrDefault(c.Request.Context())
		log.Error().Err(err).Msg("Request failed")
		apiErr = models.NewInternalError()
	}
	c.AbortWithStatusJSON(apiErr.Status, apiErr)
}

// bindJSON decodes and validates the body into dst, writing a 422 on failure.
func bindJSON(c *gin.Context, dst interface{}) bool {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]models.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, models.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
		respondError(c, models.NewValidationError(fields))
		return false
	}
	respondError(c, models.NewValidationError([]models.FieldError{
		{Field: "body", Message: "Request body must be valid JSON"},
	}))
	return false
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "Please include a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func invalidField(field, message string) *models.APIError {
	return models.NewValidationError([]models.FieldError{{Field: field, Message: message}})
}

// callerID returns the authenticated user's id, writing a 401 if the gate
// left none.
func callerID(c *gin.Context) (primitive.ObjectID, bool) {
	raw, ok := middleware.CurrentUserID(c)
	if !ok {
		respondError(c, models.NewUnauthorizedError("No token, authorization denied"))
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		respondError(c, models.NewUnauthorizedError("Token is not valid"))
		return primitive.NilObjectID, false
	}
	return id, true
}

// idParam parses a path parameter as an ObjectID. A malformed id answers 404
// for what.
func idParam(c *gin.Context, name, what string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		respondError(c, models.NewNotFoundError(what))
		return primitive.NilObjectID, false
	}
	return id, true
}

var dateLayouts = []string{"2006-01-02", time.RFC3339}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// parseOptionalDate returns nil for an empty string.
func parseOptionalDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := parseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func message(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"msg": msg})
}
