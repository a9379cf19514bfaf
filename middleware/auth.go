package middleware

import (
	"errors"
	"net/http"
	"strings"

	"devconnector/auth"
	"devconnector/logutil"
	"devconnector/metrics"
	"devconnector/models"

	"github.com/gin-gonic/gin"
)

// UserIDKey is the gin context key holding the authenticated user's id.
const UserIDKey = "userId"

const tokenHeader = "x-auth-token"

// Reason says why the gate turned a request away.
type Reason int

const (
	ReasonNoToken Reason = iota + 1
	ReasonInvalid
	ReasonExpired
)

func (r Reason) String() string {
	switch r {
	case ReasonNoToken:
		return "no_token"
	case ReasonExpired:
		return "expired"
	default:
		return "invalid"
	}
}

// Message is the client-facing text for the rejection.
func (r Reason) Message() string {
	switch r {
	case ReasonNoToken:
		return "No token, authorization denied"
	case ReasonExpired:
		return "Token has expired"
	default:
		return "Token is not valid"
	}
}

// Decision is either Authorized or Rejected.
type Decision interface {
	decision()
}

type Authorized struct {
	Principal auth.Principal
}

type Rejected struct {
	Reason Reason
}

func (Authorized) decision() {}
func (Rejected) decision()   {}

type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// AuthGate admits a request only when it carries a valid access token.
type AuthGate struct {
	verifier TokenVerifier
	metrics  metrics.Recorder
}

func NewAuthGate(verifier TokenVerifier, rec metrics.Recorder) *AuthGate {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &AuthGate{verifier: verifier, metrics: rec}
}

// Check inspects the request's token without touching the response.
func (g *AuthGate) Check(r *http.Request) Decision {
	return g.CheckToken(TokenFromRequest(r))
}

func (g *AuthGate) CheckToken(token string) Decision {
	if token == "" {
		return Rejected{Reason: ReasonNoToken}
	}
	p, err := g.verifier.Verify(token)
	switch {
	case err == nil:
		return Authorized{Principal: p}
	case errors.Is(err, auth.ErrTokenExpired):
		return Rejected{Reason: ReasonExpired}
	default:
		return Rejected{Reason: ReasonInvalid}
	}
}

// Middleware runs Check and aborts with 401 on rejection. The handler chain
// never sees a request the gate did not authorize.
func (g *AuthGate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// CORS preflight carries no credentials
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		switch d := g.Check(c.Request).(type) {
		case Authorized:
			c.Set(UserIDKey, d.Principal.UserID)
			ctx := auth.WithPrincipal(c.Request.Context(), d.Principal)
			logger := logutil.GetOrDefault(ctx).With().Str("user_id", d.Principal.UserID).Logger()
			c.Request = c.Request.WithContext(logutil.WithLogger(ctx, logger))
			c.Next()
		case Rejected:
			g.metrics.RecordAuthRejection(d.Reason.String())
			log := logutil.GetOrDefault(c.Request.Context())
			log.Debug().
				Str("reason", d.Reason.String()).
				Msg("Request rejected by auth gate")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewUnauthorizedError(d.Reason.Message()))
		default:
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewUnauthorizedError(ReasonInvalid.Message()))
		}
	}
}

// TokenFromRequest reads the x-auth-token header, falling back to
// "Authorization: Bearer <token>".
func TokenFromRequest(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get(tokenHeader)); t != "" {
		return t
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// CurrentUserID returns the id stored by the gate.
func CurrentUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(UserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
