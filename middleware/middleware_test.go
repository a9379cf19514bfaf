package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"devconnector/auth"
	"devconnector/logutil"
	"devconnector/metrics"
	"devconnector/testutil"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func protectedRouter(t *testing.T, gate *AuthGate) *gin.Engine {
	t.Helper()
	r := gin.New()
	r.GET("/private", gate.Middleware(), func(c *gin.Context) {
		id, ok := CurrentUserID(c)
		require.True(t, ok)
		p, ok := auth.PrincipalFrom(c.Request.Context())
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": id, "principal": p.UserID})
	})
	return r
}

func TestAuthGate_Check(t *testing.T) {
	gate := NewAuthGate(testutil.NewVerifier(t), nil)
	token, err := testutil.NewIssuer(t).Issue("user-1")
	require.NoError(t, err)

	cases := []struct {
		name   string
		header map[string]string
		want   Decision
	}{
		{"x-auth-token", map[string]string{"x-auth-token": token}, Authorized{Principal: auth.Principal{UserID: "user-1"}}},
		{"bearer", map[string]string{"Authorization": "Bearer " + token}, Authorized{Principal: auth.Principal{UserID: "user-1"}}},
		{"missing", nil, Rejected{Reason: ReasonNoToken}},
		{"wrong scheme", map[string]string{"Authorization": "Basic " + token}, Rejected{Reason: ReasonNoToken}},
		{"tampered", map[string]string{"x-auth-token": testutil.Tamper(token)}, Rejected{Reason: ReasonInvalid}},
		{"garbage", map[string]string{"x-auth-token": "not-a-jwt"}, Rejected{Reason: ReasonInvalid}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, gate.Check(req))
		})
	}
}

func TestAuthGate_Expired(t *testing.T) {
	issuer := testutil.NewIssuer(t)
	token, err := issuer.Issue("user-1")
	require.NoError(t, err)

	// verify three days and a minute later
	verifier := auth.NewVerifier(&testutil.Key(t).PublicKey, testutil.Issuer, testutil.Audience)
	gate := NewAuthGate(fixedClock{verifier, time.Now().Add(auth.TokenLifetime + time.Minute)}, nil)

	assert.Equal(t, Rejected{Reason: ReasonExpired}, gate.CheckToken(token))
}

type fixedClock struct {
	v   *auth.Verifier
	now time.Time
}

func (f fixedClock) Verify(token string) (auth.Principal, error) {
	return f.v.VerifyAt(token, f.now)
}

func TestAuthGate_Middleware(t *testing.T) {
	gate := NewAuthGate(testutil.NewVerifier(t), nil)
	token, err := testutil.NewIssuer(t).Issue("user-1")
	require.NoError(t, err)

	t.Run("authorized", func(t *testing.T) {
		apitest.New().
			Handler(protectedRouter(t, gate)).
			Get("/private").
			Header("x-auth-token", token).
			Expect(t).
			Status(http.StatusOK).
			Assert(jsonpath.Equal("$.id", "user-1")).
			Assert(jsonpath.Equal("$.principal", "user-1")).
			End()
	})

	t.Run("no token", func(t *testing.T) {
		apitest.New().
			Handler(protectedRouter(t, gate)).
			Get("/private").
			Expect(t).
			Status(http.StatusUnauthorized).
			Assert(jsonpath.Equal("$.code", "UNAUTHORIZED")).
			Assert(jsonpath.Equal("$.message", "No token, authorization denied")).
			End()
	})

	t.Run("tampered", func(t *testing.T) {
		apitest.New().
			Handler(protectedRouter(t, gate)).
			Get("/private").
			Header("Authorization", "Bearer "+testutil.Tamper(token)).
			Expect(t).
			Status(http.StatusUnauthorized).
			Assert(jsonpath.Equal("$.message", "Token is not valid")).
			End()
	})
}

func TestAuthGate_CountsRejections(t *testing.T) {
	reg := prometheus.NewRegistry()
	gate := NewAuthGate(testutil.NewVerifier(t), metrics.NewCollector(reg))

	rec := httptest.NewRecorder()
	protectedRouter(t, gate).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() == "devconnector_auth_rejections_total" {
			found = true
			assert.Equal(t, 1.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}

func TestIPRateLimiter(t *testing.T) {
	rl := NewIPRateLimiter(2, time.Minute, nil)
	defer rl.Stop()

	r := gin.New()
	r.Use(rl.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do("10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, do("10.0.0.1").Code)
	limited := do("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), "RATE_LIMITED")

	assert.Equal(t, http.StatusNoContent, do("10.0.0.2").Code)
	assert.Equal(t, 2, rl.Len())
}

func TestIPRateLimiter_SweepsIdleBuckets(t *testing.T) {
	rl := NewIPRateLimiter(10, time.Minute, nil)
	defer rl.Stop()

	rl.Allow("10.0.0.1")
	rl.sweep(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, rl.Len())
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestLogger(logutil.New(&buf, "info", "json"), nil))
	r.GET("/ping", func(c *gin.Context) {
		log := logutil.GetOrDefault(c.Request.Context())
		log.Info().Msg("inside")
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	id := rec.Header().Get(RequestIDHeader)
	require.NotEmpty(t, id)
	assert.Contains(t, buf.String(), `"request_id":"`+id+`"`)
	assert.Contains(t, buf.String(), `"message":"inside"`)
	assert.Contains(t, buf.String(), `"status":200`)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	apitest.New().
		Handler(r).
		Get("/boom").
		Expect(t).
		Status(http.StatusInternalServerError).
		Assert(jsonpath.Equal("$.code", "INTERNAL_ERROR")).
		End()
}

func TestRequestLogger_WrapsRecovery(t *testing.T) {
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestLogger(logutil.New(&buf, "info", "json"), nil))
	r.Use(Recovery())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	id := rec.Header().Get(RequestIDHeader)
	require.NotEmpty(t, id)
	out := buf.String()
	assert.Contains(t, out, `"message":"Panic recovered"`)
	assert.Contains(t, out, `"message":"http_request"`)
	assert.Contains(t, out, `"status":500`)
	assert.Contains(t, out, `"request_id":"`+id+`"`)
}
