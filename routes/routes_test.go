package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"devconnector/auth"
	"devconnector/github"
	"devconnector/handlers"
	"devconnector/middleware"
	"devconnector/models"
	"devconnector/testutil"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type eventLog struct {
	mu     sync.Mutex
	events []models.PostEvent
}

func (l *eventLog) Notify(_ context.Context, ev models.PostEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) last() models.PostEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return models.PostEvent{}
	}
	return l.events[len(l.events)-1]
}

type env struct {
	t      *testing.T
	stores *testutil.Stores
	events *eventLog
	router http.Handler
}

type envOption func(*handlers.Deps, *Options)

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()
	stores := testutil.NewStores()
	events := &eventLog{}

	deps := handlers.Deps{
		Users:          stores.Users(),
		Profiles:       stores.Profiles(),
		Posts:          stores.Posts(),
		Subscriptions:  stores.Subscriptions(),
		Hasher:         auth.NewHasher(bcrypt.MinCost),
		Issuer:         testutil.NewIssuer(t),
		GitHub:         github.NewClient(github.Options{BaseURL: "http://127.0.0.1:1"}, nil, zerolog.Nop()),
		Notifier:       events,
		VAPIDPublicKey: "BPublicKey",
	}
	o := Options{
		Gate:   middleware.NewAuthGate(testutil.NewVerifier(t), nil),
		Logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&deps, &o)
	}
	o.Handler = handlers.New(deps)

	return &env{t: t, stores: stores, events: events, router: SetupRouter(o)}
}

func (e *env) api() *apitest.APITest {
	return apitest.New().Handler(e.router)
}

// do sends a JSON request and decodes the JSON response into out when non-nil.
func (e *env) do(method, path, token string, body interface{}, out interface{}) int {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("x-auth-token", token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (e *env) register(name, email string) (token string, id string) {
	e.t.Helper()
	var resp handlers.TokenResponse
	code := e.do(http.MethodPost, "/api/users", "", map[string]string{
		"name": name, "email": email, "password": "secret123",
	}, &resp)
	require.Equal(e.t, http.StatusCreated, code)
	require.NotEmpty(e.t, resp.Token)

	var me models.User
	require.Equal(e.t, http.StatusOK, e.do(http.MethodGet, "/api/auth", resp.Token, nil, &me))
	return resp.Token, me.ID.Hex()
}

func TestRegister_ThenCurrentUser_ThenTamperedToken(t *testing.T) {
	e := newEnv(t)
	token, _ := e.register("Ada Lovelace", "Ada@Example.com ")

	e.api().
		Get("/api/auth").
		Header("x-auth-token", token).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.name", "Ada Lovelace")).
		Assert(jsonpath.Equal("$.email", "ada@example.com")).
		Assert(jsonpath.Present("$.avatar")).
		Assert(jsonpath.NotPresent("$.password")).
		End()

	e.api().
		Get("/api/auth").
		Header("Authorization", "Bearer "+token).
		Expect(t).
		Status(http.StatusOK).
		End()

	e.api().
		Get("/api/auth").
		Header("x-auth-token", testutil.Tamper(token)).
		Expect(t).
		Status(http.StatusUnauthorized).
		Assert(jsonpath.Equal("$.message", "Token is not valid")).
		End()
}

func TestRegister_StoresHashNotPlaintext(t *testing.T) {
	e := newEnv(t)
	e.register("Ada", "ada@example.com")

	u, err := e.stores.Users().FindByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", u.Password)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("secret123")))
}

func TestRegister_ValidationListsEveryField(t *testing.T) {
	e := newEnv(t)
	e.api().
		Post("/api/users").
		JSON(`{"email":"not-an-email","password":"123"}`).
		Expect(t).
		Status(http.StatusUnprocessableEntity).
		Assert(jsonpath.Equal("$.code", "VALIDATION_FAILED")).
		Assert(jsonpath.Len("$.errors", 3)).
		Assert(jsonpath.Contains("$.errors[*].field", "name")).
		Assert(jsonpath.Contains("$.errors[*].field", "email")).
		Assert(jsonpath.Contains("$.errors[*].field", "password")).
		End()
}

func TestRegister_DuplicateEmail(t *testing.T) {
	e := newEnv(t)
	e.register("Ada", "ada@example.com")

	e.api().
		Post("/api/users").
		JSON(`{"name":"Imposter","email":"ADA@example.com","password":"secret123"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(jsonpath.Equal("$.code", "USER_EXISTS")).
		End()
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	e.register("Ada", "ada@example.com")

	e.api().
		Post("/api/auth").
		JSON(`{"email":"ada@example.com","password":"secret123"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Present("$.token")).
		End()
}

func TestRegisterAndLogin_TrimEmailBeforeValidating(t *testing.T) {
	e := newEnv(t)
	e.register("Bea", " b@x.com")

	e.api().
		Post("/api/auth").
		JSON(`{"email":"  B@X.com  ","password":"secret123"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Present("$.token")).
		End()

	e.api().
		Post("/api/users").
		JSON(`{"name":"Bea","email":"b@x.com ","password":"secret123"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(jsonpath.Equal("$.code", "USER_EXISTS")).
		End()
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	e := newEnv(t)
	e.register("Ada", "ada@example.com")

	send := func(email, password string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(map[string]string{"email": email, "password": password})
		req := httptest.NewRequest(http.MethodPost, "/api/auth", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)
		return rec
	}

	unknown := send("nobody@example.com", "secret123")
	wrong := send("ada@example.com", "wrong-password")

	assert.Equal(t, http.StatusBadRequest, unknown.Code)
	assert.Equal(t, unknown.Code, wrong.Code)
	assert.JSONEq(t, unknown.Body.String(), wrong.Body.String())
	assert.Contains(t, unknown.Body.String(), "INVALID_CREDENTIALS")
}

func TestProtectedRoute_NoToken(t *testing.T) {
	e := newEnv(t)
	e.api().
		Get("/api/profile/me").
		Expect(t).
		Status(http.StatusUnauthorized).
		Assert(jsonpath.Equal("$.message", "No token, authorization denied")).
		End()
}

func TestProfileLifecycle(t *testing.T) {
	e := newEnv(t)
	token, userID := e.register("Ada", "ada@example.com")

	e.api().
		Get("/api/profile/me").
		Header("x-auth-token", token).
		Expect(t).
		Status(http.StatusNotFound).
		End()

	e.api().
		Post("/api/profile").
		Header("x-auth-token", token).
		JSON(`{"company":"Analytical Engines"}`).
		Expect(t).
		Status(http.StatusUnprocessableEntity).
		Assert(jsonpath.Len("$.errors", 2)).
		End()

	e.api().
		Post("/api/profile").
		Header("x-auth-token", token).
		JSON(`{"status":"Developer","skills":"go, mongo ,,react","twitter":"https://twitter.com/ada"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.status", "Developer")).
		Assert(jsonpath.Len("$.skills", 3)).
		Assert(jsonpath.Equal("$.skills[1]", "mongo")).
		Assert(jsonpath.Equal("$.social.twitter", "https://twitter.com/ada")).
		Assert(jsonpath.Equal("$.user.name", "Ada")).
		End()

	// sparse update keeps untouched fields
	e.api().
		Post("/api/profile").
		Header("x-auth-token", token).
		JSON(`{"status":"Lead","skills":"go"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.status", "Lead")).
		Assert(jsonpath.Equal("$.social.twitter", "https://twitter.com/ada")).
		End()

	e.api().
		Get("/api/profile").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$", 1)).
		Assert(jsonpath.Equal("$[0].user.name", "Ada")).
		End()

	e.api().
		Get("/api/profile/user/" + userID).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.status", "Lead")).
		End()

	e.api().
		Get("/api/profile/user/not-an-id").
		Expect(t).
		Status(http.StatusNotFound).
		End()
}

func TestExperienceAndEducation(t *testing.T) {
	e := newEnv(t)
	token, _ := e.register("Ada", "ada@example.com")

	// sub-resources need an existing profile
	e.api().
		Put("/api/profile/experience").
		Header("x-auth-token", token).
		JSON(`{"title":"Engineer","company":"Acme","from":"2020-01-01"}`).
		Expect(t).
		Status(http.StatusNotFound).
		End()

	require.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/profile", token,
		map[string]string{"status": "Developer", "skills": "go"}, nil))

	var p models.Profile
	require.Equal(t, http.StatusOK, e.do(http.MethodPut, "/api/profile/experience", token,
		map[string]interface{}{"title": "Engineer", "company": "Acme", "from": "2020-01-01", "current": true}, &p))
	require.Equal(t, http.StatusOK, e.do(http.MethodPut, "/api/profile/experience", token,
		map[string]interface{}{"title": "Lead", "company": "Acme", "from": "2022-03-01T00:00:00Z"}, &p))
	require.Len(t, p.Experience, 2)
	assert.Equal(t, "Lead", p.Experience[0].Title)
	newest := p.Experience[0].ID.Hex()

	e.api().
		Put("/api/profile/experience").
		Header("x-auth-token", token).
		JSON(`{"title":"Engineer","company":"Acme","from":"yesterday"}`).
		Expect(t).
		Status(http.StatusUnprocessableEntity).
		Assert(jsonpath.Equal("$.errors[0].field", "from")).
		End()

	e.api().
		Delete("/api/profile/experience/" + newest).
		Header("x-auth-token", token).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$.experience", 1)).
		Assert(jsonpath.Equal("$.experience[0].title", "Engineer")).
		End()

	e.api().
		Delete("/api/profile/experience/" + newest).
		Header("x-auth-token", token).
		Expect(t).
		Status(http.StatusNotFound).
		End()

	e.api().
		Put("/api/profile/education").
		Header("x-auth-token", token).
		JSON(`{"school":"Cambridge","degree":"BSc"}`).
		Expect(t).
		Status(http.StatusUnprocessableEntity).
		Assert(jsonpath.Len("$.errors", 2)).
		End()

	require.Equal(t, http.StatusOK, e.do(http.MethodPut, "/api/profile/education", token,
		map[string]interface{}{"school": "Cambridge", "degree": "BSc", "fieldofstudy": "Maths", "from": "2010-09-01"}, &p))
	require.Len(t, p.Education, 1)

	e.api().
		Delete("/api/profile/education/" + p.Education[0].ID.Hex()).
		Header("x-auth-token", token).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$.education", 0)).
		End()
}

func TestPosts_LikeUnlike(t *testing.T) {
	e := newEnv(t)
	author, authorID := e.register("Ada", "ada@example.com")
	fan, _ := e.register("Grace", "grace@example.com")

	var post models.Post
	require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/api/posts/me", author,
		map[string]string{"text": "<b>Hello</b> world"}, &post))
	assert.Equal(t, "Hello world", post.Text)
	assert.Equal(t, "Ada", post.Name)
	postID := post.ID.Hex()

	e.api().
		Put("/api/posts/like/"+postID).
		Header("x-auth-token", fan).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$", 1)).
		End()

	ev := e.events.last()
	assert.Equal(t, models.EventPostLiked, ev.Type)
	assert.Equal(t, authorID, ev.RecipientID)
	assert.Equal(t, "Grace", ev.ActorName)

	e.api().
		Put("/api/posts/like/"+postID).
		Header("x-auth-token", fan).
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(jsonpath.Equal("$.code", "ALREADY_LIKED")).
		End()

	e.api().
		Put("/api/posts/unlike/"+postID).
		Header("x-auth-token", author).
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(jsonpath.Equal("$.code", "NOT_LIKED")).
		End()

	e.api().
		Put("/api/posts/unlike/"+postID).
		Header("x-auth-token", fan).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$", 0)).
		End()
}

func TestPosts_CommentAuthorship(t *testing.T) {
	e := newEnv(t)
	author, _ := e.register("Ada", "ada@example.com")
	commenter, _ := e.register("Grace", "grace@example.com")

	var post models.Post
	require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/api/posts/me", author,
		map[string]string{"text": "Hello"}, &post))
	postID := post.ID.Hex()

	var comments []models.Comment
	require.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/posts/comment/"+postID, commenter,
		map[string]string{"text": "Nice"}, &comments))
	require.Len(t, comments, 1)
	commentPath := "/api/posts/comment/" + postID + "/" + comments[0].ID.Hex()

	e.api().
		Delete(commentPath).
		Header("x-auth-token", author).
		Expect(t).
		Status(http.StatusForbidden).
		End()

	e.api().
		Get("/api/posts/" + postID).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$.comments", 1)).
		Assert(jsonpath.Equal("$.comments[0].text", "Nice")).
		End()

	e.api().
		Delete(commentPath).
		Header("x-auth-token", commenter).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$", 0)).
		End()

	e.api().
		Delete(commentPath).
		Header("x-auth-token", commenter).
		Expect(t).
		Status(http.StatusNotFound).
		End()

	e.api().
		Post("/api/posts/comment/"+postID).
		Header("x-auth-token", commenter).
		JSON(`{"text":"<script></script>"}`).
		Expect(t).
		Status(http.StatusUnprocessableEntity).
		End()
}

func TestPosts_DeleteOnlyByAuthor(t *testing.T) {
	e := newEnv(t)
	author, _ := e.register("Ada", "ada@example.com")
	other, _ := e.register("Grace", "grace@example.com")

	var post models.Post
	require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/api/posts/me", author,
		map[string]string{"text": "Hello"}, &post))
	postID := post.ID.Hex()

	e.api().Delete("/api/posts/"+postID).Header("x-auth-token", other).
		Expect(t).Status(http.StatusForbidden).End()

	e.api().Get("/api/posts/me").Header("x-auth-token", author).
		Expect(t).Status(http.StatusOK).Assert(jsonpath.Len("$", 1)).End()

	e.api().Delete("/api/posts/"+postID).Header("x-auth-token", author).
		Expect(t).Status(http.StatusOK).Assert(jsonpath.Equal("$.msg", "Post removed")).End()

	e.api().Get("/api/posts/" + postID).
		Expect(t).Status(http.StatusNotFound).End()

	e.api().Get("/api/posts").
		Expect(t).Status(http.StatusOK).Assert(jsonpath.Len("$", 0)).End()
}

func TestDeleteAccount(t *testing.T) {
	e := newEnv(t)
	token, userID := e.register("Ada", "ada@example.com")
	require.Equal(t, http.StatusOK, e.do(http.MethodPost, "/api/profile", token,
		map[string]string{"status": "Developer", "skills": "go"}, nil))
	require.Equal(t, http.StatusCreated, e.do(http.MethodPost, "/api/posts/me", token,
		map[string]string{"text": "Hello"}, nil))

	e.api().Delete("/api/profile").Header("x-auth-token", token).
		Expect(t).Status(http.StatusOK).End()

	e.api().Get("/api/profile/user/" + userID).
		Expect(t).Status(http.StatusNotFound).End()
	e.api().Get("/api/posts").
		Expect(t).Status(http.StatusOK).Assert(jsonpath.Len("$", 0)).End()
	e.api().Get("/api/auth").Header("x-auth-token", token).
		Expect(t).Status(http.StatusNotFound).End()
}

func TestGitHubRepos(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/octocat/repos" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[{"id":1,"name":"hello-world"}]`))
	}))
	defer upstream.Close()

	e := newEnv(t, func(d *handlers.Deps, _ *Options) {
		d.GitHub = github.NewClient(github.Options{BaseURL: upstream.URL}, nil, zerolog.Nop())
	})

	e.api().Get("/api/profile/github/octocat").
		Expect(t).Status(http.StatusOK).
		Assert(jsonpath.Equal("$[0].name", "hello-world")).End()

	e.api().Get("/api/profile/github/nobody").
		Expect(t).Status(http.StatusNotFound).End()
}

func TestGitHubRepos_Unreachable(t *testing.T) {
	e := newEnv(t)
	e.api().Get("/api/profile/github/octocat").
		Expect(t).Status(http.StatusBadRequest).
		Assert(jsonpath.Equal("$.code", "UPSTREAM_FAILED")).End()
}

func TestPushSubscription(t *testing.T) {
	e := newEnv(t)
	token, userID := e.register("Ada", "ada@example.com")

	e.api().Get("/api/notifications/vapid-public-key").
		Expect(t).Status(http.StatusOK).
		Assert(jsonpath.Equal("$.publicKey", "BPublicKey")).End()

	e.api().Post("/api/notifications/subscribe").Header("x-auth-token", token).
		JSON(`{"endpoint":"https://push.example.com/abc"}`).
		Expect(t).Status(http.StatusUnprocessableEntity).End()

	e.api().Post("/api/notifications/subscribe").Header("x-auth-token", token).
		JSON(`{"endpoint":"https://push.example.com/abc","keys":{"p256dh":"k","auth":"a"}}`).
		Expect(t).Status(http.StatusCreated).End()

	id, err := primitive.ObjectIDFromHex(userID)
	require.NoError(t, err)
	sub, err := e.stores.Subscriptions().FindByUser(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "https://push.example.com/abc", sub.Endpoint)
}

func TestAuthRateLimit(t *testing.T) {
	limiter := middleware.NewIPRateLimiter(2, 0, nil)
	defer limiter.Stop()
	e := newEnv(t, func(_ *handlers.Deps, o *Options) {
		o.AuthLimiter = limiter
	})

	for i := 0; i < 2; i++ {
		e.api().Post("/api/auth").
			JSON(`{"email":"nobody@example.com","password":"x"}`).
			Expect(t).Status(http.StatusBadRequest).End()
	}
	e.api().Post("/api/auth").
		JSON(`{"email":"nobody@example.com","password":"x"}`).
		Expect(t).Status(http.StatusTooManyRequests).
		Assert(jsonpath.Equal("$.code", "RATE_LIMITED")).End()

	// other routes are not limited by the credentials limiter
	e.api().Get("/api/posts").Expect(t).Status(http.StatusOK).End()
}

func TestOperationalRoutes(t *testing.T) {
	e := newEnv(t)
	e.api().Get("/health").Expect(t).Status(http.StatusOK).End()
	e.api().Get("/api/health").Expect(t).Status(http.StatusOK).End()
	e.api().Get("/api/nope").Expect(t).Status(http.StatusNotFound).
		Assert(jsonpath.Equal("$.code", "NOT_FOUND")).End()
}

func TestRouter_LogsPanickingRequests(t *testing.T) {
	var buf bytes.Buffer
	router := SetupRouter(Options{
		Handler: handlers.New(handlers.Deps{}),
		Gate:    middleware.NewAuthGate(testutil.NewVerifier(t), nil),
		Logger:  zerolog.New(&buf),
	})
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, buf.String(), `"message":"http_request"`)
	assert.Contains(t, buf.String(), `"status":500`)
}
