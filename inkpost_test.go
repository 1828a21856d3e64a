package inkpost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/inkpost/logger"
	"github.com/eringen/inkpost/model"
)

type testApp struct {
	*App
	uploadDir string
}

func newTestApp(t *testing.T, opts ...Option) *testApp {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		BcryptCost: 4,
		Database:   Database{Path: filepath.Join(dir, "blog.db")},
		JWT:        JWT{Secret: "test-secret"},
		Uploads:    Uploads{Backend: "local", Dir: filepath.Join(dir, "uploads")},
	}
	app := New(cfg, append([]Option{WithLogger(logger.Nop())}, opts...)...)
	require.NoError(t, app.Setup(context.Background()))
	t.Cleanup(func() { app.Close() })
	return &testApp{App: app, uploadDir: cfg.Uploads.Dir}
}

type response struct {
	Success     bool            `json:"success"`
	Message     string          `json:"message"`
	Data        json.RawMessage `json:"data"`
	TokenType   string          `json:"token_type"`
	AccessToken string          `json:"access_token"`
}

func (a *testApp) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, response) {
	t.Helper()
	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, req)
	var resp response
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	}
	return rec, resp
}

func jsonRequest(t *testing.T, method, path, token string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func multipartRequest(t *testing.T, method, path, token string, fields map[string]string, filename string, file []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		fw, err := w.CreateFormFile("image", filename)
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

// login registers a user and returns its bearer token.
func (a *testApp) login(t *testing.T, email string) string {
	t.Helper()
	rec, _ := a.do(t, jsonRequest(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ann", "email": email, "password": "secret1",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, resp := a.do(t, jsonRequest(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": "secret1",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func (a *testApp) createPost(t *testing.T, token string, body map[string]any) model.Post {
	t.Helper()
	rec, resp := a.do(t, jsonRequest(t, http.MethodPost, "/api/posts", token, body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var post model.Post
	require.NoError(t, json.Unmarshal(resp.Data, &post))
	return post
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRegisterAndLogin(t *testing.T) {
	a := newTestApp(t)

	rec, resp := a.do(t, jsonRequest(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ann", "email": "ann@example.com", "password": "secret1",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "Register success", resp.Message)
	assert.NotContains(t, string(resp.Data), "password")

	var user model.PublicUser
	require.NoError(t, json.Unmarshal(resp.Data, &user))
	assert.Equal(t, "ann@example.com", user.Email)
	assert.NotZero(t, user.ID)

	rec, resp = a.do(t, jsonRequest(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ann@example.com", "password": "secret1",
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Login success", resp.Message)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.NotEmpty(t, resp.AccessToken)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == authCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, resp.AccessToken, cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 7*24*3600, cookie.MaxAge)

	claims := &jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(resp.AccessToken, claims)
	require.NoError(t, err)
	require.NotNil(t, claims.ExpiresAt)
	require.NotNil(t, claims.IssuedAt)
	assert.Equal(t, time.Duration(cookie.MaxAge)*time.Second, claims.ExpiresAt.Sub(claims.IssuedAt.Time))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	a := newTestApp(t)
	a.login(t, "ann@example.com")

	rec, resp := a.do(t, jsonRequest(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Other", "email": "ann@example.com", "password": "secret2",
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "Email already registered", resp.Message)
}

func TestRegisterValidation(t *testing.T) {
	a := newTestApp(t)

	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{"missing name", map[string]string{"email": "a@example.com", "password": "secret1"}, "Name must be between 1 and 100 characters"},
		{"bad email", map[string]string{"name": "A", "email": "nope", "password": "secret1"}, "Email must be a valid email address"},
		{"short password", map[string]string{"name": "A", "email": "a@example.com", "password": "12345"}, "Password must be between 6 and 72 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := a.do(t, jsonRequest(t, http.MethodPost, "/api/auth/register", "", tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, resp.Message)
		})
	}
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	a := newTestApp(t)
	a.login(t, "ann@example.com")

	wrongPass, _ := a.do(t, jsonRequest(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ann@example.com", "password": "wrong-password",
	}))
	unknown, _ := a.do(t, jsonRequest(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "secret1",
	}))

	assert.Equal(t, http.StatusBadRequest, wrongPass.Code)
	assert.Equal(t, wrongPass.Code, unknown.Code)
	assert.JSONEq(t, wrongPass.Body.String(), unknown.Body.String())
	assert.Contains(t, wrongPass.Body.String(), "Email or Password is incorrect")
	assert.Empty(t, wrongPass.Result().Cookies())
}

func TestSessionRequired(t *testing.T) {
	a := newTestApp(t)

	for _, token := range []string{"", "not-a-jwt"} {
		rec, resp := a.do(t, jsonRequest(t, http.MethodGet, "/api/posts", token, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.False(t, resp.Success)
		assert.Equal(t, "Unauthorized", resp.Message)
	}
}

func TestSessionFromCookie(t *testing.T) {
	a := newTestApp(t)
	token := a.login(t, "ann@example.com")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: authCookieName, Value: token})
	rec, resp := a.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var user model.PublicUser
	require.NoError(t, json.Unmarshal(resp.Data, &user))
	assert.Equal(t, "ann@example.com", user.Email)
}

func TestLogoutClearsCookie(t *testing.T) {
	a := newTestApp(t)
	token := a.login(t, "ann@example.com")

	rec, resp := a.do(t, jsonRequest(t, http.MethodPost, "/api/auth/logout", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, authCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestPostTitleBoundaries(t *testing.T) {
	a := newTestApp(t)
	token := a.login(t, "ann@example.com")

	tests := []struct {
		length int
		want   int
	}{
		{2, http.StatusBadRequest},
		{3, http.StatusOK},
		{100, http.StatusOK},
		{101, http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec, resp := a.do(t, jsonRequest(t, http.MethodPost, "/api/posts", token, map[string]any{
			"title": strings.Repeat("t", tt.length), "content": "body",
		}))
		assert.Equal(t, tt.want, rec.Code, "title length %d", tt.length)
		if tt.want == http.StatusBadRequest {
			assert.Equal(t, "Title must be between 3 and 100 characters", resp.Message)
		}
	}
}

func TestCreatePostRequiresContent(t *testing.T) {
	a := newTestApp(t)
	token := a.login(t, "ann@example.com")

	rec, resp := a.do(t, jsonRequest(t, http.MethodPost, "/api/posts", token, map[string]any{"title": "Hello"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Content must be between 3 and 1000 characters", resp.Message)
}

func TestPostLifecycle(t *testing.T) {
	a := newTestApp(t)
	token := a.login(t, "ann@example.com")

	created := a.createPost(t, token, map[string]any{
		"title": "First post", "content": "Hello world", "category_id": 1, "published": true,
	})
	assert.NotZero(t, created.ID)
	assert.True(t, created.Published)
	require.NotNil(t, created.CategoryID)
	assert.EqualValues(t, 1, *created.CategoryID)

	rec, resp := a.do(t, jsonRequest(t, http.MethodGet, "/api/posts", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "List Data Posts!", resp.Message)
	var list []model.Post
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	require.Len(t, list, 1)
	require.NotNil(t, list[0].User)
	assert.Equal(t, "ann@example.com", list[0].User.Email)
	require.NotNil(t, list[0].Category)
	assert.Equal(t, "General", list[0].Category.Name)

	rec, resp = a.do(t, jsonRequest(t, http.MethodPatch, "/api/posts/"+itoa(created.ID), token, map[string]any{
		"title": "Renamed", "published": false,
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Update Data Post!", resp.Message)
	var updated model.Post
	require.NoError(t, json.Unmarshal(resp.Data, &updated))
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, "Hello world", updated.Content)
	assert.False(t, updated.Published)

	rec, resp = a.do(t, jsonRequest(t, http.MethodGet, "/api/posts/"+itoa(created.ID), token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Get Data Post!", resp.Message)

	rec, resp = a.do(t, jsonRequest(t, http.MethodDelete, "/api/posts/"+itoa(created.ID), token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Delete Data Post!", resp.Message)
	var deleted model.Post
	require.NoError(t, json.Unmarshal(resp.Data, &deleted))
	assert.Equal(t, created.ID, deleted.ID)

	rec, resp = a.do(t, jsonRequest(t, http.MethodGet, "/api/posts/"+itoa(created.ID), token, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Data not found!", resp.Message)
}

func TestPostsAreOwnerScoped(t *testing.T) {
	a := newTestApp(t)
	ann := a.login(t, "ann@example.com")
	bob := a.login(t, "bob@example.com")

	post := a.createPost(t, ann, map[string]any{"title": "Private", "content": "Ann only"})
	path := "/api/posts/" + itoa(post.ID)

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec, resp := a.do(t, jsonRequest(t, method, path, bob, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, method)
		assert.Equal(t, "Data not found!", resp.Message, method)
	}
	rec, _ := a.do(t, jsonRequest(t, http.MethodPatch, path, bob, map[string]any{"title": "Stolen"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp := a.do(t, jsonRequest(t, http.MethodGet, "/api/posts", bob, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(resp.Data))

	rec, _ = a.do(t, jsonRequest(t, http.MethodGet, path, ann, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownCategoryRejected(t *testing.T) {
	a := newTestApp(t)
	token := a.login(t, "ann@example.com")

	rec, resp := a.do(t, multipartRequest(t, http.MethodPost, "/api/posts", token,
		map[string]string{"title": "Hello", "content": "World", "category_id": "999"},
		"pic.png", pngBytes(t)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Category not found", resp.Message)

	entries, err := os.ReadDir(a.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreatePostWithImageAndServeIt(t *testing.T) {
	a := newTestApp(t)
	token := a.login(t, "ann@example.com")
	data := pngBytes(t)

	rec, resp := a.do(t, multipartRequest(t, http.MethodPost, "/api/posts", token,
		map[string]string{"title": "Photo", "content": "With a picture", "published": "true"},
		"My Photo.png", data))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Create Data Post!", resp.Message)

	var post model.Post
	require.NoError(t, json.Unmarshal(resp.Data, &post))
	assert.True(t, post.Published)
	require.True(t, strings.HasPrefix(post.Image, "/uploads/"), post.Image)
	assert.True(t, strings.HasSuffix(post.Image, "-my-photo.png"), post.Image)

	rec = httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, post.Image, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, data, rec.Body.Bytes())
}

func TestCreatePostRejectsNonImage(t *testing.T) {
	a := newTestApp(t)
	token := a.login(t, "ann@example.com")

	rec, resp := a.do(t, multipartRequest(t, http.MethodPost, "/api/posts", token,
		map[string]string{"title": "Hello", "content": "World"},
		"notes.png", []byte("just some text, not an image")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Image must be a jpeg, png or gif file", resp.Message)

	entries, err := os.ReadDir(a.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpdatePostBadPublishedValue(t *testing.T) {
	a := newTestApp(t)
	token := a.login(t, "ann@example.com")
	post := a.createPost(t, token, map[string]any{"title": "Hello", "content": "World"})

	rec, resp := a.do(t, multipartRequest(t, http.MethodPatch, "/api/posts/"+itoa(post.ID), token,
		map[string]string{"published": "maybe"}, "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Published must be true or false", resp.Message)
}

func TestNonNumericPostIDIsNotFound(t *testing.T) {
	a := newTestApp(t)
	token := a.login(t, "ann@example.com")

	rec, resp := a.do(t, jsonRequest(t, http.MethodGet, "/api/posts/abc", token, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Data not found!", resp.Message)
}

func TestServeMissingUpload(t *testing.T) {
	a := newTestApp(t)

	rec := httptest.NewRecorder()
	a.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "File not found", rec.Body.String())
}

func TestListCategories(t *testing.T) {
	a := newTestApp(t)
	token := a.login(t, "ann@example.com")

	rec, resp := a.do(t, jsonRequest(t, http.MethodGet, "/api/categories", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "List Data Categories!", resp.Message)

	var categories []model.Category
	require.NoError(t, json.Unmarshal(resp.Data, &categories))
	require.Len(t, categories, 3)
	assert.Equal(t, "General", categories[0].Name)
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)

	rec, resp := a.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

type brokenStorage struct{}

func (brokenStorage) Upload(context.Context, string, io.Reader) error {
	return errors.New("disk full")
}

func (brokenStorage) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("disk gone")
}

func (brokenStorage) Delete(context.Context, string) error { return nil }

func TestStorageFailureIsInternal(t *testing.T) {
	a := newTestApp(t, WithStorage(brokenStorage{}))
	token := a.login(t, "ann@example.com")

	rec, resp := a.do(t, multipartRequest(t, http.MethodPost, "/api/posts", token,
		map[string]string{"title": "Hello", "content": "World"}, "a.png", pngBytes(t)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal server error", resp.Message)
	assert.NotContains(t, rec.Body.String(), "disk full")

	rec, _ = a.do(t, httptest.NewRequest(http.MethodGet, "/uploads/a.png", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestOversizedUploadIsInvalidInput(t *testing.T) {
	a := newTestApp(t)
	token := a.login(t, "ann@example.com")

	big := append(pngBytes(t), make([]byte, 12<<20)...)
	rec, resp := a.do(t, multipartRequest(t, http.MethodPost, "/api/posts", token,
		map[string]string{"title": "Hello", "content": "World"}, "big.png", big))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "Image must not exceed 5MB", resp.Message)

	entries, err := os.ReadDir(a.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOversizedBodyIsInvalidInput(t *testing.T) {
	a := newTestApp(t)

	rec, resp := a.do(t, jsonRequest(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Ann", "email": "ann@example.com", "password": strings.Repeat("x", 11<<20),
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request body is too large", resp.Message)
}

func TestFormQueryValuesDoNotSetFields(t *testing.T) {
	a := newTestApp(t)
	token := a.login(t, "ann@example.com")
	post := a.createPost(t, token, map[string]any{"title": "Hello", "content": "World"})

	rec, resp := a.do(t, multipartRequest(t, http.MethodPatch, "/api/posts/"+itoa(post.ID)+"?title=fromquery", token,
		map[string]string{"content": "Updated body"}, "", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated model.Post
	require.NoError(t, json.Unmarshal(resp.Data, &updated))
	assert.Equal(t, "Hello", updated.Title)
	assert.Equal(t, "Updated body", updated.Content)
}

func TestTrailingSlashRoutes(t *testing.T) {
	a := newTestApp(t)
	token := a.login(t, "ann@example.com")
	a.createPost(t, token, map[string]any{"title": "Hello", "content": "World"})

	rec, resp := a.do(t, jsonRequest(t, http.MethodGet, "/api/posts/", token, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "List Data Posts!", resp.Message)

	rec, _ = a.do(t, jsonRequest(t, http.MethodPost, "/api/posts/", token, map[string]any{"title": "Again", "content": "World"}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
