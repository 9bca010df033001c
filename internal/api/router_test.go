package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debugferro/identity-be/internal/auth"
	"github.com/debugferro/identity-be/internal/models"
	"github.com/debugferro/identity-be/internal/services"
	"github.com/debugferro/identity-be/internal/websocket"
)

type stubUserService struct {
	users map[string]models.User // by id
}

func (s *stubUserService) GetUserByID(_ context.Context, id string) (models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return models.User{}, services.ErrNotFound
}

func (s *stubUserService) GetUserByDisplayName(_ context.Context, name string) (models.User, error) {
	for _, u := range s.users {
		if u.DisplayName == name {
			return u, nil
		}
	}
	return models.User{}, services.ErrNotFound
}

func (s *stubUserService) ListUsers(_ context.Context, _ int) ([]models.User, error) {
	var out []models.User
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *stubUserService) CreateUser(_ context.Context, input services.CreateUserInput) (models.User, error) {
	if input.Email == "taken@example.com" {
		return models.User{}, services.ErrEmailTaken
	}
	u := models.User{
		ID:          "new-id",
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		DisplayName: strings.ToLower(input.FirstName + "." + input.LastName),
		Email:       input.Email,
		CreatedAt:   time.Now(),
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *stubUserService) UpdateUser(_ context.Context, id, firstName, lastName, email string) (models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return models.User{}, services.ErrNotFound
	}
	u.FirstName, u.LastName, u.Email = firstName, lastName, email
	s.users[id] = u
	return u, nil
}

func (s *stubUserService) UpdatePassword(_ context.Context, id, _, _ string) error {
	if _, ok := s.users[id]; !ok {
		return services.ErrNotFound
	}
	return nil
}

func (s *stubUserService) DeleteUser(_ context.Context, id string) error {
	if _, ok := s.users[id]; !ok {
		return services.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *stubUserService) AuthenticateUser(_ context.Context, email, password string) (models.User, error) {
	for _, u := range s.users {
		if u.Email == email && password == "hunter22" {
			return u, nil
		}
	}
	return models.User{}, services.ErrNotFound
}

func (s *stubUserService) IsDisplayNameTaken(_ context.Context, name string) (bool, error) {
	_, err := s.GetUserByDisplayName(context.Background(), name)
	return err == nil, nil
}

type stubEventService struct{ events []models.Event }

func (s *stubEventService) CreateEvent(eventType, level, message string, userID *string) error {
	s.events = append(s.events, models.Event{Type: eventType, Level: level, Message: message, UserID: userID})
	return nil
}
func (s *stubEventService) GetRecentEvents(int) ([]models.Event, error) { return s.events, nil }
func (s *stubEventService) PurgeOlderThan(time.Time) (int64, error)    { return 0, nil }

type stubStats struct{}

func (stubStats) Latest() models.SystemStats {
	return models.SystemStats{CPUPercent: 12.5, SampledAt: time.Now()}
}

func newTestRouter(t *testing.T) (http.Handler, *auth.Manager, *stubUserService) {
	t.Helper()
	hub := websocket.NewHub()
	go hub.Run()

	userSvc := &stubUserService{users: map[string]models.User{
		"u1": {ID: "u1", FirstName: "John", LastName: "Smith", DisplayName: "john.smith", Email: "john@example.com"},
	}}
	authManager := auth.NewManager("test-secret")
	router := NewRouter(hub, authManager, userSvc, &stubEventService{}, stubStats{}, "http://localhost:3000")
	return router, authManager, userSvc
}

func TestHealthz(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRegisterEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body := `{"firstName":"Jane","lastName":"Doe","email":"jane@example.com","password":"hunter22"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "jane.doe", user.DisplayName)
}

func TestRegisterEndpointConflicts(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body := `{"firstName":"Jane","lastName":"Doe","email":"taken@example.com","password":"hunter22"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterEndpointRequiresEmailAndPassword(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginSetsCookie(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body := `{"email":"john@example.com","password":"hunter22"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "token", cookies[0].Name)
	assert.NotEmpty(t, cookies[0].Value)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	router, _, _ := newTestRouter(t)

	body := `{"email":"john@example.com","password":"wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	router, _, _ := newTestRouter(t)

	for _, path := range []string{"/api/v1/me", "/api/v1/users/", "/api/v1/events", "/api/v1/system/stats"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "path %s", path)
	}
}

func TestGetMe(t *testing.T) {
	router, authManager, _ := newTestRouter(t)

	token, err := authManager.GenerateJWT(models.User{ID: "u1", DisplayName: "john.smith"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "john.smith", user.DisplayName)
}

func TestCheckDisplayName(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/display-names/check?name=john.smith", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Name      string `json:"name"`
		Available bool   `json:"available"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Available)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/display-names/check?firstName=Jane&lastName=Doe", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "jane.doe", resp.Name)
	assert.True(t, resp.Available)
}

func TestCheckDisplayNameMissingParams(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/display-names/check", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteUserEndpoint(t *testing.T) {
	router, authManager, userSvc := newTestRouter(t)

	token, err := authManager.GenerateJWT(models.User{ID: "u1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/users/u1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotContains(t, userSvc.users, "u1")
}
