package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hisabdesk/api/internal/auth"
	"github.com/hisabdesk/api/internal/handler"
	"github.com/hisabdesk/api/internal/store"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

type mockAuthStore struct {
	users map[string]store.User
}

func (m *mockAuthStore) GetUserByEmail(ctx context.Context, email string) (store.User, error) {
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return store.User{}, pgx.ErrNoRows
}

func (m *mockAuthStore) GetUserByID(ctx context.Context, id uuid.UUID) (store.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return store.User{}, pgx.ErrNoRows
}

func setupAuthRouter(t *testing.T) (*chi.Mux, store.User) {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := store.User{
		ID:             uuid.New(),
		OrgID:          1,
		Email:          "owner@hisabdesk.test",
		FullName:       "Test Owner",
		HashedPassword: string(hashed),
		Role:           "OWNER",
	}

	ms := &mockAuthStore{users: map[string]store.User{user.Email: user}}
	h := handler.NewAuthHandler(ms, testJWTSecret)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, user
}

func TestLogin(t *testing.T) {
	router, user := setupAuthRouter(t)

	body := map[string]string{"email": user.Email, "password": "correct-horse"}
	rr := doRequest(t, router, http.MethodPost, "/auth/login", body)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["access_token"] == "" || resp["refresh_token"] == "" {
		t.Fatal("expected token pair in response")
	}

	// The access token must carry the user's org and role.
	claims, err := auth.ValidateToken(testJWTSecret, resp["access_token"].(string))
	if err != nil {
		t.Fatalf("validate issued token: %v", err)
	}
	if claims.OrgID != 1 || claims.Role != "OWNER" {
		t.Errorf("claims wrong: %+v", claims)
	}

	userResp := resp["user"].(map[string]interface{})
	if userResp["email"] != user.Email {
		t.Errorf("expected email %q, got %v", user.Email, userResp["email"])
	}
}

func TestLoginWrongPassword(t *testing.T) {
	router, user := setupAuthRouter(t)

	body := map[string]string{"email": user.Email, "password": "wrong"}
	rr := doRequest(t, router, http.MethodPost, "/auth/login", body)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestLoginUnknownEmail(t *testing.T) {
	router, _ := setupAuthRouter(t)

	body := map[string]string{"email": "nobody@hisabdesk.test", "password": "whatever"}
	rr := doRequest(t, router, http.MethodPost, "/auth/login", body)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestLoginMissingFields(t *testing.T) {
	router, _ := setupAuthRouter(t)

	body := map[string]string{"email": "owner@hisabdesk.test"}
	rr := doRequest(t, router, http.MethodPost, "/auth/login", body)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestRefresh(t *testing.T) {
	router, user := setupAuthRouter(t)

	refresh, err := auth.GenerateRefreshToken(testJWTSecret, user.ID)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	body := map[string]string{"refresh_token": refresh}
	rr := doRequest(t, router, http.MethodPost, "/auth/refresh", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["access_token"] == "" {
		t.Error("expected new access token")
	}
}

func TestRefreshInvalidToken(t *testing.T) {
	router, _ := setupAuthRouter(t)

	body := map[string]string{"refresh_token": "not-a-jwt"}
	rr := doRequest(t, router, http.MethodPost, "/auth/refresh", body)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}
