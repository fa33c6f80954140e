package supabase

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/julianstephens/daystreak/internal/models"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

// fakeProject is an in-memory stand-in for the GoTrue and PostgREST endpoints the gateway uses.
type fakeProject struct {
	t *testing.T

	mu            sync.Mutex
	users         map[string]fakeUser // by email
	habits        []models.Habit
	refreshTokens map[string]string // token -> email
	recoverCalls  []string
	logouts       int
	tokenTTL      time.Duration
	minPassword   int
	down          bool
}

type fakeUser struct {
	id       string
	password string
}

func newFakeProject(t *testing.T) (*fakeProject, *httptest.Server) {
	t.Helper()
	f := &fakeProject{
		t:             t,
		users:         map[string]fakeUser{},
		refreshTokens: map[string]string{},
		tokenTTL:      time.Hour,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v1/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"name": "GoTrue"})
	})
	mux.HandleFunc("/auth/v1/token", f.handleToken)
	mux.HandleFunc("/auth/v1/signup", f.handleSignUp)
	mux.HandleFunc("/auth/v1/logout", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.logouts++
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/auth/v1/recover", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.recoverCalls = append(f.recoverCalls, r.URL.Query().Get("redirect_to"))
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{})
	})
	mux.HandleFunc("/auth/v1/verify", f.handleVerify)
	mux.HandleFunc("/auth/v1/user", f.handleUpdateUser)
	mux.HandleFunc("/rest/v1/habits", f.handleHabits)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		down := f.down
		f.mu.Unlock()
		if down {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "upstream unavailable"})
			return
		}
		if r.Header.Get("apikey") != "anon-key" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "No API key found in request"})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func signToken(t *testing.T, secret, sub, email string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"role":  "authenticated",
		"exp":   exp.Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func (f *fakeProject) addUser(email, password string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	f.users[email] = fakeUser{id: id, password: password}
	return id
}

// tokenResponse must be called with f.mu held.
func (f *fakeProject) tokenResponse(email string) map[string]any {
	user := f.users[email]
	exp := time.Now().Add(f.tokenTTL)
	refresh := uuid.NewString()
	f.refreshTokens[refresh] = email
	return map[string]any{
		"access_token":  signToken(f.t, testSecret, user.id, email, exp),
		"token_type":    "bearer",
		"expires_in":    int(f.tokenTTL.Seconds()),
		"expires_at":    exp.Unix(),
		"refresh_token": refresh,
		"user":          map[string]string{"id": user.id, "email": email},
	}
}

func decodeBody(r *http.Request) map[string]any {
	body := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&body)
	return body
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func (f *fakeProject) handleToken(w http.ResponseWriter, r *http.Request) {
	body := decodeBody(r)
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Query().Get("grant_type") {
	case "password":
		user, ok := f.users[str(body["email"])]
		if !ok || user.password != str(body["password"]) {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error":             "invalid_grant",
				"error_description": "Invalid login credentials",
			})
			return
		}
		writeJSON(w, http.StatusOK, f.tokenResponse(str(body["email"])))
	case "refresh_token":
		email, ok := f.refreshTokens[str(body["refresh_token"])]
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error_code": "refresh_token_not_found",
				"msg":        "Invalid Refresh Token: Refresh Token Not Found",
			})
			return
		}
		delete(f.refreshTokens, str(body["refresh_token"]))
		writeJSON(w, http.StatusOK, f.tokenResponse(email))
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "unsupported grant type"})
	}
}

func (f *fakeProject) handleSignUp(w http.ResponseWriter, r *http.Request) {
	body := decodeBody(r)
	email := str(body["email"])

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[email]; exists {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code":       422,
			"error_code": "user_already_exists",
			"msg":        "User already registered",
		})
		return
	}
	f.users[email] = fakeUser{id: uuid.NewString(), password: str(body["password"])}
	// Auto-confirmed projects return a session on sign-up
	writeJSON(w, http.StatusOK, f.tokenResponse(email))
}

func (f *fakeProject) handleVerify(w http.ResponseWriter, r *http.Request) {
	body := decodeBody(r)
	f.mu.Lock()
	defer f.mu.Unlock()

	email := strings.TrimPrefix(str(body["token_hash"]), "recovery-")
	if _, ok := f.users[email]; !ok || str(body["type"]) != "recovery" {
		writeJSON(w, http.StatusForbidden, map[string]string{
			"error_code": "otp_expired",
			"msg":        "Token has expired or is invalid",
		})
		return
	}
	writeJSON(w, http.StatusOK, f.tokenResponse(email))
}

// subject returns the user id of a verified bearer token, or "".
func (f *fakeProject) subject(r *http.Request) string {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	if err != nil {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}

func (f *fakeProject) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	sub := f.subject(r)
	body := decodeBody(r)
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(str(body["password"])) < f.minPassword {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"code":       422,
			"error_code": "weak_password",
			"msg":        fmt.Sprintf("Password should be at least %d characters.", f.minPassword),
		})
		return
	}

	for email, user := range f.users {
		if user.id == sub {
			user.password = str(body["password"])
			f.users[email] = user
			writeJSON(w, http.StatusOK, map[string]string{"id": sub, "email": email})
			return
		}
	}
	writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
}

func (f *fakeProject) handleHabits(w http.ResponseWriter, r *http.Request) {
	sub := f.subject(r)
	if sub == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "PGRST301", "message": "JWT expired"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
	switch r.Method {
	case http.MethodGet:
		owned := []models.Habit{}
		for _, h := range f.habits {
			if h.Owner == sub {
				owned = append(owned, h)
			}
		}
		writeJSON(w, http.StatusOK, owned)
	case http.MethodPost:
		body := decodeBody(r)
		if str(body["user_id"]) != sub {
			writeJSON(w, http.StatusForbidden, map[string]string{
				"code":    "42501",
				"message": `new row violates row-level security policy for table "habits"`,
			})
			return
		}
		h := models.Habit{
			ID:        uuid.NewString(),
			Owner:     sub,
			Name:      str(body["name"]),
			Category:  models.Category(str(body["category"])),
			CreatedAt: time.Now().UTC().Add(time.Duration(len(f.habits)) * time.Millisecond),
		}
		f.habits = append(f.habits, h)
		writeJSON(w, http.StatusCreated, []models.Habit{h})
	case http.MethodPatch:
		body := decodeBody(r)
		for i, h := range f.habits {
			if h.ID == id && h.Owner == sub {
				f.habits[i].Streak = int(body["streak"].(float64))
				f.habits[i].LastCompletedDate = str(body["last_completed_date"])
				writeJSON(w, http.StatusOK, []models.Habit{f.habits[i]})
				return
			}
		}
		writeJSON(w, http.StatusOK, []models.Habit{})
	case http.MethodDelete:
		for i, h := range f.habits {
			if h.ID == id && h.Owner == sub {
				f.habits = append(f.habits[:i], f.habits[i+1:]...)
				writeJSON(w, http.StatusOK, []models.Habit{h})
				return
			}
		}
		writeJSON(w, http.StatusOK, []models.Habit{})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"message": fmt.Sprintf("method %s", r.Method)})
	}
}
