package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"schoolctf/server/challenge"
	"schoolctf/server/store"
)

var testSecret = []byte("test-secret")

func postJSON(t *testing.T, handler func(*gin.Context), path, body, eventID string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if eventID != "" {
		c.Set("eventID", eventID)
	}

	handler(c)

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body %q: %v", w.Body.String(), err)
	}
	return w, resp
}

func TestPinPattern(t *testing.T) {
	tests := []struct {
		pin  string
		want bool
	}{
		{"1234", true},
		{"0000", true},
		{"123", false},
		{"12345", false},
		{"12a4", false},
		{"", false},
		{" 1234", false},
	}
	for _, tt := range tests {
		if got := pinPattern.MatchString(tt.pin); got != tt.want {
			t.Errorf("pinPattern(%q) = %v, want %v", tt.pin, got, tt.want)
		}
	}
}

func TestHandleRegister(t *testing.T) {
	st := store.NewMemory()
	register := func(c *gin.Context) { handleRegister(c, st, testSecret) }

	w, resp := postJSON(t, register, "/api/teams/register", `{"name":"Alpha","pin":"1234"}`, "ev1")
	if w.Code != http.StatusOK || resp["success"] != true {
		t.Fatalf("register: status %d, body %s", w.Code, w.Body.String())
	}
	if resp["teamName"] != "Alpha" {
		t.Errorf("teamName = %v", resp["teamName"])
	}
	if !strings.Contains(w.Header().Get("Set-Cookie"), teamCookie+"=") {
		t.Error("register did not set the team cookie")
	}

	// The stored team starts with the initial grant.
	team, err := st.TeamByEventAndName("ev1", "Alpha")
	if err != nil {
		t.Fatalf("team not stored: %v", err)
	}
	if team.TotalPoints != store.InitialPoints {
		t.Errorf("TotalPoints = %d, want %d", team.TotalPoints, store.InitialPoints)
	}

	w, resp = postJSON(t, register, "/api/teams/register", `{"name":"alpha","pin":"9999"}`, "ev1")
	if w.Code != http.StatusBadRequest || resp["error"] != "NAME_TAKEN" {
		t.Errorf("duplicate name: status %d, error %v", w.Code, resp["error"])
	}

	w, resp = postJSON(t, register, "/api/teams/register", `{"name":"SuperUser","pin":"1234"}`, "ev1")
	if w.Code != http.StatusBadRequest || resp["error"] != "RESERVED_NAME" {
		t.Errorf("reserved name: status %d, error %v", w.Code, resp["error"])
	}

	w, resp = postJSON(t, register, "/api/teams/register", `{"name":"Beta","pin":"12"}`, "ev1")
	if w.Code != http.StatusBadRequest || resp["error"] != "INVALID_PIN" {
		t.Errorf("short pin: status %d, error %v", w.Code, resp["error"])
	}
}

func TestHandleLogin(t *testing.T) {
	st := store.NewMemory()
	register := func(c *gin.Context) { handleRegister(c, st, testSecret) }
	login := func(c *gin.Context) { handleLogin(c, st, testSecret) }

	postJSON(t, register, "/api/teams/register", `{"name":"Alpha","pin":"1234"}`, "ev1")

	w, resp := postJSON(t, login, "/api/teams/login", `{"name":"Alpha","pin":"1234"}`, "ev1")
	if w.Code != http.StatusOK || resp["success"] != true {
		t.Fatalf("login: status %d, body %s", w.Code, w.Body.String())
	}

	w, resp = postJSON(t, login, "/api/teams/login", `{"name":"Alpha","pin":"4321"}`, "ev1")
	if w.Code != http.StatusUnauthorized || resp["error"] != "INVALID_CREDENTIALS" {
		t.Errorf("wrong pin: status %d, error %v", w.Code, resp["error"])
	}

	w, resp = postJSON(t, login, "/api/teams/login", `{"name":"Ghost","pin":"1234"}`, "ev1")
	if w.Code != http.StatusUnauthorized || resp["error"] != "INVALID_CREDENTIALS" {
		t.Errorf("unknown team: status %d, error %v", w.Code, resp["error"])
	}
}

func TestEnsureSuperusers(t *testing.T) {
	st := store.NewMemory()
	events := []challenge.Event{{ID: "ev1"}, {ID: "ev2"}}

	if err := ensureSuperusers(st, events, "7070"); err != nil {
		t.Fatalf("ensureSuperusers: %v", err)
	}
	for _, ev := range events {
		if _, err := st.TeamByEventAndName(ev.ID, "superuser"); err != nil {
			t.Errorf("no superuser in %s: %v", ev.ID, err)
		}
	}

	// A second boot tolerates the existing teams.
	if err := ensureSuperusers(st, events, "7070"); err != nil {
		t.Fatalf("second ensureSuperusers: %v", err)
	}

	// Unset PIN skips the bootstrap entirely.
	st2 := store.NewMemory()
	if err := ensureSuperusers(st2, events, ""); err != nil {
		t.Fatalf("ensureSuperusers without pin: %v", err)
	}
	if _, err := st2.TeamByEventAndName("ev1", "superuser"); err != store.ErrNotFound {
		t.Errorf("superuser created without a pin: %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := generateTeamToken(42, "ev1", testSecret)
	if err != nil {
		t.Fatalf("generateTeamToken: %v", err)
	}

	claims, err := parseToken(token, testSecret)
	if err != nil {
		t.Fatalf("parseToken: %v", err)
	}
	if sub, _ := claims["sub"].(float64); int64(sub) != 42 {
		t.Errorf("sub = %v, want 42", claims["sub"])
	}
	if claims["event"] != "ev1" {
		t.Errorf("event = %v, want ev1", claims["event"])
	}

	if _, err := parseToken(token, []byte("other-secret")); err == nil {
		t.Error("parseToken accepted a token signed with another secret")
	}
}
