package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"schoolctf/server/store"
)

func get(t *testing.T, r *gin.Engine, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestEventMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/guarded", eventMiddleware(testSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"event": c.GetString("eventID")})
	})

	if w := get(t, r, "/guarded"); w.Code != http.StatusUnauthorized {
		t.Errorf("no cookie: status = %d, want 401", w.Code)
	}

	if w := get(t, r, "/guarded", &http.Cookie{Name: eventCookie, Value: "garbage"}); w.Code != http.StatusUnauthorized {
		t.Errorf("garbage cookie: status = %d, want 401", w.Code)
	}

	token, err := generateEventToken("ev1", testSecret)
	if err != nil {
		t.Fatal(err)
	}
	w := get(t, r, "/guarded", &http.Cookie{Name: eventCookie, Value: token})
	if w.Code != http.StatusOK {
		t.Errorf("valid cookie: status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestTeamAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	st := store.NewMemory()
	team, _ := st.CreateTeam("Alpha", "ev1", "hash", time.Now())

	r := gin.New()
	r.GET("/guarded", teamAuthMiddleware(testSecret, st), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"teamID":   c.GetInt64("teamID"),
			"teamName": c.GetString("teamName"),
			"eventID":  c.GetString("eventID"),
		})
	})

	if w := get(t, r, "/guarded"); w.Code != http.StatusUnauthorized {
		t.Errorf("no cookie: status = %d, want 401", w.Code)
	}

	token, err := generateTeamToken(team.ID, "ev1", testSecret)
	if err != nil {
		t.Fatal(err)
	}
	if w := get(t, r, "/guarded", &http.Cookie{Name: teamCookie, Value: token}); w.Code != http.StatusOK {
		t.Errorf("valid cookie: status = %d, body %s", w.Code, w.Body.String())
	}

	// A token for a team that no longer exists.
	ghost, err := generateTeamToken(team.ID+100, "ev1", testSecret)
	if err != nil {
		t.Fatal(err)
	}
	if w := get(t, r, "/guarded", &http.Cookie{Name: teamCookie, Value: ghost}); w.Code != http.StatusNotFound {
		t.Errorf("deleted team: status = %d, want 404", w.Code)
	}
}

func TestSuperuserMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", func(c *gin.Context) { c.Set("teamName", "Alpha") }, superuserMiddleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/admin2", func(c *gin.Context) { c.Set("teamName", "Superuser") }, superuserMiddleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	if w := get(t, r, "/admin"); w.Code != http.StatusForbidden {
		t.Errorf("regular team: status = %d, want 403", w.Code)
	}
	// Name check is case-insensitive, matching registration's reserved-name check.
	if w := get(t, r, "/admin2"); w.Code != http.StatusOK {
		t.Errorf("superuser: status = %d, want 200", w.Code)
	}
}
