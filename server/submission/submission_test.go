package submission

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"schoolctf/server/challenge"
	"schoolctf/server/store"
)

func TestFlagMatches(t *testing.T) {
	tests := []struct {
		provided string
		correct  string
		want     bool
	}{
		{"flag{abc}", "FLAG{abc}", true},
		{"FLAG{ABC}", "FLAG{abc}", true},
		{"abc", "FLAG{abc}", true},
		{"  flag{abc}  ", "FLAG{abc}", true},
		{"abcd", "FLAG{abc}", false},
		{"flag{abcd}", "FLAG{abc}", false},
		{"", "FLAG{abc}", false},
		{"flag{}", "FLAG{abc}", false},
	}
	for _, tt := range tests {
		if got := FlagMatches(tt.provided, tt.correct); got != tt.want {
			t.Errorf("FlagMatches(%q, %q) = %v, want %v", tt.provided, tt.correct, got, tt.want)
		}
	}
}

func testCatalog(t *testing.T) *challenge.Catalog {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"events.yaml":                           "events:\n  - id: ev1\n    name: Test\n    password: secret\n",
		"challenges/chal-1/challenge.json":      `{"id":"chal-1","name":"One"}`,
		"challenges/chal-1/ctfs/ctf-1/ctf.json": `{"id":"ctf-1","title":"First","points":25,"flag":"FLAG{abc}","hints":["h"]}`,
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cat, err := challenge.Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cat
}

func submit(t *testing.T, st store.Store, cat *challenge.Catalog, teamID int64, ctfID, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/ctfs/"+ctfID+"/submit", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "ctfId", Value: ctfID}}
	c.Set("teamID", teamID)
	c.Set("eventID", "ev1")

	HandleSubmit(c, st, cat)

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body %q: %v", w.Body.String(), err)
	}
	return w, resp
}

func TestHandleSubmitCorrect(t *testing.T) {
	st := store.NewMemory()
	cat := testCatalog(t)
	team, _ := st.CreateTeam("Alpha", "ev1", "hash", time.Now())

	w, resp := submit(t, st, cat, team.ID, "ctf-1", `{"challengeId":"chal-1","flag":"flag{abc}"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if resp["correct"] != true {
		t.Fatalf("correct = %v, want true", resp["correct"])
	}
	if resp["points"] != float64(25) {
		t.Errorf("points = %v, want 25", resp["points"])
	}

	got, _ := st.TeamByID(team.ID)
	if got.TotalPoints != store.InitialPoints+25 {
		t.Errorf("balance = %d, want %d", got.TotalPoints, store.InitialPoints+25)
	}
	a, _ := st.AttemptByKey(team.ID, "ctf-1", "chal-1")
	if !a.Completed || a.PointsEarned != 25 {
		t.Errorf("attempt = %+v, want completed with 25 points", a)
	}
}

func TestHandleSubmitIncorrectThenRetry(t *testing.T) {
	st := store.NewMemory()
	cat := testCatalog(t)
	team, _ := st.CreateTeam("Alpha", "ev1", "hash", time.Now())

	w, resp := submit(t, st, cat, team.ID, "ctf-1", `{"challengeId":"chal-1","flag":"wrong"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp["correct"] != false {
		t.Fatalf("correct = %v, want false", resp["correct"])
	}

	got, _ := st.TeamByID(team.ID)
	if got.TotalPoints != store.InitialPoints {
		t.Errorf("incorrect submit changed balance: %d", got.TotalPoints)
	}

	// Unlimited retries while incomplete.
	_, resp = submit(t, st, cat, team.ID, "ctf-1", `{"challengeId":"chal-1","flag":"abc"}`)
	if resp["correct"] != true {
		t.Errorf("retry with correct flag: correct = %v", resp["correct"])
	}
}

func TestHandleSubmitCompletionIsTerminal(t *testing.T) {
	st := store.NewMemory()
	cat := testCatalog(t)
	team, _ := st.CreateTeam("Alpha", "ev1", "hash", time.Now())

	submit(t, st, cat, team.ID, "ctf-1", `{"challengeId":"chal-1","flag":"abc"}`)
	before, _ := st.AttemptByKey(team.ID, "ctf-1", "chal-1")

	w, resp := submit(t, st, cat, team.ID, "ctf-1", `{"challengeId":"chal-1","flag":"abc"}`)
	if w.Code != http.StatusBadRequest || resp["error"] != "ALREADY_COMPLETED" {
		t.Fatalf("second correct submit: status %d, body %s", w.Code, w.Body.String())
	}

	after, _ := st.AttemptByKey(team.ID, "ctf-1", "chal-1")
	if !after.EndTime.Equal(*before.EndTime) || after.PointsEarned != before.PointsEarned {
		t.Error("second submit mutated the completed attempt")
	}
	got, _ := st.TeamByID(team.ID)
	if got.TotalPoints != store.InitialPoints+25 {
		t.Errorf("second submit changed balance: %d", got.TotalPoints)
	}
}

func TestHandleSubmitUnknownCTF(t *testing.T) {
	st := store.NewMemory()
	cat := testCatalog(t)
	team, _ := st.CreateTeam("Alpha", "ev1", "hash", time.Now())

	w, resp := submit(t, st, cat, team.ID, "nope", `{"challengeId":"chal-1","flag":"abc"}`)
	if w.Code != http.StatusNotFound || resp["error"] != "CTF_NOT_FOUND" {
		t.Errorf("status = %d, error = %v", w.Code, resp["error"])
	}
}

func TestHandleSubmitBadInput(t *testing.T) {
	st := store.NewMemory()
	cat := testCatalog(t)
	team, _ := st.CreateTeam("Alpha", "ev1", "hash", time.Now())

	w, _ := submit(t, st, cat, team.ID, "ctf-1", `{"challengeId":"../chal-1","flag":"abc"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("traversal challenge id: status = %d", w.Code)
	}

	w, _ = submit(t, st, cat, team.ID, "ctf-1", `{"challengeId":"chal-1","flag":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("blank flag: status = %d", w.Code)
	}
}
