package main

import (
	"log"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"schoolctf/server/challenge"
	"schoolctf/server/leaderboard"
	"schoolctf/server/logs"
	"schoolctf/server/metrics"
	"schoolctf/server/store"
)

const (
	teamCookie   = "ctf_team"
	eventCookie  = "ctf_event"
	cookieMaxAge = 60 * 60 * 24 * 30 // 30 days
)

var pinPattern = regexp.MustCompile(`^\d{4}$`)

// ensureSuperusers creates the privileged "superuser" team for every
// configured event at startup, sharing the PIN from SUPERUSER_PIN. Skipped
// when the env var is unset.
func ensureSuperusers(st store.Store, events []challenge.Event, pin string) error {
	if pin == "" {
		log.Println("SUPERUSER_PIN not set, skipping superuser bootstrap")
		return nil
	}
	if !pinPattern.MatchString(pin) {
		log.Fatalf("SUPERUSER_PIN must be 4 digits")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	for _, ev := range events {
		team, err := st.CreateTeam(leaderboard.SuperuserName, ev.ID, string(hash), time.Now())
		if err == store.ErrDuplicate {
			continue
		}
		if err != nil {
			return err
		}
		log.Printf("[ensureSuperusers] created superuser team for event %s (ID: %d)", ev.ID, team.ID)
	}
	return nil
}

func generateTeamToken(teamID int64, eventID string, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"sub":   teamID,
		"event": eventID,
		"exp":   time.Now().Add(cookieMaxAge * time.Second).Unix(),
		"iat":   time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func generateEventToken(eventID string, secret []byte) (string, error) {
	claims := jwt.MapClaims{
		"event": eventID,
		"exp":   time.Now().Add(cookieMaxAge * time.Second).Unix(),
		"iat":   time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// handleVerifyEvent matches the shared event password and plants the signed
// event cookie every later call depends on.
func handleVerifyEvent(c *gin.Context, cat *challenge.Catalog, secret []byte) {
	var req verifyEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "Password is required"})
		return
	}

	ev, ok := cat.EventByPassword(req.Password)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INCORRECT_PASSWORD"})
		return
	}

	token, err := generateEventToken(ev.ID, secret)
	if err != nil {
		log.Printf("generate event token error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	c.SetCookie(eventCookie, token, cookieMaxAge, "/", "", false, true)

	c.JSON(http.StatusOK, gin.H{"success": true, "event": ev})
}

// handleCurrentEvent returns the event behind the caller's event cookie.
func handleCurrentEvent(c *gin.Context, cat *challenge.Catalog) {
	ev, ok := cat.EventByID(c.GetString("eventID"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "EVENT_NOT_FOUND"})
		return
	}
	c.JSON(http.StatusOK, ev)
}

// handleRegister creates a team in the caller's event and signs it in. The
// reserved superuser name is only ever created by the startup bootstrap.
func handleRegister(c *gin.Context, st store.Store, secret []byte) {
	eventID := c.GetString("eventID")

	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "Team name and PIN are required"})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "Team name is required"})
		return
	}
	if strings.EqualFold(name, leaderboard.SuperuserName) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "RESERVED_NAME", "message": "That team name is reserved"})
		return
	}
	if !pinPattern.MatchString(req.Pin) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_PIN", "message": "PIN must be 4 digits"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Pin), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("hash pin error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	team, err := st.CreateTeam(name, eventID, string(hash), time.Now())
	if err == store.ErrDuplicate {
		c.JSON(http.StatusBadRequest, gin.H{"error": "NAME_TAKEN", "message": "Team name already taken in this event"})
		return
	}
	if err != nil {
		log.Printf("create team error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	token, err := generateTeamToken(team.ID, eventID, secret)
	if err != nil {
		log.Printf("generate team token error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	c.SetCookie(teamCookie, token, cookieMaxAge, "/", "", false, true)

	metrics.TeamRegistrations.Inc()
	logs.Write(st, logs.TypeRegister, logs.LevelSuccess, team.ID, eventID, c.ClientIP(),
		"team ["+team.Name+"] registered")

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"teamId":   team.ID,
		"teamName": team.Name,
	})
}

// handleLogin signs an existing team back in with its name and PIN.
func handleLogin(c *gin.Context, st store.Store, secret []byte) {
	eventID := c.GetString("eventID")

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "Team name and PIN are required"})
		return
	}
	if !pinPattern.MatchString(req.Pin) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_PIN", "message": "PIN must be 4 digits"})
		return
	}

	team, err := st.TeamByEventAndName(eventID, strings.TrimSpace(req.Name))
	if err == store.ErrNotFound {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CREDENTIALS", "message": "Invalid team name or PIN"})
		return
	}
	if err != nil {
		log.Printf("find team error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(team.PinHash), []byte(req.Pin)) != nil {
		logs.Write(st, logs.TypeLogin, logs.LevelError, team.ID, eventID, c.ClientIP(),
			"team ["+team.Name+"] failed login")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INVALID_CREDENTIALS", "message": "Invalid team name or PIN"})
		return
	}

	token, err := generateTeamToken(team.ID, eventID, secret)
	if err != nil {
		log.Printf("generate team token error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	c.SetCookie(teamCookie, token, cookieMaxAge, "/", "", false, true)

	logs.Write(st, logs.TypeLogin, logs.LevelSuccess, team.ID, eventID, c.ClientIP(),
		"team ["+team.Name+"] logged in")

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"teamId":   team.ID,
		"teamName": team.Name,
	})
}

// handleSignout clears both identity cookies.
func handleSignout(c *gin.Context) {
	c.SetCookie(teamCookie, "", -1, "/", "", false, true)
	c.SetCookie(eventCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// handleMe returns the signed-in team's own record.
func handleMe(c *gin.Context, st store.Store) {
	team, err := st.TeamByID(c.GetInt64("teamID"))
	if err != nil {
		log.Printf("load team error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           team.ID,
		"name":         team.Name,
		"total_points": team.TotalPoints,
	})
}

// handleDeleteTeam removes a team and everything it owns. Superuser only, and
// never the superuser team itself.
func handleDeleteTeam(c *gin.Context, st store.Store) {
	requesterID := c.GetInt64("teamID")

	targetID, err := strconv.ParseInt(c.Param("teamId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "Invalid team id"})
		return
	}
	if targetID == requesterID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "Cannot remove the superuser team itself"})
		return
	}

	err = st.DeleteTeam(targetID)
	if err == store.ErrNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "TEAM_NOT_FOUND"})
		return
	}
	if err != nil {
		log.Printf("delete team error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	logs.Write(st, logs.TypeAdminOp, logs.LevelWarning, requesterID, c.GetString("eventID"), c.ClientIP(),
		"removed team "+strconv.FormatInt(targetID, 10))

	c.JSON(http.StatusOK, gin.H{"success": true})
}
