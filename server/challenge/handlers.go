package challenge

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"schoolctf/server/logs"
	"schoolctf/server/store"
)

type unlockRequest struct {
	Password string `json:"password" binding:"required"`
}

// challengeView is a Challenge as sent to clients: no unlock password, plus
// the caller's unlock state.
type challengeView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
	Locked      bool   `json:"locked"`
	Unlocked    bool   `json:"unlocked"`
}

// ctfView is a CTF as sent to clients: no flag, no hint bodies.
type ctfView struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Points       int    `json:"points"`
	Emoji        string `json:"emoji"`
	HintCount    int    `json:"hintCount"`
	Completed    bool   `json:"completed"`
	PointsEarned int    `json:"pointsEarned"`
}

// HandleListChallenges lists every challenge set with the team's unlock state.
func HandleListChallenges(c *gin.Context, st store.Store, cat *Catalog) {
	teamID := c.GetInt64("teamID")

	unlocked, err := st.UnlockedChallenges(teamID)
	if err != nil {
		log.Printf("list unlocked challenges error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	unlockedSet := make(map[string]bool, len(unlocked))
	for _, id := range unlocked {
		unlockedSet[id] = true
	}

	views := []challengeView{}
	for _, chal := range cat.Challenges() {
		views = append(views, challengeView{
			ID:          chal.ID,
			Name:        chal.Name,
			Description: chal.Description,
			Emoji:       chal.Emoji,
			Locked:      chal.Password != "",
			Unlocked:    chal.Password == "" || unlockedSet[chal.ID],
		})
	}
	c.JSON(http.StatusOK, views)
}

// HandleUnlock checks the challenge password and records access. Unlocking an
// already-unlocked challenge succeeds without a second record.
func HandleUnlock(c *gin.Context, st store.Store, cat *Catalog) {
	teamID := c.GetInt64("teamID")

	id := c.Param("id")
	if !SafeSegment(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_CHALLENGE_ID"})
		return
	}

	var req unlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "Password is required"})
		return
	}

	chal, ok := cat.ChallengeByID(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND"})
		return
	}

	if chal.Password != "" && req.Password != chal.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "INCORRECT_PASSWORD"})
		return
	}

	if err := st.UnlockChallenge(teamID, id, time.Now()); err != nil {
		log.Printf("unlock challenge error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	logs.Write(st, logs.TypeUnlock, logs.LevelInfo, teamID, c.GetString("eventID"), c.ClientIP(),
		"unlocked challenge "+id)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// HandleListCTFs lists the puzzles of one challenge set with the team's
// completion state. Flags and hint bodies never leave the server here.
func HandleListCTFs(c *gin.Context, st store.Store, cat *Catalog) {
	teamID := c.GetInt64("teamID")

	id := c.Param("id")
	if !SafeSegment(id) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_CHALLENGE_ID"})
		return
	}
	if _, ok := cat.ChallengeByID(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "CHALLENGE_NOT_FOUND"})
		return
	}

	attempts, err := st.AttemptsByTeamAndChallenge(teamID, id)
	if err != nil {
		log.Printf("list attempts error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	type attemptState struct {
		completed bool
		points    int
	}
	stateByCTF := make(map[string]attemptState, len(attempts))
	for _, a := range attempts {
		stateByCTF[a.CTFID] = attemptState{a.Completed, a.PointsEarned}
	}

	views := []ctfView{}
	for _, ctf := range cat.CTFsInChallenge(id) {
		state := stateByCTF[ctf.ID]
		views = append(views, ctfView{
			ID:           ctf.ID,
			Title:        ctf.Title,
			Description:  ctf.Description,
			Points:       ctf.Points,
			Emoji:        ctf.Emoji,
			HintCount:    len(ctf.Hints),
			Completed:    state.completed,
			PointsEarned: state.points,
		})
	}
	c.JSON(http.StatusOK, views)
}
