// Package submission is the scoring engine: it validates submitted flags,
// closes out attempts and awards points.
package submission

import (
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"schoolctf/server/attempt"
	"schoolctf/server/challenge"
	"schoolctf/server/logs"
	"schoolctf/server/metrics"
	"schoolctf/server/store"
)

type submitRequest struct {
	ChallengeID string `json:"challengeId"`
	Flag        string `json:"flag"`
}

var flagPrefix = regexp.MustCompile(`(?i)^flag\{`)

// normalizeFlag strips an optional FLAG{...} wrapper: trim, drop a leading
// "flag{" of any case, drop a trailing "}", trim again.
func normalizeFlag(value string) string {
	value = strings.TrimSpace(value)
	value = flagPrefix.ReplaceAllString(value, "")
	value = strings.TrimSuffix(value, "}")
	return strings.TrimSpace(value)
}

// FlagMatches accepts a submission if it equals the correct flag
// case-insensitively, either verbatim (trimmed) or after both sides are
// normalized. Teams may answer with or without the FLAG{...} wrapper.
func FlagMatches(provided, correct string) bool {
	provided = strings.TrimSpace(provided)
	correct = strings.TrimSpace(correct)
	if strings.EqualFold(provided, correct) {
		return true
	}
	return strings.EqualFold(normalizeFlag(provided), normalizeFlag(correct))
}

// HandleSubmit checks a flag for one puzzle. A correct submission completes
// the attempt exactly once and credits the puzzle's points; an incorrect one
// leaves the attempt untouched and may be retried without limit.
func HandleSubmit(c *gin.Context, st store.Store, cat *challenge.Catalog) {
	teamID := c.GetInt64("teamID")

	ctfID := c.Param("ctfId")
	if !challenge.SafeSegment(ctfID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_CTF_ID"})
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	if !challenge.SafeSegment(req.ChallengeID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_CHALLENGE_ID"})
		return
	}
	if strings.TrimSpace(req.Flag) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "Flag is required"})
		return
	}

	ctf, ok := cat.CTFByID(req.ChallengeID, ctfID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "CTF_NOT_FOUND"})
		return
	}

	now := time.Now()

	// First submit without an explicit start begins the attempt lazily,
	// under the same contract as the start endpoint.
	a, err := attempt.Start(st, teamID, req.ChallengeID, ctfID, now)
	if err == store.ErrAlreadyCompleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ALREADY_COMPLETED", "message": "CTF already completed"})
		return
	}
	if err != nil {
		log.Printf("resolve attempt error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	eventID := c.GetString("eventID")
	clientIP := c.ClientIP()

	if !FlagMatches(req.Flag, ctf.Flag) {
		metrics.FlagSubmissions.WithLabelValues("incorrect").Inc()
		logs.Write(st, logs.TypeFlagSubmit, logs.LevelError, teamID, eventID, clientIP,
			"incorrect flag for "+req.ChallengeID+"/"+ctfID)
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"correct": false,
			"message": "Incorrect flag. Keep trying!",
		})
		return
	}

	timeTaken := int64(now.Sub(a.StartTime).Seconds())
	if timeTaken < 0 {
		timeTaken = 0
	}

	err = st.CompleteAttempt(a.ID, now, ctf.Points)
	if err == store.ErrAlreadyCompleted {
		// A concurrent correct submission won the completion race.
		c.JSON(http.StatusBadRequest, gin.H{"error": "ALREADY_COMPLETED", "message": "CTF already completed"})
		return
	}
	if err != nil {
		log.Printf("complete attempt error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	if err := st.AddPoints(teamID, ctf.Points); err != nil {
		log.Printf("award points error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	metrics.FlagSubmissions.WithLabelValues("correct").Inc()
	logs.Write(st, logs.TypeFlagSubmit, logs.LevelSuccess, teamID, eventID, clientIP,
		"solved "+req.ChallengeID+"/"+ctfID)

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"correct":   true,
		"points":    ctf.Points,
		"timeTaken": timeTaken,
	})
}
