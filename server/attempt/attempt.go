// Package attempt owns the lifecycle of a team's timed try at one CTF:
// created once per (team, ctf, challenge), completed at most once.
package attempt

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"schoolctf/server/challenge"
	"schoolctf/server/store"
)

type startRequest struct {
	ChallengeID string `json:"challengeId" binding:"required"`
}

// Start returns the attempt for the natural key, creating it with the given
// start time if none exists. Calling Start again before completion returns
// the original attempt without resetting its clock; calling it after
// completion returns store.ErrAlreadyCompleted. The same contract backs both
// the explicit start endpoint and the lazy create inside flag submission.
func Start(st store.Store, teamID int64, challengeID, ctfID string, now time.Time) (*store.Attempt, error) {
	a, err := st.CreateAttempt(teamID, ctfID, challengeID, now)
	if err != nil {
		return nil, err
	}
	if a.Completed {
		return nil, store.ErrAlreadyCompleted
	}
	return a, nil
}

// HandleStart starts (or resumes) an attempt.
func HandleStart(c *gin.Context, st store.Store) {
	teamID := c.GetInt64("teamID")

	ctfID := c.Param("ctfId")
	if !challenge.SafeSegment(ctfID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_CTF_ID"})
		return
	}

	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil || !challenge.SafeSegment(req.ChallengeID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_CHALLENGE_ID"})
		return
	}

	a, err := Start(st, teamID, req.ChallengeID, ctfID, time.Now())
	if err == store.ErrAlreadyCompleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ALREADY_COMPLETED", "message": "CTF already completed"})
		return
	}
	if err != nil {
		log.Printf("start attempt error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"startTime": a.StartTime,
	})
}

// HandleStatus reports the attempt state for one puzzle. No attempt at all is
// a normal answer, not an error.
func HandleStatus(c *gin.Context, st store.Store) {
	teamID := c.GetInt64("teamID")

	ctfID := c.Param("ctfId")
	if !challenge.SafeSegment(ctfID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_CTF_ID"})
		return
	}
	challengeID := c.Query("challengeId")
	if !challenge.SafeSegment(challengeID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_CHALLENGE_ID"})
		return
	}

	a, err := st.AttemptByKey(teamID, ctfID, challengeID)
	if err == store.ErrNotFound {
		c.JSON(http.StatusOK, gin.H{"started": false, "completed": false})
		return
	}
	if err != nil {
		log.Printf("attempt status error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"started":      true,
		"completed":    a.Completed,
		"startTime":    a.StartTime,
		"endTime":      a.EndTime,
		"pointsEarned": a.PointsEarned,
	})
}
