package leaderboard

import (
	"io"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"schoolctf/server/logs"
	"schoolctf/server/store"
)

// Status is the derived view of the countdown. It is recomputed from the two
// stored fields on every read and never persisted.
type Status struct {
	StartedAt        time.Time `json:"startedAt"`
	DurationSeconds  int       `json:"durationSeconds"`
	RemainingSeconds int       `json:"remainingSeconds"`
	IsActive         bool      `json:"isActive"`
}

type timerRequest struct {
	Minutes *float64 `json:"minutes"`
}

// ComputeStatus derives the countdown view at the given instant. An idle
// timer yields nil, which serializes as a null timer field.
func ComputeStatus(state store.TimerState, now time.Time) *Status {
	if state.Idle() {
		return nil
	}
	elapsed := int(now.Sub(*state.StartedAt) / time.Second)
	remaining := state.DurationSeconds - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return &Status{
		StartedAt:        *state.StartedAt,
		DurationSeconds:  state.DurationSeconds,
		RemainingSeconds: remaining,
		IsActive:         remaining > 0,
	}
}

func validMinutes(m float64) bool {
	return !math.IsNaN(m) && !math.IsInf(m, 0) && m > 0
}

// HandleTimerStatus is the public countdown read used by leaderboard viewers.
func HandleTimerStatus(c *gin.Context, st store.Store) {
	state, err := st.TimerState()
	if err != nil {
		log.Printf("read timer error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"timer": ComputeStatus(state, time.Now())})
}

// HandleTimerSet starts a fresh countdown, overwriting any prior timer.
// Superuser only.
func HandleTimerSet(c *gin.Context, st store.Store) {
	var req timerRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Minutes == nil || !validMinutes(*req.Minutes) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "Minutes must be a positive number"})
		return
	}

	now := time.Now()
	state := store.TimerState{
		StartedAt:       &now,
		DurationSeconds: int(math.Round(*req.Minutes * 60)),
	}
	if err := st.SetTimer(state); err != nil {
		log.Printf("set timer error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	logs.Write(st, logs.TypeAdminOp, logs.LevelInfo, c.GetInt64("teamID"), c.GetString("eventID"), c.ClientIP(),
		"started countdown timer")

	c.JSON(http.StatusOK, gin.H{"timer": ComputeStatus(state, now)})
}

// HandleTimerExtend adds minutes (default 5) to the running countdown without
// moving its start, so remaining time grows by exactly the added amount. A
// countdown that has already hit zero is still running structurally and may
// be extended; only an unset timer is rejected. Superuser only.
func HandleTimerExtend(c *gin.Context, st store.Store) {
	// An empty body means "add the default 5 minutes".
	var req timerRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	minutes := 5.0
	if req.Minutes != nil {
		minutes = *req.Minutes
	}
	if !validMinutes(minutes) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "Minutes must be a positive number"})
		return
	}

	state, err := st.ExtendTimer(int(math.Round(minutes * 60)))
	if err == store.ErrNoActiveTimer {
		c.JSON(http.StatusBadRequest, gin.H{"error": "NO_ACTIVE_TIMER", "message": "No active timer to extend"})
		return
	}
	if err != nil {
		log.Printf("extend timer error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	logs.Write(st, logs.TypeAdminOp, logs.LevelInfo, c.GetInt64("teamID"), c.GetString("eventID"), c.ClientIP(),
		"extended countdown timer")

	c.JSON(http.StatusOK, gin.H{"timer": ComputeStatus(state, time.Now())})
}
