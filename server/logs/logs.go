package logs

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"schoolctf/server/store"
)

// Log types.
const (
	TypeRegister     = "register"
	TypeLogin        = "login"
	TypeSignout      = "signout"
	TypeUnlock       = "challenge_unlock"
	TypeFlagSubmit   = "flag_submit"
	TypeHintPurchase = "hint_purchase"
	TypeAdminOp      = "admin_op"
)

// Log levels.
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
	LevelSuccess = "success"
)

// Write appends an audit record. A failed append is logged and swallowed; the
// audit trail never fails the request that produced it.
func Write(st store.Store, logType, level string, teamID int64, eventID, ipAddress, message string) {
	rec := store.LogRecord{
		Type:      logType,
		Level:     level,
		EventID:   eventID,
		IPAddress: ipAddress,
		Message:   message,
		CreatedAt: time.Now(),
	}
	if teamID > 0 {
		rec.TeamID = &teamID
	}
	if err := st.AppendLog(rec); err != nil {
		log.Printf("append audit log error: %v", err)
	}
}

// HandleGetLogs returns recent audit records, newest first. Superuser only.
func HandleGetLogs(c *gin.Context, st store.Store) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "limit must be 1-1000"})
			return
		}
		limit = v
	}

	records, err := st.RecentLogs(limit)
	if err != nil {
		log.Printf("read audit logs error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	if records == nil {
		records = []store.LogRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": records})
}
