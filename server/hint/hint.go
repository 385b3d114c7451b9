// Package hint is the hint economy: positional pricing, affordability checks
// and idempotent purchases.
package hint

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"schoolctf/server/challenge"
	"schoolctf/server/logs"
	"schoolctf/server/metrics"
	"schoolctf/server/store"
)

type purchaseRequest struct {
	ChallengeID string `json:"challengeId"`
	HintIndex   *int   `json:"hintIndex"`
}

// Cost prices a hint by its zero-based position: hint #1 costs 10, #2 costs
// 20 and so on.
func Cost(hintIndex int) int {
	return (hintIndex + 1) * 10
}

// HandlePurchase buys one hint. Buying a hint the team already owns succeeds
// without charging again; an unaffordable hint reports the shortfall.
func HandlePurchase(c *gin.Context, st store.Store) {
	teamID := c.GetInt64("teamID")

	ctfID := c.Param("ctfId")
	if !challenge.SafeSegment(ctfID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_CTF_ID"})
		return
	}

	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST"})
		return
	}
	if !challenge.SafeSegment(req.ChallengeID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_CHALLENGE_ID"})
		return
	}
	if req.HintIndex == nil || *req.HintIndex < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "INVALID_REQUEST", "message": "Valid hintIndex is required"})
		return
	}
	hintIndex := *req.HintIndex

	purchased, err := st.PurchasedHints(teamID, ctfID, req.ChallengeID)
	if err != nil {
		log.Printf("list purchased hints error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	for _, idx := range purchased {
		if idx == hintIndex {
			c.JSON(http.StatusOK, gin.H{"success": true, "alreadyPurchased": true})
			return
		}
	}

	cost := Cost(hintIndex)

	team, err := st.TeamByID(teamID)
	if err != nil {
		log.Printf("load team error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	if team.TotalPoints < cost {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":         "INSUFFICIENT_POINTS",
			"cost":          cost,
			"currentPoints": team.TotalPoints,
		})
		return
	}

	// Record first, charge second: if a concurrent purchase of the same hint
	// got there first, the natural key rejects this one and nothing is
	// deducted. A lost race can never double-charge.
	created, err := st.CreateHintPurchase(teamID, ctfID, req.ChallengeID, hintIndex, cost, time.Now())
	if err != nil {
		log.Printf("record hint purchase error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	if !created {
		c.JSON(http.StatusOK, gin.H{"success": true, "alreadyPurchased": true})
		return
	}

	newTotal, err := st.DeductPoints(teamID, cost)
	if err != nil {
		log.Printf("deduct points error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	metrics.HintPurchases.Inc()
	logs.Write(st, logs.TypeHintPurchase, logs.LevelInfo, teamID, c.GetString("eventID"), c.ClientIP(),
		"bought hint for "+req.ChallengeID+"/"+ctfID)

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"cost":           cost,
		"newTotalPoints": newTotal,
	})
}

// HandleList returns the hint positions the team already owns for one puzzle,
// so the client can re-reveal them.
func HandleList(c *gin.Context, st store.Store) {
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

	purchased, err := st.PurchasedHints(teamID, ctfID, challengeID)
	if err != nil {
		log.Printf("list purchased hints error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchasedHints": purchased})
}
