package main

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"schoolctf/server/leaderboard"
	"schoolctf/server/store"
)

func parseToken(raw string, secret []byte) (jwt.MapClaims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// eventMiddleware requires a valid event cookie and exposes the event id to
// handlers via the context.
func eventMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(eventCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "NO_EVENT", "message": "Join an event first"})
			return
		}

		claims, err := parseToken(raw, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "NO_EVENT", "message": "Join an event first"})
			return
		}
		eventID, _ := claims["event"].(string)
		if eventID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "NO_EVENT", "message": "Join an event first"})
			return
		}

		c.Set("eventID", eventID)
		c.Next()
	}
}

// teamAuthMiddleware requires a signed-in team. It loads the team record so
// every handler downstream sees current points and the authoritative event id.
func teamAuthMiddleware(secret []byte, st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(teamCookie)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "NOT_AUTHENTICATED"})
			return
		}

		claims, err := parseToken(raw, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "NOT_AUTHENTICATED"})
			return
		}
		sub, ok := claims["sub"].(float64)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "NOT_AUTHENTICATED"})
			return
		}

		team, err := st.TeamByID(int64(sub))
		if err == store.ErrNotFound {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "TEAM_NOT_FOUND"})
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
			return
		}

		c.Set("teamID", team.ID)
		c.Set("teamName", team.Name)
		c.Set("eventID", team.EventID)
		c.Next()
	}
}

// superuserMiddleware gates admin routes on the reserved team name. Runs after
// teamAuthMiddleware, which has already verified the identity.
func superuserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.EqualFold(c.GetString("teamName"), leaderboard.SuperuserName) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "FORBIDDEN"})
			return
		}
		c.Next()
	}
}
