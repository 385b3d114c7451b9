// Package leaderboard ranks teams and owns the shared countdown timer shown
// next to the rankings.
package leaderboard

import (
	"log"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"schoolctf/server/store"
)

// SuperuserName is the reserved privileged team, hidden from rankings.
const SuperuserName = "superuser"

// fallbackEmoji stands in for solved puzzles whose content was renamed or
// removed after the solve, so the solve count stays visible.
const fallbackEmoji = "✅"

// EmojiFunc maps a completed puzzle to its display emoji.
type EmojiFunc func(challengeID, ctfID string) (string, bool)

// Entry is one ranked team.
type Entry struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	TotalPoints   int      `json:"total_points"`
	TotalTime     int64    `json:"total_time"`
	CompletedCTFs []string `json:"completedCtfs"`
}

// Compute builds the ranking for one event: superuser excluded, total time
// from merged attempt intervals, solves as emoji in completion order, sorted
// by points descending with faster total time breaking ties.
func Compute(st store.Store, eventID string, emoji EmojiFunc) ([]Entry, error) {
	teams, err := st.TeamsByEvent(eventID)
	if err != nil {
		return nil, err
	}

	entries := []Entry{}
	for _, t := range teams {
		if strings.EqualFold(t.Name, SuperuserName) {
			continue
		}
		completed, err := st.CompletedAttemptsByTeam(t.ID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{
			ID:            t.ID,
			Name:          t.Name,
			TotalPoints:   t.TotalPoints,
			TotalTime:     MergedTotalSeconds(completed),
			CompletedCTFs: completedEmojis(completed, emoji),
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalPoints != entries[j].TotalPoints {
			return entries[i].TotalPoints > entries[j].TotalPoints
		}
		return entries[i].TotalTime < entries[j].TotalTime
	})
	return entries, nil
}

// MergedTotalSeconds sums the team's completed attempt intervals after
// merging overlaps, so puzzles worked in parallel count their wall-clock span
// once instead of once per puzzle.
func MergedTotalSeconds(attempts []store.Attempt) int64 {
	type interval struct {
		start, end time.Time
	}
	intervals := make([]interval, 0, len(attempts))
	for _, a := range attempts {
		if a.EndTime == nil || a.EndTime.Before(a.StartTime) {
			continue
		}
		intervals = append(intervals, interval{a.StartTime, *a.EndTime})
	}
	if len(intervals) == 0 {
		return 0
	}

	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].start.Before(intervals[j].start)
	})

	var total time.Duration
	current := intervals[0]
	for _, iv := range intervals[1:] {
		if !iv.start.After(current.end) {
			// Overlapping or adjacent: extend the running interval.
			if iv.end.After(current.end) {
				current.end = iv.end
			}
			continue
		}
		total += current.end.Sub(current.start)
		current = iv
	}
	total += current.end.Sub(current.start)

	return int64(total / time.Second)
}

// completedEmojis lists the team's solves as emoji in end-time order. The
// attempt uniqueness invariant should make keys distinct already, but a
// duplicate key keeps only its first completion.
func completedEmojis(attempts []store.Attempt, emoji EmojiFunc) []string {
	completed := make([]store.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if a.EndTime != nil {
			completed = append(completed, a)
		}
	}
	sort.Slice(completed, func(i, j int) bool {
		return completed[i].EndTime.Before(*completed[j].EndTime)
	})

	seen := make(map[string]bool, len(completed))
	out := []string{}
	for _, a := range completed {
		key := a.ChallengeID + "/" + a.CTFID
		if seen[key] {
			continue
		}
		seen[key] = true
		if e, ok := emoji(a.ChallengeID, a.CTFID); ok {
			out = append(out, e)
		} else {
			out = append(out, fallbackEmoji)
		}
	}
	return out
}

// HandleLeaderboard returns the event ranking together with the current
// countdown status, so viewers see one consistent time source.
func HandleLeaderboard(c *gin.Context, st store.Store, emoji EmojiFunc) {
	eventID := c.GetString("eventID")

	entries, err := Compute(st, eventID, emoji)
	if err != nil {
		log.Printf("compute leaderboard error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	state, err := st.TimerState()
	if err != nil {
		log.Printf("read timer error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "INTERNAL_ERROR"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"teams": entries,
		"timer": ComputeStatus(state, time.Now()),
	})
}
