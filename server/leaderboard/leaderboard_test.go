package leaderboard

import (
	"testing"
	"time"

	"schoolctf/server/store"
)

var epoch = time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

func interval(startSec, endSec int) store.Attempt {
	end := epoch.Add(time.Duration(endSec) * time.Second)
	return store.Attempt{
		StartTime: epoch.Add(time.Duration(startSec) * time.Second),
		EndTime:   &end,
		Completed: true,
	}
}

func TestMergedTotalSeconds(t *testing.T) {
	tests := []struct {
		name     string
		attempts []store.Attempt
		want     int64
	}{
		{"empty", nil, 0},
		{"single", []store.Attempt{interval(0, 100)}, 100},
		{"overlapping", []store.Attempt{interval(0, 100), interval(50, 150)}, 150},
		{"disjoint", []store.Attempt{interval(0, 50), interval(100, 150)}, 100},
		{"contained", []store.Attempt{interval(0, 200), interval(50, 100)}, 200},
		{"adjacent", []store.Attempt{interval(0, 50), interval(50, 100)}, 100},
		{"unsorted input", []store.Attempt{interval(100, 150), interval(0, 50)}, 100},
		{"incomplete skipped", []store.Attempt{interval(0, 100), {StartTime: epoch}}, 100},
	}
	for _, tt := range tests {
		if got := MergedTotalSeconds(tt.attempts); got != tt.want {
			t.Errorf("%s: MergedTotalSeconds = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func noEmoji(challengeID, ctfID string) (string, bool) { return "", false }

func TestComputeRanking(t *testing.T) {
	st := store.NewMemory()

	slow, _ := st.CreateTeam("Slow", "ev1", "hash", epoch)
	fast, _ := st.CreateTeam("Fast", "ev1", "hash", epoch)
	rich, _ := st.CreateTeam("Rich", "ev1", "hash", epoch)
	st.CreateTeam(SuperuserName, "ev1", "hash", epoch)
	st.CreateTeam("OtherEvent", "ev2", "hash", epoch)

	st.AddPoints(rich.ID, 100)

	// Same points for slow and fast; fast solved in less wall time.
	solve := func(teamID int64, ctfID string, seconds int) {
		a, _ := st.CreateAttempt(teamID, ctfID, "chal-1", epoch)
		st.CompleteAttempt(a.ID, epoch.Add(time.Duration(seconds)*time.Second), 0)
	}
	solve(slow.ID, "ctf-1", 300)
	solve(fast.ID, "ctf-1", 60)

	entries, err := Compute(st, "ev1", noEmoji)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3 (superuser and other event excluded)", len(entries))
	}
	if entries[0].Name != "Rich" {
		t.Errorf("rank 1 = %s, want Rich", entries[0].Name)
	}
	if entries[1].Name != "Fast" || entries[2].Name != "Slow" {
		t.Errorf("tie broken wrong: rank 2 = %s, rank 3 = %s", entries[1].Name, entries[2].Name)
	}
	if entries[1].TotalTime != 60 || entries[2].TotalTime != 300 {
		t.Errorf("total times = %d, %d; want 60, 300", entries[1].TotalTime, entries[2].TotalTime)
	}
}

func TestCompletedEmojisOrderAndFallback(t *testing.T) {
	st := store.NewMemory()
	team, _ := st.CreateTeam("Alpha", "ev1", "hash", epoch)

	solve := func(ctfID string, endSec int) {
		a, _ := st.CreateAttempt(team.ID, ctfID, "chal-1", epoch)
		st.CompleteAttempt(a.ID, epoch.Add(time.Duration(endSec)*time.Second), 10)
	}
	// Solved second but created first, to prove ordering is by end time.
	solve("ctf-a", 200)
	solve("ctf-b", 100)

	emoji := func(challengeID, ctfID string) (string, bool) {
		if ctfID == "ctf-b" {
			return "🍪", true
		}
		return "", false
	}

	entries, err := Compute(st, "ev1", emoji)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	got := entries[0].CompletedCTFs
	if len(got) != 2 || got[0] != "🍪" || got[1] != "✅" {
		t.Errorf("CompletedCTFs = %v, want [🍪 ✅]", got)
	}
}
