package store

import (
	"errors"
	"time"
)

// Sentinel errors shared by every backend. Handlers branch on these instead of
// inspecting driver errors.
var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicate        = errors.New("record already exists")
	ErrAlreadyCompleted = errors.New("attempt already completed")
	ErrNoActiveTimer    = errors.New("no active timer")
)

// Team is the unit of participation. One row per (event, name); the reserved
// name "superuser" identifies the privileged team of an event.
type Team struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	TotalPoints int       `json:"total_points"`
	EventID     string    `json:"event_id"`
	PinHash     string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// Attempt is one team's timed try at one CTF. The natural key is
// (team_id, ctf_id, challenge_id); at most one row exists per key.
type Attempt struct {
	ID           int64      `json:"id"`
	TeamID       int64      `json:"team_id"`
	CTFID        string     `json:"ctf_id"`
	ChallengeID  string     `json:"challenge_id"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time"`
	Completed    bool       `json:"completed"`
	PointsEarned int        `json:"points_earned"`
}

// HintPurchase is append-only; (team_id, ctf_id, challenge_id, hint_index) is
// unique so a retried purchase can never charge twice.
type HintPurchase struct {
	ID          int64     `json:"id"`
	TeamID      int64     `json:"team_id"`
	CTFID       string    `json:"ctf_id"`
	ChallengeID string    `json:"challenge_id"`
	HintIndex   int       `json:"hint_index"`
	Cost        int       `json:"cost"`
	PurchasedAt time.Time `json:"purchased_at"`
}

// TimerState is the persisted half of the countdown timer; remaining time is
// always recomputed from it on read, never stored.
type TimerState struct {
	StartedAt       *time.Time `json:"started_at"`
	DurationSeconds int        `json:"duration_seconds"`
}

// Idle reports whether no timer has been set (or it was cleared).
func (s TimerState) Idle() bool {
	return s.StartedAt == nil || s.DurationSeconds <= 0
}

// LogRecord is one audit log entry.
type LogRecord struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Level     string    `json:"level"`
	TeamID    *int64    `json:"teamId,omitempty"`
	EventID   string    `json:"eventId,omitempty"`
	IPAddress string    `json:"ipAddress,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// InitialPoints is the grant every team starts with.
const InitialPoints = 60

// Store is the record store behind the whole platform: persistent collections
// with monotonic integer ids and uniqueness enforced on the stated natural
// keys at the write boundary. All mutating calls are safe to retry; a second
// writer on the same natural key observes the existing record instead of
// creating or charging twice.
type Store interface {
	// Teams
	CreateTeam(name, eventID, pinHash string, now time.Time) (*Team, error)
	TeamByID(id int64) (*Team, error)
	TeamByEventAndName(eventID, name string) (*Team, error)
	TeamsByEvent(eventID string) ([]Team, error)
	AddPoints(teamID int64, points int) error
	// DeductPoints subtracts cost and returns the new balance.
	DeductPoints(teamID int64, cost int) (int, error)
	// DeleteTeam removes the team and all of its access, attempt and
	// purchase records. Returns ErrNotFound if no such team exists.
	DeleteTeam(id int64) error

	// Challenge access
	UnlockChallenge(teamID int64, challengeID string, now time.Time) error
	UnlockedChallenges(teamID int64) ([]string, error)

	// CTF attempts
	// CreateAttempt inserts a fresh incomplete attempt for the natural key,
	// or returns the existing one when the key is already taken.
	CreateAttempt(teamID int64, ctfID, challengeID string, start time.Time) (*Attempt, error)
	AttemptByKey(teamID int64, ctfID, challengeID string) (*Attempt, error)
	// CompleteAttempt flips the attempt to completed exactly once; a second
	// call returns ErrAlreadyCompleted and leaves the record untouched.
	CompleteAttempt(id int64, end time.Time, points int) error
	AttemptsByTeamAndChallenge(teamID int64, challengeID string) ([]Attempt, error)
	CompletedAttemptsByTeam(teamID int64) ([]Attempt, error)

	// Hint purchases
	// CreateHintPurchase records the purchase and reports whether this call
	// created it; false means the hint was already owned.
	CreateHintPurchase(teamID int64, ctfID, challengeID string, hintIndex, cost int, now time.Time) (bool, error)
	PurchasedHints(teamID int64, ctfID, challengeID string) ([]int, error)

	// Countdown timer (singleton)
	TimerState() (TimerState, error)
	SetTimer(state TimerState) error
	// ExtendTimer adds seconds to the running timer's duration without
	// touching started_at. Returns ErrNoActiveTimer when idle.
	ExtendTimer(addSeconds int) (TimerState, error)

	// Audit log
	AppendLog(rec LogRecord) error
	RecentLogs(limit int) ([]LogRecord, error)
}
