package store

import (
	"database/sql"
	"strings"
	"time"
)

// Postgres is the production Store. Natural keys are UNIQUE constraints, so
// the check and the write of every idempotent operation collapse into one
// statement: a second writer hits the conflict clause and sees the existing
// record instead of creating another.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) CreateTeam(name, eventID, pinHash string, now time.Time) (*Team, error) {
	var t Team
	err := p.db.QueryRow(`
		INSERT INTO teams (name, total_points, event_id, pin_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id, LOWER(name)) DO NOTHING
		RETURNING id, name, total_points, event_id, pin_hash, created_at`,
		name, InitialPoints, eventID, pinHash, now,
	).Scan(&t.ID, &t.Name, &t.TotalPoints, &t.EventID, &t.PinHash, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (p *Postgres) TeamByID(id int64) (*Team, error) {
	return p.scanTeam(p.db.QueryRow(`
		SELECT id, name, total_points, event_id, pin_hash, created_at
		FROM teams WHERE id = $1`, id))
}

func (p *Postgres) TeamByEventAndName(eventID, name string) (*Team, error) {
	return p.scanTeam(p.db.QueryRow(`
		SELECT id, name, total_points, event_id, pin_hash, created_at
		FROM teams WHERE event_id = $1 AND LOWER(name) = $2`,
		eventID, strings.ToLower(name)))
}

func (p *Postgres) scanTeam(row *sql.Row) (*Team, error) {
	var t Team
	err := row.Scan(&t.ID, &t.Name, &t.TotalPoints, &t.EventID, &t.PinHash, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (p *Postgres) TeamsByEvent(eventID string) ([]Team, error) {
	rows, err := p.db.Query(`
		SELECT id, name, total_points, event_id, pin_hash, created_at
		FROM teams WHERE event_id = $1 ORDER BY id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teams []Team
	for rows.Next() {
		var t Team
		if err := rows.Scan(&t.ID, &t.Name, &t.TotalPoints, &t.EventID, &t.PinHash, &t.CreatedAt); err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (p *Postgres) AddPoints(teamID int64, points int) error {
	res, err := p.db.Exec(`UPDATE teams SET total_points = total_points + $1 WHERE id = $2`,
		points, teamID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Postgres) DeductPoints(teamID int64, cost int) (int, error) {
	var balance int
	err := p.db.QueryRow(`
		UPDATE teams SET total_points = total_points - $1 WHERE id = $2
		RETURNING total_points`, cost, teamID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return balance, err
}

func (p *Postgres) DeleteTeam(id int64) error {
	// Access, attempt and purchase rows go with the team via ON DELETE CASCADE.
	res, err := p.db.Exec(`DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Postgres) UnlockChallenge(teamID int64, challengeID string, now time.Time) error {
	_, err := p.db.Exec(`
		INSERT INTO challenge_access (team_id, challenge_id, unlocked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (team_id, challenge_id) DO NOTHING`,
		teamID, challengeID, now)
	return err
}

func (p *Postgres) UnlockedChallenges(teamID int64) ([]string, error) {
	rows, err := p.db.Query(`
		SELECT challenge_id FROM challenge_access
		WHERE team_id = $1 ORDER BY challenge_id`, teamID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *Postgres) CreateAttempt(teamID int64, ctfID, challengeID string, start time.Time) (*Attempt, error) {
	var a Attempt
	err := p.db.QueryRow(`
		INSERT INTO ctf_attempts (team_id, ctf_id, challenge_id, start_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (team_id, ctf_id, challenge_id) DO NOTHING
		RETURNING id, team_id, ctf_id, challenge_id, start_time, end_time, completed, points_earned`,
		teamID, ctfID, challengeID, start,
	).Scan(&a.ID, &a.TeamID, &a.CTFID, &a.ChallengeID, &a.StartTime, &a.EndTime, &a.Completed, &a.PointsEarned)
	if err == sql.ErrNoRows {
		// Lost the insert race or the attempt predates this call; the
		// existing row is authoritative either way.
		return p.AttemptByKey(teamID, ctfID, challengeID)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (p *Postgres) AttemptByKey(teamID int64, ctfID, challengeID string) (*Attempt, error) {
	var a Attempt
	err := p.db.QueryRow(`
		SELECT id, team_id, ctf_id, challenge_id, start_time, end_time, completed, points_earned
		FROM ctf_attempts
		WHERE team_id = $1 AND ctf_id = $2 AND challenge_id = $3`,
		teamID, ctfID, challengeID,
	).Scan(&a.ID, &a.TeamID, &a.CTFID, &a.ChallengeID, &a.StartTime, &a.EndTime, &a.Completed, &a.PointsEarned)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (p *Postgres) CompleteAttempt(id int64, end time.Time, points int) error {
	// The completed = FALSE guard makes the transition terminal: once a row
	// is completed no later call can move end_time or points_earned.
	res, err := p.db.Exec(`
		UPDATE ctf_attempts
		SET end_time = $1, completed = TRUE, points_earned = $2
		WHERE id = $3 AND completed = FALSE`,
		end, points, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyCompleted
	}
	return nil
}

func (p *Postgres) AttemptsByTeamAndChallenge(teamID int64, challengeID string) ([]Attempt, error) {
	return p.queryAttempts(`
		SELECT id, team_id, ctf_id, challenge_id, start_time, end_time, completed, points_earned
		FROM ctf_attempts
		WHERE team_id = $1 AND challenge_id = $2 ORDER BY id`, teamID, challengeID)
}

func (p *Postgres) CompletedAttemptsByTeam(teamID int64) ([]Attempt, error) {
	return p.queryAttempts(`
		SELECT id, team_id, ctf_id, challenge_id, start_time, end_time, completed, points_earned
		FROM ctf_attempts
		WHERE team_id = $1 AND completed = TRUE AND end_time IS NOT NULL ORDER BY id`, teamID)
}

func (p *Postgres) queryAttempts(query string, args ...interface{}) ([]Attempt, error) {
	rows, err := p.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.TeamID, &a.CTFID, &a.ChallengeID, &a.StartTime, &a.EndTime, &a.Completed, &a.PointsEarned); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (p *Postgres) CreateHintPurchase(teamID int64, ctfID, challengeID string, hintIndex, cost int, now time.Time) (bool, error) {
	var id int64
	err := p.db.QueryRow(`
		INSERT INTO hint_purchases (team_id, ctf_id, challenge_id, hint_index, cost, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (team_id, ctf_id, challenge_id, hint_index) DO NOTHING
		RETURNING id`,
		teamID, ctfID, challengeID, hintIndex, cost, now).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (p *Postgres) PurchasedHints(teamID int64, ctfID, challengeID string) ([]int, error) {
	rows, err := p.db.Query(`
		SELECT hint_index FROM hint_purchases
		WHERE team_id = $1 AND ctf_id = $2 AND challenge_id = $3
		ORDER BY hint_index`, teamID, ctfID, challengeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	indexes := []int{}
	for rows.Next() {
		var idx int
		if err := rows.Scan(&idx); err != nil {
			return nil, err
		}
		indexes = append(indexes, idx)
	}
	return indexes, rows.Err()
}

func (p *Postgres) TimerState() (TimerState, error) {
	var state TimerState
	var startedAt sql.NullTime
	err := p.db.QueryRow(`SELECT started_at, duration_seconds FROM timer_state WHERE id = 1`).
		Scan(&startedAt, &state.DurationSeconds)
	if err == sql.ErrNoRows {
		return TimerState{}, nil
	}
	if err != nil {
		return TimerState{}, err
	}
	if startedAt.Valid {
		state.StartedAt = &startedAt.Time
	}
	return state, nil
}

func (p *Postgres) SetTimer(state TimerState) error {
	_, err := p.db.Exec(`
		INSERT INTO timer_state (id, started_at, duration_seconds) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET started_at = $1, duration_seconds = $2`,
		state.StartedAt, state.DurationSeconds)
	return err
}

func (p *Postgres) ExtendTimer(addSeconds int) (TimerState, error) {
	var state TimerState
	var startedAt sql.NullTime
	err := p.db.QueryRow(`
		UPDATE timer_state
		SET duration_seconds = duration_seconds + $1
		WHERE id = 1 AND started_at IS NOT NULL AND duration_seconds > 0
		RETURNING started_at, duration_seconds`, addSeconds).
		Scan(&startedAt, &state.DurationSeconds)
	if err == sql.ErrNoRows {
		return TimerState{}, ErrNoActiveTimer
	}
	if err != nil {
		return TimerState{}, err
	}
	if startedAt.Valid {
		state.StartedAt = &startedAt.Time
	}
	return state, nil
}

func (p *Postgres) AppendLog(rec LogRecord) error {
	_, err := p.db.Exec(`
		INSERT INTO audit_logs (type, level, team_id, event_id, ip_address, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.Type, rec.Level, rec.TeamID, rec.EventID, rec.IPAddress, rec.Message, rec.CreatedAt)
	return err
}

func (p *Postgres) RecentLogs(limit int) ([]LogRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.Query(`
		SELECT id, type, level, team_id, COALESCE(event_id, ''), COALESCE(ip_address, ''), message, created_at
		FROM audit_logs ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []LogRecord
	for rows.Next() {
		var rec LogRecord
		var teamID sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.Type, &rec.Level, &teamID, &rec.EventID, &rec.IPAddress, &rec.Message, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if teamID.Valid {
			rec.TeamID = &teamID.Int64
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
