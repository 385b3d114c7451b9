package store

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// attemptKey and purchaseKey are the composite natural keys; keeping them as
// map keys makes the "at most one" invariants plain map uniqueness instead of
// a race-prone scan.
type attemptKey struct {
	teamID      int64
	ctfID       string
	challengeID string
}

type purchaseKey struct {
	teamID      int64
	ctfID       string
	challengeID string
	hintIndex   int
}

type teamNameKey struct {
	eventID string
	name    string // lowercased
}

// Memory is the in-process Store. It backs tests and zero-setup classroom
// runs (no DATABASE_URL). All collections live behind one mutex; every
// check-and-write below is a single critical section.
type Memory struct {
	mu sync.Mutex

	teams     map[int64]*Team
	teamNames map[teamNameKey]int64
	nextTeam  int64

	access     map[int64]map[string]time.Time // teamID -> challengeID -> unlocked_at
	attempts   map[attemptKey]*Attempt
	nextAtt    int64
	purchases  map[purchaseKey]*HintPurchase
	nextPurch  int64
	timer      TimerState
	logRecords []LogRecord
	nextLog    int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		teams:     make(map[int64]*Team),
		teamNames: make(map[teamNameKey]int64),
		access:    make(map[int64]map[string]time.Time),
		attempts:  make(map[attemptKey]*Attempt),
		purchases: make(map[purchaseKey]*HintPurchase),
	}
}

func (m *Memory) CreateTeam(name, eventID, pinHash string, now time.Time) (*Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := teamNameKey{eventID, strings.ToLower(name)}
	if _, taken := m.teamNames[key]; taken {
		return nil, ErrDuplicate
	}

	m.nextTeam++
	t := &Team{
		ID:          m.nextTeam,
		Name:        name,
		TotalPoints: InitialPoints,
		EventID:     eventID,
		PinHash:     pinHash,
		CreatedAt:   now,
	}
	m.teams[t.ID] = t
	m.teamNames[key] = t.ID
	out := *t
	return &out, nil
}

func (m *Memory) TeamByID(id int64) (*Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *t
	return &out, nil
}

func (m *Memory) TeamByEventAndName(eventID, name string) (*Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.teamNames[teamNameKey{eventID, strings.ToLower(name)}]
	if !ok {
		return nil, ErrNotFound
	}
	out := *m.teams[id]
	return &out, nil
}

func (m *Memory) TeamsByEvent(eventID string) ([]Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var teams []Team
	for _, t := range m.teams {
		if t.EventID == eventID {
			teams = append(teams, *t)
		}
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].ID < teams[j].ID })
	return teams, nil
}

func (m *Memory) AddPoints(teamID int64, points int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[teamID]
	if !ok {
		return ErrNotFound
	}
	t.TotalPoints += points
	return nil
}

func (m *Memory) DeductPoints(teamID int64, cost int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[teamID]
	if !ok {
		return 0, ErrNotFound
	}
	t.TotalPoints -= cost
	return t.TotalPoints, nil
}

func (m *Memory) DeleteTeam(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.teamNames, teamNameKey{t.EventID, strings.ToLower(t.Name)})
	delete(m.teams, id)
	delete(m.access, id)
	for k := range m.attempts {
		if k.teamID == id {
			delete(m.attempts, k)
		}
	}
	for k := range m.purchases {
		if k.teamID == id {
			delete(m.purchases, k)
		}
	}
	return nil
}

func (m *Memory) UnlockChallenge(teamID int64, challengeID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	unlocked, ok := m.access[teamID]
	if !ok {
		unlocked = make(map[string]time.Time)
		m.access[teamID] = unlocked
	}
	if _, exists := unlocked[challengeID]; !exists {
		unlocked[challengeID] = now
	}
	return nil
}

func (m *Memory) UnlockedChallenges(teamID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id := range m.access[teamID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *Memory) CreateAttempt(teamID int64, ctfID, challengeID string, start time.Time) (*Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := attemptKey{teamID, ctfID, challengeID}
	if existing, ok := m.attempts[key]; ok {
		out := *existing
		return &out, nil
	}
	m.nextAtt++
	a := &Attempt{
		ID:          m.nextAtt,
		TeamID:      teamID,
		CTFID:       ctfID,
		ChallengeID: challengeID,
		StartTime:   start,
	}
	m.attempts[key] = a
	out := *a
	return &out, nil
}

func (m *Memory) AttemptByKey(teamID int64, ctfID, challengeID string) (*Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptKey{teamID, ctfID, challengeID}]
	if !ok {
		return nil, ErrNotFound
	}
	out := *a
	return &out, nil
}

func (m *Memory) CompleteAttempt(id int64, end time.Time, points int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.ID != id {
			continue
		}
		if a.Completed {
			return ErrAlreadyCompleted
		}
		endCopy := end
		a.EndTime = &endCopy
		a.Completed = true
		a.PointsEarned = points
		return nil
	}
	return ErrNotFound
}

func (m *Memory) AttemptsByTeamAndChallenge(teamID int64, challengeID string) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Attempt
	for k, a := range m.attempts {
		if k.teamID == teamID && k.challengeID == challengeID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CompletedAttemptsByTeam(teamID int64) ([]Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Attempt
	for k, a := range m.attempts {
		if k.teamID == teamID && a.Completed && a.EndTime != nil {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateHintPurchase(teamID int64, ctfID, challengeID string, hintIndex, cost int, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := purchaseKey{teamID, ctfID, challengeID, hintIndex}
	if _, exists := m.purchases[key]; exists {
		return false, nil
	}
	m.nextPurch++
	m.purchases[key] = &HintPurchase{
		ID:          m.nextPurch,
		TeamID:      teamID,
		CTFID:       ctfID,
		ChallengeID: challengeID,
		HintIndex:   hintIndex,
		Cost:        cost,
		PurchasedAt: now,
	}
	return true, nil
}

func (m *Memory) PurchasedHints(teamID int64, ctfID, challengeID string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	indexes := []int{}
	for k := range m.purchases {
		if k.teamID == teamID && k.ctfID == ctfID && k.challengeID == challengeID {
			indexes = append(indexes, k.hintIndex)
		}
	}
	sort.Ints(indexes)
	return indexes, nil
}

func (m *Memory) TimerState() (TimerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timer, nil
}

func (m *Memory) SetTimer(state TimerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timer = state
	return nil
}

func (m *Memory) ExtendTimer(addSeconds int) (TimerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer.Idle() {
		return TimerState{}, ErrNoActiveTimer
	}
	m.timer.DurationSeconds += addSeconds
	return m.timer, nil
}

func (m *Memory) AppendLog(rec LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLog++
	rec.ID = m.nextLog
	m.logRecords = append(m.logRecords, rec)
	return nil
}

func (m *Memory) RecentLogs(limit int) ([]LogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.logRecords)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]LogRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.logRecords[i])
	}
	return out, nil
}
