package challenge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Event is one classroom session, gated by a shared password.
type Event struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Date        string `yaml:"date" json:"date"`
	Location    string `yaml:"location" json:"location"`
	Description string `yaml:"description" json:"description"`
	Password    string `yaml:"password" json:"-"`
}

// CTF is one puzzle inside a challenge set. Flag and hints stay server-side;
// handlers strip them before responding.
type CTF struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Points      int      `json:"points"`
	Emoji       string   `json:"emoji"`
	Flag        string   `json:"flag"`
	Hints       []string `json:"hints"`
}

// Challenge is a themed bundle of CTFs, optionally password-gated.
type Challenge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Emoji       string `json:"emoji"`
	Password    string `json:"password"`
}

type ctfKey struct {
	challengeID string
	ctfID       string
}

// Catalog is the static content tree loaded once at startup:
//
//	<dir>/events.yaml
//	<dir>/challenges/<challenge-id>/challenge.json
//	<dir>/challenges/<challenge-id>/ctfs/<ctf-id>/ctf.json
type Catalog struct {
	events     []Event
	challenges map[string]*Challenge
	ctfs       map[ctfKey]*CTF
	byChal     map[string][]*CTF
}

// Load reads the content directory. Directory names must match the id fields
// inside the metadata files; a mismatch is a configuration error.
func Load(dir string) (*Catalog, error) {
	cat := &Catalog{
		challenges: make(map[string]*Challenge),
		ctfs:       make(map[ctfKey]*CTF),
		byChal:     make(map[string][]*CTF),
	}

	eventsRaw, err := os.ReadFile(filepath.Join(dir, "events.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	var eventsFile struct {
		Events []Event `yaml:"events"`
	}
	if err := yaml.Unmarshal(eventsRaw, &eventsFile); err != nil {
		return nil, fmt.Errorf("parse events: %w", err)
	}
	cat.events = eventsFile.Events

	chalRoot := filepath.Join(dir, "challenges")
	entries, err := os.ReadDir(chalRoot)
	if err != nil {
		return nil, fmt.Errorf("read challenges dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		chal, err := loadChallenge(filepath.Join(chalRoot, entry.Name()))
		if err != nil {
			return nil, err
		}
		if chal.ID != entry.Name() {
			return nil, fmt.Errorf("challenge id %q does not match directory %q", chal.ID, entry.Name())
		}
		cat.challenges[chal.ID] = chal

		ctfRoot := filepath.Join(chalRoot, entry.Name(), "ctfs")
		ctfEntries, err := os.ReadDir(ctfRoot)
		if err != nil {
			return nil, fmt.Errorf("read ctfs of %s: %w", chal.ID, err)
		}
		for _, ce := range ctfEntries {
			if !ce.IsDir() {
				continue
			}
			ctf, err := loadCTF(filepath.Join(ctfRoot, ce.Name()))
			if err != nil {
				return nil, err
			}
			if ctf.ID != ce.Name() {
				return nil, fmt.Errorf("ctf id %q does not match directory %q", ctf.ID, ce.Name())
			}
			cat.ctfs[ctfKey{chal.ID, ctf.ID}] = ctf
			cat.byChal[chal.ID] = append(cat.byChal[chal.ID], ctf)
		}
		sort.Slice(cat.byChal[chal.ID], func(i, j int) bool {
			return cat.byChal[chal.ID][i].ID < cat.byChal[chal.ID][j].ID
		})
	}

	return cat, nil
}

func loadChallenge(dir string) (*Challenge, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "challenge.json"))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var chal Challenge
	if err := json.Unmarshal(raw, &chal); err != nil {
		return nil, fmt.Errorf("parse %s: %w", dir, err)
	}
	return &chal, nil
}

func loadCTF(dir string) (*CTF, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "ctf.json"))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dir, err)
	}
	var ctf CTF
	if err := json.Unmarshal(raw, &ctf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", dir, err)
	}
	return &ctf, nil
}

// Events returns all configured events.
func (c *Catalog) Events() []Event {
	return c.events
}

// EventByID looks an event up by id.
func (c *Catalog) EventByID(id string) (Event, bool) {
	for _, e := range c.events {
		if e.ID == id {
			return e, true
		}
	}
	return Event{}, false
}

// EventByPassword matches the shared event password entered on the join page.
func (c *Catalog) EventByPassword(password string) (Event, bool) {
	for _, e := range c.events {
		if e.Password != "" && e.Password == password {
			return e, true
		}
	}
	return Event{}, false
}

// Challenges returns all challenge sets sorted by id.
func (c *Catalog) Challenges() []Challenge {
	out := make([]Challenge, 0, len(c.challenges))
	for _, chal := range c.challenges {
		out = append(out, *chal)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ChallengeByID returns the challenge set, guarding the id first.
func (c *Catalog) ChallengeByID(id string) (*Challenge, bool) {
	if !SafeSegment(id) {
		return nil, false
	}
	chal, ok := c.challenges[id]
	return chal, ok
}

// CTFsInChallenge returns the puzzles of one challenge set.
func (c *Catalog) CTFsInChallenge(challengeID string) []*CTF {
	if !SafeSegment(challengeID) {
		return nil
	}
	return c.byChal[challengeID]
}

// CTFByID returns one puzzle, guarding both ids first.
func (c *Catalog) CTFByID(challengeID, ctfID string) (*CTF, bool) {
	if !SafeSegment(challengeID) || !SafeSegment(ctfID) {
		return nil, false
	}
	ctf, ok := c.ctfs[ctfKey{challengeID, ctfID}]
	return ctf, ok
}

// Emoji maps a completed puzzle to its display emoji for the leaderboard.
func (c *Catalog) Emoji(challengeID, ctfID string) (string, bool) {
	ctf, ok := c.ctfs[ctfKey{challengeID, ctfID}]
	if !ok || ctf.Emoji == "" {
		return "", false
	}
	return ctf.Emoji, true
}

// SafeSegment reports whether a client-supplied id is a single filesystem-safe
// path atom. The catalog maps ids to files on disk, so anything that could
// change directories is rejected before lookup.
func SafeSegment(segment string) bool {
	if segment == "" || segment == "." || segment == ".." {
		return false
	}
	if strings.ContainsAny(segment, "/\\\x00") {
		return false
	}
	return filepath.Base(segment) == segment
}
