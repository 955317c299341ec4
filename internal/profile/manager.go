package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/kalambet/simkit/internal/storage"
)

// ErrInvalid is returned by Save when a persona fails validation.
var ErrInvalid = errors.New("invalid persona")

// PersonaStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type PersonaStore interface {
	SavePersona(p storage.Persona) error
	GetPersona(id string) (storage.Persona, error)
	ListPersonas() ([]storage.Persona, error)
	DeletePersona(id string) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type cacheEntry struct {
	persona  Persona
	cachedAt time.Time
}

// Manager provides cached, structured access to personas stored in SQLite.
// Each persona is cached independently; writes invalidate only that entry.
type Manager struct {
	store PersonaStore
	clock Clock
	ttl   time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store PersonaStore) *Manager {
	return NewManagerWithClock(store, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store PersonaStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store: store,
		clock: clock,
		ttl:   ttl,
		cache: make(map[string]cacheEntry),
	}
}

// Get returns the persona with the given ID. storage.ErrNotFound is returned
// (wrapped) when it does not exist.
func (m *Manager) Get(id string) (Persona, error) {
	m.mu.RLock()
	if e, ok := m.cache[id]; ok && m.fresh(e) {
		p := deepCopy(e.persona)
		m.mu.RUnlock()
		return p, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if e, ok := m.cache[id]; ok && m.fresh(e) {
		return deepCopy(e.persona), nil
	}

	row, err := m.store.GetPersona(id)
	if err != nil {
		return Persona{}, fmt.Errorf("loading persona %s: %w", id, err)
	}
	p := fromRow(row)
	m.cache[id] = cacheEntry{persona: p, cachedAt: m.clock.Now()}
	return deepCopy(p), nil
}

func (m *Manager) fresh(e cacheEntry) bool {
	return m.clock.Now().Before(e.cachedAt.Add(m.ttl))
}

// Save validates and persists p, assigning an ID to new personas. It returns
// the stored persona.
func (m *Manager) Save(p Persona) (Persona, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return Persona{}, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if p.YearsExperience < 0 {
		return Persona{}, fmt.Errorf("%w: years_experience must not be negative", ErrInvalid)
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := m.clock.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	row, err := toRow(p)
	if err != nil {
		return Persona{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SavePersona(row); err != nil {
		return Persona{}, fmt.Errorf("saving persona %s: %w", p.ID, err)
	}
	delete(m.cache, p.ID)

	saved, err := m.store.GetPersona(p.ID)
	if err != nil {
		return Persona{}, fmt.Errorf("reloading persona %s: %w", p.ID, err)
	}
	return fromRow(saved), nil
}

// List returns all personas. Results bypass the cache.
func (m *Manager) List() ([]Persona, error) {
	rows, err := m.store.ListPersonas()
	if err != nil {
		return nil, fmt.Errorf("listing personas: %w", err)
	}
	out := make([]Persona, len(rows))
	for i, r := range rows {
		out[i] = fromRow(r)
	}
	return out, nil
}

// Delete removes a persona and drops it from the cache.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.DeletePersona(id); err != nil {
		return fmt.Errorf("deleting persona %s: %w", id, err)
	}
	delete(m.cache, id)
	return nil
}

// maxSummaryChars caps the summary to stay under ~500 tokens (4 chars/token).
const maxSummaryChars = 2000

// Summary returns a compact description of the persona used as classifier
// context: identity, expertise, skills and interests.
func Summary(p Persona) string {
	var parts []string

	identity := p.Name
	if p.Title != "" {
		identity += ", " + p.Title
	}
	if p.Profession != "" && p.Profession != p.Title {
		identity += " (" + p.Profession + ")"
	}
	if identity != "" {
		parts = append(parts, identity+".")
	}
	if p.Expertise != "" {
		parts = append(parts, fmt.Sprintf("Expertise: %s.", p.Expertise))
	}
	if skills := nonBlank(p.Skills); len(skills) > 0 {
		parts = append(parts, fmt.Sprintf("Skills: %s.", strings.Join(skills, ", ")))
	}
	if interests := nonBlank(p.Interests); len(interests) > 0 {
		parts = append(parts, fmt.Sprintf("Interests: %s.", strings.Join(interests, ", ")))
	}
	if p.Background != "" {
		parts = append(parts, p.Background)
	}

	if len(parts) == 0 {
		return "Persona profile: not yet configured."
	}

	summary := strings.Join(parts, " ")
	if len(summary) > maxSummaryChars {
		// Ensure we don't split a multi-byte UTF-8 character.
		end := maxSummaryChars
		for end > 0 && !utf8.RuneStart(summary[end]) {
			end--
		}
		if idx := strings.LastIndex(summary[:end], " "); idx > 0 {
			summary = summary[:idx]
		} else {
			summary = summary[:end]
		}
	}
	return summary
}

func nonBlank(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func deepCopy(p Persona) Persona {
	cp := p
	if p.Interests != nil {
		cp.Interests = append([]string(nil), p.Interests...)
	}
	if p.Skills != nil {
		cp.Skills = append([]string(nil), p.Skills...)
	}
	if p.Scenarios != nil {
		cp.Scenarios = append(cp.Scenarios[:0:0], p.Scenarios...)
	}
	return cp
}

func toRow(p Persona) (storage.Persona, error) {
	interests, err := marshalColumn("interests", p.Interests)
	if err != nil {
		return storage.Persona{}, err
	}
	skills, err := marshalColumn("skills", p.Skills)
	if err != nil {
		return storage.Persona{}, err
	}
	scenarios, err := marshalColumn("scenarios", p.Scenarios)
	if err != nil {
		return storage.Persona{}, err
	}
	return storage.Persona{
		ID:              p.ID,
		Name:            p.Name,
		Title:           p.Title,
		Profession:      p.Profession,
		Location:        p.Location,
		Education:       p.Education,
		YearsExperience: p.YearsExperience,
		Expertise:       p.Expertise,
		Background:      p.Background,
		Interests:       interests,
		Skills:          skills,
		WritingSample:   p.WritingSample,
		Scenarios:       scenarios,
		WelcomeMessage:  p.WelcomeMessage,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}, nil
}

func marshalColumn(name string, v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshalling %s: %w", name, err)
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}

func fromRow(r storage.Persona) Persona {
	p := Persona{
		ID:              r.ID,
		Name:            r.Name,
		Title:           r.Title,
		Profession:      r.Profession,
		Location:        r.Location,
		Education:       r.Education,
		YearsExperience: r.YearsExperience,
		Expertise:       r.Expertise,
		Background:      r.Background,
		WritingSample:   r.WritingSample,
		WelcomeMessage:  r.WelcomeMessage,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	unmarshalColumn(r.ID, "interests", r.Interests, &p.Interests)
	unmarshalColumn(r.ID, "skills", r.Skills, &p.Skills)
	unmarshalColumn(r.ID, "scenarios", r.Scenarios, &p.Scenarios)
	return p
}

// unmarshalColumn decodes a JSON list column into target, logging a warning
// if the value is present but malformed.
func unmarshalColumn(id, column, value string, target interface{}) {
	if value == "" {
		return
	}
	if err := json.Unmarshal([]byte(value), target); err != nil {
		slog.Warn("malformed persona column, skipping", "persona_id", id, "column", column, "error", err)
	}
}
