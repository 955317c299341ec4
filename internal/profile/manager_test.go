package profile

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kalambet/simkit/internal/storage"
	"github.com/kalambet/simkit/internal/style"
)

// --- Mock store ---

type mockStore struct {
	mu   sync.Mutex
	rows map[string]storage.Persona

	getCalls int
}

func newMockStore() *mockStore {
	return &mockStore{rows: make(map[string]storage.Persona)}
}

func (m *mockStore) SavePersona(p storage.Persona) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.rows[p.ID]; ok {
		p.CreatedAt = old.CreatedAt
	}
	m.rows[p.ID] = p
	return nil
}

func (m *mockStore) GetPersona(id string) (storage.Persona, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	p, ok := m.rows[id]
	if !ok {
		return storage.Persona{}, storage.ErrNotFound
	}
	return p, nil
}

func (m *mockStore) ListPersonas() ([]storage.Persona, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.Persona
	for _, p := range m.rows {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockStore) DeletePersona(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func (m *mockStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls
}

// --- Mock clock ---

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// --- Tests ---

func janeDoe() Persona {
	return Persona{
		Name:            "Jane Doe",
		Title:           "Partner",
		Profession:      "Tax attorney",
		YearsExperience: 12,
		Expertise:       "tax law; estate planning",
		Interests:       []string{"hiking"},
		Skills:          []string{"negotiation"},
		Scenarios: []style.Scenario{
			{Question: "Can you help?", ExpectedResponse: "Happy to! What's going on?"},
		},
	}
}

func TestSave_AssignsIDAndTimestamps(t *testing.T) {
	clock := &mockClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	mgr := NewManagerWithClock(newMockStore(), clock, time.Minute)

	saved, err := mgr.Save(janeDoe())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID == "" {
		t.Error("expected generated ID")
	}
	if !saved.CreatedAt.Equal(clock.now) || !saved.UpdatedAt.Equal(clock.now) {
		t.Errorf("timestamps = %v/%v, want %v", saved.CreatedAt, saved.UpdatedAt, clock.now)
	}

	want := janeDoe()
	want.ID = saved.ID
	want.CreatedAt = saved.CreatedAt
	want.UpdatedAt = saved.UpdatedAt
	if diff := cmp.Diff(want, saved); diff != "" {
		t.Errorf("saved persona mismatch (-want +got):\n%s", diff)
	}
}

func TestSave_Validation(t *testing.T) {
	mgr := NewManager(newMockStore())

	if _, err := mgr.Save(Persona{Name: "   "}); !errors.Is(err, ErrInvalid) {
		t.Errorf("blank name: err = %v, want ErrInvalid", err)
	}
	if _, err := mgr.Save(Persona{Name: "X", YearsExperience: -1}); !errors.Is(err, ErrInvalid) {
		t.Errorf("negative years: err = %v, want ErrInvalid", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	mgr := NewManager(newMockStore())

	_, err := mgr.Get("missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want storage.ErrNotFound", err)
	}
}

func TestCacheTTL(t *testing.T) {
	store := newMockStore()
	store.rows["p1"] = storage.Persona{ID: "p1", Name: "Jane"}
	clock := &mockClock{now: time.Now()}
	mgr := NewManagerWithClock(store, clock, 60*time.Second)

	mgr.Get("p1")
	mgr.Get("p1")
	if calls := store.calls(); calls != 1 {
		t.Errorf("expected 1 store call (cache hit on second), got %d", calls)
	}

	clock.Advance(61 * time.Second)
	mgr.Get("p1")
	if calls := store.calls(); calls != 2 {
		t.Errorf("expected 2 store calls (cache expired), got %d", calls)
	}
}

func TestCache_InvalidatedOnSave(t *testing.T) {
	store := newMockStore()
	mgr := NewManager(store)

	saved, err := mgr.Save(janeDoe())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := mgr.Get(saved.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}

	saved.Title = "Managing Partner"
	if _, err := mgr.Save(saved); err != nil {
		t.Fatalf("Save update: %v", err)
	}
	got, err := mgr.Get(saved.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Managing Partner" {
		t.Errorf("Title = %q, want update visible", got.Title)
	}
}

func TestGet_ReturnsDeepCopy(t *testing.T) {
	mgr := NewManager(newMockStore())
	saved, err := mgr.Save(janeDoe())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	first, _ := mgr.Get(saved.ID)
	first.Skills[0] = "mutated"
	first.Scenarios[0].ExpectedResponse = "mutated"

	second, _ := mgr.Get(saved.ID)
	if second.Skills[0] != "negotiation" {
		t.Errorf("cached skills mutated: %v", second.Skills)
	}
	if second.Scenarios[0].ExpectedResponse == "mutated" {
		t.Error("cached scenarios mutated")
	}
}

func TestDelete_DropsCache(t *testing.T) {
	mgr := NewManager(newMockStore())
	saved, err := mgr.Save(janeDoe())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	mgr.Get(saved.ID)

	if err := mgr.Delete(saved.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := mgr.Get(saved.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	mgr := NewManager(newMockStore())
	for _, name := range []string{"A", "B"} {
		if _, err := mgr.Save(Persona{Name: name}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	list, err := mgr.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("got %d personas, want 2", len(list))
	}
}

func TestFromRow_MalformedColumnSkipped(t *testing.T) {
	p := fromRow(storage.Persona{
		ID:        "p1",
		Name:      "Jane",
		Interests: `not json`,
		Skills:    `["go"]`,
	})
	if len(p.Interests) != 0 {
		t.Errorf("Interests = %v, want empty", p.Interests)
	}
	if len(p.Skills) != 1 || p.Skills[0] != "go" {
		t.Errorf("Skills = %v, want [go]", p.Skills)
	}
}

func TestSummary_Full(t *testing.T) {
	summary := Summary(janeDoe())
	for _, want := range []string{"Jane Doe", "Partner", "Tax attorney", "tax law", "negotiation", "hiking"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q: %s", want, summary)
		}
	}
}

func TestSummary_Empty(t *testing.T) {
	if Summary(Persona{}) == "" {
		t.Error("expected non-empty summary for empty persona")
	}
}

func TestSummary_TokenBudget(t *testing.T) {
	p := Persona{Name: "Long", Background: strings.Repeat("A very detailed background sentence. ", 200)}
	summary := Summary(p)
	if len(summary) > maxSummaryChars {
		t.Errorf("summary too long: %d chars", len(summary))
	}
	if tokens := len(summary) / 4; tokens >= 500 {
		t.Errorf("summary too long: %d estimated tokens", tokens)
	}
}
