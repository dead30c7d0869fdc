package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BerylCAtieno/milo-api/internal/models"
	"github.com/BerylCAtieno/milo-api/internal/utils"
)

type Tab string

const (
	TabAsk Tab = "ask"
	TabLab Tab = "lab"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownTab      = errors.New("unknown tab")
)

// ParseTab maps a request value to a Tab. Empty means the ask tab.
func ParseTab(s string) (Tab, error) {
	switch Tab(s) {
	case "", TabAsk:
		return TabAsk, nil
	case TabLab:
		return TabLab, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTab, s)
	}
}

// Session is the application state of one client: the selected patient and
// one conversation per tab.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu      sync.Mutex
	patient *models.Patient
	tabs    map[Tab]*Conversation
	// gen advances on every patient switch.
	gen uint64
}

// Turn is one pending submission. Its reply is only recorded while the
// session still has the patient selected when the turn started.
type Turn struct {
	Tab     Tab
	History []models.ChatMessage
	Patient *models.Patient
	gen     uint64
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		CreatedAt: now,
		tabs: map[Tab]*Conversation{
			TabAsk: newConversation(),
			TabLab: newConversation(),
		},
	}
}

// Patient returns the selected patient or nil.
func (s *Session) Patient() *models.Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patient
}

// SelectPatient switches the current patient and clears every transcript.
// Passing nil clears the selection. Turns still in flight are orphaned.
func (s *Session) SelectPatient(p *models.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.patient = p
	s.gen++
	for _, c := range s.tabs {
		c.reset()
	}
}

// Submit records a user message on tab and returns the turn holding the
// prior history and the patient selected at submission time.
func (s *Session) Submit(tab Tab, text string) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Turn{
		Tab:     tab,
		History: s.tabs[tab].Submit(text),
		Patient: s.patient,
		gen:     s.gen,
	}
}

// Deliver appends reply for t. It reports false and drops the reply when
// the patient changed after t was submitted.
func (s *Session) Deliver(t Turn, reply string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.gen != s.gen {
		return false
	}
	s.tabs[t.Tab].Deliver(reply)
	return true
}

// Fail appends the fallback text for t, with the same staleness rule as Deliver.
func (s *Session) Fail(t Turn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.gen != s.gen {
		return false
	}
	s.tabs[t.Tab].Fail()
	return true
}

// State returns the current state of tab.
func (s *Session) State(tab Tab) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tabs[tab].State()
}

type TabView struct {
	State    State                `json:"state"`
	Messages []models.ChatMessage `json:"messages"`
}

type View struct {
	ID          string          `json:"id"`
	PatientID   string          `json:"patient_id,omitempty"`
	PatientName string          `json:"patient_name,omitempty"`
	Tabs        map[Tab]TabView `json:"tabs"`
	CreatedAt   time.Time       `json:"created_at"`
}

// View snapshots the session for API responses.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:        s.ID,
		Tabs:      make(map[Tab]TabView, len(s.tabs)),
		CreatedAt: s.CreatedAt,
	}
	if s.patient != nil {
		v.PatientID = s.patient.ID
		v.PatientName = s.patient.Name
	}
	for tab, c := range s.tabs {
		v.Tabs[tab] = TabView{State: c.State(), Messages: c.Messages()}
	}
	return v
}

// Controller owns every live session. Sessions are kept in memory only.
type Controller struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *utils.Logger
	now      func() time.Time
}

func NewController(logger *utils.Logger) *Controller {
	return &Controller{
		sessions: make(map[string]*Session),
		logger:   logger,
		now:      time.Now,
	}
}

func (c *Controller) Create() *Session {
	s := newSession(utils.GenerateID(), c.now())

	c.mu.Lock()
	c.sessions[s.ID] = s
	active := len(c.sessions)
	c.mu.Unlock()

	c.logger.Info("Session created", "session_id", s.ID, "active_sessions", active)
	return s
}

func (c *Controller) Get(id string) (*Session, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete drops a session and its transcripts. Turns still in flight finish
// against the detached session.
func (c *Controller) Delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(c.sessions, id)

	c.logger.Info("Session deleted", "session_id", id, "active_sessions", len(c.sessions))
	return nil
}

