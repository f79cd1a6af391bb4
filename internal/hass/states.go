package hass

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// State is an entity state.
type State struct {
	EntityID    string
	State       string
	Attributes  map[string]any
	LastChanged time.Time
}

func parseState(r gjson.Result) State {
	st := State{
		EntityID: r.Get("entity_id").String(),
		State:    r.Get("state").String(),
	}
	if attrs, ok := r.Get("attributes").Value().(map[string]any); ok {
		st.Attributes = attrs
	}
	if ts := r.Get("last_changed").String(); ts != "" {
		st.LastChanged, _ = time.Parse(time.RFC3339Nano, ts)
	}
	return st
}

// GetStates fetches every entity state.
func (c *Client) GetStates(ctx context.Context) ([]State, error) {
	res, err := c.Command(ctx, map[string]any{"type": "get_states"})
	if err != nil {
		return nil, fmt.Errorf("get states: %w", err)
	}
	if !res.IsArray() {
		return nil, fmt.Errorf("%w: get_states result is not a list", ErrUnexpectedMessage)
	}
	items := res.Array()
	states := make([]State, 0, len(items))
	for _, item := range items {
		states = append(states, parseState(item))
	}
	return states, nil
}

// StateStore holds the latest state of every entity.
type StateStore struct {
	mu       sync.RWMutex
	states   map[string]State
	onChange func(State)
}

// NewStateStore creates an empty store. onChange, if set, is called for
// every state_changed update and for entries a Sync added or replaced.
func NewStateStore(onChange func(State)) *StateStore {
	return &StateStore{
		states:   make(map[string]State),
		onChange: onChange,
	}
}

// State returns the state string of entityID.
func (s *StateStore) State(entityID string) (string, bool) {
	st, ok := s.Get(entityID)
	return st.State, ok
}

// Get returns the full state of entityID.
func (s *StateStore) Get(entityID string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[entityID]
	return st, ok
}

// Set stores st.
func (s *StateStore) Set(st State) {
	s.mu.Lock()
	s.states[st.EntityID] = st
	s.mu.Unlock()
}

// Remove deletes entityID.
func (s *StateStore) Remove(entityID string) {
	s.mu.Lock()
	delete(s.states, entityID)
	s.mu.Unlock()
}

// Len returns the number of stored entities.
func (s *StateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Sync subscribes to state_changed events and loads the current states.
// It returns the subscription id.
//
// The get_states snapshot is authoritative: entries it omits are removed
// and entries it carries replace stored ones, unless a state_changed event
// newer than the snapshot entry has already been applied. onChange is
// called for every entry that is new or differs from what was stored.
func (s *StateStore) Sync(ctx context.Context, c *Client) (int64, error) {
	id, err := c.Subscribe(ctx, map[string]any{
		"type":       "subscribe_events",
		"event_type": "state_changed",
	}, s.handleEvent)
	if err != nil {
		return 0, fmt.Errorf("subscribe state_changed: %w", err)
	}

	states, err := c.GetStates(ctx)
	if err != nil {
		_ = c.Unsubscribe(context.WithoutCancel(ctx), id)
		return 0, err
	}

	var changed []State
	s.mu.Lock()
	present := make(map[string]struct{}, len(states))
	for _, st := range states {
		present[st.EntityID] = struct{}{}
		prev, seen := s.states[st.EntityID]
		if seen && prev.LastChanged.After(st.LastChanged) {
			continue
		}
		s.states[st.EntityID] = st
		if !seen || prev.State != st.State || !prev.LastChanged.Equal(st.LastChanged) {
			changed = append(changed, st)
		}
	}
	for entityID := range s.states {
		if _, ok := present[entityID]; !ok {
			delete(s.states, entityID)
		}
	}
	s.mu.Unlock()

	if s.onChange != nil {
		for _, st := range changed {
			s.onChange(st)
		}
	}
	return id, nil
}

func (s *StateStore) handleEvent(ev gjson.Result) {
	data := ev.Get("data")
	entityID := data.Get("entity_id").String()
	if entityID == "" {
		return
	}
	next := data.Get("new_state")
	if !next.IsObject() {
		s.Remove(entityID)
		return
	}
	st := parseState(next)
	s.Set(st)
	if s.onChange != nil {
		s.onChange(st)
	}
}
