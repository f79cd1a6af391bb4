package action

import (
	"sort"
	"sync"
	"time"
)

// Stats collects execution statistics per action name.
type Stats struct {
	mu sync.RWMutex

	perAction map[string]*ActionStats

	totalExecutions uint64
	totalErrors     uint64
	totalDuration   time.Duration
}

// ActionStats holds statistics for one action name.
type ActionStats struct {
	Name           string
	ExecutionCount uint64
	ErrorCount     uint64
	TotalDuration  time.Duration
	MaxDuration    time.Duration
	LastError      string
	LastExecution  time.Time
}

// NewStats creates an empty statistics collector.
func NewStats() *Stats {
	return &Stats{perAction: make(map[string]*ActionStats)}
}

// Record records one execution.
func (s *Stats) Record(name string, at time.Time, duration time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalExecutions++
	s.totalDuration += duration

	as := s.perAction[name]
	if as == nil {
		as = &ActionStats{Name: name}
		s.perAction[name] = as
	}
	as.ExecutionCount++
	as.TotalDuration += duration
	as.LastExecution = at
	if duration > as.MaxDuration {
		as.MaxDuration = duration
	}
	if err != nil {
		s.totalErrors++
		as.ErrorCount++
		as.LastError = err.Error()
	}
}

// TotalExecutions returns the number of recorded executions.
func (s *Stats) TotalExecutions() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalExecutions
}

// TotalErrors returns the number of failed executions.
func (s *Stats) TotalErrors() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalErrors
}

// AverageDuration returns the mean execution time.
func (s *Stats) AverageDuration() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.totalExecutions == 0 {
		return 0
	}
	return s.totalDuration / time.Duration(s.totalExecutions)
}

// Action returns a copy of the statistics for name, or nil.
func (s *Stats) Action(name string) *ActionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	as := s.perAction[name]
	if as == nil {
		return nil
	}
	c := *as
	return &c
}

// Top returns the n most executed actions.
func (s *Stats) Top(n int) []*ActionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ActionStats, 0, len(s.perAction))
	for _, as := range s.perAction {
		c := *as
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExecutionCount == out[j].ExecutionCount {
			return out[i].Name < out[j].Name
		}
		return out[i].ExecutionCount > out[j].ExecutionCount
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// Reset clears all statistics.
func (s *Stats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.perAction = make(map[string]*ActionStats)
	s.totalExecutions = 0
	s.totalErrors = 0
	s.totalDuration = 0
}
