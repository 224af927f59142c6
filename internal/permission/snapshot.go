package permission

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"
)

// Snapshot is the JSON form of a Gate. Approval timestamps are unix
// seconds; operation_timeout is in seconds.
type Snapshot struct {
	AllowedPaths       []string                      `json:"allowed_paths"`
	ExcludedPaths      []string                      `json:"excluded_paths"`
	ExcludedPatterns   []string                      `json:"excluded_patterns"`
	ApprovedOperations map[string]map[string]float64 `json:"approved_operations"`
	OperationTimeout   float64                       `json:"operation_timeout"`
	RequireApproval    []string                      `json:"require_approval,omitempty"`
}

// Snapshot captures the gate state.
func (g *Gate) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := &Snapshot{
		AllowedPaths:       sortedKeys(g.allowed),
		ExcludedPaths:      sortedKeys(g.excludedPaths),
		ExcludedPatterns:   append([]string{}, g.excludedPatterns...),
		ApprovedOperations: make(map[string]map[string]float64, len(g.approvals)),
		OperationTimeout:   g.timeout.Seconds(),
		RequireApproval:    sortedKeys(g.requireApproval),
	}
	for path, ops := range g.approvals {
		m := make(map[string]float64, len(ops))
		for op, at := range ops {
			m[op] = toUnixSeconds(at)
		}
		s.ApprovedOperations[path] = m
	}
	return s
}

// ToJSON serializes the gate.
func (g *Gate) ToJSON() ([]byte, error) {
	return json.Marshal(g.Snapshot())
}

// FromJSON rebuilds a gate from ToJSON output. The pattern list is taken
// from the document as-is, so defaults removed before saving stay removed.
func FromJSON(data []byte, opts ...Option) (*Gate, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("invalid permission snapshot: %w", err)
	}
	return FromSnapshot(&s, opts...), nil
}

// FromSnapshot rebuilds a gate from a snapshot.
func FromSnapshot(s *Snapshot, opts ...Option) *Gate {
	g := New(append([]Option{WithoutDefaultExclusions()}, opts...)...)
	if s.OperationTimeout > 0 {
		g.timeout = time.Duration(s.OperationTimeout * float64(time.Second))
	}
	for _, p := range s.AllowedPaths {
		g.allowed[filepath.Clean(p)] = struct{}{}
	}
	for _, p := range s.ExcludedPaths {
		g.excludedPaths[filepath.Clean(p)] = struct{}{}
	}
	g.excludedPatterns = append(g.excludedPatterns, s.ExcludedPatterns...)
	for _, op := range s.RequireApproval {
		g.requireApproval[op] = struct{}{}
	}
	for path, ops := range s.ApprovedOperations {
		m := make(map[string]time.Time, len(ops))
		for op, ts := range ops {
			m[op] = fromUnixSeconds(ts)
		}
		g.approvals[path] = m
	}
	return g
}

// MergeApprovals imports approvals from s, keeping the newer timestamp
// where both sides have one. It returns how many entries changed.
func (g *Gate) MergeApprovals(s *Snapshot) int {
	if s == nil {
		return 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	changed := 0
	for path, ops := range s.ApprovedOperations {
		current, ok := g.approvals[path]
		if !ok {
			current = make(map[string]time.Time, len(ops))
			g.approvals[path] = current
		}
		for op, ts := range ops {
			at := fromUnixSeconds(ts)
			if prev, ok := current[op]; !ok || at.After(prev) {
				current[op] = at
				changed++
			}
		}
	}
	return changed
}

// mergeSnapshotApprovals folds src approvals into dst, newest wins.
func mergeSnapshotApprovals(dst, src map[string]map[string]float64) map[string]map[string]float64 {
	if dst == nil {
		dst = make(map[string]map[string]float64)
	}
	for path, ops := range src {
		if dst[path] == nil {
			dst[path] = make(map[string]float64, len(ops))
		}
		for op, ts := range ops {
			if ts > dst[path][op] {
				dst[path][op] = ts
			}
		}
	}
	return dst
}

// pruneSnapshotApprovals drops entries older than timeout relative to now.
func pruneSnapshotApprovals(ops map[string]map[string]float64, timeout time.Duration, now time.Time) {
	cutoff := toUnixSeconds(now.Add(-timeout))
	for path, m := range ops {
		for op, ts := range m {
			if ts < cutoff {
				delete(m, op)
			}
		}
		if len(m) == 0 {
			delete(ops, path)
		}
	}
}

// ApprovalPaths returns the paths carrying at least one approval, sorted.
func (s *Snapshot) ApprovalPaths() []string {
	paths := make([]string, 0, len(s.ApprovedOperations))
	for p := range s.ApprovedOperations {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func toUnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func fromUnixSeconds(ts float64) time.Time {
	return time.Unix(0, int64(ts*float64(time.Second)))
}
