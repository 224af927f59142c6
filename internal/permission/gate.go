package permission

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/opencode-ai/mcp-claude-code/internal/event"
)

// DefaultOperationTimeout is how long an approval stays valid.
const DefaultOperationTimeout = 300 * time.Second

// Gate holds the path allow-list, the exclusions and the time-boxed
// operation approvals. One Gate is created per process and passed to every
// component that touches the filesystem. All methods are safe for
// concurrent use; each call is atomic on its own.
type Gate struct {
	mu sync.RWMutex

	allowed          map[string]struct{}
	excludedPaths    map[string]struct{}
	excludedPatterns []string
	approvals        map[string]map[string]time.Time
	requireApproval  map[string]struct{}
	timeout          time.Duration

	now func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithOperationTimeout sets the approval lifetime.
func WithOperationTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithoutDefaultExclusions starts with an empty pattern list.
func WithoutDefaultExclusions() Option {
	return func(g *Gate) { g.excludedPatterns = nil }
}

// New creates a Gate with the default exclusion patterns and no allowed paths.
func New(opts ...Option) *Gate {
	g := &Gate{
		allowed:          make(map[string]struct{}),
		excludedPaths:    make(map[string]struct{}),
		excludedPatterns: append([]string(nil), DefaultExcludedPatterns...),
		approvals:        make(map[string]map[string]time.Time),
		requireApproval:  make(map[string]struct{}),
		timeout:          DefaultOperationTimeout,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddAllowedPath adds a directory, in canonical form, to the allow-list.
func (g *Gate) AddAllowedPath(path string) error {
	canon, err := Canonicalize(path)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.allowed[canon] = struct{}{}
	g.mu.Unlock()
	return nil
}

// RemoveAllowedPath removes a directory from the allow-list.
func (g *Gate) RemoveAllowedPath(path string) {
	canon, err := Canonicalize(path)
	if err != nil {
		return
	}
	g.mu.Lock()
	delete(g.allowed, canon)
	g.mu.Unlock()
}

// AllowedPaths returns the allow-list, sorted.
func (g *Gate) AllowedPaths() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.allowed)
}

// ExcludePath denies path and everything beneath it.
func (g *Gate) ExcludePath(path string) error {
	canon, err := Canonicalize(path)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.excludedPaths[canon] = struct{}{}
	g.mu.Unlock()
	return nil
}

// AddExclusionPattern appends a segment pattern. Duplicates are ignored.
func (g *Gate) AddExclusionPattern(pattern string) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.excludedPatterns {
		if p == pattern {
			return
		}
	}
	g.excludedPatterns = append(g.excludedPatterns, pattern)
}

// ExcludedPatterns returns the pattern list in order.
func (g *Gate) ExcludedPatterns() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]string(nil), g.excludedPatterns...)
}

// IsPathAllowed reports whether path is under an allowed directory and not
// excluded. Unresolvable input yields false.
func (g *Gate) IsPathAllowed(path string) bool {
	_, reason := g.check(path)
	return reason == ""
}

// check canonicalizes path and returns the deny reason, or "" when allowed.
func (g *Gate) check(path string) (string, DenyReason) {
	canon, err := Canonicalize(path)
	if err != nil {
		return path, ReasonUnresolvable
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.excludedLocked(canon) {
		return canon, ReasonExcluded
	}
	for root := range g.allowed {
		if isWithin(canon, root) {
			return canon, ""
		}
	}
	return canon, ReasonOutsideAllowed
}

func (g *Gate) excludedLocked(canon string) bool {
	for ex := range g.excludedPaths {
		if isWithin(canon, ex) {
			return true
		}
	}
	if len(g.excludedPatterns) == 0 {
		return false
	}
	segments := strings.Split(filepath.ToSlash(canon), "/")
	for _, pattern := range g.excludedPatterns {
		if matchesAnySegment(pattern, segments) {
			return true
		}
	}
	return false
}

// ApproveOperation records an approval for (path, operation), replacing any
// earlier one. Allowance is not checked here; it is checked on use.
func (g *Gate) ApproveOperation(path, operation string) {
	key := approvalKey(path)

	g.mu.Lock()
	ops, ok := g.approvals[key]
	if !ok {
		ops = make(map[string]time.Time)
		g.approvals[key] = ops
	}
	ops[operation] = g.now()
	g.mu.Unlock()

	event.Publish(event.Event{
		Type: event.ApprovalGranted,
		Data: event.ApprovalGrantedData{Path: key, Operation: operation},
	})
}

// IsOperationApproved reports whether path is allowed and carries a
// non-expired approval for operation.
func (g *Gate) IsOperationApproved(path, operation string) bool {
	canon, reason := g.check(path)
	if reason != "" {
		return false
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	at, ok := g.approvals[canon][operation]
	if !ok {
		return false
	}
	return g.now().Sub(at) <= g.timeout
}

// ClearApprovals drops every approval.
func (g *Gate) ClearApprovals() {
	g.mu.Lock()
	g.approvals = make(map[string]map[string]time.Time)
	g.mu.Unlock()
}

// ClearExpiredApprovals removes stale approvals and returns how many were removed.
func (g *Gate) ClearExpiredApprovals() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := 0
	for path, ops := range g.approvals {
		for op, at := range ops {
			if now.Sub(at) > g.timeout {
				delete(ops, op)
				removed++
			}
		}
		if len(ops) == 0 {
			delete(g.approvals, path)
		}
	}
	return removed
}

// OperationTimeout returns the approval lifetime.
func (g *Gate) OperationTimeout() time.Duration {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.timeout
}

// RequireApproval marks operations that Authorize only permits once approved.
func (g *Gate) RequireApproval(operations ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, op := range operations {
		if op = strings.TrimSpace(op); op != "" {
			g.requireApproval[op] = struct{}{}
		}
	}
}

// NeedsApproval reports whether operation requires an approval.
func (g *Gate) NeedsApproval(operation string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.requireApproval[operation]
	return ok
}

// Authorize is the single check tools perform before touching path.
// It returns a *DeniedError when the path is not allowed, or when the
// operation requires approval and none is active.
func (g *Gate) Authorize(path, operation string) error {
	canon, reason := g.check(path)
	if reason != "" {
		return &DeniedError{Path: canon, Operation: operation, Reason: reason}
	}
	if g.NeedsApproval(operation) && !g.IsOperationApproved(canon, operation) {
		return &DeniedError{Path: canon, Operation: operation, Reason: ReasonNotApproved}
	}
	return nil
}

// approvalKey is the canonical form of path, or the cleaned input when it
// cannot be resolved, so speculative approvals are still recorded.
func approvalKey(path string) string {
	if canon, err := Canonicalize(path); err == nil {
		return canon
	}
	return filepath.Clean(path)
}

// Canonicalize returns the absolute, symlink-resolved form of path. Paths
// that do not exist yet resolve through their nearest existing ancestor.
func Canonicalize(path string) (string, error) {
	if strings.TrimSpace(path) == "" || strings.ContainsRune(path, 0) {
		return "", &DeniedError{Path: path, Reason: ReasonUnresolvable}
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}

	var rest []string
	dir := abs
	for {
		parent := filepath.Dir(dir)
		rest = append([]string{filepath.Base(dir)}, rest...)
		if parent == dir {
			return abs, nil
		}
		dir = parent
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}
	}
}

// isWithin reports whether path equals root or lies beneath it.
func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
