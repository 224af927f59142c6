package permission

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
)

// DoomLoopThreshold is the number of identical consecutive calls that
// counts as a loop.
const DoomLoopThreshold = 3

const doomLoopHistory = 10

// DoomLoopDetector tracks recent tool calls per run and flags a model that
// keeps repeating the same call with the same arguments.
type DoomLoopDetector struct {
	mu      sync.Mutex
	history map[string][]string // run id -> recent call hashes
}

// NewDoomLoopDetector creates a new detector.
func NewDoomLoopDetector() *DoomLoopDetector {
	return &DoomLoopDetector{
		history: make(map[string][]string),
	}
}

// Observe records a call and reports whether it completes a run of
// DoomLoopThreshold identical calls. Arguments are compared as compacted
// JSON when they parse, raw otherwise.
func (d *DoomLoopDetector) Observe(runID, toolName, arguments string) bool {
	hash := hashCall(toolName, arguments)

	d.mu.Lock()
	defer d.mu.Unlock()

	history := append(d.history[runID], hash)
	if len(history) > doomLoopHistory {
		history = history[len(history)-doomLoopHistory:]
	}
	d.history[runID] = history

	if len(history) < DoomLoopThreshold {
		return false
	}
	for _, h := range history[len(history)-DoomLoopThreshold:] {
		if h != hash {
			return false
		}
	}
	return true
}

// Forget drops the history of a finished run.
func (d *DoomLoopDetector) Forget(runID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.history, runID)
}

func hashCall(toolName, arguments string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(arguments)); err != nil {
		buf.Reset()
		buf.WriteString(arguments)
	}
	h := sha256.New()
	h.Write([]byte(toolName))
	h.Write([]byte{0})
	h.Write(buf.Bytes())
	return hex.EncodeToString(h.Sum(nil))
}
