package diagnostics

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Verdict is the outcome of running an event through the scrub hook.
type Verdict int

const (
	// VerdictKeep passes the event through unchanged.
	VerdictKeep Verdict = iota
	// VerdictRewritten replaces the event with the hook's version.
	VerdictRewritten
	// VerdictDrop discards the event entirely.
	VerdictDrop
)

// Hook runs a user-supplied JavaScript function over each event before
// it is spooled. The script must define scrub(event); returning null
// drops the event, returning an object replaces it, anything else keeps
// it as is. Script errors keep the event: a broken hook must not
// silence diagnostics.
type Hook struct {
	mu  sync.Mutex
	vm  *goja.Runtime
	fn  goja.Callable
	log *zap.Logger
}

// NewHook loads and compiles the scrub script at path.
func NewHook(path string, log *zap.Logger) (*Hook, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scrub: read %s: %w", path, err)
	}

	vm := goja.New()
	if _, err := vm.RunString(string(src)); err != nil {
		return nil, fmt.Errorf("scrub: compile %s: %w", path, err)
	}
	fn, ok := goja.AssertFunction(vm.Get("scrub"))
	if !ok {
		return nil, fmt.Errorf("scrub: %s does not define a scrub(event) function", path)
	}

	return &Hook{vm: vm, fn: fn, log: log.Named("scrub")}, nil
}

// Apply runs the hook over ev. The event's identity is not the hook's
// to change: ID and capture time survive any rewrite.
func (h *Hook) Apply(ev Event) (Event, Verdict) {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Warn("encode failed, keeping event", zap.Error(err))
		return ev, VerdictKeep
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		h.log.Warn("decode failed, keeping event", zap.Error(err))
		return ev, VerdictKeep
	}

	result, err := h.fn(goja.Undefined(), h.vm.ToValue(obj))
	if err != nil {
		h.log.Warn("hook failed, keeping event", zap.String("event_id", ev.ID), zap.Error(err))
		return ev, VerdictKeep
	}

	if goja.IsNull(result) {
		return Event{}, VerdictDrop
	}
	if goja.IsUndefined(result) {
		return ev, VerdictKeep
	}

	out, err := json.Marshal(result.Export())
	if err != nil {
		h.log.Warn("hook returned unusable value, keeping event", zap.String("event_id", ev.ID), zap.Error(err))
		return ev, VerdictKeep
	}
	var rewritten Event
	if err := json.Unmarshal(out, &rewritten); err != nil {
		h.log.Warn("hook returned unusable value, keeping event", zap.String("event_id", ev.ID), zap.Error(err))
		return ev, VerdictKeep
	}

	rewritten.ID = ev.ID
	rewritten.Time = ev.Time
	if normalized, err := json.Marshal(rewritten); err == nil && string(normalized) == string(data) {
		return ev, VerdictKeep
	}
	return rewritten, VerdictRewritten
}
