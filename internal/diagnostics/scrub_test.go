package diagnostics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scrub.js")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func sampleEvent() Event {
	return Event{
		ID:          "ev-1",
		Time:        time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
		AppID:       "1:234:ios:abc",
		Environment: "staging",
		ConfigKeys:  []string{"endpoint"},
		Platform:    Platform{OS: "linux", Arch: "amd64", Runtime: "go1.25.0"},
	}
}

func TestHookRewrite(t *testing.T) {
	hook, err := NewHook(writeScript(t, `
		function scrub(event) {
			event.environment = "redacted";
			return event;
		}
	`), zap.NewNop())
	require.NoError(t, err)

	ev := sampleEvent()
	out, verdict := hook.Apply(ev)
	require.Equal(t, VerdictRewritten, verdict)
	require.Equal(t, "redacted", out.Environment)
	require.Equal(t, ev.AppID, out.AppID)
}

func TestHookCannotChangeIdentity(t *testing.T) {
	hook, err := NewHook(writeScript(t, `
		function scrub(event) {
			event.id = "forged";
			event.environment = "redacted";
			return event;
		}
	`), zap.NewNop())
	require.NoError(t, err)

	ev := sampleEvent()
	out, verdict := hook.Apply(ev)
	require.Equal(t, VerdictRewritten, verdict)
	require.Equal(t, ev.ID, out.ID)
	require.Equal(t, ev.Time, out.Time)
}

func TestHookDrop(t *testing.T) {
	hook, err := NewHook(writeScript(t, `
		function scrub(event) {
			if (event.environment === "staging") return null;
			return event;
		}
	`), zap.NewNop())
	require.NoError(t, err)

	_, verdict := hook.Apply(sampleEvent())
	require.Equal(t, VerdictDrop, verdict)

	ev := sampleEvent()
	ev.Environment = "production"
	out, verdict := hook.Apply(ev)
	require.Equal(t, VerdictKeep, verdict)
	require.Equal(t, "production", out.Environment)
}

func TestHookNoReturnKeeps(t *testing.T) {
	hook, err := NewHook(writeScript(t, `function scrub(event) {}`), zap.NewNop())
	require.NoError(t, err)

	ev := sampleEvent()
	out, verdict := hook.Apply(ev)
	require.Equal(t, VerdictKeep, verdict)
	require.Equal(t, ev, out)
}

func TestHookUnchangedReturnKeeps(t *testing.T) {
	hook, err := NewHook(writeScript(t, `function scrub(event) { return event; }`), zap.NewNop())
	require.NoError(t, err)

	_, verdict := hook.Apply(sampleEvent())
	require.Equal(t, VerdictKeep, verdict)
}

func TestHookErrorFailsOpen(t *testing.T) {
	hook, err := NewHook(writeScript(t, `
		function scrub(event) {
			throw new Error("boom");
		}
	`), zap.NewNop())
	require.NoError(t, err)

	ev := sampleEvent()
	out, verdict := hook.Apply(ev)
	require.Equal(t, VerdictKeep, verdict, "a broken hook must not eat events")
	require.Equal(t, ev, out)
}

func TestNewHookErrors(t *testing.T) {
	_, err := NewHook(filepath.Join(t.TempDir(), "absent.js"), zap.NewNop())
	require.Error(t, err)

	_, err = NewHook(writeScript(t, `function scrub(`), zap.NewNop())
	require.Error(t, err)

	_, err = NewHook(writeScript(t, `var scrub = 42;`), zap.NewNop())
	require.Error(t, err)

	_, err = NewHook(writeScript(t, `function other(event) { return event; }`), zap.NewNop())
	require.Error(t, err)
}
