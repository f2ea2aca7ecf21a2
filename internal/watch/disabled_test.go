package watch

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/flemzord/pulse/internal/notify/notifytest"
	"github.com/flemzord/pulse/internal/snapshot/snapshottest"
)

type fakeDisabled struct {
	rows [][]DisabledSession
}

func (f *fakeDisabled) DisabledSessions(context.Context, time.Duration) ([]DisabledSession, error) {
	r := f.rows[0]
	f.rows = f.rows[1:]
	return r, nil
}

func TestDisabledKey(t *testing.T) {
	t.Parallel()

	s := DisabledSession{Username: " user1 ", Encounters: 3, MapObjects: 7, Duration: " 0 hours, 5 minutes, 2 seconds "}
	if got, want := DisabledKey(s), "user1|3|7|0 hours, 5 minutes, 2 seconds"; got != want {
		t.Errorf("DisabledKey() = %q, want %q", got, want)
	}

	variants := []DisabledSession{
		{Username: "user1", Encounters: 4, MapObjects: 7, Duration: s.Duration},
		{Username: "user1", Encounters: 3, MapObjects: 8, Duration: s.Duration},
		{Username: "user1", Encounters: 3, MapObjects: 7, Duration: "0 hours, 5 minutes, 3 seconds"},
	}
	for _, v := range variants {
		if DisabledKey(v) == DisabledKey(s) {
			t.Errorf("DisabledKey(%+v) collides with the original", v)
		}
	}
}

func TestDisabledSession_Line(t *testing.T) {
	t.Parallel()

	s := DisabledSession{Username: "u", Encounters: 1, MapObjects: 2, Duration: "1 hours, 0 minutes, 0 seconds"}
	if got, want := s.Line(), "u | ENC=1 | GMO=2 | 1 hours, 0 minutes, 0 seconds"; got != want {
		t.Errorf("Line() = %q, want %q", got, want)
	}
	if got := (DisabledSession{}).Line(); got != "? | ENC=0 | GMO=0 | " {
		t.Errorf("Line() for empty session = %q", got)
	}
}

func TestDisabledJob_CompositeKeySensitivity(t *testing.T) {
	t.Parallel()

	first := DisabledSession{Username: "alice", Encounters: 1, MapObjects: 2, Duration: "0 hours, 1 minutes, 0 seconds"}
	changed := DisabledSession{Username: "alice", Encounters: 5, MapObjects: 2, Duration: "0 hours, 1 minutes, 0 seconds"}

	src := &fakeDisabled{rows: [][]DisabledSession{{first}, {changed}}}
	store := snapshottest.NewMemory()
	sink := &notifytest.Recorder{}
	j, err := NewDisabledJob(DisabledConfig{Window: 24 * time.Hour, Source: src, Store: store, Sink: sink})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	j.Tick(ctx)
	res := j.Tick(ctx)

	if res.Added != 1 || res.Removed != 1 {
		t.Fatalf("second tick = %+v, want the changed session as added", res)
	}

	notes := sink.Notifications()
	if len(notes) != 2 {
		t.Fatalf("got %d notifications, want 2", len(notes))
	}
	if want := []string{"alice | ENC=5 | GMO=2 | 0 hours, 1 minutes, 0 seconds"}; !slices.Equal(notes[1].Lines, want) {
		t.Errorf("Lines = %v, want %v", notes[1].Lines, want)
	}
	if want := "🔴 **ErrDisabled** new (last 24h) — **1**"; notes[1].Header != want {
		t.Errorf("Header = %q, want %q", notes[1].Header, want)
	}
	if notes[1].Filename != "err_disabled" {
		t.Errorf("Filename = %q", notes[1].Filename)
	}

	if got := store.Load(ctx, DisabledKeyName); !got.Equal(snapshotOf(DisabledKey(changed))) {
		t.Errorf("store = %v", got.Sorted())
	}
}

func TestDisabledJob_UnchangedSessionIsQuiet(t *testing.T) {
	t.Parallel()

	row := DisabledSession{Username: "bob", Encounters: 1, MapObjects: 1, Duration: "0 hours, 0 minutes, 9 seconds"}
	src := &fakeDisabled{rows: [][]DisabledSession{{row}, {row}}}
	sink := &notifytest.Recorder{}
	j, err := NewDisabledJob(DisabledConfig{Source: src, Store: snapshottest.NewMemory(), Sink: sink})
	if err != nil {
		t.Fatal(err)
	}

	j.Tick(context.Background())
	if res := j.Tick(context.Background()); res.Notified != 0 {
		t.Errorf("second tick notified %d times", res.Notified)
	}
	if j.Name() != "err_disabled" || j.Key() != "err_disabled_seen_keys" {
		t.Errorf("Name/Key = %q/%q", j.Name(), j.Key())
	}
}
