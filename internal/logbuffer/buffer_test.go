package logbuffer

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRingKeepsNewest(t *testing.T) {
	b := New(3)
	for i := 0; i < 5; i++ {
		b.Add(Entry{Level: "info", Message: fmt.Sprintf("m%d", i)})
	}

	got := b.Entries()
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	for i, want := range []string{"m2", "m3", "m4"} {
		if got[i].Message != want {
			t.Fatalf("entry %d: got %q want %q", i, got[i].Message, want)
		}
	}

	st := b.Stats()
	if st.Capacity != 3 || st.Count != 3 || st.Dropped != 2 || st.Levels["info"] != 3 {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestNewDefaultsCapacity(t *testing.T) {
	if got := New(0).Stats().Capacity; got != DefaultCapacity {
		t.Fatalf("capacity = %d", got)
	}
}

func TestWriteCapturesZerologEvents(t *testing.T) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	b := New(10)
	logger := zerolog.New(b).With().Timestamp().Str("component", "overlay").Logger()

	logger.Warn().Int("slot", 2).Msg("duration clamped")
	logger.Info().Msg("rotation")

	got := b.Entries()
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	e := got[0]
	if e.Level != "warn" || e.Message != "duration clamped" || e.Component != "overlay" {
		t.Fatalf("unexpected entry %+v", e)
	}
	if slot, ok := e.Fields["slot"].(float64); !ok || slot != 2 {
		t.Fatalf("slot field = %v", e.Fields["slot"])
	}
	if _, ok := e.Fields["time"]; ok {
		t.Fatal("time should be lifted out of fields")
	}
	if e.Time.IsZero() || time.Since(e.Time) > time.Minute {
		t.Fatalf("unexpected time %v", e.Time)
	}
	if got[1].Fields != nil {
		t.Fatalf("expected no extra fields, got %v", got[1].Fields)
	}
}

func TestWriteIgnoresNonJSON(t *testing.T) {
	b := New(4)
	n, err := b.Write([]byte("12:00PM INF plain console line\n"))
	if err != nil || n == 0 {
		t.Fatalf("write = %d, %v", n, err)
	}
	if len(b.Entries()) != 0 {
		t.Fatal("console output should not be captured")
	}
}

func TestQueryFilters(t *testing.T) {
	base := time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	b := New(10)
	b.Add(Entry{Time: base, Level: "debug", Message: "tick", Component: "overlay"})
	b.Add(Entry{Time: base.Add(time.Second), Level: "warn", Message: "Duration clamped", Component: "overlay"})
	b.Add(Entry{Time: base.Add(2 * time.Second), Level: "error", Message: "redis down", Component: "eventbus"})
	b.Add(Entry{Time: base.Add(3 * time.Second), Level: "info", Message: "frame", Component: "server"})

	tests := []struct {
		name  string
		query Query
		want  []string
	}{
		{"all", Query{}, []string{"tick", "Duration clamped", "redis down", "frame"}},
		{"min level", Query{MinLevel: zerolog.WarnLevel}, []string{"Duration clamped", "redis down"}},
		{"component", Query{Component: "overlay"}, []string{"tick", "Duration clamped"}},
		{"search folds case", Query{Search: "duration"}, []string{"Duration clamped"}},
		{"since", Query{Since: base.Add(2 * time.Second)}, []string{"redis down", "frame"}},
		{"limit keeps newest", Query{Limit: 2}, []string{"redis down", "frame"}},
		{"newest first", Query{Limit: 2, Newest: true}, []string{"frame", "redis down"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := b.Query(tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Message != tt.want[i] {
					t.Fatalf("entry %d: got %q want %q", i, got[i].Message, tt.want[i])
				}
			}
		})
	}

	comps := b.Components()
	if len(comps) != 3 || comps[0] != "eventbus" || comps[1] != "overlay" || comps[2] != "server" {
		t.Fatalf("components = %v", comps)
	}
}
