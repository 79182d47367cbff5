package order

import (
	"testing"
	"time"

	"treekeeper/internal/tree"
)

func named(names ...string) []tree.Entry {
	out := make([]tree.Entry, len(names))
	for i, n := range names {
		out[i] = tree.Entry{Path: "/data/" + n, Name: n, Kind: tree.KindFile}
	}
	return out
}

func names(entries []tree.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func assertOrder(t *testing.T, got []tree.Entry, want ...string) {
	t.Helper()
	g := names(got)
	if len(g) != len(want) {
		t.Fatalf("got %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("got %v, want %v", g, want)
		}
	}
}

func TestByModTime(t *testing.T) {
	now := time.Now()
	entries := []tree.Entry{
		{Name: "old", ModTime: now.Add(-2 * time.Hour)},
		{Name: "new", ModTime: now},
		{Name: "mid", ModTime: now.Add(-time.Hour)},
	}
	Sort(entries, ByModTime())
	assertOrder(t, entries, "new", "mid", "old")
}

func TestBySequence(t *testing.T) {
	tests := []struct {
		name       string
		shift      int
		decreasing bool
		files      []string
		want       []string
	}{
		{"prefix shift", 4, false, []string{"seq_0010.dat", "seq_0002.dat", "seq_0100.dat"}, []string{"seq_0002.dat", "seq_0010.dat", "seq_0100.dat"}},
		{"suffix shift", -1, false, []string{"a_0003.log", "b_0001.log", "c_0002.log"}, []string{"b_0001.log", "c_0002.log", "a_0003.log"}},
		{"decreasing", 4, true, []string{"seq_0001", "seq_0003", "seq_0002"}, []string{"seq_0003", "seq_0002", "seq_0001"}},
		{"unparsable last", 4, false, []string{"seq_abcd", "seq_0001"}, []string{"seq_0001", "seq_abcd"}},
		{"unparsable last when decreasing", 4, true, []string{"seq_abcd", "seq_0001", "seq_0003"}, []string{"seq_0003", "seq_0001", "seq_abcd"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := named(tt.files...)
			Sort(entries, BySequence(tt.shift, 4, tt.decreasing))
			assertOrder(t, entries, tt.want...)
		})
	}
}

func TestSequenceNumber(t *testing.T) {
	s := BySequence(-1, 3, false)
	n, err := s.Number(tree.Entry{Name: "part-042.bin"})
	if err != nil || n != 42 {
		t.Errorf("Number = %d, %v; want 42", n, err)
	}
	if _, err := s.Number(tree.Entry{Name: "x"}); err == nil {
		t.Error("expected error for short name")
	}
}

func TestByTimestamp(t *testing.T) {
	files := []string{"dump_20240305.sql", "dump_20231231.sql", "dump_20240101.sql"}

	fifo := named(files...)
	Sort(fifo, ByTimestamp("20060102", 5, false))
	assertOrder(t, fifo, "dump_20231231.sql", "dump_20240101.sql", "dump_20240305.sql")

	lifo := named(files...)
	Sort(lifo, ByTimestamp("20060102", -1, true))
	assertOrder(t, lifo, "dump_20240305.sql", "dump_20240101.sql", "dump_20231231.sql")

	// names without a timestamp stay at the end in both directions
	mixed := []string{"dump_latest.sql", "dump_20231231.sql", "dump_20240305.sql"}
	fifoMixed := named(mixed...)
	Sort(fifoMixed, ByTimestamp("20060102", 5, false))
	assertOrder(t, fifoMixed, "dump_20231231.sql", "dump_20240305.sql", "dump_latest.sql")

	lifoMixed := named(mixed...)
	Sort(lifoMixed, ByTimestamp("20060102", 5, true))
	assertOrder(t, lifoMixed, "dump_20240305.sql", "dump_20231231.sql", "dump_latest.sql")
}

func TestTimestampTime(t *testing.T) {
	ts := ByTimestamp("20060102150405", 0, false)
	got, err := ts.Time(tree.Entry{Name: "20240309140507_report.csv"})
	if err != nil {
		t.Fatalf("Time: %v", err)
	}
	want := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Time = %v, want %v", got, want)
	}
	if _, err := ts.Time(tree.Entry{Name: "99999999999999_x"}); err == nil {
		t.Error("expected parse error")
	}
}
