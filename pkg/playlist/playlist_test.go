package playlist

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/igolaizola/mixtape/pkg/catalog"
)

type fakeSelector struct {
	// replies are returned in order, the last one repeats
	replies []reply
	batches [][]catalog.Record
	themes  []string
}

type reply struct {
	text string
	err  error
}

func (f *fakeSelector) Select(ctx context.Context, batch []catalog.Record, theme string) (string, error) {
	f.batches = append(f.batches, batch)
	f.themes = append(f.themes, theme)
	idx := len(f.batches) - 1
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	return f.replies[idx].text, f.replies[idx].err
}

func records(n int) []catalog.Record {
	rs := make([]catalog.Record, n)
	for i := range rs {
		rs[i] = catalog.Record{
			"title":  fmt.Sprintf("Song %d", i),
			"artist": fmt.Sprintf("Artist %d", i%3),
		}
	}
	return rs
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		ok   bool
		want []Key
	}{
		{"not json", "not json", false, nil},
		{"object", "{}", false, nil},
		{"null", "null", false, nil},
		{"strings", `["a", "b"]`, false, nil},
		{"empty array", "[]", true, []Key{}},
		{"single", `[{"title":"A","artist":"B"}]`, true, []Key{{"a", "b"}}},
		{"missing fields", `[{"title":"A"},{}]`, true, []Key{{"a", ""}, {"", ""}}},
		{"null element", `[null,{"title":"A","artist":"B"}]`, true, []Key{{"a", "b"}}},
		{"code fence", "Sure! Here you go:\n```json\n[{\"title\":\"A\",\"artist\":\"B\"}]\n```", true, []Key{{"a", "b"}}},
		{"truncated", `[{"title":"A","artist":"B"},{"title":`, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.raw)
			if ok != tt.ok {
				t.Fatalf("Parse() ok = %v, want %v", ok, tt.ok)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Parse() returned %d candidates, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if k := KeyOf(got[i]); k != tt.want[i] {
					t.Errorf("candidate %d key = %v, want %v", i, k, tt.want[i])
				}
			}
		})
	}
}

func TestParseKeepsFields(t *testing.T) {
	got, ok := Parse(`[{"title":"A","artist":"B","year":1999}]`)
	if !ok || len(got) != 1 {
		t.Fatalf("Parse() = %v, %v", got, ok)
	}
	if got[0]["title"] != "A" || got[0]["artist"] != "B" || got[0]["year"] != float64(1999) {
		t.Errorf("unexpected candidate %v", got[0])
	}
}

func TestKeyOf(t *testing.T) {
	tests := []struct {
		in   map[string]any
		want Key
	}{
		{map[string]any{"title": "  Jump ", "artist": "VAN HALEN"}, Key{"jump", "van halen"}},
		{map[string]any{"title": 42, "artist": nil}, Key{"", ""}},
		{map[string]any{}, Key{"", ""}},
	}
	for _, tt := range tests {
		if got := KeyOf(tt.in); got != tt.want {
			t.Errorf("KeyOf(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBatches(t *testing.T) {
	tests := []struct {
		n, size int
		want    []int
	}{
		{0, 3, nil},
		{7, 3, []int{3, 3, 1}},
		{6, 3, []int{3, 3}},
		{2, 300, []int{2}},
		{4, 0, []int{4}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.n, tt.size), func(t *testing.T) {
			rs := records(tt.n)
			got := Batches(rs, tt.size)
			if len(got) != len(tt.want) {
				t.Fatalf("Batches() = %d batches, want %d", len(got), len(tt.want))
			}
			seen := map[string]int{}
			var total int
			for i, b := range got {
				if len(b) != tt.want[i] {
					t.Errorf("batch %d size = %d, want %d", i, len(b), tt.want[i])
				}
				for _, r := range b {
					seen[r.Title()]++
				}
				total += len(b)
			}
			if total != tt.n {
				t.Errorf("total = %d, want %d", total, tt.n)
			}
			for title, n := range seen {
				if n != 1 {
					t.Errorf("%s appears in %d batches", title, n)
				}
			}
		})
	}
}

func TestShuffle(t *testing.T) {
	rs := records(50)
	a := Shuffle(rs, rand.New(rand.NewSource(7)))
	b := Shuffle(rs, rand.New(rand.NewSource(7)))
	for i := range a {
		if a[i].Title() != b[i].Title() {
			t.Fatal("same seed produced different orders")
		}
	}
	for i := range rs {
		if rs[i].Title() != fmt.Sprintf("Song %d", i) {
			t.Fatal("Shuffle modified its input")
		}
	}
	seen := map[string]bool{}
	for _, r := range a {
		seen[r.Title()] = true
	}
	if len(seen) != len(rs) {
		t.Errorf("shuffled copy has %d distinct records, want %d", len(seen), len(rs))
	}
}

func TestAssembleDuplicateWithinBatch(t *testing.T) {
	sel := &fakeSelector{replies: []reply{
		{text: `[{"title":"X","artist":"Y"},{"title":"X","artist":"Y"}]`},
		{text: `[]`},
	}}
	a := New(Config{BatchSize: 3, TotalTarget: 2, Seed: 1}, sel)
	p, err := a.Assemble(context.Background(), records(7), "theme")
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 1 {
		t.Fatalf("playlist length = %d, want 1", p.Len())
	}
	if p.Songs[0]["title"] != "X" || p.Songs[0]["artist"] != "Y" {
		t.Errorf("unexpected song %v", p.Songs[0])
	}
	if len(sel.batches) < 2 {
		t.Errorf("selector called %d times, want a second batch", len(sel.batches))
	}
	if p.Stats.Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", p.Stats.Duplicates)
	}
}

func TestAssembleEarlyStop(t *testing.T) {
	sel := &fakeSelector{replies: []reply{
		{text: `[{"title":"A","artist":"1"},{"title":"B","artist":"2"}]`},
	}}
	a := New(Config{BatchSize: 3, TotalTarget: 2, Seed: 1}, sel)
	p, err := a.Assemble(context.Background(), records(9), "theme")
	if err != nil {
		t.Fatal(err)
	}
	if len(sel.batches) != 1 {
		t.Fatalf("selector called %d times, want 1", len(sel.batches))
	}
	if p.Len() != 2 {
		t.Errorf("playlist length = %d, want 2", p.Len())
	}
	if p.Stats.Batches != 3 || p.Stats.Sent != 1 {
		t.Errorf("unexpected stats %+v", p.Stats)
	}
}

func TestAssembleCap(t *testing.T) {
	sel := &fakeSelector{replies: []reply{
		{text: `[{"title":"A"},{"title":"B"},{"title":"C"},{"title":"D"},{"title":"E"}]`},
	}}
	a := New(Config{BatchSize: 2, TotalTarget: 3, Seed: 1}, sel)
	p, err := a.Assemble(context.Background(), records(10), "theme")
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 3 {
		t.Fatalf("playlist length = %d, want 3", p.Len())
	}
	if len(sel.batches) != 1 {
		t.Errorf("selector called %d times, want 1", len(sel.batches))
	}
	for i, want := range []string{"A", "B", "C"} {
		if p.Songs[i]["title"] != want {
			t.Errorf("song %d = %v, want %s", i, p.Songs[i]["title"], want)
		}
	}
}

func TestAssembleDedupAcrossBatches(t *testing.T) {
	sel := &fakeSelector{replies: []reply{
		{text: `[{"title":"Jump","artist":"Van Halen"}]`},
		{text: `[{"title":" JUMP ","artist":"van halen"},{"title":"Panama","artist":"Van Halen"}]`},
		{text: `[{"title":"jump","artist":"Van Halen "}]`},
	}}
	a := New(Config{BatchSize: 2, TotalTarget: 10, Seed: 1}, sel)
	p, err := a.Assemble(context.Background(), records(6), "theme")
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 2 {
		t.Fatalf("playlist length = %d, want 2: %v", p.Len(), p.Songs)
	}
	// First occurrence wins
	if p.Songs[0]["title"] != "Jump" || p.Songs[1]["title"] != "Panama" {
		t.Errorf("unexpected order %v", p.Songs)
	}
	keys := map[Key]bool{}
	for _, s := range p.Songs {
		k := KeyOf(s)
		if keys[k] {
			t.Errorf("duplicate key %v", k)
		}
		keys[k] = true
	}
}

func TestAssembleFailures(t *testing.T) {
	sel := &fakeSelector{replies: []reply{
		{err: errors.New("selector: retries exhausted")},
		{text: "I can't help with that"},
		{text: `[{"title":"A","artist":"B"}]`},
	}}
	a := New(Config{BatchSize: 1, TotalTarget: 5, Seed: 1}, sel)
	p, err := a.Assemble(context.Background(), records(3), "theme")
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 1 {
		t.Fatalf("playlist length = %d, want 1", p.Len())
	}
	if len(sel.batches) != 3 {
		t.Errorf("selector called %d times, want 3", len(sel.batches))
	}
	if p.Stats.Failed != 1 || p.Stats.Unparsed != 1 {
		t.Errorf("unexpected stats %+v", p.Stats)
	}
}

func TestAssembleAlwaysFailing(t *testing.T) {
	sel := &fakeSelector{replies: []reply{{err: errors.New("down")}}}
	a := New(Config{BatchSize: 4, TotalTarget: 5, Seed: 1}, sel)
	p, err := a.Assemble(context.Background(), records(10), "theme")
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 0 {
		t.Errorf("playlist length = %d, want 0", p.Len())
	}
	if len(sel.batches) != 3 {
		t.Errorf("selector called %d times, want 3", len(sel.batches))
	}
}

func TestAssemblePartition(t *testing.T) {
	sel := &fakeSelector{replies: []reply{{text: "[]"}}}
	a := New(Config{BatchSize: 3, TotalTarget: 5, Seed: 42}, sel)
	rs := records(11)
	if _, err := a.Assemble(context.Background(), rs, "theme"); err != nil {
		t.Fatal(err)
	}
	seen := map[string]int{}
	var total int
	for _, b := range sel.batches {
		if len(b) > 3 {
			t.Errorf("batch of %d records exceeds batch size", len(b))
		}
		for _, r := range b {
			seen[r.Title()]++
		}
		total += len(b)
	}
	if total != len(rs) || len(seen) != len(rs) {
		t.Errorf("batches cover %d records (%d distinct), want %d", total, len(seen), len(rs))
	}
	for _, th := range sel.themes {
		if th != "theme" {
			t.Errorf("theme = %q", th)
		}
	}
}

func TestAssembleEmptyCatalog(t *testing.T) {
	sel := &fakeSelector{replies: []reply{{text: "[]"}}}
	p, err := New(Config{BatchSize: 3, TotalTarget: 5}, sel).Assemble(context.Background(), nil, "")
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 0 || len(sel.batches) != 0 {
		t.Errorf("playlist length = %d, calls = %d, want 0, 0", p.Len(), len(sel.batches))
	}
}

func TestAssembleRequireInBatch(t *testing.T) {
	sel := &fakeSelector{}
	rs := records(2)
	sel.replies = []reply{{text: `[{"title":"Song 0","artist":"Artist 0"},{"title":"Made Up","artist":"Nobody"}]`}}
	a := New(Config{BatchSize: 2, TotalTarget: 5, Seed: 1, RequireInBatch: true}, sel)
	p, err := a.Assemble(context.Background(), rs, "theme")
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 1 || p.Songs[0]["title"] != "Song 0" {
		t.Errorf("unexpected playlist %v", p.Songs)
	}
	if p.Stats.Rejected != 1 {
		t.Errorf("rejected = %d, want 1", p.Stats.Rejected)
	}
}

func TestAssembleCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sel := &fakeSelector{replies: []reply{{text: "[]"}}}
	_, err := New(Config{BatchSize: 1, TotalTarget: 5}, sel).Assemble(ctx, records(3), "theme")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Assemble() = %v, want context.Canceled", err)
	}
	if len(sel.batches) != 0 {
		t.Errorf("selector called %d times after cancel", len(sel.batches))
	}
}
