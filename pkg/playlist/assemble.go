package playlist

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/igolaizola/mixtape/pkg/catalog"
)

type Selector interface {
	Select(ctx context.Context, batch []catalog.Record, theme string) (string, error)
}

type Config struct {
	// BatchSize is the maximum number of records sent in one request.
	BatchSize int
	// TotalTarget caps the playlist length.
	TotalTarget int
	// Seed for the catalog shuffle, zero picks one from the clock.
	Seed int64
	// RequireInBatch drops candidates that don't match a record of the
	// batch they were picked from.
	RequireInBatch bool
	Debug          bool
}

// Stats are counters for a single run.
type Stats struct {
	Batches    int
	Sent       int
	Failed     int
	Unparsed   int
	Duplicates int
	Rejected   int
}

// Playlist holds the accepted songs in acceptance order.
type Playlist struct {
	Songs []Candidate
	Stats Stats

	seen map[Key]struct{}
}

func newPlaylist(capacity int) *Playlist {
	return &Playlist{
		Songs: make([]Candidate, 0, capacity),
		seen:  make(map[Key]struct{}),
	}
}

// add appends c unless its key was already accepted.
func (p *Playlist) add(c Candidate) bool {
	k := KeyOf(c)
	if _, ok := p.seen[k]; ok {
		return false
	}
	p.seen[k] = struct{}{}
	p.Songs = append(p.Songs, c)
	return true
}

func (p *Playlist) Len() int {
	return len(p.Songs)
}

type Assembler struct {
	cfg      Config
	selector Selector
}

func New(cfg Config, selector Selector) *Assembler {
	return &Assembler{
		cfg:      cfg,
		selector: selector,
	}
}

// Assemble builds a playlist for theme out of records. Failing batches are
// skipped, so the result may be shorter than the target or empty. It only
// returns an error if ctx is done.
func (a *Assembler) Assemble(ctx context.Context, records []catalog.Record, theme string) (*Playlist, error) {
	debug := func(format string, args ...any) {
		if !a.cfg.Debug {
			return
		}
		format += "\n"
		log.Printf(format, args...)
	}

	target := a.cfg.TotalTarget
	if target <= 0 {
		return nil, fmt.Errorf("playlist: invalid total target %d", target)
	}
	seed := a.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	debug("playlist: shuffle seed %d", seed)

	shuffled := Shuffle(records, rand.New(rand.NewSource(seed)))
	batches := Batches(shuffled, a.cfg.BatchSize)

	p := newPlaylist(target)
	p.Stats.Batches = len(batches)

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return p, fmt.Errorf("playlist: %w", err)
		}
		p.Stats.Sent++
		raw, err := a.selector.Select(ctx, batch, theme)
		if err != nil {
			if ctx.Err() != nil {
				return p, fmt.Errorf("playlist: %w", ctx.Err())
			}
			p.Stats.Failed++
			log.Printf("playlist: skipping batch %d/%d: %v\n", i+1, len(batches), err)
			continue
		}
		debug("playlist: raw response for batch %d:\n%s", i+1, raw)

		candidates, ok := Parse(raw)
		if !ok {
			p.Stats.Unparsed++
			log.Printf("playlist: couldn't parse response for batch %d/%d\n", i+1, len(batches))
			continue
		}

		var inBatch map[Key]struct{}
		if a.cfg.RequireInBatch {
			inBatch = make(map[Key]struct{}, len(batch))
			for _, r := range batch {
				inBatch[KeyOf(r)] = struct{}{}
			}
		}

		var added int
		for _, c := range candidates {
			if p.Len() >= target {
				break
			}
			if inBatch != nil {
				if _, ok := inBatch[KeyOf(c)]; !ok {
					p.Stats.Rejected++
					debug("playlist: rejected %v, not in batch", c)
					continue
				}
			}
			if !p.add(c) {
				p.Stats.Duplicates++
				continue
			}
			added++
		}
		log.Printf("playlist: batch %d/%d added %d songs (%d/%d)\n", i+1, len(batches), added, p.Len(), target)

		if p.Len() >= target {
			break
		}
	}
	return p, nil
}
