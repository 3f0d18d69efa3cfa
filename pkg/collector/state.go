package collector

import (
	"tokenimages/pkg/checkpoint"
	"tokenimages/pkg/magiceden"
)

// runState is the mutable state of one collection run
type runState struct {
	seen     map[string]struct{}
	records  []Record
	attempts int
	cursor   string
	resumed  bool
}

func newRunState() *runState {
	return &runState{seen: make(map[string]struct{})}
}

func (s *runState) unique() int {
	return len(s.records)
}

// add appends every unseen entry that has both an identifier and an image.
// It returns the records added, the number of duplicates and the number of
// entries skipped for missing fields.
func (s *runState) add(entries []magiceden.TokenEntry) (added []Record, duplicates, skipped int) {
	for _, e := range entries {
		if e.Token == nil || !e.Token.TokenID.Defined() || e.Token.Image == "" {
			skipped++
			continue
		}

		id := e.Token.TokenID.String()
		if _, ok := s.seen[id]; ok {
			duplicates++
			continue
		}

		s.seen[id] = struct{}{}
		r := Record{TokenID: id, ImageURL: e.Token.Image}
		s.records = append(s.records, r)
		added = append(added, r)
	}
	return added, duplicates, skipped
}

// restore seeds the state from a saved checkpoint
func (s *runState) restore(cp *checkpoint.Checkpoint) {
	for _, e := range cp.Entries {
		if _, ok := s.seen[e.TokenID]; ok {
			continue
		}
		s.seen[e.TokenID] = struct{}{}
		s.records = append(s.records, Record{TokenID: e.TokenID, ImageURL: e.ImageURL})
	}
	s.attempts = cp.Attempts
	s.cursor = cp.Cursor
	s.resumed = true
}
