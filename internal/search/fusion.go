package search

import "sort"

// DefaultRRFConstant is the standard RRF damping parameter. k=60 keeps
// early-list dominance from overwhelming later-but-present matches and is
// empirically validated across domains.
const DefaultRRFConstant = 60

// FusedRecord is a single candidate after RRF fusion.
type FusedRecord struct {
	RecordID   string
	Score      float64 // Summed RRF contributions
	LexRank    int     // Position in lexical list (1-indexed, 0 if absent)
	VecRank    int     // Position in semantic list (1-indexed, 0 if absent)
	Similarity float64 // Semantic similarity (0 if absent)
	InBoth     bool    // Present in both sources
}

// RRFFusion merges lexical and semantic candidates using Reciprocal Rank
// Fusion with a semantic similarity boost.
//
// Each source contributes 1 / (k + rank) per record, 1-indexed. Semantic
// contributions are multiplied by (1 + similarity) so highly similar
// matches outrank merely-present ones. A record in both sources sums its
// two contributions, which always exceeds either alone.
//
// RRF needs no score calibration across sources: only each source's
// internal rank order matters, so fusion stays robust when either source
// is empty.
type RRFFusion struct {
	K int
}

// NewRRFFusion creates an RRF fusion instance. k values <= 0 fall back to
// the default.
func NewRRFFusion(k int) *RRFFusion {
	if k <= 0 {
		k = DefaultRRFConstant
	}
	return &RRFFusion{K: k}
}

// Fuse merges the lexical match set (insertion-ordered, unscored) and the
// semantic match set (similarity-ordered) into one list sorted by
// descending fused score. The sort is stable over insertion order
// (lexical list first), so ties keep a deterministic ordering.
func (f *RRFFusion) Fuse(lexical []string, semantic []*VectorHit) []*FusedRecord {
	if len(lexical) == 0 && len(semantic) == 0 {
		return []*FusedRecord{}
	}

	ordered := make([]*FusedRecord, 0, len(lexical)+len(semantic))
	byID := make(map[string]*FusedRecord, len(lexical)+len(semantic))
	getOrCreate := func(id string) *FusedRecord {
		if r, ok := byID[id]; ok {
			return r
		}
		r := &FusedRecord{RecordID: id}
		byID[id] = r
		ordered = append(ordered, r)
		return r
	}

	for rank, id := range lexical {
		r := getOrCreate(id)
		r.LexRank = rank + 1
		r.Score += 1.0 / float64(f.K+rank+1)
	}

	for rank, hit := range semantic {
		r := getOrCreate(hit.RecordID)
		r.VecRank = rank + 1
		r.Similarity = hit.Similarity
		r.Score += (1.0 + hit.Similarity) / float64(f.K+rank+1)
		if r.LexRank > 0 {
			r.InBoth = true
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	return ordered
}
