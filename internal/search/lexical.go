package search

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	gserrors "github.com/grantscout/grantscout/internal/errors"
	"github.com/grantscout/grantscout/internal/store"
)

// subQuery is one (position, variant, column) keyword lookup.
type subQuery struct {
	pos  int    // position index into the parsed query
	raw  string // position as typed, for logging
	term string // the variant searched
	col  store.TextColumn
}

// LexicalResult is the outcome of keyword matching.
type LexicalResult struct {
	// IDs is the intersection across positions, in the first executed
	// position's discovery order.
	IDs []string

	// Degraded is set when sub-queries were skipped, failed, or kept
	// only partial pages.
	Degraded bool

	// Counters for logging.
	Positions  int
	Subqueries int
	Skipped    int
	Failed     int
}

// LexicalMatcher finds records whose body or terms column contains every
// query position. Each position accepts any of its pipe-separated
// alternatives or their singular/plural variants.
type LexicalMatcher struct {
	index  store.TextIndex
	config EngineConfig
}

func newLexicalMatcher(index store.TextIndex, config EngineConfig) *LexicalMatcher {
	return &LexicalMatcher{index: index, config: config}
}

// Match runs every (position, variant, column) sub-query concurrently under
// the fan-out bound, unions matches within each position, and intersects
// across positions. A query with zero accepted tokens returns an empty set
// without erroring.
//
// Individual sub-query failures are logged and excluded; only every
// sub-query failing is surfaced as a retrieval error.
func (m *LexicalMatcher) Match(ctx context.Context, query string) (*LexicalResult, error) {
	positions := parseQuery(query)
	if len(positions) == 0 {
		return &LexicalResult{IDs: []string{}}, nil
	}

	subs, skipped := m.enumerate(positions)
	res := &LexicalResult{
		Positions:  len(positions),
		Subqueries: len(subs),
		Skipped:    skipped,
	}
	if skipped > 0 {
		res.Degraded = true
		slog.Warn("keyword sub-query cap reached, later sub-queries skipped",
			slog.Int("cap", m.config.MaxSubqueries),
			slog.Int("skipped", skipped))
	}

	type subOutcome struct {
		ids     []string
		partial bool
		err     error
	}
	outcomes := make([]subOutcome, len(subs))

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(m.config.Fanout))

	for i, sq := range subs {
		i, sq := i, sq
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			ids, partial, err := m.runSubQuery(gctx, sq)
			outcomes[i] = subOutcome{ids: ids, partial: partial, err: err}
			return nil // Individual failures never fail the group
		})
	}

	if err := g.Wait(); err != nil {
		// Context was cancelled
		return nil, err
	}

	// Merge in enumeration order so discovery order is deterministic:
	// within a position, first-seen insertion order across its sub-queries.
	perPosition := make([]*orderedSet, len(positions))
	var lastErr error
	for i, sq := range subs {
		out := outcomes[i]
		if out.err != nil {
			res.Failed++
			res.Degraded = true
			lastErr = out.err
			slog.Warn("keyword sub-query failed",
				slog.String("term", sq.term),
				slog.String("column", string(sq.col)),
				slog.String("error", out.err.Error()))
			continue
		}
		if out.partial {
			res.Degraded = true
		}
		if perPosition[sq.pos] == nil {
			perPosition[sq.pos] = newOrderedSet()
		}
		perPosition[sq.pos].addAll(out.ids)
	}

	if res.Failed == len(subs) {
		// Distinguish a dead caller from a dead index
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, gserrors.New(gserrors.ErrCodeStoreUnavailable,
			"keyword search unavailable: every sub-query failed", lastErr)
	}

	res.IDs = intersectPositions(positions, perPosition)
	return res, nil
}

// enumerate expands positions into sub-queries, position-major, capped at
// MaxSubqueries. Returns the executable sub-queries and the skip count.
func (m *LexicalMatcher) enumerate(positions []position) ([]subQuery, int) {
	var all []subQuery
	for pi, pos := range positions {
		for _, alt := range pos.terms {
			for _, variant := range generateVariants(alt) {
				for _, col := range []store.TextColumn{store.ColumnBody, store.ColumnTerms} {
					all = append(all, subQuery{pos: pi, raw: pos.raw, term: variant, col: col})
				}
			}
		}
	}
	if len(all) <= m.config.MaxSubqueries {
		return all, 0
	}
	return all[:m.config.MaxSubqueries], len(all) - m.config.MaxSubqueries
}

// runSubQuery pages through one column search up to the per-variant cap.
// The terms column is best effort: on timeout, pages already fetched are
// kept and partial is reported. partial also covers hitting the cap with
// matches still remaining.
func (m *LexicalMatcher) runSubQuery(parent context.Context, sq subQuery) (ids []string, partial bool, err error) {
	timeout := m.config.SubqueryTimeout
	if sq.col == store.ColumnTerms {
		timeout = m.config.TermsTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	for offset := 0; offset < m.config.VariantCap; offset += m.config.VariantPageSize {
		limit := m.config.VariantPageSize
		if remaining := m.config.VariantCap - offset; remaining < limit {
			limit = remaining
		}

		page, pageErr := m.index.SearchColumn(ctx, sq.col, sq.term, offset, limit)
		if pageErr != nil {
			if sq.col == store.ColumnTerms && errors.Is(pageErr, context.DeadlineExceeded) && parent.Err() == nil {
				slog.Debug("terms sub-query timed out, keeping partial pages",
					slog.String("term", sq.term),
					slog.Int("ids", len(ids)))
				return ids, true, nil
			}
			return nil, false, pageErr
		}

		ids = append(ids, page...)
		if len(page) < limit {
			return ids, false, nil
		}
	}

	// Cap reached with a full final page; more matches likely exist.
	slog.Debug("per-variant retrieval cap reached",
		slog.String("term", sq.term),
		slog.String("column", string(sq.col)),
		slog.Int("cap", m.config.VariantCap))
	return ids, true, nil
}

// intersectPositions ANDs the per-position match sets. Positions with no
// executed sub-query (nil set) degrade out of the intersection rather than
// forcing an empty result; positions that executed but matched nothing
// intersect to empty as usual. Order follows the first surviving position.
func intersectPositions(positions []position, perPosition []*orderedSet) []string {
	var result []string
	first := true
	for pi, ps := range perPosition {
		if ps == nil {
			slog.Warn("keyword position degraded, excluded from intersection",
				slog.String("position", positions[pi].raw))
			continue
		}
		if first {
			result = ps.order
			first = false
			continue
		}
		result = filterMembers(result, ps.seen)
		if len(result) == 0 {
			break
		}
	}
	if first {
		return []string{}
	}
	return result
}

// filterMembers keeps ids present in the member set, preserving order.
func filterMembers(ids []string, members map[string]struct{}) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := members[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// orderedSet is a string set that remembers first-seen insertion order.
// Only touched from the single-threaded merge after fan-out completes.
type orderedSet struct {
	order []string
	seen  map[string]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) addAll(ids []string) {
	for _, id := range ids {
		if _, ok := s.seen[id]; ok {
			continue
		}
		s.seen[id] = struct{}{}
		s.order = append(s.order, id)
	}
}
