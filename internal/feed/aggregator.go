// Package feed builds product feeds from a session's interest profile.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/fincommerce/internal/metrics"
	"github.com/nikhilbhutani/fincommerce/internal/models"
	"github.com/nikhilbhutani/fincommerce/internal/vectorstore"
)

var (
	// ErrNoInterests means BuildMixedFeed was called without interests.
	// Callers substitute the trending query instead.
	ErrNoInterests = errors.New("mixed feed needs at least one interest")
	// ErrAllTermsFailed means no interest term could be retrieved.
	ErrAllTermsFailed = errors.New("retrieval failed for every interest term")
)

type Retriever interface {
	Search(ctx context.Context, req vectorstore.SearchRequest) ([]models.Product, error)
}

type AggregatorConfig struct {
	MaxInterests   int
	MinPerInterest int
	QueryPrefix    string
	QueryTimeout   time.Duration
	// StrictParity aborts the whole feed on the first failing term instead
	// of serving the terms that succeeded.
	StrictParity   bool
}

// TermFailure records an interest term whose retrieval failed.
type TermFailure struct {
	Term string `json:"term"`
	Err  error  `json:"-"`
}

type MixedFeed struct {
	Products []models.Product
	Failed   []TermFailure
}

type Aggregator struct {
	retriever Retriever
	cfg       AggregatorConfig
}

func NewAggregator(r Retriever, cfg AggregatorConfig) *Aggregator {
	if cfg.MaxInterests <= 0 {
		cfg.MaxInterests = 3
	}
	if cfg.MinPerInterest <= 0 {
		cfg.MinPerInterest = 4
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 5 * time.Second
	}
	return &Aggregator{retriever: r, cfg: cfg}
}

// PerInterestLimit is the number of products requested for each of k
// interests so that a page of pageSize can be filled.
func (a *Aggregator) PerInterestLimit(pageSize, k int) int {
	if k <= 0 {
		return a.cfg.MinPerInterest
	}
	return max(a.cfg.MinPerInterest, pageSize/k)
}

// BuildMixedFeed queries the catalog once per top interest, concurrently,
// and interleaves the results round-robin by rank. Duplicate records keep
// their first placement and the result never exceeds pageSize.
func (a *Aggregator) BuildMixedFeed(ctx context.Context, interests []models.Interest, pageSize int, filter vectorstore.Filter) (*MixedFeed, error) {
	terms := topTerms(interests, a.cfg.MaxInterests)
	if len(terms) == 0 {
		return nil, ErrNoInterests
	}
	if pageSize <= 0 {
		return &MixedFeed{}, nil
	}
	limit := a.PerInterestLimit(pageSize, len(terms))

	results := make([][]models.Product, len(terms))
	errs := make([]error, len(terms))

	g, gctx := errgroup.WithContext(ctx)
	for i, term := range terms {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(gctx, a.cfg.QueryTimeout)
			defer cancel()

			products, err := a.retriever.Search(callCtx, vectorstore.SearchRequest{
				Query:  a.cfg.QueryPrefix + term,
				Filter: filter,
				Limit:  limit,
			})
			if err != nil {
				errs[i] = err
				if a.cfg.StrictParity {
					return fmt.Errorf("interest %q: %w", term, err)
				}
				return nil
			}
			results[i] = products
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.FeedTermFailures.Inc()
		return nil, err
	}

	feed := &MixedFeed{}
	var lists [][]models.Product
	for i, term := range terms {
		if errs[i] != nil {
			slog.Warn("interest retrieval failed", "term", term, "error", errs[i])
			metrics.FeedTermFailures.Inc()
			feed.Failed = append(feed.Failed, TermFailure{Term: term, Err: errs[i]})
			continue
		}
		lists = append(lists, results[i])
	}
	if len(lists) == 0 {
		return feed, fmt.Errorf("%w: %w", ErrAllTermsFailed, errors.Join(failureErrs(feed.Failed)...))
	}

	feed.Products = MergeRoundRobin(lists, pageSize)
	return feed, nil
}

// MergeRoundRobin takes the first item of every list, then the second, and
// so on, skipping records already placed and stopping at limit.
func MergeRoundRobin(lists [][]models.Product, limit int) []models.Product {
	longest := 0
	for _, l := range lists {
		longest = max(longest, len(l))
	}

	out := make([]models.Product, 0, limit)
	seen := make(map[models.Product]struct{})
	for rank := 0; rank < longest; rank++ {
		for _, l := range lists {
			if rank >= len(l) {
				continue
			}
			p := l[rank]
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

// topTerms returns up to k distinct non-empty terms in profile order.
func topTerms(interests []models.Interest, k int) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, in := range interests {
		if in.Term == "" || seen[in.Term] {
			continue
		}
		seen[in.Term] = true
		terms = append(terms, in.Term)
		if len(terms) == k {
			break
		}
	}
	return terms
}

func failureErrs(failed []TermFailure) []error {
	errs := make([]error, len(failed))
	for i, f := range failed {
		errs[i] = fmt.Errorf("%s: %w", f.Term, f.Err)
	}
	return errs
}
