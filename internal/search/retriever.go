package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/models"
)

// VectorSearcher is the part of the vector store the retriever needs.
type VectorSearcher interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	SearchVector(ctx context.Context, vec []float32, k int, threshold float64) ([]*models.SearchResult, error)
	Len() int
}

// Outcome is the result of running a policy. Tier is the index of the tier
// that produced Results, or -1 when every tier came back empty.
type Outcome struct {
	Query         string
	ExpandedQuery string
	Results       []*models.SearchResult
	Tier          int
	Threshold     float64
	// LowScore reports that the best result fell below the first tier's threshold.
	LowScore bool
}

// Confident reports whether any tier produced results.
func (o *Outcome) Confident() bool {
	return len(o.Results) > 0
}

// Retriever runs a Policy against a VectorSearcher.
type Retriever struct {
	searcher VectorSearcher
	policy   Policy
	expander *Expander
	logger   *zap.Logger
}

// RetrieverOption configures a Retriever.
type RetrieverOption func(*Retriever)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) RetrieverOption {
	return func(r *Retriever) { r.logger = l }
}

// WithExpander expands abbreviations in questions before embedding.
func WithExpander(e *Expander) RetrieverOption {
	return func(r *Retriever) { r.expander = e }
}

// NewRetriever creates a retriever. An invalid policy is rejected.
func NewRetriever(s VectorSearcher, policy Policy, opts ...RetrieverOption) (*Retriever, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	r := &Retriever{
		searcher: s,
		policy:   append(Policy(nil), policy...),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r, nil
}

// Policy returns a copy of the retriever's policy.
func (r *Retriever) Policy() Policy {
	return append(Policy(nil), r.policy...)
}

// Retrieve runs the retriever's policy for question.
func (r *Retriever) Retrieve(ctx context.Context, question string) (*Outcome, error) {
	return r.RetrieveWith(ctx, question, r.policy)
}

// RetrieveWith embeds the question once, then tries each tier in order and
// stops at the first non-empty result. An empty outcome is not an error;
// store and embedding failures are returned immediately without trying
// further tiers.
func (r *Retriever) RetrieveWith(ctx context.Context, question string, policy Policy) (*Outcome, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}
	expanded := r.expander.Expand(question)
	out := &Outcome{
		Query:     question,
		Results:   []*models.SearchResult{},
		Tier:      -1,
		Threshold: policy[len(policy)-1].Threshold,
	}
	if expanded != question {
		out.ExpandedQuery = expanded
	}
	if r.searcher.Len() == 0 {
		return out, nil
	}

	vec, err := r.searcher.EmbedQuery(ctx, expanded)
	if err != nil {
		return nil, err
	}
	for i, tier := range policy {
		results, err := r.searcher.SearchVector(ctx, vec, tier.K, tier.Threshold)
		if err != nil {
			return nil, fmt.Errorf("tier %d search: %w", i, err)
		}
		if len(results) == 0 {
			r.logger.Debug("tier returned no results",
				zap.Int("tier", i), zap.Float64("threshold", tier.Threshold))
			continue
		}
		out.Results = results
		out.Tier = i
		out.Threshold = tier.Threshold
		out.LowScore = results[0].Score < policy[0].Threshold
		if out.LowScore {
			r.logger.Info("top result below first tier threshold",
				zap.Float64("score", results[0].Score),
				zap.Float64("threshold", policy[0].Threshold))
		}
		return out, nil
	}
	r.logger.Info("no tier returned results", zap.String("query", question))
	return out, nil
}

// Search answers a SearchQuery. A query threshold replaces the policy with a
// single tier; a query K overrides every tier's K.
func (r *Retriever) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	policy := r.policy
	if q.Threshold != nil {
		k := policy[0].K
		if q.K > 0 {
			k = q.K
		}
		policy = Policy{{K: k, Threshold: *q.Threshold}}
	} else if q.K > 0 {
		policy = policy.WithK(q.K)
	}

	out, err := r.RetrieveWith(ctx, q.Query, policy)
	if err != nil {
		return nil, err
	}
	return &models.SearchResponse{
		Query:         out.Query,
		ExpandedQuery: out.ExpandedQuery,
		Results:       out.Results,
		Tier:          out.Tier,
		Threshold:     out.Threshold,
		Confident:     out.Confident(),
		QueryTime:     time.Since(start).Milliseconds(),
	}, nil
}
