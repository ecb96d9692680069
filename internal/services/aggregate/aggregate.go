// Package aggregate groups policy records by dimension tuples and sums their
// absolute-value measures.
package aggregate

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/policy-analytics-tui/internal/models"
)

// minPartitionSize keeps tiny inputs on the sequential path.
const minPartitionSize = 2048

// partial is the grouped state of one run over a slice of records.
type partial struct {
	order  []models.GroupKey
	groups map[models.GroupKey]*models.AggregatedGroup
}

func newPartial() *partial {
	return &partial{groups: make(map[models.GroupKey]*models.AggregatedGroup)}
}

func (p *partial) add(r *models.Record, dims []models.Dimension) {
	key := models.KeyOf(r, dims)
	g, ok := p.groups[key]
	if !ok {
		g = &models.AggregatedGroup{Dimensions: dimensionMap(key, dims)}
		p.groups[key] = g
		p.order = append(p.order, key)
	}
	g.Totals.Add(r.Amounts)
	g.Count++
}

// merge folds q into p. Groups first seen in q are appended after p's groups.
func (p *partial) merge(q *partial) {
	for _, key := range q.order {
		src := q.groups[key]
		g, ok := p.groups[key]
		if !ok {
			cp := *src
			p.groups[key] = &cp
			p.order = append(p.order, key)
			continue
		}
		g.Totals.Add(src.Totals)
		g.Count += src.Count
	}
}

func (p *partial) result() []models.AggregatedGroup {
	out := make([]models.AggregatedGroup, 0, len(p.order))
	for _, key := range p.order {
		out = append(out, *p.groups[key])
	}
	return out
}

func dimensionMap(key models.GroupKey, dims []models.Dimension) models.DimensionMap {
	m := make(models.DimensionMap, len(dims))
	for i, d := range dims {
		m[i] = models.DimensionPair{Dimension: d, Value: key.At(i)}
	}
	return m
}

// Aggregate groups records by the given dimensions and sums every measure per
// group. Groups are returned in the order their key was first seen. With no
// dimensions all records fall into a single group. Non-finite measure values
// count as zero. dims must be valid and distinct.
func Aggregate(records []models.Record, dims []models.Dimension) []models.AggregatedGroup {
	p := newPartial()
	for i := range records {
		p.add(&records[i], dims)
	}
	return p.result()
}

// Parallel aggregates contiguous partitions of records concurrently and merges
// the partial results in partition order, so group order matches Aggregate.
// Summation order differs from Aggregate only in how partial sums associate.
func Parallel(ctx context.Context, records []models.Record, dims []models.Dimension, workers int) ([]models.AggregatedGroup, error) {
	if workers <= 1 || len(records) < 2*minPartitionSize {
		return Aggregate(records, dims), nil
	}
	n := min(workers, len(records)/minPartitionSize)
	size := (len(records) + n - 1) / n

	partials := make([]*partial, n)
	g, gCtx := errgroup.WithContext(ctx)
	for i := range n {
		lo := i * size
		hi := min(lo+size, len(records))
		g.Go(func() error {
			p := newPartial()
			for j := lo; j < hi; j++ {
				if j%minPartitionSize == 0 {
					if err := gCtx.Err(); err != nil {
						return err
					}
				}
				p.add(&records[j], dims)
			}
			partials[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to aggregate partitions: %w", err)
	}

	merged := partials[0]
	for _, p := range partials[1:] {
		merged.merge(p)
	}
	return merged.result(), nil
}
