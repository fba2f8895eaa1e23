// Package reshape turns the flat BigGIM result table into per-gene-pair
// records grouped by data source, tissue and cancer type.
package reshape

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ncats/biggim-gateway/pkg/biggim"
	"github.com/ncats/biggim-gateway/pkg/reference"
)

// Fetcher opens a result location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (io.ReadCloser, error)
}

type Reshaper struct {
	columns map[string]reference.Column
	fetcher Fetcher
}

func New(columns map[string]reference.Column, fetcher Fetcher) *Reshaper {
	return &Reshaper{columns: columns, fetcher: fetcher}
}

// Reshape fetches the first result location and reshapes every row. Any
// fetch or parse failure is a *biggim.ResultFetchError.
func (r *Reshaper) Reshape(ctx context.Context, locations []string) ([]Record, error) {
	if len(locations) == 0 {
		return nil, &biggim.ResultFetchError{Err: errors.New("query finished without a result location")}
	}
	location := locations[0]

	body, err := r.fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, &biggim.ResultFetchError{Location: location, Err: err}
	}
	defer body.Close()

	table, err := ReadTable(body)
	if err != nil {
		return nil, &biggim.ResultFetchError{Location: location, Err: err}
	}

	records, err := r.ReshapeTable(table)
	if err != nil {
		return nil, &biggim.ResultFetchError{Location: location, Err: err}
	}
	return records, nil
}

// ReshapeTable builds one record per row, in row order.
func (r *Reshaper) ReshapeTable(t *Table) ([]Record, error) {
	records := make([]Record, 0, len(t.Rows))
	if len(t.Rows) == 0 {
		return records, nil
	}

	index := make(map[string]int, len(t.Header))
	for i, name := range t.Header {
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}
	for _, id := range []string{ColumnGene1, ColumnGene2, ColumnGPID} {
		if _, ok := index[id]; !ok {
			return nil, fmt.Errorf("result table has no %s column", id)
		}
	}

	for n, row := range t.Rows {
		if len(row) != len(t.Header) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", n+1, len(row), len(t.Header))
		}
		records = append(records, r.reshapeRow(t.Header, index, row))
	}
	return records, nil
}

func (r *Reshaper) reshapeRow(header []string, index map[string]int, row []string) Record {
	rec := newRecord(
		ParseCell(row[index[ColumnGene1]]),
		ParseCell(row[index[ColumnGene2]]),
		ParseCell(row[index[ColumnGPID]]),
	)

	fragments := make(map[reference.Source][]Observation)
	for i, name := range header {
		switch name {
		case ColumnGene1, ColumnGene2, ColumnGPID:
			continue
		}
		col, ok := r.columns[name]
		if !ok {
			continue
		}
		fragments[col.Source] = append(fragments[col.Source], Observation{
			Metrics:    map[string]interface{}{col.Type: ParseCell(row[i])},
			CancerType: col.CancerType,
			Tissue:     col.Tissue,
		})
	}

	for _, src := range reference.Sources {
		list := rec.Source(src)
		*list = append(*list, MergeAdjacent(fragments[src])...)
	}
	return rec
}

// Mergeable reports whether two fragments describe the same tissue or the
// same cancer type.
func Mergeable(a, b Observation) bool {
	if a.Tissue != nil && b.Tissue != nil && a.Tissue.Label == b.Tissue.Label {
		return true
	}
	return a.CancerType != nil && b.CancerType != nil && *a.CancerType == *b.CancerType
}

// MergeAdjacent folds each run of consecutive mergeable fragments into a
// single observation. Fragments are only ever compared with their immediate
// neighbour, so matching fragments separated by another one stay apart.
func MergeAdjacent(fragments []Observation) []Observation {
	out := make([]Observation, 0, len(fragments))
	for i := 0; i < len(fragments); {
		current := fragments[i]
		j := i + 1
		for ; j < len(fragments) && Mergeable(fragments[j-1], fragments[j]); j++ {
			current = Merge(current, fragments[j])
		}
		out = append(out, current)
		i = j
	}
	return out
}

// Merge combines two fragments. Values from later overwrite those of earlier,
// including cancer_type and tissue.
func Merge(earlier, later Observation) Observation {
	metrics := make(map[string]interface{}, len(earlier.Metrics)+len(later.Metrics))
	for k, v := range earlier.Metrics {
		metrics[k] = v
	}
	for k, v := range later.Metrics {
		metrics[k] = v
	}
	return Observation{
		Metrics:    metrics,
		CancerType: later.CancerType,
		Tissue:     later.Tissue,
	}
}
