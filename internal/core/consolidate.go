package core

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/FuzzyCleanse/internal/join"
	"github.com/JonMunkholm/FuzzyCleanse/internal/loader"
	"github.com/JonMunkholm/FuzzyCleanse/internal/table"
)

// maxParallelParse caps the goroutines parsing files of a single upload.
const maxParallelParse = 4

// Upload is one file handed to CreateSession.
type Upload struct {
	Name   string
	Reader io.Reader
}

// BuildConsolidatedTable joins tables on their shared fields. A single
// table is returned unchanged. When the tables share no field the
// NoCommonFieldError is returned unless fallback is join.FallbackStack.
func BuildConsolidatedTable(tables table.Set, fallback join.Fallback) (*table.Table, join.Summary, error) {
	return join.Consolidate(tables, fallback)
}

// LoadTables parses uploads concurrently. The resulting set keeps the order
// of uploads; the first parse error cancels the rest.
func LoadTables(ctx context.Context, uploads []Upload, opts loader.Options) (table.Set, error) {
	tables := make(table.Set, len(uploads))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelParse)
	for i, u := range uploads {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := loader.Load(u.Name, u.Reader, opts)
			if err != nil {
				return err
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	uniqueNames(tables)
	return tables, nil
}

// uniqueNames renames tables sharing a file name so sources stay
// distinguishable in summaries.
func uniqueNames(tables table.Set) {
	seen := make(map[string]int, len(tables))
	for i, t := range tables {
		n := seen[t.Name()]
		seen[t.Name()] = n + 1
		if n > 0 {
			tables[i] = t.Rename(fmt.Sprintf("%s (%d)", t.Name(), n+1))
		}
	}
}
