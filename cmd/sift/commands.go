package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"os"
	"slices"
	"strconv"

	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/search"
	"github.com/urfave/cli/v2"
)

// jsonDocument is one line of an ingest or update file.
type jsonDocument struct {
	ID      uint64          `json:"id"`
	Title   string          `json:"title"`
	Desc    string          `json:"desc"`
	Filters []string        `json:"filters"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (d *jsonDocument) toDocument() *core.Document {
	doc := &core.Document{
		Id:      core.ID(d.ID),
		Title:   d.Title,
		Desc:    d.Desc,
		Filters: d.Filters,
	}
	if len(d.Payload) > 0 {
		doc.Payload = []byte(d.Payload)
	}
	return doc
}

// linesFromFile returns an iterator over the lines of a file.
// The file is closed when iteration ends.
func linesFromFile(filename string) (iter.Seq2[string, error], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string, error) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			if !yield(scanner.Text(), nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", err)
		}
	}, nil
}

// readDocuments decodes a JSON Lines file. Blank lines are skipped.
func readDocuments(filename string) ([]*core.Document, error) {
	lines, err := linesFromFile(filename)
	if err != nil {
		return nil, err
	}

	var docs []*core.Document
	lineNo := 0
	for line, err := range lines {
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filename, err)
		}
		lineNo++
		if len(line) == 0 {
			continue
		}
		var jd jsonDocument
		if err := json.Unmarshal([]byte(line), &jd); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", filename, lineNo, err)
		}
		docs = append(docs, jd.toDocument())
	}
	return docs, nil
}

func ingestCommand(c *cli.Context) error {
	docs, err := readDocuments(c.String("file"))
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	n, err := engine.IngestBatch(c.Context, docs)
	fmt.Fprintf(c.App.Writer, "Ingested %d of %d documents\n", n, len(docs))
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

func updateCommand(c *cli.Context) error {
	docs, err := readDocuments(c.String("file"))
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	var errs []error
	updated := 0
	for _, doc := range docs {
		if err := engine.Reingest(c.Context, doc); err != nil {
			errs = append(errs, fmt.Errorf("document %d: %w", doc.Id, err))
			continue
		}
		updated++
	}
	fmt.Fprintf(c.App.Writer, "Updated %d of %d documents\n", updated, len(docs))
	return errors.Join(errs...)
}

func parseIDs(args []string) ([]core.ID, error) {
	ids := make([]core.ID, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid document id %q: %w", arg, err)
		}
		ids = append(ids, core.ID(id))
	}
	return ids, nil
}

func deleteCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one document id is required")
	}
	ids, err := parseIDs(c.Args().Slice())
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Delete(c.Context, ids...); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Deleted %d documents\n", len(ids))
	return nil
}

// queryFilters returns nil when no --filter was given. "*" is a wildcard.
func queryFilters(c *cli.Context) []string {
	if !c.IsSet("filter") {
		return nil
	}
	filters := slices.Clone(c.StringSlice("filter"))
	for i, value := range filters {
		if value == "*" {
			filters[i] = ""
		}
	}
	return filters
}

func searchCommand(c *cli.Context) error {
	mode, err := search.ParseMode(c.String("mode"))
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	results, err := engine.Query(c.Context, search.Query{
		Mode:     mode,
		Prefixes: c.Args().Slice(),
		Filters:  queryFilters(c),
		Limit:    c.Int("limit"),
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Found %d hits\n", len(results))
	for i, hit := range results {
		fmt.Fprintf(c.App.Writer, "%d: '%s' (%d)[%d]\n", i, hit.Document.Title, hit.Document.Id, hit.Weight)
	}
	return nil
}

func filterCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one filter value is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	matched, err := engine.ResolveFilteredIDs(c.Context, c.Args().Slice())
	if err != nil {
		return fmt.Errorf("filter failed: %w", err)
	}

	ids := make([]core.ID, 0, len(matched))
	for id := range matched {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	fmt.Fprintf(c.App.Writer, "Matched %d documents\n", len(ids))
	for _, id := range ids {
		fmt.Fprintln(c.App.Writer, id)
	}
	return nil
}

func seedCommand(c *cli.Context) error {
	count := c.Int("count")
	if count < 0 {
		return errors.New("count must not be negative")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	docs := seedDocuments(count, c.Uint64("seed"))
	n, err := engine.IngestBatch(c.Context, docs)
	fmt.Fprintf(c.App.Writer, "Seeded %d of %d documents\n", n, len(docs))
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}
	return nil
}

func reindexCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if _, err := engine.Reindex(c.Context, c.App.ErrWriter, c.Bool("resume")); err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}
	return nil
}
