// Package export writes a scraped poll week to a blob store as the
// structured JSON dump plus the flat and tabular CSV files.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/EvRoHa/CFB-Poll-Compiler/internal/poll"
)

// Content types attached to written objects.
const (
	ContentTypeJSON = "application/json"
	ContentTypeCSV  = "text/csv"
)

// BlobStore persists a rendered artifact and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Names lists the four output files of one poll week.
type Names struct {
	Structured string
	Flat       string
	Table      string
	Transposed string
}

// FileNames derives output names from the poll identity.
func FileNames(id poll.Identity) Names {
	stem := fmt.Sprintf("%d Week %d %s", id.Year, id.Week, id.Type.DisplayName())
	return Names{
		Structured: stem + ".json",
		Flat:       "Flat " + stem + ".csv",
		Table:      stem + ".csv",
		Transposed: stem + " Transposed.csv",
	}
}

type artifact struct {
	path        string
	contentType string
	body        []byte
}

// Exporter renders ballot sets and hands the results to a BlobStore.
type Exporter struct {
	store  BlobStore
	prefix string
	logger *zap.Logger
}

// New creates an Exporter. prefix is prepended to every object path.
func New(store BlobStore, prefix string, logger *zap.Logger) (*Exporter, error) {
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{store: store, prefix: prefix, logger: logger}, nil
}

// Export renders every artifact before writing any of them, so a render
// failure leaves the store untouched. It returns the URIs in write order.
func (e *Exporter) Export(ctx context.Context, set *poll.BallotSet) ([]string, error) {
	if set == nil {
		return nil, fmt.Errorf("ballot set is required")
	}
	artifacts, err := e.render(set)
	if err != nil {
		return nil, err
	}

	uris := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return uris, fmt.Errorf("export canceled: %w", err)
		}
		uri, err := e.store.PutObject(ctx, a.path, a.contentType, bytes.NewReader(a.body))
		if err != nil {
			return uris, fmt.Errorf("write %s: %w", a.path, err)
		}
		e.logger.Info("wrote artifact", zap.String("uri", uri), zap.Int("bytes", len(a.body)))
		uris = append(uris, uri)
	}
	return uris, nil
}

func (e *Exporter) render(set *poll.BallotSet) ([]artifact, error) {
	names := FileNames(set.Identity)

	structured, err := poll.MarshalStructured(set)
	if err != nil {
		return nil, fmt.Errorf("render structured dump: %w", err)
	}
	flat, err := EncodeCSV(poll.FlatTable(set))
	if err != nil {
		return nil, fmt.Errorf("render flat table: %w", err)
	}
	table, err := EncodeCSV(poll.RenderTable(set, false))
	if err != nil {
		return nil, fmt.Errorf("render table: %w", err)
	}
	transposed, err := EncodeCSV(poll.RenderTable(set, true))
	if err != nil {
		return nil, fmt.Errorf("render transposed table: %w", err)
	}

	return []artifact{
		{path: e.objectPath(names.Structured), contentType: ContentTypeJSON, body: structured},
		{path: e.objectPath(names.Flat), contentType: ContentTypeCSV, body: flat},
		{path: e.objectPath(names.Table), contentType: ContentTypeCSV, body: table},
		{path: e.objectPath(names.Transposed), contentType: ContentTypeCSV, body: transposed},
	}, nil
}

func (e *Exporter) objectPath(name string) string {
	if e.prefix == "" {
		return name
	}
	return e.prefix + "/" + name
}

// EncodeCSV writes header rows followed by data rows.
func EncodeCSV(t poll.Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(t.Records()); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}
