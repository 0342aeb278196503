// Package pipeline is the indexing pipeline: directory scan with
// hash/mtime reconciliation, token-window chunking, and batched
// embedding with transactional chunk+vector replacement.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/spall-labs/spall/internal/bus"
	"github.com/spall-labs/spall/internal/chunk"
	"github.com/spall-labs/spall/internal/model"
	"github.com/spall-labs/spall/internal/reqctx"
	"github.com/spall-labs/spall/internal/store"
)

// DefaultBatchSize is the number of chunks embedded per transaction.
const DefaultBatchSize = 16

// Pipeline wires the store, the model adapter and the chunker together.
type Pipeline struct {
	store     *store.Store
	models    *model.Adapter
	events    *bus.Bus
	log       *slog.Logger
	chunker   *chunk.Chunker
	batchSize int
}

// Options configures New.
type Options struct {
	Store  *store.Store
	Models *model.Adapter
	Events *bus.Bus
	Logger *slog.Logger

	ChunkMaxTokens     int
	ChunkOverlapTokens int
	BatchSize          int
}

// New creates a pipeline.
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	return &Pipeline{
		store:     opts.Store,
		models:    opts.Models,
		events:    opts.Events,
		log:       opts.Logger,
		chunker:   chunk.New(opts.Models, opts.ChunkMaxTokens, opts.ChunkOverlapTokens),
		batchSize: opts.BatchSize,
	}
}

// Sync is the single ingestion verb: scan the directory into the corpus,
// then embed everything the scan produced.
func (p *Pipeline) Sync(ctx context.Context, rc *reqctx.Context, dir, glob string, corpusID int64, prefix string) (*ScanResult, error) {
	result, err := p.Scan(rc, dir, glob, corpusID, prefix)
	if err != nil {
		return nil, err
	}
	if err := p.Embed(ctx, rc, result.Unembedded); err != nil {
		return nil, err
	}
	return result, nil
}

// IngestNote chunks and embeds a single note, replacing whatever chunk
// and vector rows it had. Used by the add/update/upsert operations.
func (p *Pipeline) IngestNote(ctx context.Context, rc *reqctx.Context, noteID int64) error {
	return p.Embed(ctx, rc, []int64{noteID})
}

func (p *Pipeline) publish(ev bus.Event) {
	if p.events != nil {
		p.events.Publish(ev)
	}
}
