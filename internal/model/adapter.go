package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/spall-labs/spall/internal/bus"
)

// DefaultQueryCacheSize bounds the query-embedding LRU cache. At 768
// dims × 4 bytes × 1000 entries that is about 3 MB.
const DefaultQueryCacheSize = 1000

// Options configures the adapter.
type Options struct {
	// ModelsDir is where GGUF files are downloaded and loaded from.
	ModelsDir string
	// Offline selects the deterministic static embedder; no downloads.
	Offline bool
	// EmbedderFile overrides the embedder GGUF file name.
	EmbedderFile string
	// Events receives model.* events; nil disables publishing.
	Events *bus.Bus
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Adapter owns the process-wide embedding runtime: the downloaded model
// files, the loaded embedder handle, and a small LRU over query-text
// embeddings. Indexing batches bypass the cache.
type Adapter struct {
	opts   Options
	log    *slog.Logger
	events *bus.Bus

	mu       sync.Mutex
	embedder Embedder
	cache    *lru.Cache[string, []float32]
}

// NewAdapter creates an unloaded adapter; call Load before embedding.
func NewAdapter(opts Options) *Adapter {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	cache, _ := lru.New[string, []float32](DefaultQueryCacheSize)
	return &Adapter{opts: opts, log: opts.Logger, events: opts.Events, cache: cache}
}

// Load downloads any missing model files (embedder and reranker, in
// parallel, each its own event stream), then loads the embedder and
// creates its embedding context. Publishes model.load on success and
// model.failed before propagating any error. Loading twice is a no-op.
func (a *Adapter) Load(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.embedder != nil {
		return nil
	}

	if a.opts.Offline {
		a.embedder = NewStaticEmbedder()
		a.publish(bus.ModelLoad(bus.ModelInfo{ID: EmbedderModelID, Name: a.embedder.ModelName()}))
		return nil
	}

	dl := NewDownloader(a.opts.ModelsDir, a.events)
	specs := DefaultModels(a.opts.EmbedderFile)
	info := bus.ModelInfo{ID: EmbedderModelID, Name: specs[0].File, Path: dl.Path(specs[0])}

	if err := dl.EnsureAll(ctx, specs); err != nil {
		a.publish(bus.ModelFailed(info, err))
		return fmt.Errorf("model download failed: %w", err)
	}

	embedder, err := NewLlamaEmbedder(dl.Path(specs[0]), specs[0].File)
	if err != nil {
		a.publish(bus.ModelFailed(info, err))
		return fmt.Errorf("model load failed: %w", err)
	}

	a.embedder = embedder
	a.log.Info("model_loaded",
		slog.String("model", embedder.ModelName()),
		slog.Int("dims", embedder.Dimensions()))
	a.publish(bus.ModelLoad(info))
	return nil
}

// Embedder returns the loaded embedder, or an error before Load.
func (a *Adapter) Embedder() (Embedder, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.embedder == nil {
		return nil, fmt.Errorf("model adapter not loaded")
	}
	return a.embedder, nil
}

// Dimensions returns the embedding size of the configured backend. Valid
// before Load: both backends produce EmbedderDimensions-sized vectors.
func (a *Adapter) Dimensions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.embedder != nil {
		return a.embedder.Dimensions()
	}
	return EmbedderDimensions
}

// ModelName names the configured backend.
func (a *Adapter) ModelName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.embedder != nil {
		return a.embedder.ModelName()
	}
	if a.opts.Offline {
		return "static-hash-768"
	}
	if a.opts.EmbedderFile != "" {
		return a.opts.EmbedderFile
	}
	return EmbedderModelFile
}

// EmbedQuery embeds a search query, consulting the LRU cache first.
func (a *Adapter) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	emb, err := a.Embedder()
	if err != nil {
		return nil, err
	}

	key := cacheKey(text, emb.ModelName())
	if vec, ok := a.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := emb.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	a.cache.Add(key, vec)
	return vec, nil
}

// EmbedBatch embeds indexing chunks, bypassing the query cache.
func (a *Adapter) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	emb, err := a.Embedder()
	if err != nil {
		return nil, err
	}
	return emb.EmbedBatch(ctx, texts)
}

// Tokenize forwards to the loaded embedder.
func (a *Adapter) Tokenize(text string) ([]int32, error) {
	emb, err := a.Embedder()
	if err != nil {
		return nil, err
	}
	return emb.Tokenize(text)
}

// Detokenize forwards to the loaded embedder.
func (a *Adapter) Detokenize(tokens []int32) (string, error) {
	emb, err := a.Embedder()
	if err != nil {
		return "", err
	}
	return emb.Detokenize(tokens)
}

// Dispose releases the embedder handle. Must run before process exit.
func (a *Adapter) Dispose() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.embedder != nil {
		_ = a.embedder.Close()
		a.embedder = nil
	}
}

func (a *Adapter) publish(ev bus.Event) {
	if a.events != nil {
		a.events.Publish(ev)
	}
}

func cacheKey(text, modelName string) string {
	sum := sha256.Sum256([]byte(text + "\x00" + modelName))
	return hex.EncodeToString(sum[:])
}
