package model

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spall-labs/spall/internal/bus"
)

// Model files and dimensions. The embedder backs all retrieval; the
// reranker is downloaded alongside it but not consulted by the core
// retrieval paths.
const (
	EmbedderModelID   = "embedder"
	EmbedderModelFile = "nomic-embed-text-v1.5.Q8_0.gguf"
	EmbedderModelURL  = "https://huggingface.co/nomic-ai/nomic-embed-text-v1.5-GGUF/resolve/main/nomic-embed-text-v1.5.Q8_0.gguf"

	// EmbedderDimensions is the output dimension of nomic-embed-text-v1.5.
	EmbedderDimensions = 768

	RerankerModelID   = "reranker"
	RerankerModelFile = "bge-reranker-v2-m3-Q8_0.gguf"
	RerankerModelURL  = "https://huggingface.co/gpustack/bge-reranker-v2-m3-GGUF/resolve/main/bge-reranker-v2-m3-Q8_0.gguf"

	downloadTimeout  = 10 * time.Minute
	progressInterval = 1 << 22 // bytes between model.progress events
)

// ModelSpec describes one downloadable model file.
type ModelSpec struct {
	ID   string
	File string
	URL  string
}

// DefaultModels returns the embedder and reranker specs. The embedder
// file name can be overridden (its URL then points at the same repo).
func DefaultModels(embedderFile string) []ModelSpec {
	embedder := ModelSpec{ID: EmbedderModelID, File: EmbedderModelFile, URL: EmbedderModelURL}
	if embedderFile != "" && embedderFile != EmbedderModelFile {
		embedder.File = embedderFile
		embedder.URL = "https://huggingface.co/nomic-ai/nomic-embed-text-v1.5-GGUF/resolve/main/" + embedderFile
	}
	return []ModelSpec{
		embedder,
		{ID: RerankerModelID, File: RerankerModelFile, URL: RerankerModelURL},
	}
}

// Downloader fetches model files into the models directory, reporting
// progress on the bus.
type Downloader struct {
	modelsDir string
	events    *bus.Bus
	client    *http.Client
}

// NewDownloader creates a downloader writing into modelsDir.
func NewDownloader(modelsDir string, events *bus.Bus) *Downloader {
	return &Downloader{
		modelsDir: modelsDir,
		events:    events,
		client:    &http.Client{Timeout: downloadTimeout},
	}
}

// Path returns where a spec's file lands on disk.
func (d *Downloader) Path(spec ModelSpec) string {
	return filepath.Join(d.modelsDir, spec.File)
}

// EnsureAll downloads every missing model. Each model is an independent
// event stream; downloads run in parallel with no ordering between them.
func (d *Downloader) EnsureAll(ctx context.Context, specs []ModelSpec) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, spec := range specs {
		g.Go(func() error {
			return d.Ensure(ctx, spec)
		})
	}
	return g.Wait()
}

// Ensure downloads one model unless it is already present. A flock'd
// lock file serializes downloads of the same directory across processes;
// after acquiring the lock the presence check runs again, so the loser
// of a race finds the winner's file.
func (d *Downloader) Ensure(ctx context.Context, spec ModelSpec) error {
	path := d.Path(spec)
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := os.MkdirAll(d.modelsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create models directory: %w", err)
	}

	lock := NewFileLock(d.modelsDir)
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return d.download(ctx, spec, path)
}

func (d *Downloader) download(ctx context.Context, spec ModelSpec, path string) error {
	info := bus.ModelInfo{ID: spec.ID, Name: spec.File, Path: path}
	d.publish(bus.ModelDownload(info))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, spec.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", spec.File, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: unexpected status %s", spec.File, resp.Status)
	}

	// Write to a temp file, fsync, then rename into place so a partial
	// download never looks like a complete model.
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	defer func() {
		_ = file.Close()
		_ = os.Remove(tmp)
	}()

	total := resp.ContentLength
	var downloaded int64
	var sinceReport int64
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := file.Write(buf[:n]); writeErr != nil {
				return fmt.Errorf("failed to write %s: %w", tmp, writeErr)
			}
			downloaded += int64(n)
			sinceReport += int64(n)
			if sinceReport >= progressInterval {
				sinceReport = 0
				d.publish(bus.ModelProgress(info, downloaded, total))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("failed to read download stream: %w", readErr)
		}
	}

	if err := file.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move model into place: %w", err)
	}

	d.publish(bus.ModelProgress(info, downloaded, total))
	d.publish(bus.ModelDownloaded(info))
	return nil
}

func (d *Downloader) publish(ev bus.Event) {
	if d.events != nil {
		d.events.Publish(ev)
	}
}
