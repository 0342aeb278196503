package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spall-labs/spall/internal/bus"
	"github.com/spall-labs/spall/internal/glob"
	"github.com/spall-labs/spall/internal/reqctx"
	"github.com/spall-labs/spall/internal/store"
)

// ScanResult is the outcome of one scan/reconcile pass. The path slices
// hold canonical stored paths; Unembedded holds the note ids produced
// for added and modified entries.
type ScanResult struct {
	Added      []string `json:"added"`
	Modified   []string `json:"modified"`
	Removed    []string `json:"removed"`
	Unembedded []int64  `json:"-"`
}

// Scan reconciles the files under dir matching pattern against the notes
// stored under prefix in the corpus. Added and modified files are written
// to the notes table with their old chunk and vector rows cleared eagerly;
// stored notes whose file disappeared are deleted outright.
func (p *Pipeline) Scan(rc *reqctx.Context, dir, pattern string, corpusID int64, prefix string) (*ScanResult, error) {
	files, err := enumerate(dir, pattern)
	if err != nil {
		return nil, err
	}

	stored, err := p.store.NotesUnderPrefix(corpusID, prefix)
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]store.Note, len(stored))
	for _, n := range stored {
		byPath[n.Path] = n
	}

	p.publish(bus.ScanStart(len(files)))

	result := &ScanResult{Added: []string{}, Modified: []string{}, Removed: []string{}}
	visited := make(map[string]bool, len(files))

	for _, rel := range files {
		if err := rc.Checkpoint(); err != nil {
			return nil, err
		}

		storedPath := store.CanonicalPath(rel)
		if prefix != "" {
			storedPath = store.CanonicalPath(prefix + "/" + rel)
		}
		visited[storedPath] = true

		absPath := filepath.Join(dir, filepath.FromSlash(rel))
		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", absPath, err)
		}
		mtime := info.ModTime().UnixMilli()

		existing, known := byPath[storedPath]
		switch {
		case !known:
			_, content, err := p.hashFile(absPath, mtime)
			if err != nil {
				return nil, err
			}
			note, err := p.store.AddNote(corpusID, storedPath, content, mtime, true)
			if err != nil {
				return nil, err
			}
			result.Added = append(result.Added, storedPath)
			result.Unembedded = append(result.Unembedded, note.ID)
			p.publish(bus.ScanProgress(storedPath, bus.StatusAdded))

		case mtime > existing.Mtime:
			hash, content, err := p.hashFile(absPath, mtime)
			if err != nil {
				return nil, err
			}
			if hash == existing.ContentHash {
				if err := p.store.TouchNoteMtime(existing.ID, mtime); err != nil {
					return nil, err
				}
				p.publish(bus.ScanProgress(storedPath, bus.StatusOK))
				break
			}
			note, err := p.store.UpdateNote(existing.ID, content, mtime, true)
			if err != nil {
				return nil, err
			}
			// Clear eagerly so the embed step is the only writer.
			if err := p.store.ClearEmbeddings(note.ID); err != nil {
				return nil, err
			}
			result.Modified = append(result.Modified, storedPath)
			result.Unembedded = append(result.Unembedded, note.ID)
			p.publish(bus.ScanProgress(storedPath, bus.StatusModified))

		default:
			p.publish(bus.ScanProgress(storedPath, bus.StatusOK))
		}
	}

	for _, n := range stored {
		if visited[n.Path] {
			continue
		}
		if err := rc.Checkpoint(); err != nil {
			return nil, err
		}
		if err := p.store.DeleteNote(n.ID); err != nil {
			return nil, err
		}
		result.Removed = append(result.Removed, n.Path)
		p.publish(bus.ScanProgress(n.Path, bus.StatusRemoved))
	}

	p.publish(bus.ScanDone(len(files)))
	return result, nil
}

// hashFile returns the content hash for a file, consulting the
// (path, mtime) cache before reading. The content is read regardless so
// callers can store it.
func (p *Pipeline) hashFile(absPath string, mtime int64) (string, string, error) {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s: %w", absPath, err)
	}
	content := string(data)

	if cached, err := p.store.GetFileHash(absPath, mtime); err != nil {
		return "", "", err
	} else if cached != "" {
		return cached, content, nil
	}

	hash := store.HashContent(content)
	if err := p.store.UpsertFileHash(absPath, hash, mtime); err != nil {
		return "", "", err
	}
	return hash, content, nil
}

// enumerate walks dir and returns the slash-separated relative paths of
// regular files matching pattern, in walk (lexical) order.
func enumerate(dir, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		ok, err := glob.Match(pattern, rel)
		if err != nil {
			return fmt.Errorf("bad glob %q: %w", pattern, err)
		}
		if ok {
			files = append(files, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return files, nil
}
