package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Workspace is the resolved workspace configuration from
// {repo-root}/.spall/spall.json.
type Workspace struct {
	// Root is the directory containing .spall/.
	Root string
	// Name is the workspace name; defaults to the root directory's base name.
	Name string
	// ID is the workspace id if pinned in the config, else 0.
	ID int64
	// ReadCorpora are the corpus names queries read from.
	ReadCorpora []string
	// WriteCorpus is the corpus name writes go to.
	WriteCorpus string
}

// workspaceFile is the on-disk shape. Two generations of the schema exist:
// a legacy flat `include` list, and the richer workspace/scope form. Both
// are accepted; WriteFile always emits the richer form.
type workspaceFile struct {
	Workspace *struct {
		Name string `json:"name"`
		ID   int64  `json:"id,omitempty"`
	} `json:"workspace,omitempty"`
	Scope *struct {
		Read  []string `json:"read"`
		Write string   `json:"write"`
	} `json:"scope,omitempty"`
	Include []string `json:"include,omitempty"`
}

// FindWorkspace walks upward from dir to the first directory containing
// .spall/ and loads its spall.json. Returns (nil, nil) when no workspace
// directory exists on the path to the filesystem root.
func FindWorkspace(dir string) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	current := abs
	for {
		marker := filepath.Join(current, ".spall")
		if info, err := os.Stat(marker); err == nil && info.IsDir() {
			return loadWorkspace(current)
		}

		parent := filepath.Dir(current)
		if parent == current {
			return nil, nil
		}
		current = parent
	}
}

func loadWorkspace(root string) (*Workspace, error) {
	ws := &Workspace{
		Root:        root,
		Name:        filepath.Base(root),
		WriteCorpus: "default",
	}

	path := filepath.Join(root, ".spall", "spall.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ws, nil // bare .spall/ dir marks a workspace with defaults
		}
		return nil, fmt.Errorf("failed to read workspace config %s: %w", path, err)
	}

	var f workspaceFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse workspace config %s: %w", path, err)
	}

	if f.Workspace != nil {
		if f.Workspace.Name != "" {
			ws.Name = f.Workspace.Name
		}
		ws.ID = f.Workspace.ID
	}
	switch {
	case f.Scope != nil:
		ws.ReadCorpora = f.Scope.Read
		if f.Scope.Write != "" {
			ws.WriteCorpus = f.Scope.Write
		}
	case len(f.Include) > 0:
		// Legacy shape: include maps to scope.read, write stays "default".
		ws.ReadCorpora = f.Include
	}
	return ws, nil
}

// WriteFile persists the workspace config under root/.spall/spall.json in
// the richer schema form.
func (w *Workspace) WriteFile() error {
	dir := filepath.Join(w.Root, ".spall")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	f := workspaceFile{}
	f.Workspace = &struct {
		Name string `json:"name"`
		ID   int64  `json:"id,omitempty"`
	}{Name: w.Name, ID: w.ID}
	f.Scope = &struct {
		Read  []string `json:"read"`
		Write string   `json:"write"`
	}{Read: w.ReadCorpora, Write: w.WriteCorpus}
	if f.Scope.Read == nil {
		f.Scope.Read = []string{}
	}

	data, err := json.MarshalIndent(&f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workspace config: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(dir, "spall.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write workspace config %s: %w", path, err)
	}
	return nil
}
