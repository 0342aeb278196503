package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spall-labs/spall/internal/bus"
	"github.com/spall-labs/spall/internal/config"
	"github.com/spall-labs/spall/internal/daemon"
	"github.com/spall-labs/spall/internal/errors"
	"github.com/spall-labs/spall/internal/store"
	"github.com/spall-labs/spall/internal/ui"
)

// client talks to the daemon over localhost, starting one on demand via
// leader election on the lock file.
type client struct {
	base   string
	http   *http.Client
	render *ui.Renderer
}

// connect returns a client bound to a healthy daemon, spawning one when
// none is running.
func connect(cfg *config.Config) (*client, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", cfg.DataDir, err)
	}
	base, err := daemon.Acquire(cfg.LockPath(), func() error {
		return daemon.SpawnDetached(nil)
	})
	if err != nil {
		return nil, err
	}
	return &client{
		base:   base,
		http:   &http.Client{Timeout: 5 * time.Minute},
		render: ui.NewRenderer(os.Stderr),
	}, nil
}

func (c *client) get(path string, out any) error {
	return c.do(http.MethodGet, path, nil, out)
}

func (c *client) post(path string, body, out any) error {
	return c.do(http.MethodPost, path, body, out)
}

func (c *client) put(path string, body, out any) error {
	return c.do(http.MethodPut, path, body, out)
}

func (c *client) del(path string) error {
	return c.do(http.MethodDelete, path, nil, nil)
}

func (c *client) do(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp.Body, resp.StatusCode)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// stream runs a long operation over SSE, rendering progress events as
// they arrive. An error event on the stream becomes the returned error.
func (c *client) stream(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "text/event-stream")

	// Streams outlive the regular request timeout.
	streamClient := &http.Client{}
	resp, err := streamClient.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp.Body, resp.StatusCode)
	}

	var opErr error
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev bus.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			continue
		}
		c.render.Event(ev)
		if ev.Type == bus.TypeError && ev.Error != nil {
			opErr = &errors.Error{Code: ev.Error.Code, Message: ev.Error.Message}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("event stream broke: %w", err)
	}
	return opErr
}

func decodeError(body io.Reader, status int) error {
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil || payload.Code == "" {
		return fmt.Errorf("daemon returned status %d", status)
	}
	return &errors.Error{Code: payload.Code, Message: payload.Message}
}

// ensureCorpus resolves a corpus by name, creating it when missing.
func (c *client) ensureCorpus(name string) (*store.Corpus, error) {
	var corpus store.Corpus
	if err := c.post("/corpus/", map[string]string{"name": name}, &corpus); err != nil {
		return nil, err
	}
	return &corpus, nil
}

// ensureWorkspace resolves a workspace by name, creating it when missing.
func (c *client) ensureWorkspace(name string) (*store.Workspace, error) {
	var ws store.Workspace
	if err := c.post("/workspace/", map[string]string{"name": name}, &ws); err != nil {
		return nil, err
	}
	return &ws, nil
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
