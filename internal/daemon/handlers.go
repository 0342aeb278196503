package daemon

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"syscall"
	"time"

	"github.com/spall-labs/spall/internal/errors"
	"github.com/spall-labs/spall/internal/reqctx"
	"github.com/spall-labs/spall/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleShutdown acknowledges, then signals self after the response has
// gone out.
func (s *Server) handleShutdown(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	go func() {
		time.Sleep(50 * time.Millisecond)
		if proc, err := os.FindProcess(os.Getpid()); err == nil {
			_ = proc.Signal(syscall.SIGTERM)
		}
	}()
}

// ---- workspaces ----

func (s *Server) handleWorkspaceCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	ws, err := s.store.GetOrCreateWorkspace(body.Name)
	s.respond(w, ws, err)
}

func (s *Server) handleWorkspaceGet(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("name"); name != "" {
		ws, err := s.store.GetWorkspaceByName(name)
		s.respond(w, ws, err)
		return
	}
	id, ok := parseQueryID(w, r)
	if !ok {
		return
	}
	ws, err := s.store.GetWorkspaceByID(id)
	s.respond(w, ws, err)
}

func (s *Server) handleWorkspaceList(w http.ResponseWriter, _ *http.Request) {
	list, err := s.store.ListWorkspaces()
	s.respond(w, list, err)
}

func (s *Server) handleWorkspaceDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.store.RemoveWorkspace(id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- corpora ----

func (s *Server) handleCorpusCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	c, err := s.store.GetOrCreateCorpus(body.Name)
	s.respond(w, c, err)
}

func (s *Server) handleCorpusGet(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("name"); name != "" {
		c, err := s.store.GetCorpusByName(name)
		s.respond(w, c, err)
		return
	}
	id, ok := parseQueryID(w, r)
	if !ok {
		return
	}
	c, err := s.store.GetCorpusByID(id)
	s.respond(w, c, err)
}

func (s *Server) handleCorpusList(w http.ResponseWriter, _ *http.Request) {
	list, err := s.store.ListCorpora()
	s.respond(w, list, err)
}

func (s *Server) handleCorpusDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.store.RemoveCorpus(id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCorpusNotesList(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}
	refs, err := s.store.ListNotes(id)
	s.respond(w, refs, err)
}

func (s *Server) handleCorpusNotesPage(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}
	if _, err := s.store.GetCorpusByID(id); err != nil {
		s.writeError(w, err)
		return
	}
	q := r.URL.Query()
	notes, next, err := s.store.ListByPath([]int64{id}, q.Get("path"), q.Get("after"), parseLimit(q.Get("limit")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes, "nextCursor": nullable(next)})
}

// ---- notes ----

func (s *Server) handleNoteGetByPath(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}
	note, err := s.store.GetNote(id, r.PathValue("path"))
	s.respond(w, note, err)
}

func (s *Server) handleNoteGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}
	note, err := s.store.GetNoteByID(id)
	s.respond(w, note, err)
}

type addNoteBody struct {
	Corpus  int64  `json:"corpus"`
	Path    string `json:"path"`
	Content string `json:"content"`
	Dupe    bool   `json:"dupe"`
}

type noteContentBody struct {
	Content string `json:"content"`
	Dupe    bool   `json:"dupe"`
}

func (s *Server) handleNoteAdd(w http.ResponseWriter, r *http.Request) {
	var body addNoteBody
	if !decodeBody(w, r, &body) {
		return
	}
	note, err := s.addNote(r, body)
	s.respond(w, note, err)
}

func (s *Server) addNote(r *http.Request, body addNoteBody) (*store.Note, error) {
	note, err := s.store.AddNote(body.Corpus, body.Path, body.Content, 0, body.Dupe)
	if err != nil {
		return nil, err
	}
	if err := s.pipeline.IngestNote(r.Context(), reqctx.New(0), note.ID); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *Server) handleNoteUpsert(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}
	var body noteContentBody
	if !decodeBody(w, r, &body) {
		return
	}
	note, err := s.upsertNote(r, id, r.PathValue("path"), body)
	s.respond(w, note, err)
}

func (s *Server) upsertNote(r *http.Request, corpusID int64, path string, body noteContentBody) (*store.Note, error) {
	note, err := s.store.UpsertNote(corpusID, path, body.Content, 0, body.Dupe)
	if err != nil {
		return nil, err
	}
	if err := s.pipeline.IngestNote(r.Context(), reqctx.New(0), note.ID); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *Server) handleNoteUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}
	var body noteContentBody
	if !decodeBody(w, r, &body) {
		return
	}
	note, err := s.updateNote(r, id, body)
	s.respond(w, note, err)
}

func (s *Server) updateNote(r *http.Request, id int64, body noteContentBody) (*store.Note, error) {
	note, err := s.store.UpdateNote(id, body.Content, 0, body.Dupe)
	if err != nil {
		return nil, err
	}
	if err := s.pipeline.IngestNote(r.Context(), reqctx.New(0), note.ID); err != nil {
		return nil, err
	}
	return note, nil
}

// ---- sync ----

type syncBody struct {
	Corpus int64  `json:"corpus"`
	Dir    string `json:"dir"`
	Glob   string `json:"glob"`
	Prefix string `json:"prefix"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var body syncBody
	if !decodeBody(w, r, &body) {
		return
	}
	if _, err := s.pipeline.Sync(r.Context(), reqctx.New(0), body.Dir, body.Glob, body.Corpus, body.Prefix); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- queries ----

func (s *Server) handleQueryCreate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Viewer  int64   `json:"viewer"`
		Tracked bool    `json:"tracked"`
		Corpora []int64 `json:"corpora"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	q, err := s.queries.Create(body.Viewer, body.Tracked, body.Corpora)
	s.respond(w, q, err)
}

func (s *Server) handleQueryRecent(w http.ResponseWriter, r *http.Request) {
	list, err := s.queries.Recent(parseLimit(r.URL.Query().Get("limit")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": list})
}

func (s *Server) handleQueryGet(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}
	q, err := s.queries.Get(id)
	s.respond(w, q, err)
}

func (s *Server) handleQueryNotes(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}
	q := r.URL.Query()
	notes, next, err := s.queries.Notes(id, q.Get("path"), q.Get("after"), parseLimit(q.Get("limit")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes, "nextCursor": nullable(next)})
}

func (s *Server) handleQuerySearch(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}
	q := r.URL.Query()
	results, err := s.queries.Search(id, q.Get("q"), q.Get("path"), parseLimit(q.Get("limit")), q.Get("mode"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleQueryVSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}
	q := r.URL.Query()
	results, err := s.queries.VSearch(r.Context(), id, q.Get("q"), q.Get("path"), parseLimit(q.Get("limit")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleQueryFetch(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}
	var body struct {
		IDs []int64 `json:"ids"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	notes, err := s.queries.Fetch(id, body.IDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func (s *Server) handleQueryPaths(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePathID(w, r, "id")
	if !ok {
		return
	}
	paths, err := s.queries.Paths(id, r.URL.Query().Get("path"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"paths": paths})
}

func (s *Server) handleCommit(w http.ResponseWriter, _ *http.Request) {
	moved, committedAt, err := s.queries.Commit()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"moved": moved, "committedAt": committedAt})
}

// ---- helpers ----

func (s *Server) respond(w http.ResponseWriter, payload any, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request_failed", slog.String("error", err.Error()))
	}
	writeJSON(w, status, map[string]string{
		"code":    errors.Code(err),
		"message": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code":    errors.CodeInternal,
			"message": fmt.Sprintf("invalid request body: %v", err),
		})
		return false
	}
	return true
}

func parsePathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code":    errors.CodeInternal,
			"message": fmt.Sprintf("invalid %s: %v", name, err),
		})
		return 0, false
	}
	return id, true
}

func parseQueryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"code":    errors.CodeInternal,
			"message": "missing or invalid id parameter",
		})
		return 0, false
	}
	return id, true
}

func parseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// nullable maps an empty cursor to JSON null.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
