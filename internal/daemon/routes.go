package daemon

import (
	"net/http"
	"strings"
)

// routes builds the daemon's HTTP surface. Streaming endpoints count
// against the SSE counter; everything else against in-flight requests.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("POST /shutdown", s.handleShutdown)

	mux.HandleFunc("POST /workspace/{$}", s.handleWorkspaceCreate)
	mux.HandleFunc("GET /workspace/{$}", s.handleWorkspaceGet)
	mux.HandleFunc("GET /workspace/list", s.handleWorkspaceList)
	mux.HandleFunc("DELETE /workspace/{id}", s.handleWorkspaceDelete)

	mux.HandleFunc("POST /corpus/{$}", s.handleCorpusCreate)
	mux.HandleFunc("GET /corpus/{$}", s.handleCorpusGet)
	mux.HandleFunc("GET /corpus/list", s.handleCorpusList)
	mux.HandleFunc("DELETE /corpus/{id}", s.handleCorpusDelete)
	mux.HandleFunc("GET /corpus/{id}/list", s.handleCorpusNotesList)
	mux.HandleFunc("GET /corpus/{id}/notes", s.handleCorpusNotesPage)
	mux.HandleFunc("GET /corpus/{id}/note/{path...}", s.handleNoteGetByPath)
	mux.HandleFunc("POST /corpus/note", s.handleNoteAdd)
	mux.HandleFunc("PUT /corpus/{id}/note/{path...}", s.handleNoteUpsert)
	mux.HandleFunc("POST /corpus/sync", s.handleSync)

	mux.HandleFunc("GET /note/{id}", s.handleNoteGet)
	mux.HandleFunc("PUT /note/{id}", s.handleNoteUpdate)

	mux.HandleFunc("POST /query/{$}", s.handleQueryCreate)
	mux.HandleFunc("GET /query/recent", s.handleQueryRecent)
	mux.HandleFunc("GET /query/{id}", s.handleQueryGet)
	mux.HandleFunc("GET /query/{id}/notes", s.handleQueryNotes)
	mux.HandleFunc("GET /query/{id}/search", s.handleQuerySearch)
	mux.HandleFunc("GET /query/{id}/vsearch", s.handleQueryVSearch)
	mux.HandleFunc("POST /query/{id}/fetch", s.handleQueryFetch)
	mux.HandleFunc("GET /query/{id}/paths", s.handleQueryPaths)

	mux.HandleFunc("POST /commit/{$}", s.handleCommit)

	mux.HandleFunc("POST /sse/corpus/sync", s.handleSSESync)
	mux.HandleFunc("POST /sse/corpus/note", s.handleSSENoteAdd)
	mux.HandleFunc("PUT /sse/corpus/{id}/note/{path...}", s.handleSSENoteUpsert)
	mux.HandleFunc("PUT /sse/note/{id}", s.handleSSENoteUpdate)

	return s.track(mux)
}

// track maintains the idle counters. Event streams manage the SSE
// counter inside their handlers; plain requests are counted here.
func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isStreamPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		s.idle.RequestStarted()
		defer s.idle.RequestDone()
		next.ServeHTTP(w, r)
	})
}

func isStreamPath(path string) bool {
	return path == "/events" || strings.HasPrefix(path, "/sse/")
}
