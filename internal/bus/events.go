// Package bus provides the process-wide typed event channel that backs
// progress reporting and the SSE endpoints.
package bus

// Event type tags. These strings appear verbatim on the wire.
const (
	TypeStoreCreate  = "store.create"
	TypeStoreCreated = "store.created"

	TypeModelDownload   = "model.download"
	TypeModelProgress   = "model.progress"
	TypeModelDownloaded = "model.downloaded"
	TypeModelLoad       = "model.load"
	TypeModelFailed     = "model.failed"

	TypeScanStart    = "scan.start"
	TypeScanProgress = "scan.progress"
	TypeScanDone     = "scan.done"

	TypeEmbedStart    = "embed.start"
	TypeEmbedProgress = "embed.progress"
	TypeEmbedDone     = "embed.done"

	TypeNoteCreated      = "note.created"
	TypeNoteUpdated      = "note.updated"
	TypeCorpusCreated    = "corpus.created"
	TypeCorpusUpdated    = "corpus.updated"
	TypeWorkspaceCreated = "workspace.created"
	TypeWorkspaceUpdated = "workspace.updated"

	TypeError        = "error"
	TypeSSEConnected = "sse.connected"
)

// Scan file statuses carried by scan.progress.
const (
	StatusAdded    = "added"
	StatusModified = "modified"
	StatusRemoved  = "removed"
	StatusOK       = "ok"
)

// ModelInfo identifies a model in model.* events.
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// ErrorInfo is the payload of error events.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Event is a single bus event. Type is always set; the remaining fields
// are payload and serialize only when relevant to the type.
type Event struct {
	Type string `json:"type"`

	// scan.progress / store.*
	Path   string `json:"path,omitempty"`
	Status string `json:"status,omitempty"`

	// scan.* / embed.*
	NumFiles          int   `json:"numFiles,omitempty"`
	NumChunks         int   `json:"numChunks,omitempty"`
	NumBytes          int64 `json:"numBytes,omitempty"`
	NumFilesProcessed int   `json:"numFilesProcessed,omitempty"`
	NumBytesProcessed int64 `json:"numBytesProcessed,omitempty"`

	// Typed payload: *ModelInfo for model.* events, the entity snapshot
	// for note.* / corpus.* / workspace.* events.
	Info any `json:"info,omitempty"`

	// model.progress
	Downloaded int64 `json:"downloaded,omitempty"`
	Total      int64 `json:"total,omitempty"`

	// error
	Error *ErrorInfo `json:"error,omitempty"`
}

// ModelPayload returns the model info attached to model.* events, or nil.
// Events decoded from the wire carry the payload as a generic map, so both
// shapes are handled.
func (e Event) ModelPayload() *ModelInfo {
	switch m := e.Info.(type) {
	case *ModelInfo:
		return m
	case map[string]any:
		mi := &ModelInfo{}
		mi.ID, _ = m["id"].(string)
		mi.Name, _ = m["name"].(string)
		mi.Path, _ = m["path"].(string)
		return mi
	}
	return nil
}

func StoreCreate(path string) Event  { return Event{Type: TypeStoreCreate, Path: path} }
func StoreCreated(path string) Event { return Event{Type: TypeStoreCreated, Path: path} }

func ModelDownload(m ModelInfo) Event { return Event{Type: TypeModelDownload, Info: &m} }

func ModelProgress(m ModelInfo, downloaded, total int64) Event {
	return Event{Type: TypeModelProgress, Info: &m, Downloaded: downloaded, Total: total}
}

func ModelDownloaded(m ModelInfo) Event { return Event{Type: TypeModelDownloaded, Info: &m} }
func ModelLoad(m ModelInfo) Event       { return Event{Type: TypeModelLoad, Info: &m} }

func ModelFailed(m ModelInfo, err error) Event {
	return Event{Type: TypeModelFailed, Info: &m, Error: &ErrorInfo{Code: "error", Message: err.Error()}}
}

func ScanStart(numFiles int) Event { return Event{Type: TypeScanStart, NumFiles: numFiles} }

func ScanProgress(path, status string) Event {
	return Event{Type: TypeScanProgress, Path: path, Status: status}
}

func ScanDone(numFiles int) Event { return Event{Type: TypeScanDone, NumFiles: numFiles} }

func EmbedStart(numFiles, numChunks int, numBytes int64) Event {
	return Event{Type: TypeEmbedStart, NumFiles: numFiles, NumChunks: numChunks, NumBytes: numBytes}
}

func EmbedProgress(numFiles, numChunks int, numBytes int64, filesProcessed int, bytesProcessed int64) Event {
	return Event{
		Type:              TypeEmbedProgress,
		NumFiles:          numFiles,
		NumChunks:         numChunks,
		NumBytes:          numBytes,
		NumFilesProcessed: filesProcessed,
		NumBytesProcessed: bytesProcessed,
	}
}

func EmbedDone(numFiles int) Event { return Event{Type: TypeEmbedDone, NumFiles: numFiles} }

func NoteCreated(info any) Event      { return Event{Type: TypeNoteCreated, Info: info} }
func NoteUpdated(info any) Event      { return Event{Type: TypeNoteUpdated, Info: info} }
func CorpusCreated(info any) Event    { return Event{Type: TypeCorpusCreated, Info: info} }
func CorpusUpdated(info any) Event    { return Event{Type: TypeCorpusUpdated, Info: info} }
func WorkspaceCreated(info any) Event { return Event{Type: TypeWorkspaceCreated, Info: info} }
func WorkspaceUpdated(info any) Event { return Event{Type: TypeWorkspaceUpdated, Info: info} }

func Error(code, message string) Event {
	return Event{Type: TypeError, Error: &ErrorInfo{Code: code, Message: message}}
}

func SSEConnected() Event { return Event{Type: TypeSSEConnected} }
