//go:build darwin || linux

package model

import (
	"context"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

// LlamaEmbedder drives a GGUF embedding model through libllama, loaded
// dynamically with purego so the binary carries no cgo dependency on
// llama.cpp. The embedding context is single-threaded by contract: calls
// serialize on the embedder mutex.
type LlamaEmbedder struct {
	mu   sync.Mutex
	lib  uintptr
	name string
	dims int

	model uintptr
	ctx   uintptr
	vocab uintptr

	backendFree   func()
	modelFree     func(uintptr)
	ctxFree       func(uintptr)
	tokenize      func(vocab uintptr, text string, textLen int32, tokens *int32, max int32, addSpecial, parseSpecial bool) int32
	detokenize    func(vocab uintptr, tokens *int32, n int32, out *byte, max int32, removeSpecial, unparseSpecial bool) int32
	decode        func(ctx uintptr, batch llamaBatch) int32
	embeddingsSeq func(ctx uintptr, seq int32) *float32
}

// Mirrors of the llama.h parameter structs, padded to the fields the
// embedder actually sets. Layout tracks llama.cpp b4600+.
type llamaModelParams struct {
	devices                  uintptr
	tensorBuftOverrides      uintptr
	nGpuLayers               int32
	splitMode                int32
	mainGpu                  int32
	tensorSplit              uintptr
	progressCallback         uintptr
	progressCallbackUserData uintptr
	kvOverrides              uintptr
	vocabOnly                uint8
	useMmap                  uint8
	useMlock                 uint8
	checkTensors             uint8
}

type llamaContextParams struct {
	nCtx             uint32
	nBatch           uint32
	nUbatch          uint32
	nSeqMax          uint32
	nThreads         int32
	nThreadsBatch    int32
	ropeScalingType  int32
	poolingType      int32
	attentionType    int32
	ropeFreqBase     float32
	ropeFreqScale    float32
	yarnExtFactor    float32
	yarnAttnFactor   float32
	yarnBetaFast     float32
	yarnBetaSlow     float32
	yarnOrigCtx      uint32
	defragThold      float32
	cbEval           uintptr
	cbEvalUserData   uintptr
	typeK            int32
	typeV            int32
	abortCallback    uintptr
	abortCallbackCtx uintptr
	embeddings       uint8
	offloadKQV       uint8
	flashAttn        uint8
	noPerf           uint8
}

type llamaBatch struct {
	nTokens int32
	token   uintptr
	embd    uintptr
	pos     uintptr
	nSeqID  uintptr
	seqID   uintptr
	logits  uintptr
}

const llamaPoolingTypeMean = 1

// llamaLibraryPath resolves the libllama shared object. SPALL_LLAMA_LIB
// overrides the default soname lookup.
func llamaLibraryPath() string {
	if p := os.Getenv("SPALL_LLAMA_LIB"); p != "" {
		return p
	}
	if _, err := os.Stat("/usr/local/lib/libllama.dylib"); err == nil {
		return "/usr/local/lib/libllama.dylib"
	}
	return "libllama.so"
}

// NewLlamaEmbedder loads modelPath into a fresh llama context configured
// for mean-pooled embeddings.
func NewLlamaEmbedder(modelPath, modelName string) (*LlamaEmbedder, error) {
	lib, err := purego.Dlopen(llamaLibraryPath(), purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("failed to load libllama: %w", err)
	}

	e := &LlamaEmbedder{lib: lib, name: modelName}

	var backendInit func()
	var modelDefaultParams func() llamaModelParams
	var loadModel func(path string, params llamaModelParams) uintptr
	var ctxDefaultParams func() llamaContextParams
	var initFromModel func(model uintptr, params llamaContextParams) uintptr
	var nEmbd func(model uintptr) int32
	var getVocab func(model uintptr) uintptr

	purego.RegisterLibFunc(&backendInit, lib, "llama_backend_init")
	purego.RegisterLibFunc(&e.backendFree, lib, "llama_backend_free")
	purego.RegisterLibFunc(&modelDefaultParams, lib, "llama_model_default_params")
	purego.RegisterLibFunc(&loadModel, lib, "llama_model_load_from_file")
	purego.RegisterLibFunc(&e.modelFree, lib, "llama_model_free")
	purego.RegisterLibFunc(&ctxDefaultParams, lib, "llama_context_default_params")
	purego.RegisterLibFunc(&initFromModel, lib, "llama_init_from_model")
	purego.RegisterLibFunc(&e.ctxFree, lib, "llama_free")
	purego.RegisterLibFunc(&nEmbd, lib, "llama_model_n_embd")
	purego.RegisterLibFunc(&getVocab, lib, "llama_model_get_vocab")
	purego.RegisterLibFunc(&e.tokenize, lib, "llama_tokenize")
	purego.RegisterLibFunc(&e.detokenize, lib, "llama_detokenize")
	purego.RegisterLibFunc(&e.decode, lib, "llama_decode")
	purego.RegisterLibFunc(&e.embeddingsSeq, lib, "llama_get_embeddings_seq")

	backendInit()

	mp := modelDefaultParams()
	e.model = loadModel(modelPath, mp)
	if e.model == 0 {
		e.backendFree()
		return nil, fmt.Errorf("failed to load model %s", modelPath)
	}

	cp := ctxDefaultParams()
	cp.embeddings = 1
	cp.poolingType = llamaPoolingTypeMean
	cp.nCtx = 2048
	cp.nBatch = 2048
	cp.nUbatch = 2048
	e.ctx = initFromModel(e.model, cp)
	if e.ctx == 0 {
		e.modelFree(e.model)
		e.backendFree()
		return nil, fmt.Errorf("failed to create embedding context for %s", modelPath)
	}

	e.vocab = getVocab(e.model)
	e.dims = int(nEmbd(e.model))
	return e, nil
}

// Tokenize converts text to model tokens.
func (e *LlamaEmbedder) Tokenize(text string) ([]int32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == 0 {
		return nil, fmt.Errorf("llama embedder is closed")
	}
	if text == "" {
		return nil, nil
	}

	// First call with capacity len+8; a negative return is the required
	// size, retry once with that.
	capHint := int32(len(text) + 8)
	tokens := make([]int32, capHint)
	n := e.tokenize(e.vocab, text, int32(len(text)), &tokens[0], capHint, true, false)
	if n < 0 {
		tokens = make([]int32, -n)
		n = e.tokenize(e.vocab, text, int32(len(text)), &tokens[0], -n, true, false)
	}
	if n < 0 {
		return nil, fmt.Errorf("tokenize failed for %d bytes of text", len(text))
	}
	return tokens[:n], nil
}

// Detokenize converts tokens back to text.
func (e *LlamaEmbedder) Detokenize(tokens []int32) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == 0 {
		return "", fmt.Errorf("llama embedder is closed")
	}
	if len(tokens) == 0 {
		return "", nil
	}

	capHint := int32(len(tokens) * 8)
	buf := make([]byte, capHint)
	n := e.detokenize(e.vocab, &tokens[0], int32(len(tokens)), &buf[0], capHint, true, false)
	if n < 0 {
		buf = make([]byte, -n)
		n = e.detokenize(e.vocab, &tokens[0], int32(len(tokens)), &buf[0], -n, true, false)
	}
	if n < 0 {
		return "", fmt.Errorf("detokenize failed for %d tokens", len(tokens))
	}
	return string(buf[:n]), nil
}

// Embed produces a normalized mean-pooled embedding for one text.
func (e *LlamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	tokens, err := e.Tokenize(text)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx == 0 {
		return nil, fmt.Errorf("llama embedder is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return make([]float32, e.dims), nil
	}

	batch := llamaBatch{
		nTokens: int32(len(tokens)),
		token:   uintptr(unsafe.Pointer(&tokens[0])),
	}
	if rc := e.decode(e.ctx, batch); rc != 0 {
		return nil, fmt.Errorf("llama_decode failed with status %d", rc)
	}

	ptr := e.embeddingsSeq(e.ctx, 0)
	if ptr == nil {
		return nil, fmt.Errorf("no embeddings produced")
	}
	raw := unsafe.Slice(ptr, e.dims)
	vec := make([]float32, e.dims)
	copy(vec, raw)
	return normalizeVector(vec), nil
}

// EmbedBatch embeds each text in sequence on the single context.
func (e *LlamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the model's embedding size.
func (e *LlamaEmbedder) Dimensions() int {
	return e.dims
}

// ModelName identifies the loaded model.
func (e *LlamaEmbedder) ModelName() string {
	return e.name
}

// Close frees the context, model and backend.
func (e *LlamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx != 0 {
		e.ctxFree(e.ctx)
		e.ctx = 0
	}
	if e.model != 0 {
		e.modelFree(e.model)
		e.model = 0
	}
	if e.lib != 0 {
		e.backendFree()
		_ = purego.Dlclose(e.lib)
		e.lib = 0
	}
	return nil
}
