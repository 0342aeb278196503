package pipeline

import (
	"context"

	"github.com/spall-labs/spall/internal/bus"
	"github.com/spall-labs/spall/internal/chunk"
	"github.com/spall-labs/spall/internal/reqctx"
	"github.com/spall-labs/spall/internal/store"
)

type noteChunks struct {
	note   *store.Note
	chunks []chunk.Chunk
}

// pending is one chunk waiting for its vector in the current batch.
type pending struct {
	row  store.EmbeddingRow
	text string
	// last marks the note's final chunk; flushing it means the note is
	// fully processed.
	last      bool
	noteBytes int64
}

// Embed chunks and embeds the given notes in batches. Each flushed batch
// is one transaction: residual chunk and vector rows for notes first seen
// in the batch are deleted, then the new rows inserted. Cancellation
// between batches leaves every previously flushed batch committed.
func (p *Pipeline) Embed(ctx context.Context, rc *reqctx.Context, noteIDs []int64) error {
	if len(noteIDs) == 0 {
		// A pass with nothing to embed still emits the start/done pair,
		// so streamed syncs always terminate with embed frames.
		p.publish(bus.EmbedStart(0, 0, 0))
		p.publish(bus.EmbedDone(0))
		return nil
	}

	var (
		work      []noteChunks
		numChunks int
		numBytes  int64
	)
	for _, id := range noteIDs {
		if err := rc.Checkpoint(); err != nil {
			return err
		}
		note, err := p.store.GetNoteByID(id)
		if err != nil {
			return err
		}
		chunks, err := p.chunker.Split(note.Content)
		if err != nil {
			return err
		}
		work = append(work, noteChunks{note: note, chunks: chunks})
		numChunks += len(chunks)
		numBytes += int64(len(note.Content))
	}

	p.publish(bus.EmbedStart(len(work), numChunks, numBytes))

	var (
		batch          []pending
		clearNotes     []int64
		flushedNotes   = map[int64]bool{}
		filesProcessed int
		bytesProcessed int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		texts := make([]string, len(batch))
		for i, item := range batch {
			texts[i] = item.text
		}
		vectors, err := p.models.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}

		rows := make([]store.EmbeddingRow, len(batch))
		for i, item := range batch {
			row := item.row
			row.Vector = vectors[i]
			rows[i] = row
		}
		if err := p.store.SaveEmbeddingBatch(rows, clearNotes); err != nil {
			return err
		}

		for _, item := range batch {
			if item.last {
				filesProcessed++
				bytesProcessed += item.noteBytes
			}
		}
		batch = batch[:0]
		clearNotes = clearNotes[:0]

		p.publish(bus.EmbedProgress(len(work), numChunks, numBytes, filesProcessed, bytesProcessed))
		return nil
	}

	for _, nc := range work {
		for seq, ch := range nc.chunks {
			if err := rc.Checkpoint(); err != nil {
				return err
			}
			if !flushedNotes[nc.note.ID] {
				flushedNotes[nc.note.ID] = true
				clearNotes = append(clearNotes, nc.note.ID)
			}
			batch = append(batch, pending{
				row:       store.EmbeddingRow{NoteID: nc.note.ID, Seq: seq, Pos: ch.Pos},
				text:      ch.Text,
				last:      seq == len(nc.chunks)-1,
				noteBytes: int64(len(nc.note.Content)),
			})
			if len(batch) >= p.batchSize {
				if err := flush(); err != nil {
					return err
				}
				if err := rc.Checkpoint(); err != nil {
					return err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	p.publish(bus.EmbedDone(len(work)))
	return nil
}
