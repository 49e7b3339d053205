// Package ingest turns documents into searchable chunks: extract text,
// split into overlapping chunks, embed, and store. A watcher can feed
// the processor from an inbox directory.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"taskpilot/internal/embedding"
	"taskpilot/internal/logging"
	"taskpilot/internal/store"
	"taskpilot/internal/types"
)

// supported file extensions. Text-bearing formats only.
var supportedTypes = map[string]bool{
	".txt": true,
	".md":  true,
}

// ErrUnsupportedType is returned for file types the processor cannot
// extract text from.
var ErrUnsupportedType = errors.New("unsupported file type")

// Processor ingests documents for a project.
type Processor struct {
	store        *store.Store
	engine       embedding.Engine
	chunkSize    int
	chunkOverlap int
}

// NewProcessor creates a processor. Zero or out-of-range chunk settings
// fall back to 1000/200. Overlap must stay below half the chunk size:
// boundary snapping can shrink a chunk to just over chunkSize/2, and the
// next window still has to start past the previous one.
func NewProcessor(st *store.Store, engine embedding.Engine, chunkSize, chunkOverlap int) *Processor {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap*2 >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &Processor{store: st, engine: engine, chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// IngestFile processes one file into stored, embedded chunks. Files
// whose content hash matches an already ingested document are skipped
// and the existing document is returned with skipped=true.
func (p *Processor) IngestFile(ctx context.Context, projectID, path string) (*types.Document, bool, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedTypes[ext] {
		return nil, false, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read file: %w", err)
	}

	sum := sha256.Sum256(data)
	contentHash := hex.EncodeToString(sum[:])

	if existing, err := p.store.Documents.FindByHash(ctx, projectID, contentHash); err == nil {
		logging.Ingest("skipping %s: identical content already ingested as %s", filepath.Base(path), existing.Name)
		return existing, true, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	text := string(data)
	if ext == ".md" {
		text = stripMarkdown(text)
	}

	chunks := p.chunkText(text)
	if len(chunks) == 0 {
		return nil, false, fmt.Errorf("no text content in %s", path)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	logging.Ingest("embedding %d chunk(s) from %s", len(chunks), filepath.Base(path))
	embeddings, err := p.engine.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, false, fmt.Errorf("failed to embed chunks: %w", err)
	}

	doc, err := p.store.Documents.Create(ctx, projectID, filepath.Base(path), contentHash, chunks, embeddings)
	if err != nil {
		return nil, false, err
	}
	logging.Ingest("ingested %s: %d chunk(s)", doc.Name, doc.ChunkCount)
	return doc, false, nil
}

// chunkText splits text into overlapping chunks, preferring sentence
// then word boundaries past the midpoint of the window.
func (p *Processor) chunkText(text string) []types.Chunk {
	var chunks []types.Chunk
	start := 0

	for start < len(text) {
		end := start + p.chunkSize
		if end > len(text) {
			end = len(text)
		}
		piece := text[start:end]

		if end < len(text) {
			if period := strings.LastIndex(piece, ". "); period > p.chunkSize/2 {
				end = start + period + 1
				piece = text[start:end]
			} else if space := strings.LastIndex(piece, " "); space > p.chunkSize/2 {
				end = start + space
				piece = text[start:end]
			}
		}

		if trimmed := strings.TrimSpace(piece); trimmed != "" {
			chunks = append(chunks, types.Chunk{Text: trimmed, Position: len(chunks)})
		}

		if end >= len(text) {
			break
		}
		if next := end - p.chunkOverlap; next > start {
			start = next
		} else {
			start = end
		}
	}
	return chunks
}

// stripMarkdown removes common markdown syntax so embeddings see prose,
// not markup.
func stripMarkdown(text string) string {
	var out []string
	inFence := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}
		trimmed = strings.TrimLeft(trimmed, "#>")
		trimmed = strings.TrimSpace(trimmed)
		trimmed = strings.ReplaceAll(trimmed, "**", "")
		trimmed = strings.ReplaceAll(trimmed, "`", "")
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}
