package knowledge

import (
	"cmp"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/ledongthuc/pdf"
)

const embeddingDim = 512
const defaultChunkSize = 800

// Passage is an indexed text chunk and its embedding.
type Passage struct {
	Source    string
	Text      string
	Embedding []float32
}

// Index answers general-knowledge lookups from local documents using
// hashed bag-of-words vectors. No external embedding model is involved.
type Index struct {
	mu       sync.RWMutex
	passages []Passage
	logger   *slog.Logger
}

// NewIndex creates an empty index.
func NewIndex(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{logger: logger.With("component", "knowledge")}
}

// Load indexes every .txt, .md and .pdf file in dir. A missing or empty
// directory is not an error.
func (x *Index) Load(dir string) error {
	docs, err := readDocuments(dir)
	if err != nil {
		return fmt.Errorf("knowledge: load %q: %w", dir, err)
	}

	if len(docs) == 0 {
		x.logger.Info("No documents indexed", "dir", dir)
		return nil
	}

	x.mu.Lock()
	before := len(x.passages)
	for _, d := range docs {
		x.addLocked(d.source, d.text)
	}
	added, total := len(x.passages)-before, len(x.passages)
	x.mu.Unlock()

	x.logger.Info("Documents indexed", "dir", dir, "documents", len(docs), "chunks", added, "total", total)
	return nil
}

// Add indexes a single in-memory document.
func (x *Index) Add(source, text string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.addLocked(source, text)
}

func (x *Index) addLocked(source, text string) {
	for _, c := range chunkText(text, defaultChunkSize) {
		x.passages = append(x.passages, Passage{Source: source, Text: c, Embedding: vectorize(terms(c))})
	}
}

// Len returns the number of indexed passages.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.passages)
}

// Search returns up to topK passages ranked by similarity to query.
// Passages with zero similarity are never returned.
func (x *Index) Search(query string, topK int) []Passage {
	words := terms(query)
	if topK <= 0 || len(words) == 0 {
		return nil
	}
	queryVec := vectorize(words)

	x.mu.RLock()
	defer x.mu.RUnlock()

	type scored struct {
		passage Passage
		score   float32
	}

	var results []scored
	for _, p := range x.passages {
		if score := similarity(queryVec, p.Embedding); score > 0 {
			results = append(results, scored{passage: p, score: score})
		}
	}
	if len(results) == 0 {
		return nil
	}

	slices.SortStableFunc(results, func(a, b scored) int { return cmp.Compare(b.score, a.score) })

	out := make([]Passage, min(topK, len(results)))
	for i := range out {
		out[i] = results[i].passage
	}
	return out
}

// terms splits text into lowercase words. Documents and queries share it so
// their vectors land in the same buckets.
func terms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// vectorize hashes words into a fixed-size unit vector.
func vectorize(words []string) []float32 {
	vec := make([]float32, embeddingDim)
	for _, term := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(term))
		vec[h.Sum32()%embeddingDim]++
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v * v)
	}
	if sum == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// similarity is the dot product of two vectors from vectorize, which are
// unit length or zero.
func similarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

type document struct {
	source string
	text   string
}

var readers = map[string]func(path string) (string, error){
	".txt": readText,
	".md":  readText,
	".pdf": readPDF,
}

func readDocuments(dir string) ([]document, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var docs []document
	for _, entry := range entries {
		read, ok := readers[strings.ToLower(filepath.Ext(entry.Name()))]
		if entry.IsDir() || !ok {
			continue
		}
		text, err := read(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", entry.Name(), err)
		}
		docs = append(docs, document{source: entry.Name(), text: text})
	}
	return docs, nil
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

func readPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(plain)
	return string(data), err
}

// chunkText packs paragraphs into chunks of at most maxLen bytes. Paragraphs
// longer than maxLen are first cut at word boundaries.
func chunkText(text string, maxLen int) []string {
	var (
		chunks []string
		buf    []string
		size   int
	)
	flush := func() {
		if len(buf) > 0 {
			chunks = append(chunks, strings.Join(buf, "\n\n"))
			buf, size = buf[:0], 0
		}
	}

	for _, para := range paragraphs(text) {
		for _, piece := range wrapWords(para, maxLen) {
			if size > 0 && size+2+len(piece) > maxLen {
				flush()
			}
			if size > 0 {
				size += 2
			}
			buf = append(buf, piece)
			size += len(piece)
		}
	}
	flush()
	return chunks
}

func paragraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// wrapWords cuts a paragraph into pieces of at most maxLen bytes. A single
// word longer than maxLen becomes its own piece.
func wrapWords(para string, maxLen int) []string {
	if len(para) <= maxLen {
		return []string{para}
	}

	var (
		pieces []string
		line   strings.Builder
	)
	for _, word := range strings.Fields(para) {
		if line.Len() > 0 && line.Len()+1+len(word) > maxLen {
			pieces = append(pieces, line.String())
			line.Reset()
		}
		if line.Len() > 0 {
			line.WriteByte(' ')
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		pieces = append(pieces, line.String())
	}
	return pieces
}
