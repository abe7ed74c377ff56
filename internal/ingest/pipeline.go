// Package ingest reads course content from disk or a sitemap, chunks it,
// embeds it and upserts the result into the vector store.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/tbeckett/courserag/internal/chunker"
	"github.com/tbeckett/courserag/internal/embed"
	"github.com/tbeckett/courserag/internal/parser"
	"github.com/tbeckett/courserag/internal/vectorstore"
)

// Store is the slice of the vector store the pipeline needs.
type Store interface {
	EnsureCollection(ctx context.Context, dimension int, distance string) error
	UpsertBatch(ctx context.Context, points []vectorstore.Point) (int, error)
}

// Result summarises one ingestion run. Errors holds per-document failures
// that were skipped rather than aborting the run.
type Result struct {
	DocumentsProcessed int      `json:"documents_processed"`
	ChunksIndexed      int      `json:"chunks_indexed"`
	URLsProcessed      int      `json:"urls_processed,omitempty"`
	Errors             []string `json:"errors,omitempty"`
}

// Options tune one Pipeline instance.
type Options struct {
	ContentDir     string
	MaxChunkLength int
	EmbedBatchSize int
	FetchDelay     time.Duration
	FetchTimeout   time.Duration
}

// Pipeline wires the chunker, embedder and vector store into the two
// ingestion paths: local content directories and crawled sitemaps.
type Pipeline struct {
	embedder   embed.Embedder
	store      Store
	opts       Options
	httpClient *http.Client
	log        *slog.Logger
}

func NewPipeline(embedder embed.Embedder, store Store, opts Options, log *slog.Logger) *Pipeline {
	if opts.MaxChunkLength <= 0 {
		opts.MaxChunkLength = chunker.DefaultMaxLength
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = 50
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 30 * time.Second
	}
	return &Pipeline{
		embedder:   embedder,
		store:      store,
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.FetchTimeout},
		log:        log,
	}
}

// IngestLocal walks the content directory's module subdirectories and
// indexes every supported file. Per-file failures are logged, recorded in
// the result and skipped.
func (p *Pipeline) IngestLocal(ctx context.Context) (Result, error) {
	var res Result

	if err := p.store.EnsureCollection(ctx, p.embedder.Dimension(), vectorstore.DistanceCosine); err != nil {
		return res, fmt.Errorf("ensure collection: %w", err)
	}

	modules, err := os.ReadDir(p.opts.ContentDir)
	if err != nil {
		return res, fmt.Errorf("read content dir: %w", err)
	}

	for _, moduleEntry := range modules {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if !moduleEntry.IsDir() {
			continue
		}
		module := moduleEntry.Name()
		modulePath := filepath.Join(p.opts.ContentDir, module)

		files, err := os.ReadDir(modulePath)
		if err != nil {
			p.log.Warn("module dir unreadable, skipping", "module", module, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", module, err))
			continue
		}

		for _, file := range files {
			if file.IsDir() || !parser.IsSupportedExtension(file.Name()) {
				continue
			}
			indexed, err := p.indexFile(ctx, modulePath, module, file.Name())
			if err != nil {
				p.log.Warn("file skipped", "module", module, "file", file.Name(), "error", err)
				res.Errors = append(res.Errors, fmt.Sprintf("%s/%s: %v", module, file.Name(), err))
				continue
			}
			res.DocumentsProcessed++
			res.ChunksIndexed += indexed
		}
	}

	p.log.Info("local ingestion finished",
		"documents", res.DocumentsProcessed,
		"chunks", res.ChunksIndexed,
		"errors", len(res.Errors),
	)
	return res, nil
}

func (p *Pipeline) indexFile(ctx context.Context, dir, module, name string) (int, error) {
	fileParser, err := parser.ForFile(name)
	if err != nil {
		return 0, err
	}

	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	doc, err := fileParser.Parse(f, name)
	if err != nil {
		return 0, fmt.Errorf("parse: %w", err)
	}

	chunks := chunker.Split(doc.Text, p.opts.MaxChunkLength)
	if len(chunks) == 0 {
		return 0, nil
	}

	meta := vectorstore.Payload{
		Source:     "/docs/" + module + "/" + name,
		Module:     module,
		OriginalID: module + "/" + name,
	}
	return p.indexChunks(ctx, chunks, meta)
}

// IngestSitemap crawls a sitemap and indexes the text of up to maxURLs
// pages. Per-URL failures are logged and skipped; a fixed delay between
// fetches keeps the crawl polite.
func (p *Pipeline) IngestSitemap(ctx context.Context, sitemapURL string, maxURLs int) (Result, error) {
	var res Result
	if maxURLs <= 0 {
		maxURLs = 50
	}

	if err := p.store.EnsureCollection(ctx, p.embedder.Dimension(), vectorstore.DistanceCosine); err != nil {
		return res, fmt.Errorf("ensure collection: %w", err)
	}

	urls, err := p.collectSitemapURLs(ctx, sitemapURL)
	if err != nil {
		return res, fmt.Errorf("collect sitemap urls: %w", err)
	}
	urls = filterURLs(urls, sitemapURL, false)
	if len(urls) > maxURLs {
		urls = urls[:maxURLs]
	}
	p.log.Info("crawling sitemap", "sitemap", sitemapURL, "urls", len(urls))

	for i, u := range urls {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if i > 0 && p.opts.FetchDelay > 0 {
			select {
			case <-time.After(p.opts.FetchDelay):
			case <-ctx.Done():
				return res, ctx.Err()
			}
		}

		indexed, err := p.indexWebpage(ctx, u)
		res.URLsProcessed++
		if err != nil {
			p.log.Warn("url skipped", "url", u, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", u, err))
			continue
		}
		if indexed > 0 {
			res.DocumentsProcessed++
			res.ChunksIndexed += indexed
		}
	}

	p.log.Info("sitemap ingestion finished",
		"urls", res.URLsProcessed,
		"documents", res.DocumentsProcessed,
		"chunks", res.ChunksIndexed,
		"errors", len(res.Errors),
	)
	return res, nil
}

func (p *Pipeline) indexWebpage(ctx context.Context, pageURL string) (int, error) {
	page, err := p.fetchURL(ctx, pageURL)
	if err != nil {
		return 0, err
	}
	text, err := extractWebpageText(page)
	if err != nil {
		return 0, fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return 0, nil
	}

	chunks := chunker.Split(text, p.opts.MaxChunkLength)
	meta := vectorstore.Payload{
		Source:     pageURL,
		Module:     "web_content",
		OriginalID: pageURL,
	}
	return p.indexChunks(ctx, chunks, meta)
}

// indexChunks embeds chunks in batches and upserts them with fresh point
// IDs. Chunk order within the document is preserved across batches.
func (p *Pipeline) indexChunks(ctx context.Context, chunks []string, meta vectorstore.Payload) (int, error) {
	indexed := 0
	for start := 0; start < len(chunks); start += p.opts.EmbedBatchSize {
		end := min(start+p.opts.EmbedBatchSize, len(chunks))
		batch := chunks[start:end]

		vectors, err := p.embedWithRetry(ctx, batch)
		if err != nil {
			return indexed, fmt.Errorf("embed batch: %w", err)
		}

		points := make([]vectorstore.Point, len(batch))
		for i, chunk := range batch {
			payload := meta
			payload.Content = chunk
			points[i] = vectorstore.Point{
				ID:      uuid.NewString(),
				Vector:  vectors[i],
				Payload: payload,
			}
		}

		written, err := p.store.UpsertBatch(ctx, points)
		indexed += written
		if err != nil {
			return indexed, fmt.Errorf("upsert batch: %w", err)
		}
	}
	return indexed, nil
}

func (p *Pipeline) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(Backoff(attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		vectors, err := p.embedder.Embed(ctx, texts, embed.InputDocument)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
		p.log.Warn("embedding failed, retrying", "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}
