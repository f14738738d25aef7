package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/DeafMist/agentic-voice/backend/internal/completion"
	"github.com/DeafMist/agentic-voice/backend/internal/exa"
	"github.com/DeafMist/agentic-voice/backend/internal/events"
	"github.com/DeafMist/agentic-voice/backend/internal/keywords"
	"github.com/DeafMist/agentic-voice/backend/internal/models"
)

const (
	// FallbackMessage is the system content used when no search ids were found.
	FallbackMessage = "No relevant content found for the keywords provided."
	// DigestPrefix precedes the JSON digest of retrieved documents.
	DigestPrefix = "Here is an overview of the retrieved data: "
	// MaxContents bounds how many ids are sent to the contents endpoint.
	MaxContents = 5
)

// ErrAllSearchesFailed is returned when every per-keyword search failed.
var ErrAllSearchesFailed = errors.New("all keyword searches failed")

// Searcher is the subset of the search API the pipeline needs.
type Searcher interface {
	Search(ctx context.Context, query string, numResults int) ([]exa.SearchHit, error)
	Contents(ctx context.Context, ids []string) ([]models.RetrievedDocument, error)
}

// Options tune the pipeline; zero values fall back to defaults.
type Options struct {
	NumResults  int
	Concurrency int
	Now         func() time.Time
}

// Pipeline answers one conversation turn: extract, search, fetch, stream.
type Pipeline struct {
	table     *keywords.Table
	search    Searcher
	llm       completion.Completer
	publisher events.Publisher
	log       *slog.Logger

	numResults  int
	concurrency int
	now         func() time.Time
}

// Result describes a started completion. The caller owns Stream.
type Result struct {
	RequestID     string
	Keywords      []string
	IDs           []string
	Documents     []models.RetrievedDocument
	SystemMessage models.Message
	Stream        completion.Stream
	Start         time.Time
	StreamCreated time.Time
}

// New wires a pipeline. A nil publisher disables event publishing.
func New(table *keywords.Table, search Searcher, llm completion.Completer, publisher events.Publisher, logger *slog.Logger, opts Options) *Pipeline {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.NumResults <= 0 {
		opts.NumResults = exa.DefaultNumResults
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		table:       table,
		search:      search,
		llm:         llm,
		publisher:   publisher,
		log:         logger,
		numResults:  opts.NumResults,
		concurrency: opts.Concurrency,
		now:         opts.Now,
	}
}

// Run executes the pipeline for messages and returns the open completion stream.
func (p *Pipeline) Run(ctx context.Context, messages []models.Message) (*Result, error) {
	res := &Result{
		RequestID: uuid.NewString(),
		Start:     p.now(),
	}
	log := p.log.With(slog.String("request_id", res.RequestID))

	res.Keywords = p.table.Filter(p.table.Extract(messages))
	log.Info("keywords extracted", slog.Any("keywords", res.Keywords))

	ids, err := p.searchAll(ctx, log, res.Keywords)
	if err != nil {
		return nil, err
	}
	res.IDs = ids

	if len(ids) == 0 {
		log.Info("no search results, using fallback")
		res.SystemMessage = models.Message{Role: models.RoleSystem, Content: FallbackMessage}
	} else {
		if len(ids) > MaxContents {
			ids = ids[:MaxContents]
		}
		docs, err := p.search.Contents(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("fetch contents: %w", err)
		}
		res.Documents = docs

		digest, err := Digest(docs)
		if err != nil {
			return nil, err
		}
		res.SystemMessage = models.Message{Role: models.RoleSystem, Content: digest}

		ev := models.RetrievalEvent{
			RequestID: res.RequestID,
			Timestamp: res.Start.UTC(),
			Keywords:  res.Keywords,
			Documents: docs,
		}
		if err := p.publisher.PublishRetrieval(ctx, ev); err != nil {
			log.Warn("publish retrieval event", slog.Any("err", err))
		}
	}

	convo := make([]models.Message, 0, len(messages)+1)
	convo = append(convo, messages...)
	convo = append(convo, res.SystemMessage)

	stream, err := p.llm.Stream(ctx, convo)
	if err != nil {
		return nil, fmt.Errorf("start completion: %w", err)
	}
	res.Stream = stream
	res.StreamCreated = p.now()

	log.Info("completion stream created",
		slog.Int("documents", len(res.Documents)),
		slog.Duration("elapsed", res.StreamCreated.Sub(res.Start)),
	)
	return res, nil
}

// searchAll fans out one search per keyword. Failed branches contribute no ids;
// if every branch fails the whole search fails.
func (p *Pipeline) searchAll(ctx context.Context, log *slog.Logger, kws []string) ([]string, error) {
	if len(kws) == 0 {
		return nil, nil
	}

	hits := make([][]exa.SearchHit, len(kws))
	errs := make([]error, len(kws))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, kw := range kws {
		i, kw := i, kw
		g.Go(func() error {
			h, err := p.search.Search(ctx, kw, p.numResults)
			if err != nil {
				log.Warn("search failed", slog.String("keyword", kw), slog.Any("err", err))
				errs[i] = err
				return nil
			}
			hits[i] = h
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	var ids []string
	for i := range kws {
		if errs[i] != nil {
			failed++
			continue
		}
		for _, h := range hits[i] {
			ids = append(ids, h.ID)
		}
	}

	if failed == len(kws) {
		return nil, fmt.Errorf("%w: %w", ErrAllSearchesFailed, errors.Join(errs...))
	}
	return ids, nil
}

// Digest renders the system message content for retrieved documents.
func Digest(docs []models.RetrievedDocument) (string, error) {
	if docs == nil {
		docs = []models.RetrievedDocument{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(docs); err != nil {
		return "", fmt.Errorf("encode digest: %w", err)
	}
	return DigestPrefix + strings.TrimSuffix(buf.String(), "\n"), nil
}
