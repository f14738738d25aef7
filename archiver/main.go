package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/agentic-voice/backend/internal/config"
	"github.com/DeafMist/agentic-voice/backend/internal/dedupe"
	"github.com/DeafMist/agentic-voice/backend/internal/elasticsearch"
	"github.com/DeafMist/agentic-voice/backend/internal/events"
	"github.com/DeafMist/agentic-voice/backend/internal/exa"
	"github.com/DeafMist/agentic-voice/backend/internal/logger"
	"github.com/DeafMist/agentic-voice/backend/internal/models"
	"github.com/DeafMist/agentic-voice/backend/internal/processing"
)

const titleWords = 10

type documentIndexer interface {
	IndexDocument(ctx context.Context, doc models.ArchivedDocument) error
}

func main() {
	_ = godotenv.Load()

	log := logger.New("archiver")
	cfg, err := config.LoadArchiver()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	esClient, err := elasticsearch.New(cfg.ElasticsearchAddr, cfg.ElasticsearchIndex, log)
	if err != nil {
		log.Error("init elasticsearch", slog.Any("err", err))
		os.Exit(1)
	}

	cache := dedupe.NewCache(cfg.DedupeCapacity, cfg.DedupeTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.KafkaBrokers,
		Topic:          cfg.KafkaTopic,
		GroupID:        cfg.KafkaConsumer,
		QueueCapacity:  cfg.BatchSize,
		MinBytes:       1e3,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit only
	})
	defer reader.Close()

	dlqTopic := cfg.KafkaTopic + "_dlq"
	dlqWriter := kafka.NewWriter(kafka.WriterConfig{
		Brokers:     cfg.KafkaBrokers,
		Topic:       dlqTopic,
		MaxAttempts: 3,
	})
	defer dlqWriter.Close()

	log.Info("archiver started",
		slog.String("topic", cfg.KafkaTopic),
		slog.String("group", cfg.KafkaConsumer),
		slog.String("dlq_topic", dlqTopic),
	)

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				log.Info("context canceled, stopping")
				return
			}
			log.Error("fetch message", slog.Any("err", err))
			continue
		}

		if _, err := processMessage(ctx, log, esClient, cache, cfg, msg); err != nil {
			log.Warn("process message failed, sending to DLQ",
				slog.Any("err", err),
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
			)

			if !sendToDLQ(ctx, log, dlqWriter, msg, err) {
				if ctx.Err() != nil {
					return
				}
				log.Error("DLQ write exhausted retries, message left uncommitted",
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
				)
				continue
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil {
			log.Error("commit message", slog.Any("err", err))
		}
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// sendToDLQ copies msg to the dead-letter topic with error context, retrying with exponential backoff.
func sendToDLQ(ctx context.Context, log *slog.Logger, w messageWriter, msg kafka.Message, cause error) bool {
	dlqMsg := dlqMessage(msg, cause, time.Now())

	for attempt := 0; attempt < 5; attempt++ {
		dlqErr := w.WriteMessages(ctx, dlqMsg)
		if dlqErr == nil {
			log.Info("message sent to DLQ",
				slog.Int("partition", msg.Partition),
				slog.Int64("offset", msg.Offset),
				slog.Int("attempt", attempt+1),
			)
			return true
		}

		backoff := time.Duration(1<<uint(attempt)) * time.Second
		log.Warn("DLQ write failed, retrying",
			slog.Any("err", dlqErr),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			log.Info("context canceled during DLQ retry")
			return false
		}
	}
	return false
}

func dlqMessage(msg kafka.Message, cause error, now time.Time) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers)+4)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: "original_partition", Value: []byte(fmt.Sprintf("%d", msg.Partition))},
		kafka.Header{Key: "original_offset", Value: []byte(fmt.Sprintf("%d", msg.Offset))},
		kafka.Header{Key: "error", Value: []byte(cause.Error())},
		kafka.Header{Key: "timestamp", Value: []byte(now.UTC().Format(time.RFC3339))},
	)
	return kafka.Message{Key: msg.Key, Value: msg.Value, Headers: headers}
}

// processMessage archives every new document of one retrieval event and returns how many were indexed.
func processMessage(ctx context.Context, log *slog.Logger, indexer documentIndexer, cache *dedupe.Cache, cfg *config.Archiver, msg kafka.Message) (int, error) {
	ev, err := events.Decode(msg)
	if err != nil {
		return 0, err
	}
	if len(ev.Documents) == 0 {
		return 0, errors.New("retrieval event has no documents")
	}

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = msg.Time
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()

	indexed := 0
	for _, src := range ev.Documents {
		doc := buildDocument(src, ev, ts, cfg)

		if cache.IsSeen(doc.ID) {
			log.Debug("duplicate document", slog.String("id", doc.ID))
			continue
		}

		if err := indexer.IndexDocument(ctx, doc); err != nil {
			return indexed, fmt.Errorf("index %s: %w", doc.ID, err)
		}

		cache.MarkSeen(doc.ID)
		indexed++
		log.Info("archived document",
			slog.String("id", doc.ID),
			slog.String("title", doc.Title),
			slog.String("request_id", ev.RequestID),
			slog.Int("dedupe_size", cache.Len()),
		)
	}

	return indexed, nil
}

func buildDocument(src models.RetrievedDocument, ev models.RetrievalEvent, ts time.Time, cfg *config.Archiver) models.ArchivedDocument {
	text := strings.TrimSpace(src.Text)
	if text == exa.MissingTextPlaceholder {
		text = ""
	}

	title := strings.TrimSpace(src.Title)
	if title == "" && text != "" {
		title = processing.GenerateTitleFromText(text, titleWords)
	}

	url := strings.TrimSpace(src.URL)
	if url == "" {
		url = strings.TrimSpace(src.ID)
	}

	id := processing.BuildDocumentID(url, title)
	if id == "" {
		id = uuid.NewString()
	}

	cleaned := processing.CleanText(text)
	return models.ArchivedDocument{
		ID:         id,
		URL:        url,
		Title:      title,
		Author:     strings.TrimSpace(src.Author),
		Text:       text,
		Categories: ev.Keywords,
		Terms:      processing.ExtractTerms(title+" "+cleaned, cfg.TermLimit, cfg.TermMinLength),
		RequestID:  ev.RequestID,
		Timestamp:  ts,
	}
}
