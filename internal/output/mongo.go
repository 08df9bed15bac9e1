package output

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hnsort/internal/logger"
	"hnsort/internal/models"
)

// MongoOptions configures the MongoDB sink.
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
}

// writer is the subset of *mongo.Collection used by the sink.
type writer interface {
	BulkWrite(ctx context.Context, operations []mongo.WriteModel, opts ...*options.BulkWriteOptions) (*mongo.BulkWriteResult, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// articleDoc is the stored form of an article. Date is nil for invalid timestamps.
type articleDoc struct {
	Date          *time.Time `bson:"date"`
	FetchedAt     time.Time  `bson:"fetchedAt"`
	ID            string     `bson:"_id"`
	Title         string     `bson:"title"`
	URL           string     `bson:"url"`
	User          string     `bson:"user"`
	Submitted     string     `bson:"submitted"`
	RawDate       string     `bson:"rawDate"`
	RunID         string     `bson:"runId"`
	SequenceIndex int        `bson:"sequenceIndex"`
}

// runDoc is the stored form of a run summary.
type runDoc struct {
	StartedAt  time.Time `bson:"startedAt"`
	ID         string    `bson:"_id"`
	SourceURL  string    `bson:"sourceUrl"`
	HaltReason string    `bson:"haltReason"`
	Violation  string    `bson:"violation,omitempty"`
	ElapsedMs  int64     `bson:"elapsedMs"`
	Count      int       `bson:"count"`
	Pages      int       `bson:"pages"`
	Cap        int       `bson:"cap"`
	Sorted     bool      `bson:"sorted"`
	AllValid   bool      `bson:"allValid"`
}

// MongoSink upserts articles by id and records one document per run.
type MongoSink struct {
	articles writer
	runs     writer
	log      *logger.Logger
}

var _ Sink = (*MongoSink)(nil)

// NewMongoSink creates a sink over the given collections.
func NewMongoSink(articles, runs writer, log *logger.Logger) *MongoSink {
	if log == nil {
		log = logger.Discard()
	}

	return &MongoSink{articles: articles, runs: runs, log: log}
}

// ConnectMongo connects, ensures indexes and returns the sink with a disconnect function.
func ConnectMongo(ctx context.Context, opts MongoOptions, log *logger.Logger) (*MongoSink, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)

		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(opts.Database)
	articles := db.Collection(opts.Collection)
	runs := db.Collection(opts.Collection + "_runs")

	ensureIndexes(ctx, articles, log)

	return NewMongoSink(articles, runs, log), client.Disconnect, nil
}

func ensureIndexes(ctx context.Context, collection *mongo.Collection, log *logger.Logger) {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "date", Value: -1}}},
		{Keys: bson.D{{Key: "runId", Value: 1}, {Key: "sequenceIndex", Value: 1}}},
	}

	for _, index := range indexes {
		if _, err := collection.Indexes().CreateOne(ctx, index); err != nil {
			log.Warn("failed to create index", "error", err)
		}
	}
}

// Write implements Sink.
func (s *MongoSink) Write(ctx context.Context, summary models.RunSummary, articles []models.Article) error {
	if len(articles) > 0 {
		now := time.Now().UTC()
		operations := make([]mongo.WriteModel, 0, len(articles))

		for _, a := range articles {
			operation := mongo.NewReplaceOneModel().
				SetFilter(bson.M{"_id": a.ID}).
				SetReplacement(toArticleDoc(a, summary.RunID, now)).
				SetUpsert(true)

			operations = append(operations, operation)
		}

		result, err := s.articles.BulkWrite(ctx, operations, options.BulkWrite().SetOrdered(false))
		if err != nil {
			return fmt.Errorf("failed to store articles: %w", err)
		}

		s.log.Info("articles stored in mongo",
			"upserted", result.UpsertedCount,
			"modified", result.ModifiedCount,
		)
	}

	if _, err := s.runs.InsertOne(ctx, toRunDoc(summary)); err != nil {
		return fmt.Errorf("failed to store run: %w", err)
	}

	return nil
}

func toArticleDoc(a models.Article, runID string, fetchedAt time.Time) articleDoc {
	doc := articleDoc{
		FetchedAt:     fetchedAt,
		ID:            a.ID,
		Title:         a.Title,
		URL:           a.URL,
		User:          a.User,
		Submitted:     a.SubmittedRelative,
		RawDate:       a.RawTimestamp,
		RunID:         runID,
		SequenceIndex: a.SequenceIndex,
	}

	if a.Timestamp.Valid {
		t := a.Timestamp.Instant
		doc.Date = &t
	}

	return doc
}

func toRunDoc(s models.RunSummary) runDoc {
	doc := runDoc{
		StartedAt:  s.StartedAt,
		ID:         s.RunID,
		SourceURL:  s.SourceURL,
		HaltReason: string(s.HaltReason),
		ElapsedMs:  s.Elapsed.Milliseconds(),
		Count:      s.Count,
		Pages:      s.Pages,
		Cap:        s.Cap,
		Sorted:     s.Sorted,
		AllValid:   s.AllValid,
	}

	if s.Violation != nil {
		doc.Violation = s.Violation.String()
	}

	return doc
}
