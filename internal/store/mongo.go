package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"nightpress/internal/models"
)

// Collection names
const (
	CollectionRecords       = "records"
	CollectionSessionRecaps = "session_recaps"
	CollectionDayRecaps     = "day_recaps"
	CollectionDeliveries    = "deliveries"
	CollectionDigests       = "digests"
)

// Mongo is the durable Store backed by MongoDB.
type Mongo struct {
	client   *mongo.Client
	database *mongo.Database
	dbName   string
}

// NewMongo creates a new MongoDB-backed store with connection pooling.
func NewMongo(uri string) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := extractDBName(uri)
	if dbName == "" {
		dbName = "nightpress"
	}

	m := &Mongo{
		client:   client,
		database: client.Database(dbName),
		dbName:   dbName,
	}

	log.Printf("✅ Connected to MongoDB database: %s", dbName)

	return m, nil
}

// extractDBName extracts the database name from a MongoDB URI path
// component, e.g. mongodb://localhost:27017/nightpress?authSource=admin.
func extractDBName(uri string) string {
	trimmed := uri
	if i := strings.IndexByte(trimmed, '?'); i != -1 {
		trimmed = trimmed[:i]
	}
	if i := strings.LastIndexByte(trimmed, '/'); i != -1 {
		return trimmed[i+1:]
	}
	return ""
}

// EnsureIndexes creates indexes for all collections.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	log.Println("📦 Initializing MongoDB indexes...")

	if err := m.createIndexes(ctx, CollectionRecords, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduledPublishAt", Value: 1}}},
		{Keys: bson.D{{Key: "authorId", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "publishedAt", Value: 1}}},
		{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "status", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create records indexes: %w", err)
	}

	if err := m.createIndexes(ctx, CollectionSessionRecaps, []mongo.IndexModel{
		{Keys: bson.D{{Key: "authorId", Value: 1}, {Key: "endTime", Value: -1}}},
		{Keys: bson.D{{Key: "authorId", Value: 1}, {Key: "startTime", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create session_recaps indexes: %w", err)
	}

	if err := m.createIndexes(ctx, CollectionDayRecaps, []mongo.IndexModel{
		{Keys: bson.D{{Key: "date", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("failed to create day_recaps indexes: %w", err)
	}

	if err := m.createIndexes(ctx, CollectionDeliveries, []mongo.IndexModel{
		{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "queuedAt", Value: -1}}},
		{Keys: bson.D{{Key: "recordId", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create deliveries indexes: %w", err)
	}

	if err := m.createIndexes(ctx, CollectionDigests, []mongo.IndexModel{
		{Keys: bson.D{{Key: "date", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("failed to create digests indexes: %w", err)
	}

	log.Println("✅ MongoDB indexes initialized successfully")
	return nil
}

func (m *Mongo) createIndexes(ctx context.Context, collectionName string, indexes []mongo.IndexModel) error {
	collection := m.database.Collection(collectionName)
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

func (m *Mongo) records() *mongo.Collection {
	return m.database.Collection(CollectionRecords)
}

func (m *Mongo) InsertRecord(ctx context.Context, rec *models.Record) error {
	_, err := m.records().InsertOne(ctx, rec)
	if err != nil {
		return fmt.Errorf("failed to insert record: %w", err)
	}
	return nil
}

func (m *Mongo) GetRecord(ctx context.Context, id string) (*models.Record, error) {
	var rec models.Record
	err := m.records().FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return &rec, nil
}

func (m *Mongo) MarkPublished(ctx context.Context, id string, at time.Time) (bool, error) {
	// The status filter makes the transition a compare-and-swap: of two
	// concurrent publishers, exactly one matches the pending document.
	res, err := m.records().UpdateOne(ctx,
		bson.M{"_id": id, "status": models.RecordStatusPending},
		bson.M{"$set": bson.M{
			"status":      models.RecordStatusPublished,
			"publishedAt": at,
		}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark record published: %w", err)
	}
	if res.ModifiedCount == 1 {
		return true, nil
	}

	// Lost the race, or the id is unknown.
	count, err := m.records().CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to check record existence: %w", err)
	}
	if count == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

func (m *Mongo) MarkDeleted(ctx context.Context, id string, at time.Time) error {
	res, err := m.records().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"status":    models.RecordStatusDeleted,
			"deletedAt": at,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark record deleted: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) ListPending(ctx context.Context) ([]*models.Record, error) {
	return m.findRecords(ctx,
		bson.M{"status": models.RecordStatusPending},
		options.Find().SetSort(bson.D{{Key: "scheduledPublishAt", Value: 1}}),
	)
}

func (m *Mongo) ListPendingByAuthor(ctx context.Context, authorID string) ([]*models.Record, error) {
	return m.findRecords(ctx,
		bson.M{"status": models.RecordStatusPending, "authorId": authorID},
		options.Find().SetSort(bson.D{{Key: "scheduledPublishAt", Value: 1}}),
	)
}

func (m *Mongo) ListPublished(ctx context.Context, filter RecordFilter) ([]*models.Record, error) {
	query := bson.M{"status": models.RecordStatusPublished}
	if filter.Kind != "" {
		query["kind"] = filter.Kind
	}
	if filter.AuthorID != "" {
		query["authorId"] = filter.AuthorID
	}
	if filter.Visibility != "" {
		query["visibility"] = filter.Visibility
	}

	recs, err := m.findRecords(ctx, query,
		options.Find().SetSort(bson.D{{Key: "publishedAt", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}

	// The time window applies to the effective published time, which falls
	// back to scheduledPublishAt, so it is filtered here rather than in the
	// query.
	var out []*models.Record
	for _, rec := range recs {
		if matchesFilter(rec, filter) {
			out = append(out, rec)
		}
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *Mongo) findRecords(ctx context.Context, query bson.M, opts *options.FindOptions) ([]*models.Record, error) {
	cursor, err := m.records().Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*models.Record
	for cursor.Next(ctx) {
		var rec models.Record
		if err := cursor.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, cursor.Err()
}

func (m *Mongo) InsertSessionRecap(ctx context.Context, recap *models.SessionRecap) error {
	_, err := m.database.Collection(CollectionSessionRecaps).InsertOne(ctx, recap)
	if err != nil {
		return fmt.Errorf("failed to insert session recap: %w", err)
	}
	return nil
}

func (m *Mongo) SessionRecapOverlaps(ctx context.Context, authorID string, start, end time.Time) (bool, error) {
	count, err := m.database.Collection(CollectionSessionRecaps).CountDocuments(ctx, bson.M{
		"authorId":  authorID,
		"startTime": bson.M{"$lte": end},
		"endTime":   bson.M{"$gte": start},
	})
	if err != nil {
		return false, fmt.Errorf("failed to check recap overlap: %w", err)
	}
	return count > 0, nil
}

func (m *Mongo) LatestSessionRecapEnd(ctx context.Context, authorID string) (time.Time, bool, error) {
	var recap models.SessionRecap
	err := m.database.Collection(CollectionSessionRecaps).FindOne(ctx,
		bson.M{"authorId": authorID},
		options.FindOne().SetSort(bson.D{{Key: "endTime", Value: -1}}),
	).Decode(&recap)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get latest recap: %w", err)
	}
	return recap.EndTime, true, nil
}

func (m *Mongo) ListSessionRecaps(ctx context.Context, authorID string, limit int) ([]*models.SessionRecap, error) {
	query := bson.M{}
	if authorID != "" {
		query["authorId"] = authorID
	}
	opts := options.Find().SetSort(bson.D{{Key: "endTime", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := m.database.Collection(CollectionSessionRecaps).Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query session recaps: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*models.SessionRecap
	for cursor.Next(ctx) {
		var recap models.SessionRecap
		if err := cursor.Decode(&recap); err != nil {
			return nil, fmt.Errorf("failed to decode session recap: %w", err)
		}
		out = append(out, &recap)
	}
	return out, cursor.Err()
}

func (m *Mongo) GetDayRecap(ctx context.Context, date string) (*models.DayRecap, error) {
	var recap models.DayRecap
	err := m.database.Collection(CollectionDayRecaps).FindOne(ctx, bson.M{"date": date}).Decode(&recap)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get day recap: %w", err)
	}
	return &recap, nil
}

func (m *Mongo) InsertDayRecap(ctx context.Context, recap *models.DayRecap) error {
	_, err := m.database.Collection(CollectionDayRecaps).InsertOne(ctx, recap)
	if err != nil {
		return fmt.Errorf("failed to insert day recap: %w", err)
	}
	return nil
}

func (m *Mongo) ListDayRecaps(ctx context.Context, limit int) ([]*models.DayRecap, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := m.database.Collection(CollectionDayRecaps).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query day recaps: %w", err)
	}
	defer cursor.Close(ctx)

	var out []*models.DayRecap
	for cursor.Next(ctx) {
		var recap models.DayRecap
		if err := cursor.Decode(&recap); err != nil {
			return nil, fmt.Errorf("failed to decode day recap: %w", err)
		}
		out = append(out, &recap)
	}
	return out, cursor.Err()
}

func (m *Mongo) InsertDelivery(ctx context.Context, delivery *models.Delivery) error {
	_, err := m.database.Collection(CollectionDeliveries).InsertOne(ctx, delivery)
	if err != nil {
		return fmt.Errorf("failed to insert delivery: %w", err)
	}
	return nil
}

func (m *Mongo) GetDigest(ctx context.Context, date string) (*models.Digest, error) {
	var digest models.Digest
	err := m.database.Collection(CollectionDigests).FindOne(ctx, bson.M{"date": date}).Decode(&digest)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get digest: %w", err)
	}
	return &digest, nil
}

func (m *Mongo) InsertDigest(ctx context.Context, digest *models.Digest) error {
	_, err := m.database.Collection(CollectionDigests).InsertOne(ctx, digest)
	if err != nil {
		return fmt.Errorf("failed to insert digest: %w", err)
	}
	return nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	log.Println("🔌 Closing MongoDB connection...")
	return m.client.Disconnect(ctx)
}
