package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tendant/resource-hub/pkg/resourcehub"
)

const (
	resourceCollectionName = "resources"
	counterCollectionName  = "counters"
	resourceCounterID      = "resources"
)

// resourceDocument is the stored shape of a resource
type resourceDocument struct {
	ID            int64     `bson:"_id"`
	Title         string    `bson:"title"`
	Subject       string    `bson:"subject"`
	Semester      int       `bson:"semester"`
	Type          string    `bson:"type"`
	FileName      string    `bson:"fileName"`
	StoragePath   string    `bson:"storagePath"`
	FileSize      int64     `bson:"fileSize"`
	UploaderName  string    `bson:"uploaderName"`
	UploadDate    time.Time `bson:"uploadDate"`
	DownloadCount int       `bson:"downloadCount"`
}

func toDocument(r *resourcehub.Resource) resourceDocument {
	return resourceDocument{
		ID:            r.ID,
		Title:         r.Title,
		Subject:       r.Subject,
		Semester:      r.Semester,
		Type:          r.Type,
		FileName:      r.FileName,
		StoragePath:   r.StoragePath,
		FileSize:      r.FileSize,
		UploaderName:  r.UploaderName,
		UploadDate:    r.UploadedAt,
		DownloadCount: r.DownloadCount,
	}
}

func (d resourceDocument) toResource() *resourcehub.Resource {
	return &resourcehub.Resource{
		ID:            d.ID,
		Title:         d.Title,
		Subject:       d.Subject,
		Semester:      d.Semester,
		Type:          d.Type,
		FileName:      d.FileName,
		StoragePath:   d.StoragePath,
		FileSize:      d.FileSize,
		UploaderName:  d.UploaderName,
		UploadedAt:    d.UploadDate.UTC(),
		DownloadCount: d.DownloadCount,
	}
}

// Repository implements resourcehub.Repository backed by MongoDB.
// Ids come from a counter document so they stay numeric and increasing.
type Repository struct {
	resources *mongo.Collection
	counters  *mongo.Collection
}

// New creates a new resource repository backed by MongoDB.
func New(db *mongo.Database) *Repository {
	return &Repository{
		resources: db.Collection(resourceCollectionName),
		counters:  db.Collection(counterCollectionName),
	}
}

// EnsureIndexes creates the indexes the queries rely on.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "subject", Value: 1}, {Key: "semester", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "semester", Value: 1}},
			Options: options.Index(),
		},
		{
			// Storage paths are unique within the blob store
			Keys:    bson.D{{Key: "storagePath", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	if _, err := r.resources.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes for collection %s: %w", r.resources.Name(), err)
	}
	return nil
}

// nextID atomically reserves the next resource id.
func (r *Repository) nextID(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": resourceCounterID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate resource id: %w", err)
	}
	return counter.Seq, nil
}

func (r *Repository) CreateResource(ctx context.Context, resource *resourcehub.Resource) error {
	id, err := r.nextID(ctx)
	if err != nil {
		return err
	}

	// BSON dates keep milliseconds
	resource.UploadedAt = resourcehub.RoundUpTime(resource.UploadedAt.UTC(), time.Millisecond)
	doc := toDocument(resource)
	doc.ID = id

	if _, err := r.resources.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("storage path already recorded: %w", err)
		}
		return fmt.Errorf("failed to insert resource: %w", err)
	}

	resource.ID = id
	return nil
}

func (r *Repository) GetResource(ctx context.Context, id int64) (*resourcehub.Resource, error) {
	var doc resourceDocument
	err := r.resources.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, resourcehub.ErrResourceNotFound
		}
		return nil, err
	}
	return doc.toResource(), nil
}

func (r *Repository) ListResources(ctx context.Context) ([]*resourcehub.Resource, error) {
	return r.find(ctx, bson.M{})
}

func (r *Repository) FindBySubject(ctx context.Context, subject string) ([]*resourcehub.Resource, error) {
	return r.find(ctx, bson.M{"subject": subject})
}

func (r *Repository) FindBySemester(ctx context.Context, semester int) ([]*resourcehub.Resource, error) {
	return r.find(ctx, bson.M{"semester": semester})
}

func (r *Repository) FindBySubjectAndSemester(ctx context.Context, subject string, semester int) ([]*resourcehub.Resource, error) {
	return r.find(ctx, bson.M{"subject": subject, "semester": semester})
}

func (r *Repository) FindByTitleContaining(ctx context.Context, keyword string) ([]*resourcehub.Resource, error) {
	return r.find(ctx, bson.M{"title": primitive.Regex{Pattern: regexp.QuoteMeta(keyword), Options: "i"}})
}

func (r *Repository) UpdateResource(ctx context.Context, resource *resourcehub.Resource) error {
	update := bson.M{"$set": bson.M{
		"title":         resource.Title,
		"subject":       resource.Subject,
		"semester":      resource.Semester,
		"type":          resource.Type,
		"uploaderName":  resource.UploaderName,
		"downloadCount": resource.DownloadCount,
	}}

	filter := bson.M{
		"_id":           resource.ID,
		"downloadCount": bson.M{"$lte": resource.DownloadCount},
	}
	result, err := r.resources.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update resource: %w", err)
	}
	if result.MatchedCount == 0 {
		n, err := r.resources.CountDocuments(ctx, bson.M{"_id": resource.ID})
		if err != nil {
			return fmt.Errorf("failed to update resource: %w", err)
		}
		if n > 0 {
			return resourcehub.ErrDownloadCountDecrease
		}
		return resourcehub.ErrResourceNotFound
	}
	return nil
}

func (r *Repository) IncrementDownloadCount(ctx context.Context, id int64) (*resourcehub.Resource, error) {
	var doc resourceDocument
	err := r.resources.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"downloadCount": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, resourcehub.ErrResourceNotFound
		}
		return nil, fmt.Errorf("failed to increment download count: %w", err)
	}
	return doc.toResource(), nil
}

func (r *Repository) find(ctx context.Context, filter bson.M) ([]*resourcehub.Resource, error) {
	cursor, err := r.resources.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []resourceDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode resources: %w", err)
	}

	resources := make([]*resourcehub.Resource, 0, len(docs))
	for _, doc := range docs {
		resources = append(resources, doc.toResource())
	}
	return resources, nil
}
