package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"khoomi-api-io/checkout/pkg/models"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrDraftNotFound = errors.New("order draft not found")

// DraftRepository keeps order drafts by order id so a payment landing can
// show something even when the commerce API cannot. A draft is only ever
// returned to the session that saved it.
type DraftRepository interface {
	Save(ctx context.Context, session string, draft models.OrderDraft) error
	FindByOrderId(ctx context.Context, session, orderId string) (models.OrderDraft, error)
}

// draftDocument stores the draft as its JSON snapshot; amounts stay exact
// decimals that way.
type draftDocument struct {
	OrderId   string    `bson:"order_id"`
	Session   string    `bson:"session"`
	Snapshot  string    `bson:"snapshot"`
	CreatedAt time.Time `bson:"created_at"`
	ExpiresAt time.Time `bson:"expires_at"`
}

type MongoDraftRepository struct {
	collection *mongo.Collection
	ttl        time.Duration
}

func NewMongoDraftRepository(collection *mongo.Collection, ttl time.Duration) *MongoDraftRepository {
	return &MongoDraftRepository{collection: collection, ttl: ttl}
}

func (r *MongoDraftRepository) Save(ctx context.Context, session string, draft models.OrderDraft) error {
	if draft.OrderId == "" {
		return errors.New("order draft has no order id")
	}
	snapshot, err := json.Marshal(draft)
	if err != nil {
		return errors.Wrap(err, "encode order draft")
	}

	now := time.Now().UTC()
	filter := bson.M{"order_id": draft.OrderId}
	update := bson.M{
		"$set": bson.M{
			"session":    session,
			"snapshot":   string(snapshot),
			"expires_at": now.Add(r.ttl),
		},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.Update().SetUpsert(true)
	_, err = r.collection.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// a concurrent upsert inserted first; this one now matches it
		_, err = r.collection.UpdateOne(ctx, filter, update, opts)
	}
	return errors.Wrap(err, "save order draft")
}

func (r *MongoDraftRepository) FindByOrderId(ctx context.Context, session, orderId string) (models.OrderDraft, error) {
	if session == "" {
		return models.OrderDraft{}, ErrDraftNotFound
	}
	var doc draftDocument
	filter := bson.D{{Key: "order_id", Value: orderId}, {Key: "session", Value: session}}
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.OrderDraft{}, ErrDraftNotFound
	}
	if err != nil {
		return models.OrderDraft{}, errors.Wrap(err, "find order draft")
	}

	var draft models.OrderDraft
	if err := json.Unmarshal([]byte(doc.Snapshot), &draft); err != nil {
		return models.OrderDraft{}, errors.Wrap(err, "decode order draft")
	}
	return draft, nil
}

type storedDraft struct {
	session string
	draft   models.OrderDraft
}

// MemoryDraftRepository keeps drafts in process memory.
type MemoryDraftRepository struct {
	mu     sync.Mutex
	drafts map[string]storedDraft
}

func NewMemoryDraftRepository() *MemoryDraftRepository {
	return &MemoryDraftRepository{drafts: make(map[string]storedDraft)}
}

func (r *MemoryDraftRepository) Save(_ context.Context, session string, draft models.OrderDraft) error {
	if draft.OrderId == "" {
		return errors.New("order draft has no order id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[draft.OrderId] = storedDraft{session: session, draft: draft}
	return nil
}

func (r *MemoryDraftRepository) FindByOrderId(_ context.Context, session, orderId string) (models.OrderDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.drafts[orderId]
	if !ok || session == "" || stored.session != session {
		return models.OrderDraft{}, ErrDraftNotFound
	}
	return stored.draft, nil
}
