package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	cartdomain "github.com/dmehra2102/shop-assistant/internal/cart/domain"
	cartmongo "github.com/dmehra2102/shop-assistant/internal/cart/infrastructure/mongo"
	invdomain "github.com/dmehra2102/shop-assistant/internal/inventory/domain"
	invmongo "github.com/dmehra2102/shop-assistant/internal/inventory/infrastructure/mongo"
	"github.com/dmehra2102/shop-assistant/internal/order/application"
	"github.com/dmehra2102/shop-assistant/internal/order/domain"
	store "github.com/dmehra2102/shop-assistant/internal/storage/mongo"
	"github.com/dmehra2102/shop-assistant/pkg/outbox"
)

type itemDoc struct {
	Product   string               `bson:"product"`
	Quantity  int                  `bson:"quantity"`
	UnitPrice primitive.Decimal128 `bson:"unit_price"`
	Subtotal  primitive.Decimal128 `bson:"subtotal"`
}

type orderDoc struct {
	ID             string               `bson:"_id"`
	UserID         string               `bson:"user_id"`
	Items          []itemDoc            `bson:"items"`
	TotalAmount    primitive.Decimal128 `bson:"total_amount"`
	Status         string               `bson:"status"`
	TrackingNumber string               `bson:"tracking_number,omitempty"`
	CreatedAt      time.Time            `bson:"created_at"`
}

type outboxDoc struct {
	ID            int64             `bson:"_id"`
	AggregateType string            `bson:"aggregate_type"`
	AggregateID   string            `bson:"aggregate_id"`
	Type          string            `bson:"type"`
	Payload       []byte            `bson:"payload"`
	Headers       map[string]string `bson:"headers"`
	Traceparent   string            `bson:"traceparent"`
	Status        string            `bson:"status"`
	RelayID       string            `bson:"relay_id,omitempty"`
	LeaseUntil    time.Time         `bson:"lease_until"`
	RetryCount    int               `bson:"retry_count"`
	LastError     *string           `bson:"last_error,omitempty"`
	CreatedAt     time.Time         `bson:"created_at"`
}

func (d outboxDoc) event() outbox.Event {
	return outbox.Event{
		ID:            d.ID,
		AggregateType: d.AggregateType,
		AggregateID:   d.AggregateID,
		Type:          d.Type,
		Payload:       d.Payload,
		Headers:       d.Headers,
		Traceparent:   d.Traceparent,
		CreatedAt:     d.CreatedAt,
		Status:        outbox.Status(d.Status),
		RelayID:       d.RelayID,
		LeaseUntil:    d.LeaseUntil,
		RetryCount:    d.RetryCount,
		LastError:     d.LastError,
	}
}

type Repository struct {
	log *slog.Logger
	db  *mongo.Database
}

func NewRepository(log *slog.Logger, db *mongo.Database) *Repository {
	return &Repository{log: log, db: db}
}

// WithinTx runs fn in a snapshot transaction on a fresh session. The driver
// re-runs fn on transient errors, which includes write conflicts between two
// transactions touching the same product or cart.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx application.Tx) error) error {
	sess, err := r.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	opts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc, &mongoTx{db: r.db, base: ctx})
	}, opts)
	return err
}

type mongoTx struct {
	db *mongo.Database
	// base carries no session; writes through it are outside the transaction.
	base context.Context
}

func (t *mongoTx) Cart(ctx context.Context, userID string) (cartdomain.Cart, error) {
	return cartmongo.FindCart(ctx, t.db.Collection(store.Carts), userID)
}

func (t *mongoTx) LockProducts(ctx context.Context, names []string) (map[string]invdomain.Product, error) {
	return invmongo.FindByNames(ctx, t.db.Collection(store.Products), names)
}

func (t *mongoTx) DecrementStock(ctx context.Context, product string, quantity int) error {
	res, err := t.db.Collection(store.Products).UpdateOne(ctx,
		bson.M{"name": product, "stock": bson.M{"$gte": quantity}},
		bson.M{"$inc": bson.M{"stock": -quantity}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return invdomain.ErrInsufficientStock
	}
	return nil
}

func (t *mongoTx) InsertOrder(ctx context.Context, o domain.Order) error {
	doc := orderDoc{
		ID:             o.ID,
		UserID:         o.UserID,
		Items:          make([]itemDoc, 0, len(o.Items)),
		TotalAmount:    store.ToDecimal128(o.TotalAmount),
		Status:         string(o.Status),
		TrackingNumber: o.TrackingNumber,
		CreatedAt:      o.CreatedAt,
	}
	for _, it := range o.Items {
		doc.Items = append(doc.Items, itemDoc{
			Product:   it.Product,
			Quantity:  it.Quantity,
			UnitPrice: store.ToDecimal128(it.UnitPrice),
			Subtotal:  store.ToDecimal128(it.Subtotal),
		})
	}
	_, err := t.db.Collection(store.Orders).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrDuplicateOrderID
	}
	return err
}

func (t *mongoTx) InsertOutbox(ctx context.Context, e outbox.Event) error {
	// The sequence is bumped outside the transaction so that concurrent
	// orders do not conflict on the counter; aborted attempts leave gaps.
	id, err := store.NextSequence(t.base, t.db, store.Outbox)
	if err != nil {
		return err
	}
	if e.Headers == nil {
		e.Headers = map[string]string{}
	}
	_, err = t.db.Collection(store.Outbox).InsertOne(ctx, outboxDoc{
		ID:            id,
		AggregateType: e.AggregateType,
		AggregateID:   e.AggregateID,
		Type:          e.Type,
		Payload:       e.Payload,
		Headers:       e.Headers,
		Traceparent:   e.Traceparent,
		Status:        string(outbox.StatusPending),
		CreatedAt:     e.CreatedAt,
	})
	return err
}

func (t *mongoTx) DeleteCart(ctx context.Context, userID string) error {
	_, err := t.db.Collection(store.Carts).DeleteOne(ctx, bson.M{"_id": userID})
	return err
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Order, error) {
	var doc orderDoc
	err := r.db.Collection(store.Orders).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, err
	}
	o := domain.Order{
		ID:             doc.ID,
		UserID:         doc.UserID,
		TotalAmount:    store.FromDecimal128(doc.TotalAmount),
		Status:         domain.Status(doc.Status),
		TrackingNumber: doc.TrackingNumber,
		CreatedAt:      doc.CreatedAt.UTC(),
	}
	for _, it := range doc.Items {
		o.Items = append(o.Items, domain.OrderItem{
			Product:   it.Product,
			Quantity:  it.Quantity,
			UnitPrice: store.FromDecimal128(it.UnitPrice),
			Subtotal:  store.FromDecimal128(it.Subtotal),
		})
	}
	return o, nil
}
