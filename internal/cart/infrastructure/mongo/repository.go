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

	"github.com/dmehra2102/shop-assistant/internal/cart/domain"
	store "github.com/dmehra2102/shop-assistant/internal/storage/mongo"
)

type lineDoc struct {
	Product   string               `bson:"product"`
	Quantity  int                  `bson:"quantity"`
	UnitPrice primitive.Decimal128 `bson:"unit_price"`
	Subtotal  primitive.Decimal128 `bson:"subtotal"`
}

type cartDoc struct {
	UserID    string    `bson:"_id"`
	Items     []lineDoc `bson:"items"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toDoc(c domain.Cart) cartDoc {
	doc := cartDoc{UserID: c.UserID, Items: make([]lineDoc, 0, len(c.Lines)), UpdatedAt: c.UpdatedAt}
	for _, l := range c.Lines {
		doc.Items = append(doc.Items, lineDoc{
			Product:   l.Product,
			Quantity:  l.Quantity,
			UnitPrice: store.ToDecimal128(l.UnitPrice),
			Subtotal:  store.ToDecimal128(l.Subtotal),
		})
	}
	return doc
}

func (d cartDoc) cart() domain.Cart {
	c := domain.Cart{UserID: d.UserID, UpdatedAt: d.UpdatedAt}
	for _, l := range d.Items {
		c.Lines = append(c.Lines, domain.Line{
			Product:   l.Product,
			Quantity:  l.Quantity,
			UnitPrice: store.FromDecimal128(l.UnitPrice),
			Subtotal:  store.FromDecimal128(l.Subtotal),
		})
	}
	return c
}

type Repository struct {
	log        *slog.Logger
	collection *mongo.Collection
}

func NewRepository(log *slog.Logger, db *mongo.Database) *Repository {
	return &Repository{log: log, collection: db.Collection(store.Carts)}
}

func (r *Repository) Get(ctx context.Context, userID string) (domain.Cart, error) {
	c, err := FindCart(ctx, r.collection, userID)
	if err != nil && !errors.Is(err, domain.ErrCartNotFound) {
		return domain.Cart{}, fmt.Errorf("failed to get cart: %w", err)
	}
	return c, err
}

func (r *Repository) Save(ctx context.Context, c domain.Cart) error {
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": c.UserID}, toDoc(c), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

// FindCart reads one cart; ctx may carry a session.
func FindCart(ctx context.Context, coll *mongo.Collection, userID string) (domain.Cart, error) {
	var doc cartDoc
	err := coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	if err != nil {
		return domain.Cart{}, err
	}
	return doc.cart(), nil
}
