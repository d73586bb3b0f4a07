package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dmehra2102/shop-assistant/internal/inventory/domain"
	store "github.com/dmehra2102/shop-assistant/internal/storage/mongo"
)

// ProductDoc is the stored shape of a catalogue entry.
type ProductDoc struct {
	ID    string               `bson:"_id"`
	Name  string               `bson:"name"`
	Price primitive.Decimal128 `bson:"price"`
	Stock int                  `bson:"stock"`
}

func (d ProductDoc) Product() domain.Product {
	return domain.Product{ID: d.ID, Name: d.Name, Price: store.FromDecimal128(d.Price), Stock: d.Stock}
}

type Repository struct {
	log        *slog.Logger
	collection *mongo.Collection
}

func NewRepository(log *slog.Logger, db *mongo.Database) *Repository {
	return &Repository{log: log, collection: db.Collection(store.Products)}
}

func (r *Repository) GetByName(ctx context.Context, name string) (domain.Product, error) {
	var doc ProductDoc
	err := r.collection.FindOne(ctx, bson.M{"name": name}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to get product %q: %w", name, err)
	}
	return doc.Product(), nil
}

func (r *Repository) GetByNames(ctx context.Context, names []string) (map[string]domain.Product, error) {
	return FindByNames(ctx, r.collection, names)
}

// Search is a range scan over the name index: [prefix, prefix+U+FFFF).
func (r *Repository) Search(ctx context.Context, prefix string, limit int) ([]domain.Product, error) {
	filter := bson.M{"name": bson.M{"$gte": prefix, "$lt": prefix + "\uffff"}}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}}).SetLimit(int64(limit))
	cur, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	var docs []ProductDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	out := make([]domain.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Product())
	}
	return out, nil
}

func (r *Repository) Upsert(ctx context.Context, p domain.Product) error {
	p.Name = domain.NormalizeName(p.Name)
	if p.ID == "" {
		p.ID = p.Name
	}
	doc := ProductDoc{ID: p.ID, Name: p.Name, Price: store.ToDecimal128(p.Price), Stock: p.Stock}
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": p.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert product %q: %w", p.Name, err)
	}
	return nil
}

// FindByNames reads the products named; ctx may carry a session.
func FindByNames(ctx context.Context, coll *mongo.Collection, names []string) (map[string]domain.Product, error) {
	cur, err := coll.Find(ctx, bson.M{"name": bson.M{"$in": names}})
	if err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	var docs []ProductDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	out := make(map[string]domain.Product, len(docs))
	for _, d := range docs {
		out[d.Name] = d.Product()
	}
	return out, nil
}
