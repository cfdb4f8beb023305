package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"luxestore/searchservice/internal/domain"
	"luxestore/searchservice/internal/search"
)

const catalogSnapshotID = "catalog"

type productDoc struct {
	ID          string            `bson:"id"`
	Type        string            `bson:"type"`
	Brand       string            `bson:"brand,omitempty"`
	ProductName string            `bson:"productName"`
	Images      []string          `bson:"images"`
	Attributes  map[string]string `bson:"attributes,omitempty"`
}

type catalogDoc struct {
	ID        string       `bson:"_id"`
	Products  []productDoc `bson:"products"`
	FetchedAt int64        `bson:"fetchedAt"`
	UpdatedAt int64        `bson:"updatedAt"`
}

// CatalogRepository keeps the latest catalog snapshot as a single document.
type CatalogRepository struct {
	collection *mongo.Collection
}

func NewCatalogRepository(client *mongo.Client, dbName, collectionName string) *CatalogRepository {
	return &CatalogRepository{collection: client.Database(dbName).Collection(collectionName)}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (r *CatalogRepository) Name() string {
	return "mongo"
}

func (r *CatalogRepository) Load(ctx context.Context) (search.StoredCatalog, bool, error) {
	var doc catalogDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": catalogSnapshotID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return search.StoredCatalog{}, false, nil
		}
		return search.StoredCatalog{}, false, err
	}
	return fromDoc(doc), true, nil
}

func (r *CatalogRepository) Save(ctx context.Context, catalog search.StoredCatalog) error {
	doc := toDoc(catalog)
	update := bson.M{
		"$set": bson.M{
			"products":  doc.Products,
			"fetchedAt": doc.FetchedAt,
			"updatedAt": time.Now().UnixMilli(),
		},
	}
	_, err := r.collection.UpdateOne(
		ctx,
		bson.M{"_id": catalogSnapshotID},
		update,
		options.Update().SetUpsert(true),
	)
	return err
}

func toDoc(catalog search.StoredCatalog) catalogDoc {
	products := make([]productDoc, 0, len(catalog.Products))
	for _, product := range catalog.Products {
		images := product.Images
		if images == nil {
			images = []string{}
		}
		products = append(products, productDoc{
			ID:          product.ID,
			Type:        string(product.Type),
			Brand:       product.Brand,
			ProductName: product.ProductName,
			Images:      images,
			Attributes:  product.Attributes,
		})
	}
	return catalogDoc{
		ID:        catalogSnapshotID,
		Products:  products,
		FetchedAt: catalog.FetchedAt.UnixMilli(),
	}
}

func fromDoc(doc catalogDoc) search.StoredCatalog {
	products := make([]domain.Product, 0, len(doc.Products))
	for _, item := range doc.Products {
		images := item.Images
		if images == nil {
			images = []string{}
		}
		products = append(products, domain.Product{
			ID:          item.ID,
			Type:        domain.Category(item.Type),
			Brand:       item.Brand,
			ProductName: item.ProductName,
			Images:      images,
			Attributes:  item.Attributes,
		})
	}
	return search.StoredCatalog{
		Products:  products,
		FetchedAt: time.UnixMilli(doc.FetchedAt).UTC(),
	}
}
