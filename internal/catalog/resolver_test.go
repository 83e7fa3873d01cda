package catalog

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NahuelRC/CallCenter/internal/config"
	"github.com/NahuelRC/CallCenter/internal/intent"
	"github.com/NahuelRC/CallCenter/internal/media"
)

type fakeSource struct {
	products []Product
}

func (f *fakeSource) GetBySKU(_ context.Context, sku string) (Product, error) {
	for _, p := range f.products {
		if p.SKU == sku {
			return p, nil
		}
	}
	return Product{}, ErrNotFound
}

func (f *fakeSource) ListActive(_ context.Context) ([]Product, error) {
	active := make([]Product, 0, len(f.products))
	for _, p := range f.products {
		if p.Active {
			active = append(active, p)
		}
	}
	return active, nil
}

func intPtr(n int) *int { return &n }

func newTestResolver(t *testing.T, products []Product) *Resolver {
	t.Helper()
	return NewResolver(
		&fakeSource{products: products},
		intent.NewDetector(config.IntentConfig{}),
		media.NewPipeline(config.MediaConfig{}),
		config.CatalogConfig{},
		slog.Default(),
	)
}

func testProducts() []Product {
	return []Product{
		{
			SKU: "GOT-1", Name: "Gotas X", Active: true, Price: 15990,
			Tags:   []string{"gotas"},
			Images: []Image{{URL: "https://res.cloudinary.com/demo/image/upload/v1/gotas.jpg", Alt: "frasco de gotas"}},
		},
		{
			SKU: "CAP-1", Name: "Cápsulas Y", Active: true, Price: 22000,
			Tags:   []string{"capsulas"},
			Images: []Image{{URL: "https://res.cloudinary.com/demo/image/upload/v1/caps.jpg", Alt: "capsulas"}},
		},
		{
			SKU: "SEM-1", Name: "Semillas Z", Active: false, Price: 9000,
			Tags: []string{"semillas"},
		},
	}
}

func TestFindProductBySKU(t *testing.T) {
	r := newTestResolver(t, testProducts())

	product, ok, err := r.FindProduct(context.Background(), Lookup{SKU: "GOT-1"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Gotas X", product.Name)

	// Inactive products never resolve, even by exact SKU.
	_, ok, err = r.FindProduct(context.Background(), Lookup{SKU: "SEM-1"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindProductCategoryExcludesOthers(t *testing.T) {
	r := newTestResolver(t, testProducts())

	product, ok, err := r.FindProduct(context.Background(), Lookup{Category: "gotas"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "GOT-1", product.SKU)

	product, ok, err = r.FindProduct(context.Background(), Lookup{Category: "capsulas"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "CAP-1", product.SKU)
}

func TestFindProductQueryRelaxation(t *testing.T) {
	r := newTestResolver(t, testProducts())

	// The query matches nothing, but the category is confident.
	product, ok, err := r.FindProduct(context.Background(), Lookup{Query: "algo rarisimo", Category: "gotas"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "GOT-1", product.SKU)

	// Accent-insensitive free text match.
	product, ok, err = r.FindProduct(context.Background(), Lookup{Query: "capsulas"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "CAP-1", product.SKU)

	_, ok, err = r.FindProduct(context.Background(), Lookup{Query: "inexistente"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindProductEmptyLookup(t *testing.T) {
	r := newTestResolver(t, testProducts())
	_, ok, err := r.FindProduct(context.Background(), Lookup{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindWithImage(t *testing.T) {
	products := testProducts()
	r := newTestResolver(t, products)

	product, ok, err := r.FindWithImage(context.Background(), "capsulas")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "CAP-1", product.SKU)

	// Without a category the first product carrying an allowed image wins.
	product, ok, err = r.FindWithImage(context.Background(), "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "GOT-1", product.SKU)
}

func TestFindWithImageDisabled(t *testing.T) {
	off := false
	r := NewResolver(
		&fakeSource{products: testProducts()},
		intent.NewDetector(config.IntentConfig{}),
		media.NewPipeline(config.MediaConfig{}),
		config.CatalogConfig{ImageFallback: &off},
		slog.Default(),
	)
	_, ok, err := r.FindWithImage(context.Background(), "gotas")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPickImages(t *testing.T) {
	r := newTestResolver(t, nil)
	product := Product{
		Name: "Gotas X",
		Images: []Image{
			{URL: "https://res.cloudinary.com/demo/image/upload/v1/frente.jpg", Alt: "frente"},
			{URL: "http://res.cloudinary.com/demo/image/upload/v1/http.jpg", Alt: "insegura"},
			{URL: "https://evil.example.com/pic.jpg", Alt: "ajena"},
			{URL: "https://res.cloudinary.com/demo/image/upload/v1/dorso.jpg", Alt: "dorso del frasco"},
		},
	}

	urls := r.PickImages(product, 3, "")
	require.Len(t, urls, 2)
	assert.Contains(t, urls[0], "f_auto,q_auto")
	assert.Contains(t, urls[0], "frente.jpg")

	// The hint promotes the matching image without dropping the rest.
	urls = r.PickImages(product, 3, "dorso")
	require.Len(t, urls, 2)
	assert.Contains(t, urls[0], "dorso.jpg")
	assert.Contains(t, urls[1], "frente.jpg")

	urls = r.PickImages(product, 1, "")
	assert.Len(t, urls, 1)
}
