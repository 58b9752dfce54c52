package client

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pilab-dev/shadow-admin/domain"
)

// ProductImageField is the multipart field name for product pictures.
const ProductImageField = "productImage"

// ProductForm is the multipart body for creating or updating a product.
// Image is optional on update.
type ProductForm struct {
	Name          string
	Details       string
	Price         float64
	ImageFilename string
	Image         io.Reader
}

func (f ProductForm) fields() map[string]string {
	return map[string]string{
		"name":    f.Name,
		"details": f.Details,
		"price":   strconv.FormatFloat(f.Price, 'f', -1, 64),
	}
}

func (f ProductForm) files() []fileField {
	if f.Image == nil {
		return nil
	}
	return []fileField{{param: ProductImageField, filename: f.ImageFilename, reader: f.Image}}
}

// ListProducts returns the catalog.
func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	if err := c.do(ctx, call{method: http.MethodGet, path: "/products", auth: true, out: &out}); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProduct returns one product.
func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var out domain.Product
	if err := c.do(ctx, call{method: http.MethodGet, path: "/products/" + url.PathEscape(id), auth: true, out: &out}); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddProduct creates a product.
func (c *Client) AddProduct(ctx context.Context, f ProductForm) error {
	return c.do(ctx, call{method: http.MethodPost, path: "/products", auth: true, form: f.fields(), files: f.files()})
}

// UpdateProduct replaces a product's fields, and its image when one is given.
func (c *Client) UpdateProduct(ctx context.Context, id string, f ProductForm) error {
	return c.do(ctx, call{method: http.MethodPut, path: "/products/" + url.PathEscape(id), auth: true,
		form: f.fields(), files: f.files()})
}

// DeleteProduct removes a product.
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.do(ctx, call{method: http.MethodDelete, path: "/products/" + url.PathEscape(id), auth: true})
}
