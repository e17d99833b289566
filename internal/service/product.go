package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"productapi/internal/model"
	"productapi/internal/repository"
	"productapi/internal/storage"
)

var (
	ErrIDRequired   = errors.New("id is required")
	ErrNotFound     = errors.New("product not found")
	ErrReaderNil    = errors.New("reader is nil")
	ErrSKUTaken     = errors.New("sku already in use")
	ErrInvalidInput = errors.New("invalid input")
)

const pgUniqueViolation = "23505"

// ProductListResult is the service-level DTO for paginated products.
type ProductListResult struct {
	Items []model.Product `json:"data"`
	Total int             `json:"total"`
}

// CreateProductInput carries the writable fields for creating a product.
type CreateProductInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	SKU         string  `json:"sku"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

// UpdateProductInput carries the writable fields for a full update.
type UpdateProductInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	SKU         string  `json:"sku"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

// ProductService defines the use cases for handling products.
type ProductService interface {
	// Create validates the input, assigns an ID and timestamps, and stores the product.
	Create(ctx context.Context, in CreateProductInput) (*model.Product, error)

	// List returns products using limit/offset and a total count.
	// An empty category matches all products.
	List(ctx context.Context, limit, offset int, category string) (*ProductListResult, error)

	// Get returns a single product by its ID.
	Get(ctx context.Context, id string) (*model.Product, error)

	// Update replaces the writable fields of an existing product and bumps updated_at.
	Update(ctx context.Context, id string, in UpdateProductInput) (*model.Product, error)

	// Delete removes a product by ID, including its image object when present.
	Delete(ctx context.Context, id string) error

	// AttachImage uploads the content to object storage, records the key on the
	// product row, and rolls back the object if the DB update fails. A previously
	// attached image object is removed after a successful swap.
	// - originalFilename is used only to extract the extension.
	AttachImage(ctx context.Context, id string, r io.Reader, originalFilename string, contentType string, size int64) (*model.Product, error)

	// ImageURL returns a time-limited download URL for the product's image.
	ImageURL(ctx context.Context, id string, expiry time.Duration) (string, error)
}

// productService is a concrete implementation of ProductService.
type productService struct {
	store  storage.Storage
	repo   repository.ProductRepository
	tracer trace.Tracer
}

// NewProductService constructs a new ProductService.
func NewProductService(store storage.Storage, repo repository.ProductRepository) ProductService {
	return &productService{
		store:  store,
		repo:   repo,
		tracer: otel.Tracer("productapi/internal/service"),
	}
}

func validateFields(name, sku string, price float64, stock int) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if sku == "" {
		return fmt.Errorf("%w: sku is required", ErrInvalidInput)
	}
	if price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	if stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidInput)
	}
	return nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (s *productService) Create(ctx context.Context, in CreateProductInput) (*model.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Create")
	defer span.End()

	if err := validateFields(in.Name, in.SKU, in.Price, in.Stock); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &model.Product{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Description: in.Description,
		SKU:         in.SKU,
		Category:    in.Category,
		Price:       in.Price,
		Stock:       in.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	span.SetAttributes(attribute.String("product.sku", p.SKU))

	stored, err := s.repo.Create(ctx, p)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSKUTaken
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

// List returns paginated products without exposing repository types.
func (s *productService) List(ctx context.Context, limit, offset int, category string) (*ProductListResult, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.List")
	defer span.End()

	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset, Category: category})
	if err != nil {
		return nil, err
	}
	return &ProductListResult{Items: res.Items, Total: res.Total}, nil
}

// Get returns a product by ID.
func (s *productService) Get(ctx context.Context, id string) (*model.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Get")
	defer span.End()

	if id == "" {
		return nil, ErrIDRequired
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// Update replaces the writable fields of an existing product.
func (s *productService) Update(ctx context.Context, id string, in UpdateProductInput) (*model.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Update")
	defer span.End()

	if id == "" {
		return nil, ErrIDRequired
	}
	if err := validateFields(in.Name, in.SKU, in.Price, in.Stock); err != nil {
		return nil, err
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	current.Name = in.Name
	current.Description = in.Description
	current.SKU = in.SKU
	current.Category = in.Category
	current.Price = in.Price
	current.Stock = in.Stock
	current.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.Update(ctx, current)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSKUTaken
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

// Delete removes a product's image from storage (when present), then deletes its record.
func (s *productService) Delete(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "ProductService.Delete")
	defer span.End()

	if id == "" {
		return ErrIDRequired
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	// Delete from storage first; if this fails, keep the DB row so the
	// object key is not lost.
	if p.ImagePath != "" {
		if err := s.store.Delete(ctx, p.ImagePath); err != nil {
			return fmt.Errorf("delete storage: %w", err)
		}
	}
	return s.repo.Delete(ctx, id)
}

func (s *productService) AttachImage(ctx context.Context, id string, r io.Reader, originalFilename string, contentType string, size int64) (*model.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.AttachImage")
	defer span.End()

	if id == "" {
		return nil, ErrIDRequired
	}
	if r == nil {
		return nil, ErrReaderNil
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	// Generate object key using UUID + extension
	ext := filepath.Ext(originalFilename)
	key := filepath.ToSlash(filepath.Join("products", uuid.New().String()+ext))

	objInfo, err := s.store.Put(ctx, key, r, storage.PutObjectOptions{
		Size:        size,
		ContentType: contentType,
		Metadata: map[string]string{
			"original-filename": originalFilename,
			"product-id":        id,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	prevKey := p.ImagePath
	p.ImagePath = objInfo.Key
	p.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		// Rollback: delete the freshly uploaded object
		delErr := s.store.Delete(ctx, key)
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
		} else {
			err = fmt.Errorf("db save failed: %w", err)
		}
		if delErr != nil {
			return nil, fmt.Errorf("%w; rollback delete failed: %v", err, delErr)
		}
		return nil, err
	}

	// Remove the replaced object; the row already points at the new key,
	// so a failure here only leaves an orphan behind.
	if prevKey != "" {
		_ = s.store.Delete(ctx, prevKey)
	}
	return updated, nil
}

// ImageURL returns a presigned download URL for the product's image.
func (s *productService) ImageURL(ctx context.Context, id string, expiry time.Duration) (string, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.ImageURL")
	defer span.End()

	if id == "" {
		return "", ErrIDRequired
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	if p.ImagePath == "" {
		return "", ErrNotFound
	}
	return s.store.PresignGet(ctx, p.ImagePath, expiry)
}
