package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"productapi/internal/model"
	"productapi/internal/repository"
	repoMocks "productapi/internal/repository/mocks"
	"productapi/internal/storage"
	storeMocks "productapi/internal/storage/mocks"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestProductService_Create(t *testing.T) {
	ctx := context.Background()

	validInput := CreateProductInput{
		Name:     "Mechanical Keyboard",
		SKU:      "KB-87-BRN",
		Category: "peripherals",
		Price:    129.90,
		Stock:    12,
	}

	tests := []struct {
		name       string
		input      CreateProductInput
		setupMocks func(mRepo *repoMocks.MockProductRepository)
		wantErr    error
		wantErrMsg string
	}{
		{
			name:  "happy path",
			input: validInput,
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {
				mRepo.On("Create", ctx, mock.MatchedBy(func(p *model.Product) bool {
					return p.ID != "" && p.SKU == "KB-87-BRN" && !p.CreatedAt.IsZero() && p.CreatedAt.Equal(p.UpdatedAt)
				})).Return(&model.Product{ID: "gen-id", SKU: "KB-87-BRN"}, nil)
			},
		},
		{
			name:       "validation - missing name",
			input:      CreateProductInput{SKU: "X", Price: 1},
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {},
			wantErr:    ErrInvalidInput,
		},
		{
			name:       "validation - missing sku",
			input:      CreateProductInput{Name: "X", Price: 1},
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {},
			wantErr:    ErrInvalidInput,
		},
		{
			name:       "validation - negative price",
			input:      CreateProductInput{Name: "X", SKU: "Y", Price: -1},
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {},
			wantErr:    ErrInvalidInput,
		},
		{
			name:       "validation - negative stock",
			input:      CreateProductInput{Name: "X", SKU: "Y", Stock: -1},
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {},
			wantErr:    ErrInvalidInput,
		},
		{
			name:  "sku conflict maps unique violation",
			input: validInput,
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {
				mRepo.On("Create", ctx, mock.Anything).
					Return(nil, &pgconn.PgError{Code: "23505", ConstraintName: "products_sku_key"})
			},
			wantErr: ErrSKUTaken,
		},
		{
			name:  "generic repository error",
			input: validInput,
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {
				mRepo.On("Create", ctx, mock.Anything).Return(nil, errors.New("db fail"))
			},
			wantErrMsg: "db save failed: db fail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockProductRepository)
			svc := NewProductService(nil, mRepo)

			tt.setupMocks(mRepo)

			p, err := svc.Create(ctx, tt.input)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
			} else if tt.wantErrMsg != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, p)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestProductService_List(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		limit      int
		offset     int
		category   string
		setupMocks func(mRepo *repoMocks.MockProductRepository)
		wantErr    error
		checkRes   func(t *testing.T, res *ProductListResult)
	}{
		{
			name:   "happy path",
			limit:  10,
			offset: 0,
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {
				mRepo.On("List", ctx, repository.PageQuery{Limit: 10, Offset: 0}).
					Return(&repository.PageResult[model.Product]{
						Items: []model.Product{{ID: "1"}, {ID: "2"}},
						Total: 2,
					}, nil)
			},
			checkRes: func(t *testing.T, res *ProductListResult) {
				assert.Equal(t, 2, len(res.Items))
				assert.Equal(t, 2, res.Total)
			},
		},
		{
			name:     "category filter passed through",
			limit:    5,
			offset:   0,
			category: "cables",
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {
				mRepo.On("List", ctx, repository.PageQuery{Limit: 5, Offset: 0, Category: "cables"}).
					Return(&repository.PageResult[model.Product]{Items: []model.Product{}, Total: 0}, nil)
			},
		},
		{
			name:   "pagination boundary - zero limit uses default",
			limit:  0,
			offset: -1,
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {
				mRepo.On("List", ctx, repository.PageQuery{Limit: 10, Offset: 0}).
					Return(&repository.PageResult[model.Product]{Items: []model.Product{}, Total: 0}, nil)
			},
		},
		{
			name:  "repository error",
			limit: 10,
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {
				mRepo.On("List", ctx, mock.Anything).Return(nil, errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockProductRepository)
			svc := NewProductService(nil, mRepo)

			tt.setupMocks(mRepo)

			res, err := svc.List(ctx, tt.limit, tt.offset, tt.category)

			if tt.wantErr != nil {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				if tt.checkRes != nil {
					tt.checkRes(t, res)
				}
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestProductService_Get(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         string
		setupMocks func(mRepo *repoMocks.MockProductRepository)
		wantErr    error
	}{
		{
			name: "happy path",
			id:   "valid-id",
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {
				mRepo.On("FindByID", ctx, "valid-id").Return(&model.Product{ID: "valid-id"}, nil)
			},
		},
		{
			name:       "validation - empty id",
			id:         "",
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {},
			wantErr:    ErrIDRequired,
		},
		{
			name: "not found - mapping sql.ErrNoRows",
			id:   "missing-id",
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {
				mRepo.On("FindByID", ctx, "missing-id").Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "generic repository error",
			id:   "error-id",
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {
				mRepo.On("FindByID", ctx, "error-id").Return(nil, errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockProductRepository)
			svc := NewProductService(nil, mRepo)

			tt.setupMocks(mRepo)

			p, err := svc.Get(ctx, tt.id)

			if tt.wantErr != nil {
				if errors.Is(tt.wantErr, ErrIDRequired) || errors.Is(tt.wantErr, ErrNotFound) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.Error(t, err)
				}
				assert.Nil(t, p)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, p)
				assert.Equal(t, tt.id, p.ID)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestProductService_Update(t *testing.T) {
	ctx := context.Background()

	existing := func() *model.Product {
		return &model.Product{
			ID:        "valid-id",
			Name:      "Old Name",
			SKU:       "OLD-SKU",
			Price:     10,
			Stock:     1,
			CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		}
	}

	validInput := UpdateProductInput{
		Name:  "New Name",
		SKU:   "NEW-SKU",
		Price: 20,
		Stock: 3,
	}

	tests := []struct {
		name       string
		id         string
		input      UpdateProductInput
		setupMocks func(mRepo *repoMocks.MockProductRepository)
		wantErr    error
	}{
		{
			name:  "happy path bumps updated_at",
			id:    "valid-id",
			input: validInput,
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {
				mRepo.On("FindByID", ctx, "valid-id").Return(existing(), nil)
				mRepo.On("Update", ctx, mock.MatchedBy(func(p *model.Product) bool {
					return p.Name == "New Name" && p.SKU == "NEW-SKU" && p.UpdatedAt.After(p.CreatedAt)
				})).Return(&model.Product{ID: "valid-id", Name: "New Name"}, nil)
			},
		},
		{
			name:       "validation - empty id",
			id:         "",
			input:      validInput,
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {},
			wantErr:    ErrIDRequired,
		},
		{
			name:       "validation - missing name",
			id:         "valid-id",
			input:      UpdateProductInput{SKU: "X"},
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {},
			wantErr:    ErrInvalidInput,
		},
		{
			name:  "not found on read",
			id:    "missing-id",
			input: validInput,
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {
				mRepo.On("FindByID", ctx, "missing-id").Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name:  "row vanished between read and write",
			id:    "valid-id",
			input: validInput,
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {
				mRepo.On("FindByID", ctx, "valid-id").Return(existing(), nil)
				mRepo.On("Update", ctx, mock.Anything).Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name:  "sku conflict on write",
			id:    "valid-id",
			input: validInput,
			setupMocks: func(mRepo *repoMocks.MockProductRepository) {
				mRepo.On("FindByID", ctx, "valid-id").Return(existing(), nil)
				mRepo.On("Update", ctx, mock.Anything).
					Return(nil, &pgconn.PgError{Code: "23505"})
			},
			wantErr: ErrSKUTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mRepo := new(repoMocks.MockProductRepository)
			svc := NewProductService(nil, mRepo)

			tt.setupMocks(mRepo)

			p, err := svc.Update(ctx, tt.id, tt.input)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, p)
			}
			mRepo.AssertExpectations(t)
		})
	}
}

func TestProductService_Delete(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         string
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository)
		wantErr    error
	}{
		{
			name: "happy path with image",
			id:   "valid-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) {
				mRepo.On("FindByID", ctx, "valid-id").Return(&model.Product{ID: "valid-id", ImagePath: "products/img.jpg"}, nil)
				mStore.On("Delete", ctx, "products/img.jpg").Return(nil)
				mRepo.On("Delete", ctx, "valid-id").Return(nil)
			},
		},
		{
			name: "happy path without image skips storage",
			id:   "valid-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) {
				mRepo.On("FindByID", ctx, "valid-id").Return(&model.Product{ID: "valid-id"}, nil)
				mRepo.On("Delete", ctx, "valid-id").Return(nil)
			},
		},
		{
			name:       "validation - empty id",
			id:         "",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) {},
			wantErr:    ErrIDRequired,
		},
		{
			name: "not found",
			id:   "missing-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) {
				mRepo.On("FindByID", ctx, "missing-id").Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "storage delete error keeps row",
			id:   "storage-fail-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) {
				mRepo.On("FindByID", ctx, "storage-fail-id").Return(&model.Product{ID: "id", ImagePath: "path"}, nil)
				mStore.On("Delete", ctx, "path").Return(errors.New("storage fail"))
			},
			wantErr: errors.New("delete storage: storage fail"),
		},
		{
			name: "repository delete error",
			id:   "repo-fail-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) {
				mRepo.On("FindByID", ctx, "repo-fail-id").Return(&model.Product{ID: "id", ImagePath: "path"}, nil)
				mStore.On("Delete", ctx, "path").Return(nil)
				mRepo.On("Delete", ctx, "repo-fail-id").Return(errors.New("db fail"))
			},
			wantErr: errors.New("db fail"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockProductRepository)
			svc := NewProductService(mStore, mRepo)

			tt.setupMocks(mStore, mRepo)

			err := svc.Delete(ctx, tt.id)

			if tt.wantErr != nil {
				if errors.Is(tt.wantErr, ErrIDRequired) || errors.Is(tt.wantErr, ErrNotFound) {
					assert.ErrorIs(t, err, tt.wantErr)
				} else {
					assert.Error(t, err)
					assert.Contains(t, err.Error(), tt.wantErr.Error())
				}
			} else {
				assert.NoError(t, err)
			}
			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestProductService_AttachImage(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		id         string
		filename   string
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) io.Reader
		wantErr    error
		wantErrMsg string
	}{
		{
			name:     "happy path",
			id:       "valid-id",
			filename: "photo.jpg",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) io.Reader {
				r := strings.NewReader("image bytes")
				mRepo.On("FindByID", ctx, "valid-id").Return(&model.Product{ID: "valid-id"}, nil)
				mStore.On("Put", ctx, mock.MatchedBy(func(key string) bool {
					return strings.HasPrefix(key, "products/") && strings.HasSuffix(key, ".jpg")
				}), r, mock.Anything).Return(storage.ObjectInfo{Key: "products/uuid.jpg", Size: 11}, nil)
				mRepo.On("Update", ctx, mock.MatchedBy(func(p *model.Product) bool {
					return p.ImagePath == "products/uuid.jpg"
				})).Return(&model.Product{ID: "valid-id", ImagePath: "products/uuid.jpg"}, nil)
				return r
			},
		},
		{
			name:     "replaces previous image object",
			id:       "valid-id",
			filename: "photo.png",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) io.Reader {
				r := strings.NewReader("image bytes")
				mRepo.On("FindByID", ctx, "valid-id").Return(&model.Product{ID: "valid-id", ImagePath: "products/old.jpg"}, nil)
				mStore.On("Put", ctx, mock.Anything, r, mock.Anything).
					Return(storage.ObjectInfo{Key: "products/new.png"}, nil)
				mRepo.On("Update", ctx, mock.Anything).
					Return(&model.Product{ID: "valid-id", ImagePath: "products/new.png"}, nil)
				mStore.On("Delete", ctx, "products/old.jpg").Return(nil)
				return r
			},
		},
		{
			name:     "validation - empty id",
			id:       "",
			filename: "photo.jpg",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) io.Reader {
				return strings.NewReader("x")
			},
			wantErr: ErrIDRequired,
		},
		{
			name:     "validation - nil reader",
			id:       "valid-id",
			filename: "photo.jpg",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) io.Reader {
				return nil
			},
			wantErr: ErrReaderNil,
		},
		{
			name:     "product not found",
			id:       "missing-id",
			filename: "photo.jpg",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) io.Reader {
				mRepo.On("FindByID", ctx, "missing-id").Return(nil, sql.ErrNoRows)
				return strings.NewReader("x")
			},
			wantErr: ErrNotFound,
		},
		{
			name:     "storage error",
			id:       "valid-id",
			filename: "photo.jpg",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) io.Reader {
				r := strings.NewReader("x")
				mRepo.On("FindByID", ctx, "valid-id").Return(&model.Product{ID: "valid-id"}, nil)
				mStore.On("Put", ctx, mock.Anything, r, mock.Anything).
					Return(storage.ObjectInfo{}, errors.New("storage fail"))
				return r
			},
			wantErrMsg: "upload to storage: storage fail",
		},
		{
			name:     "repository error with successful rollback",
			id:       "valid-id",
			filename: "photo.jpg",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) io.Reader {
				r := strings.NewReader("x")
				mRepo.On("FindByID", ctx, "valid-id").Return(&model.Product{ID: "valid-id"}, nil)
				mStore.On("Put", ctx, mock.Anything, r, mock.Anything).
					Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
						return storage.ObjectInfo{Key: key}
					}, nil)
				mRepo.On("Update", ctx, mock.Anything).Return(nil, errors.New("db fail"))
				mStore.On("Delete", ctx, mock.Anything).Return(nil)
				return r
			},
			wantErrMsg: "db save failed: db fail",
		},
		{
			name:     "repository error with failed rollback",
			id:       "valid-id",
			filename: "photo.jpg",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) io.Reader {
				r := strings.NewReader("x")
				mRepo.On("FindByID", ctx, "valid-id").Return(&model.Product{ID: "valid-id"}, nil)
				mStore.On("Put", ctx, mock.Anything, r, mock.Anything).
					Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
						return storage.ObjectInfo{Key: key}
					}, nil)
				mRepo.On("Update", ctx, mock.Anything).Return(nil, errors.New("db fail"))
				mStore.On("Delete", ctx, mock.Anything).Return(errors.New("delete fail"))
				return r
			},
			wantErrMsg: "rollback delete failed: delete fail",
		},
		{
			name:     "row vanished on write with failed rollback still maps not found",
			id:       "valid-id",
			filename: "photo.jpg",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) io.Reader {
				r := strings.NewReader("x")
				mRepo.On("FindByID", ctx, "valid-id").Return(&model.Product{ID: "valid-id"}, nil)
				mStore.On("Put", ctx, mock.Anything, r, mock.Anything).
					Return(func(ctx context.Context, key string, r io.Reader, opt storage.PutObjectOptions) storage.ObjectInfo {
						return storage.ObjectInfo{Key: key}
					}, nil)
				mRepo.On("Update", ctx, mock.Anything).Return(nil, sql.ErrNoRows)
				mStore.On("Delete", ctx, mock.Anything).Return(errors.New("delete fail"))
				return r
			},
			wantErr:    ErrNotFound,
			wantErrMsg: "rollback delete failed: delete fail",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockProductRepository)
			svc := NewProductService(mStore, mRepo)

			r := tt.setupMocks(mStore, mRepo)

			p, err := svc.AttachImage(ctx, tt.id, r, tt.filename, "image/jpeg", 11)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				if tt.wantErrMsg != "" {
					assert.Contains(t, err.Error(), tt.wantErrMsg)
				}
			} else if tt.wantErrMsg != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrMsg)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, p)
			}
			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestProductService_ImageURL(t *testing.T) {
	ctx := context.Background()
	expiry := 15 * time.Minute

	tests := []struct {
		name       string
		id         string
		setupMocks func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository)
		want       string
		wantErr    error
	}{
		{
			name: "happy path",
			id:   "valid-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) {
				mRepo.On("FindByID", ctx, "valid-id").Return(&model.Product{ID: "valid-id", ImagePath: "products/img.jpg"}, nil)
				mStore.On("PresignGet", ctx, "products/img.jpg", expiry).Return("https://example.test/presigned", nil)
			},
			want: "https://example.test/presigned",
		},
		{
			name:       "validation - empty id",
			id:         "",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) {},
			wantErr:    ErrIDRequired,
		},
		{
			name: "product without image",
			id:   "no-image-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) {
				mRepo.On("FindByID", ctx, "no-image-id").Return(&model.Product{ID: "no-image-id"}, nil)
			},
			wantErr: ErrNotFound,
		},
		{
			name: "product missing",
			id:   "missing-id",
			setupMocks: func(mStore *storeMocks.MockStorage, mRepo *repoMocks.MockProductRepository) {
				mRepo.On("FindByID", ctx, "missing-id").Return(nil, sql.ErrNoRows)
			},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockProductRepository)
			svc := NewProductService(mStore, mRepo)

			tt.setupMocks(mStore, mRepo)

			got, err := svc.ImageURL(ctx, tt.id, expiry)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}
