package catalog

import (
	"context"
	"os"

	commonErrors "sustainable-advisor/internal/common/errors"
	"sustainable-advisor/internal/models"
)

// FileProvider reads a JSON catalog from disk on every call.
type FileProvider struct {
	path string
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

func (p *FileProvider) Name() string {
	return "file"
}

func (p *FileProvider) GetProducts(ctx context.Context) ([]models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := os.ReadFile(p.path)
	if err != nil {
		return nil, commonErrors.NewCatalogUnavailableError(p.path, err)
	}

	products, err := decodeProducts(body)
	if err != nil {
		return nil, commonErrors.NewCatalogDecodeFailedError(p.path, err)
	}
	return products, nil
}
