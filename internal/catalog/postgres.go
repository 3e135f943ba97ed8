package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/lib/pq"

	"sustainable-advisor/internal/common/database"
	commonErrors "sustainable-advisor/internal/common/errors"
	"sustainable-advisor/internal/models"
)

const (
	defaultTable   = "products"
	productColumns = "id, name, description, picture, price_usd, categories, eco_tags, carbon_score"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// PostgresProvider reads the catalog from a products table with text[]
// category and eco tag columns.
type PostgresProvider struct {
	client *database.PostgresClient
	table  string
}

// NewPostgresProvider rejects table names that are not plain identifiers.
func NewPostgresProvider(client *database.PostgresClient, table string) (*PostgresProvider, error) {
	if table == "" {
		table = defaultTable
	}
	if !tableName.MatchString(table) {
		return nil, commonErrors.NewInvalidInputError(fmt.Sprintf("invalid catalog table name %q", table))
	}
	return &PostgresProvider{client: client, table: table}, nil
}

func (p *PostgresProvider) Name() string {
	return "postgres"
}

func (p *PostgresProvider) GetProducts(ctx context.Context) ([]models.Product, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY id", productColumns, p.table)

	rows, err := p.client.Query(ctx, query)
	if err != nil {
		return nil, commonErrors.NewQueryExecutionFailedError(query, err)
	}
	defer rows.Close()

	products := make([]models.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, commonErrors.NewQueryExecutionFailedError(query, err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, commonErrors.NewQueryExecutionFailedError(query, err)
	}
	return products, nil
}

// GetProduct returns one product; sql.ErrNoRows is returned wrapped when the
// id is unknown.
func (p *PostgresProvider) GetProduct(ctx context.Context, id string) (models.Product, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", productColumns, p.table)

	rows, err := p.client.Query(ctx, query, id)
	if err != nil {
		return models.Product{}, commonErrors.NewQueryExecutionFailedError(query, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return models.Product{}, commonErrors.NewQueryExecutionFailedError(query, err)
		}
		return models.Product{}, fmt.Errorf("product %s: %w", id, sql.ErrNoRows)
	}
	product, err := scanProduct(rows)
	if err != nil {
		return models.Product{}, commonErrors.NewQueryExecutionFailedError(query, err)
	}
	return product, nil
}

func scanProduct(rows *sql.Rows) (models.Product, error) {
	var (
		p           models.Product
		description sql.NullString
		picture     sql.NullString
		price       float64
		categories  pq.StringArray
		ecoTags     pq.StringArray
		carbon      sql.NullFloat64
	)
	if err := rows.Scan(&p.ID, &p.Name, &description, &picture, &price, &categories, &ecoTags, &carbon); err != nil {
		return models.Product{}, err
	}

	p.Description = description.String
	p.Picture = picture.String
	p.Price = models.Price(price)
	p.Categories = []string(categories)
	p.EcoTags = []string(ecoTags)
	if carbon.Valid {
		p.CarbonScore = models.Float64Ptr(carbon.Float64)
	}
	return p, nil
}
