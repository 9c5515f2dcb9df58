package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/nifastore/nifa/internal/model"
)

type ProductStore struct {
	db *sql.DB
}

func NewProductStore(db *sql.DB) *ProductStore {
	return &ProductStore{db: db}
}

func scanProduct(scanner interface{ Scan(...any) error }) (*model.Product, error) {
	var p model.Product
	err := scanner.Scan(&p.ID, &p.Category, &p.ProductName, &p.PriceLojista, &p.PriceClients, &p.BoughtFor, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const productCols = `id, category, product_name, price_lojista, price_clients, bought_for, created_at`

// Create inserts p and stamps created_at. p.ID and p.CreatedAt are ignored.
func (s *ProductStore) Create(p model.Product) (*model.Product, error) {
	result, err := s.db.Exec(
		`INSERT INTO products (category, product_name, price_lojista, price_clients, bought_for, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.Category, p.ProductName, p.PriceLojista, p.PriceClients, p.BoughtFor,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProductStore) GetByID(id int64) (*model.Product, error) {
	row := s.db.QueryRow(`SELECT `+productCols+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// List returns products ordered by category and name. An empty category
// returns the whole catalog.
func (s *ProductStore) List(category string) ([]model.Product, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if category == "" {
		rows, err = s.db.Query(`SELECT ` + productCols + ` FROM products ORDER BY category ASC, product_name ASC, id ASC`)
	} else {
		rows, err = s.db.Query(`SELECT `+productCols+` FROM products WHERE category = ? ORDER BY product_name ASC, id ASC`, category)
	}
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *ProductStore) ListCategories() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT category FROM products ORDER BY category ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Update overwrites the editable fields of product id. created_at is kept.
func (s *ProductStore) Update(id int64, p model.Product) (*model.Product, error) {
	_, err := s.db.Exec(
		`UPDATE products SET category = ?, product_name = ?, price_lojista = ?, price_clients = ?, bought_for = ?
		 WHERE id = ?`,
		p.Category, p.ProductName, p.PriceLojista, p.PriceClients, p.BoughtFor, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProductStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}
