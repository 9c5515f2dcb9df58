package model

// Product is the catalog record exchanged with the storefront. Field names
// are part of the external contract.
type Product struct {
	ID           int64   `json:"id"`
	Category     string  `json:"category"`
	ProductName  string  `json:"product_name"`
	PriceLojista float64 `json:"price_lojista"`
	PriceClients float64 `json:"price_clients"`
	BoughtFor    float64 `json:"bought_for"`
	CreatedAt    string  `json:"created_at"`
}
