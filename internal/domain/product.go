package domain

// Product is the operational catalogue entry used to resolve line items to SKUs.
// Owned by the operational service; read-only for analytics.
type Product struct {
	ID       string
	SKU      string
	Name     string
	Category string
	Price    float64
}
