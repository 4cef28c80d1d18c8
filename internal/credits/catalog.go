// Package credits applies purchase events to the usage ledger. Purchases
// are simulated: a fixed catalog, a processing delay, then an
// administrative limit increase. A real payment gateway can replace the
// Simulator without touching the ledger contract.
package credits

import "storyforge/internal/domain"

// Package is one buyable credit bundle.
type Package struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Images     int    `json:"images"`
	Videos     int    `json:"videos"`
	PriceCents int    `json:"price_cents"`
	Currency   string `json:"currency"`
}

// Catalog is the fixed set of packages on offer. Order is display order.
func Catalog() []Package {
	return []Package{
		{ID: "starter", Name: "Starter", Images: 25, Videos: 5, PriceCents: 499, Currency: "USD"},
		{ID: "creator", Name: "Creator", Images: 100, Videos: 20, PriceCents: 1499, Currency: "USD"},
		{ID: "studio", Name: "Studio", Images: 500, Videos: 100, PriceCents: 4999, Currency: "USD"},
	}
}

// FindPackage returns the package with the given id.
func FindPackage(id string) (Package, error) {
	for _, pkg := range Catalog() {
		if pkg.ID == id {
			return pkg, nil
		}
	}
	return Package{}, domain.ErrNotFound
}
