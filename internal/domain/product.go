package domain

import "github.com/shopspring/decimal"

// Product позиция меню, которую можно положить в корзину.
type Product struct {
	ID          string
	Name        string
	Description string
	ImageRef    string
	// Tag маркетинговая метка («Más Pedido», «Recomendado»), может быть пустой.
	Tag   string
	Price decimal.Decimal
}

// Validate проверяет обязательные поля товара.
func (p *Product) Validate() []error {
	var errs []error

	if p.ID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.Price.IsNegative() {
		errs = append(errs, ErrProductPriceInvalid)
	}

	return errs
}
