package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

// Menu неизменяемый каталог товаров в порядке отображения.
type Menu struct {
	products []domain.Product
	byID     map[string]int
}

// New проверяет товары и строит каталог. Пустой id, пустое название,
// отрицательная цена и повтор id считаются ошибкой.
func New(products []domain.Product) (*Menu, error) {
	m := &Menu{
		products: make([]domain.Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}

	for i := range products {
		p := products[i]
		if errs := p.Validate(); len(errs) > 0 {
			return nil, fmt.Errorf("product #%d: %w", i, errors.Join(errs...))
		}
		if _, exists := m.byID[p.ID]; exists {
			return nil, fmt.Errorf("product %q: %w", p.ID, domain.ErrProductDuplicate)
		}
		m.byID[p.ID] = len(m.products)
		m.products = append(m.products, p)
	}

	return m, nil
}

// List возвращает копию списка товаров.
func (m *Menu) List() []domain.Product {
	out := make([]domain.Product, len(m.products))
	copy(out, m.products)
	return out
}

// Get возвращает товар по id.
func (m *Menu) Get(id string) (domain.Product, error) {
	idx, ok := m.byID[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return m.products[idx], nil
}

// Len возвращает число товаров в меню.
func (m *Menu) Len() int {
	return len(m.products)
}

var _ domain.Catalog = (*Menu)(nil)

type menuFile struct {
	Products []menuItem `yaml:"products"`
}

type menuItem struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Image       string `yaml:"image"`
	Tag         string `yaml:"tag"`
	Price       string `yaml:"price"`
}

// ParseYAML разбирает меню из YAML-документа вида:
//
//	products:
//	  - id: "1"
//	    name: Pollo a la Brasa
//	    price: "24.90"
func ParseYAML(data []byte) (*Menu, error) {
	var file menuFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse menu yaml: %w", err)
	}

	products := make([]domain.Product, 0, len(file.Products))
	for _, item := range file.Products {
		price, err := decimal.NewFromString(strings.TrimSpace(item.Price))
		if err != nil {
			return nil, fmt.Errorf("product %q: %w: %v", item.ID, domain.ErrProductPriceInvalid, err)
		}
		products = append(products, domain.Product{
			ID:          strings.TrimSpace(item.ID),
			Name:        strings.TrimSpace(item.Name),
			Description: strings.TrimSpace(item.Description),
			ImageRef:    strings.TrimSpace(item.Image),
			Tag:         strings.TrimSpace(item.Tag),
			Price:       price.Round(2),
		})
	}

	return New(products)
}

// LoadYAML читает меню из файла .yaml/.yml.
func LoadYAML(path string) (*Menu, error) {
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported menu file extension %q", ext)
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("read menu file: %w", err)
	}
	return ParseYAML(data)
}
