package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/restaurant/internal/domain"
)

func defaultProducts() []domain.Product {
	return []domain.Product{
		{
			ID:          "1",
			Name:        "Pollo a la Brasa Clásico",
			Description: "1/4 de pollo con papas fritas doradas y ensalada fresca.",
			ImageRef:    "/img/image-1.jpg",
			Tag:         "Más Pedido",
			Price:       decimal.RequireFromString("24.90"),
		},
		{
			ID:          "2",
			Name:        "Parrillada Mixta",
			Description: "Chuleta, anticucho, chorizo y panceta con papas.",
			ImageRef:    "/img/image-11.jpeg",
			Tag:         "Recomendado",
			Price:       decimal.RequireFromString("45.00"),
		},
		{
			ID:          "3",
			Name:        "Alitas BBQ",
			Description: "12 alitas bañadas en nuestra salsa secreta BBQ.",
			ImageRef:    "/img/image-16.jpg",
			Price:       decimal.RequireFromString("28.50"),
		},
		{
			ID:          "4",
			Name:        "Lomo Saltado",
			Description: "Tradicional lomo fino salteado al wok con papas.",
			ImageRef:    "/img/image-12.jpeg",
			Price:       decimal.RequireFromString("38.00"),
		},
		{
			ID:          "5",
			Name:        "Anticuchos de Corazón",
			Description: "3 palos de puro corazón con papas doradas y choclo.",
			ImageRef:    "/img/image-20.jpg",
			Tag:         "Clásico",
			Price:       decimal.RequireFromString("22.00"),
		},
		{
			ID:          "6",
			Name:        "Chaufa de Pollo",
			Description: "Arroz chaufa al estilo oriental con trozos de pollo.",
			ImageRef:    "/img/image-6.jpg",
			Price:       decimal.RequireFromString("20.00"),
		},
	}
}

// DefaultMenu возвращает встроенное меню ресторана.
func DefaultMenu() *Menu {
	m, err := New(defaultProducts())
	if err != nil {
		panic("catalog: invalid default menu: " + err.Error())
	}
	return m
}
