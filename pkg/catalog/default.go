package catalog

import "github.com/shopspring/decimal"

func item(id int, name, price, icon string) Item {
	return Item{ID: id, Name: name, UnitPrice: decimal.RequireFromString(price), Icon: icon}
}

// Default returns the house menu.
func Default() *Catalog {
	c, err := New([]Category{
		{
			Code:  "comidas-rapidas",
			Label: "Comidas Rápidas",
			Items: []Item{
				item(1, "Hamburguesa Clásica", "8.99", "🍔"),
				item(2, "Papas Fritas", "3.99", "🍟"),
				item(3, "Hot Dog", "4.99", "🌭"),
				item(4, "Nuggets de Pollo", "5.99", "🍗"),
				item(5, "Pizza Personal", "6.99", "🍕"),
			},
		},
		{
			Code:  "especiales",
			Label: "Especiales",
			Items: []Item{
				item(6, "Lomo Saltado", "12.99", "🥩"),
				item(7, "Ceviche Mixto", "14.99", "🐟"),
				item(8, "Pasta Alfredo", "10.99", "🍝"),
				item(9, "Ensalada César", "8.99", "🥗"),
			},
		},
		{
			Code:  "bebidas",
			Label: "Bebidas",
			Items: []Item{
				item(10, "Gaseosa 500ml", "2.99", "🥤"),
				item(11, "Jugo Natural", "3.99", "🧃"),
				item(12, "Agua Mineral", "1.99", "💧"),
				item(13, "Cerveza Artesanal", "4.99", "🍺"),
			},
		},
		{
			Code:  "heladeria",
			Label: "Heladería",
			Items: []Item{
				item(14, "Helado de Vainilla", "3.99", "🍦"),
				item(15, "Sundae de Chocolate", "4.99", "🍫"),
				item(16, "Malteada", "4.49", "🥤"),
			},
		},
	})
	if err != nil {
		panic(err)
	}
	return c
}
