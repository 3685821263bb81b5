package catalog

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// DefaultTables is the number of tables on the floor when none is configured.
const DefaultTables = 20

var (
	ErrItemNotFound  = errors.New("catalog item not found")
	ErrDuplicateItem = errors.New("duplicate catalog item id")
)

// Item is an orderable product. Items are immutable once loaded.
type Item struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Icon      string          `json:"icon,omitempty"`
}

type Category struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	Items []Item `json:"items"`
}

// Catalog maps categories to their items. Item IDs are unique across
// categories.
type Catalog struct {
	categories []Category
	byID       map[int]Item
}

// New builds a catalog and checks that item IDs are unique.
func New(categories []Category) (*Catalog, error) {
	c := &Catalog{
		categories: make([]Category, 0, len(categories)),
		byID:       make(map[int]Item),
	}

	for _, cat := range categories {
		items := make([]Item, len(cat.Items))
		copy(items, cat.Items)
		for _, item := range items {
			if _, exists := c.byID[item.ID]; exists {
				return nil, fmt.Errorf("%w: %d", ErrDuplicateItem, item.ID)
			}
			if item.UnitPrice.IsNegative() {
				return nil, fmt.Errorf("item %d has negative price", item.ID)
			}
			c.byID[item.ID] = item
		}
		c.categories = append(c.categories, Category{Code: cat.Code, Label: cat.Label, Items: items})
	}

	return c, nil
}

func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

func (c *Catalog) Category(code string) (Category, bool) {
	for _, cat := range c.categories {
		if cat.Code == code {
			return cat, true
		}
	}
	return Category{}, false
}

// Find returns the item with the given id.
func (c *Catalog) Find(id int) (Item, error) {
	item, ok := c.byID[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	return item, nil
}

func (c *Catalog) Len() int {
	return len(c.byID)
}

type fileItem struct {
	ID    int    `yaml:"id"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
	Icon  string `yaml:"icon"`
}

type fileCategory struct {
	Code  string     `yaml:"code"`
	Label string     `yaml:"label"`
	Items []fileItem `yaml:"items"`
}

type file struct {
	Categories []fileCategory `yaml:"categories"`
}

// Load reads a catalog from a YAML file. An empty path returns Default().
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	categories := make([]Category, 0, len(f.Categories))
	for _, fc := range f.Categories {
		cat := Category{Code: fc.Code, Label: fc.Label}
		for _, fi := range fc.Items {
			price, err := decimal.NewFromString(fi.Price)
			if err != nil {
				return nil, fmt.Errorf("item %d price %q: %w", fi.ID, fi.Price, err)
			}
			cat.Items = append(cat.Items, Item{ID: fi.ID, Name: fi.Name, UnitPrice: price, Icon: fi.Icon})
		}
		categories = append(categories, cat)
	}

	return New(categories)
}
