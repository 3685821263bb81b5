package seeding

import (
	"context"
	"fmt"

	"github.com/appetiteclub/comanda/pkg/catalog"
	"github.com/appetiteclub/comanda/pkg/order"
)

// DemoOrder describes one order placed by the demo seed.
type DemoOrder struct {
	Table int
	Items []int
	Notes string
	// LineNotes maps a line index to its note.
	LineNotes map[int]string
}

// DemoOrders is a lunch rush spread over a handful of tables. Repeated
// item ids on the same order collapse into one line.
var DemoOrders = []DemoOrder{
	{Table: 4, Items: []int{1, 1, 2}, LineNotes: map[int]string{0: "sin pepinillo"}},
	{Table: 7, Items: []int{9, 10, 10}},
	{Table: 2, Items: []int{3, 2, 11}, Notes: "alergia a frutos secos"},
	{Table: 12, Items: []int{5, 5, 5, 10, 10, 10}, Notes: "cumpleaños"},
	{Table: 4, Items: []int{14}},
}

// SeedOrders submits every demo order through a builder backed by store and
// returns the ids in submission order.
func SeedOrders(ctx context.Context, store order.PendingAppender, menu *catalog.Catalog, opts ...order.Option) ([]int64, error) {
	builder := order.NewBuilder(store, opts...)

	ids := make([]int64, 0, len(DemoOrders))
	for i, demo := range DemoOrders {
		if err := builder.SelectTable(demo.Table); err != nil {
			return ids, fmt.Errorf("demo order %d: %w", i, err)
		}
		for _, itemID := range demo.Items {
			item, err := menu.Find(itemID)
			if err != nil {
				return ids, fmt.Errorf("demo order %d item %d: %w", i, itemID, err)
			}
			if err := builder.AddItem(item); err != nil {
				return ids, fmt.Errorf("demo order %d: %w", i, err)
			}
		}
		for index, note := range demo.LineNotes {
			if err := builder.SetLineNote(index, note); err != nil {
				return ids, fmt.Errorf("demo order %d: %w", i, err)
			}
		}
		builder.SetNotes(demo.Notes)

		id, err := builder.Submit(ctx)
		if err != nil {
			return ids, fmt.Errorf("demo order %d: %w", i, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
