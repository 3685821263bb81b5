package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/appetiteclub/comanda/pkg/catalog"
	"github.com/appetiteclub/comanda/pkg/enums/orderstatus"
	"github.com/shopspring/decimal"
)

const (
	TimeLayout = "15:04:05"
	DateLayout = "2006-01-02"
)

var (
	ErrNoTable      = errors.New("no table selected")
	ErrEmptyOrder   = errors.New("order has no lines")
	ErrInvalidTable = errors.New("invalid table number")
	ErrLineIndex    = errors.New("line index out of range")
	ErrInvalidOrder = errors.New("invalid pending order")
)

// Line is a catalog item with a quantity. An order holds at most one line
// per item id.
type Line struct {
	Item     catalog.Item `json:"item"`
	Quantity int          `json:"quantity"`
	Note     string       `json:"note,omitempty"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Item.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Total sums unit price times quantity over lines.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// Products renders lines as "2x Name, 1x Name".
func Products(lines []Line) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%dx %s", l.Quantity, l.Item.Name))
	}
	return strings.Join(parts, ", ")
}

// Pending is a submitted order awaiting the kitchen. Once created it is
// never mutated; it leaves the store by completion or cancellation.
type Pending struct {
	ID            int64     `json:"id"`
	Table         int       `json:"table"`
	Lines         []Line    `json:"lines"`
	Notes         string    `json:"notes,omitempty"`
	SubmittedTime string    `json:"submitted_time"`
	SubmittedDate string    `json:"submitted_date"`
	SubmittedAt   time.Time `json:"submitted_at"`
	Status        string    `json:"status"`
}

func (p Pending) Total() decimal.Decimal {
	return Total(p.Lines)
}

func (p Pending) Products() string {
	return Products(p.Lines)
}

// Validate reports whether a decoded entry is usable.
func (p Pending) Validate() error {
	if p.ID <= 0 {
		return fmt.Errorf("%w: id %d", ErrInvalidOrder, p.ID)
	}
	if p.Table < 1 {
		return fmt.Errorf("%w: table %d", ErrInvalidOrder, p.Table)
	}
	if len(p.Lines) == 0 {
		return fmt.Errorf("%w: no lines", ErrInvalidOrder)
	}
	for _, l := range p.Lines {
		if l.Quantity < 1 {
			return fmt.Errorf("%w: quantity %d for item %d", ErrInvalidOrder, l.Quantity, l.Item.ID)
		}
	}
	return nil
}

// Terminated is the flat record written to the completion log.
type Terminated struct {
	OrderID     int64     `json:"order_id" bson:"order_id"`
	Date        string    `json:"date" bson:"date"`
	Time        string    `json:"time" bson:"time"`
	Table       int       `json:"table" bson:"table"`
	Products    string    `json:"products" bson:"products"`
	Notes       string    `json:"notes" bson:"notes"`
	Status      string    `json:"status" bson:"status"`
	Total       string    `json:"total" bson:"total"`
	CompletedAt time.Time `json:"completed_at" bson:"completed_at"`
}

// NewTerminated flattens a pending order completed at the given time.
func NewTerminated(p Pending, completedAt time.Time) Terminated {
	return Terminated{
		OrderID:     p.ID,
		Date:        p.SubmittedDate,
		Time:        p.SubmittedTime,
		Table:       p.Table,
		Products:    p.Products(),
		Notes:       p.Notes,
		Status:      orderstatus.SheetLabel,
		Total:       p.Total().StringFixed(2),
		CompletedAt: completedAt.UTC(),
	}
}

// Headers names the columns of Row.
var Headers = []string{"Fecha", "Hora", "Mesa", "Productos", "Observaciones", "Estado", "Timestamp"}

// Row returns the record as one append-log row.
func (t Terminated) Row() []interface{} {
	return []interface{}{
		t.Date,
		t.Time,
		t.Table,
		t.Products,
		t.Notes,
		t.Status,
		t.CompletedAt.Format(time.RFC3339),
	}
}
