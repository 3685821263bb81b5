package pending

import (
	"context"
	"testing"
	"time"

	"github.com/appetiteclub/comanda/pkg/order"
)

func TestTerminatedLogAppendAndListByDate(t *testing.T) {
	ctx := context.Background()
	log := NewTerminatedLog(NewMemoryBucket(), "", nil)

	records := []order.Terminated{
		{OrderID: 1, Date: "2024-03-14", Table: 1, Status: "Terminado"},
		{OrderID: 2, Date: "2024-03-15", Table: 2, Status: "Terminado"},
		{OrderID: 3, Date: "2024-03-15", Table: 3, Status: "Terminado", CompletedAt: time.Date(2024, 3, 15, 13, 0, 0, 0, time.UTC)},
	}
	for _, rec := range records {
		if err := log.Append(ctx, rec); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	all, err := log.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(List()) = %d, want 3", len(all))
	}

	tests := []struct {
		name string
		date string
		want []int64
	}{
		{name: "twoRecords", date: "2024-03-15", want: []int64{2, 3}},
		{name: "oneRecord", date: "2024-03-14", want: []int64{1}},
		{name: "none", date: "2024-01-01", want: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := log.ListByDate(ctx, tt.date)
			if err != nil {
				t.Fatalf("ListByDate() error = %v", err)
			}
			gotIDs := make([]int64, 0, len(got))
			for _, rec := range got {
				gotIDs = append(gotIDs, rec.OrderID)
			}
			if !equalIDs(gotIDs, tt.want) {
				t.Errorf("ListByDate(%s) = %v, want %v", tt.date, gotIDs, tt.want)
			}
		})
	}
}

func TestTerminatedLogCorruptState(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBucket()
	b.Set(TerminatedKey, []byte("oops"))
	log := NewTerminatedLog(b, TerminatedKey, nil)

	records, err := log.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("len(records) = %d, want 0", len(records))
	}

	if err := log.Append(ctx, order.Terminated{OrderID: 9}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	records, _ = log.List(ctx)
	if len(records) != 1 {
		t.Errorf("len(records) = %d, want 1", len(records))
	}
}
