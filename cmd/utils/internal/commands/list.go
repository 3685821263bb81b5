package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/appetiteclub/comanda/pkg"
	"github.com/appetiteclub/comanda/pkg/order"
	"github.com/aquamarinepk/aqm"
)

// ListPending prints the pending collection in submission order.
func ListPending(ctx context.Context, config *aqm.Config, logger aqm.Logger, out io.Writer) error {
	st, err := openStores(ctx, config, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close(ctx)

	orders, err := st.Pending.List(ctx)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	writePending(out, orders)
	return nil
}

// ListTerminated prints the local terminated log for one day. The date
// option defaults to today.
func ListTerminated(ctx context.Context, config *aqm.Config, logger aqm.Logger, out io.Writer) error {
	date := pkg.StringOr(config, "date", time.Now().Format(order.DateLayout))
	if _, err := time.Parse(order.DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q: %w", date, err)
	}

	st, err := openStores(ctx, config, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close(ctx)

	records, err := st.Terminated.ListByDate(ctx, date)
	if err != nil {
		return fmt.Errorf("list terminated: %w", err)
	}
	writeTerminated(out, records)
	return nil
}

func writePending(out io.Writer, orders []order.Pending) {
	if len(orders) == 0 {
		fmt.Fprintln(out, "no pending orders")
		return
	}
	for _, o := range orders {
		fmt.Fprintf(out, "#%d  mesa %-3d %s  %s  %s\n", o.ID, o.Table, o.SubmittedTime, o.Total().StringFixed(2), o.Products())
		if o.Notes != "" {
			fmt.Fprintf(out, "      notas: %s\n", o.Notes)
		}
	}
}

func writeTerminated(out io.Writer, records []order.Terminated) {
	if len(records) == 0 {
		fmt.Fprintln(out, "no terminated orders")
		return
	}
	for _, r := range records {
		fmt.Fprintf(out, "%s  mesa %-3d %s  %s\n", r.Time, r.Table, r.Total, r.Products)
	}
}
