package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints an asset's most recent observations.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	if opts.Asset == "" {
		return errors.New("--asset must be provided")
	}

	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	points, err := store.ListHistory(ctx, opts.Asset, time.Time{}, time.Now().UTC().Add(time.Second))
	if err != nil {
		return err
	}
	if len(points) == 0 {
		fmt.Fprintln(os.Stdout, "no observations found")
		return nil
	}

	if opts.Limit > 0 && len(points) > opts.Limit {
		points = points[len(points)-opts.Limit:]
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tAsset\tPrice")

	for _, point := range points {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\n",
			point.ObservedAt.UTC().Format(time.RFC3339),
			point.AssetID,
			point.Price.StringFixed(2),
		)
	}

	writer.Flush()
	return nil
}
