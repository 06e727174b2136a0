package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/covid-dashboard/internal/domain"
)

// TableReshaper implements Reshaper using domain.Reshape and warns when a
// configured region is absent from the result.
type TableReshaper struct {
	regions []string
	logger  *slog.Logger
}

// NewReshaper creates a TableReshaper. regions lists the regions the
// dashboard expects to find; pass nil to skip the coverage check.
func NewReshaper(regions []string, logger *slog.Logger) *TableReshaper {
	return &TableReshaper{regions: regions, logger: logger}
}

func (t *TableReshaper) Reshape(ctx context.Context, raw domain.RawTable) (*domain.SeriesTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, err := domain.Reshape(raw)
	if err != nil {
		return nil, err
	}

	for _, region := range t.regions {
		if !table.Has(region) {
			t.logger.Warn("configured region missing from source", "source", raw.Source, "region", region)
		}
	}

	t.logger.Debug("table reshaped",
		"source", raw.Source,
		"rows", len(raw.Records),
		"dates", len(table.Dates),
		"regions", len(table.Regions()),
	)
	return table, nil
}
