package etl

import (
	"context"
	"fmt"

	"github.com/BartekS5/dailyetl/internal/config"
	"github.com/BartekS5/dailyetl/pkg/database"
	"github.com/BartekS5/dailyetl/pkg/models"
	"github.com/BartekS5/dailyetl/pkg/utils"
)

// SQLExtractor runs the configured full-table scan and materializes the
// whole result set in memory. It opens its own connection on every call and
// closes it before returning.
type SQLExtractor struct {
	Source config.SourceConfig
}

func NewSQLExtractor(src config.SourceConfig) *SQLExtractor {
	return &SQLExtractor{Source: src}
}

func (s *SQLExtractor) Extract(ctx context.Context) (*models.Table, error) {
	db, err := database.ConnectSQL(ctx, s.Source.Driver, s.Source.DataSourceName(), s.Source.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceConnection, err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, s.Source.Query())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: reading columns: %w", ErrQuery, err)
	}

	table := &models.Table{Header: cols}
	for rows.Next() {
		columns := make([]interface{}, len(cols))
		columnPointers := make([]interface{}, len(cols))
		for i := range columns {
			columnPointers[i] = &columns[i]
		}
		if err := rows.Scan(columnPointers...); err != nil {
			return nil, fmt.Errorf("%w: scanning row %d: %w", ErrQuery, len(table.Rows)+1, err)
		}

		row := make(models.Row, len(cols))
		for i, val := range columns {
			row[i] = utils.NormalizeScanValue(val)
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQuery, err)
	}
	return table, nil
}
