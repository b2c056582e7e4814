package store

import (
	"context"

	"github.com/meetsmatch/notifyengine/internal/apperr"
)

// DataSource executes the arbitrary, operator-authored SQL behind a
// SqlRecipientList or NotificationQuery and returns generic rows keyed by
// column name, matching the {{ query1.0.column }} template context shape
// (spec §1 names this collaborator external; this is its concrete form).
type DataSource struct {
	db *DB
}

func NewDataSource(db *DB) *DataSource { return &DataSource{db: db} }

// Execute runs query with the named params bound positionally in the order
// requiredParameters lists them (spec §6: SqlRecipientList/NotificationQuery
// carry a required_parameters list that fixes binding order).
func (d *DataSource) Execute(ctx context.Context, query string, requiredParameters []string, params map[string]interface{}) ([]map[string]interface{}, error) {
	args := make([]interface{}, len(requiredParameters))
	for i, name := range requiredParameters {
		args[i] = params[name]
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.NewDatabaseError("execute data-source query", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, apperr.NewDatabaseError("read data-source columns", err)
	}

	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, apperr.NewDatabaseError("scan data-source row", err)
		}
		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			row[col] = normalizeScanValue(values[i])
		}
		out = append(out, row)
	}
	return out, apperr.WrapIfErr(apperr.TypeDatabase, "iterate data-source rows", rows.Err())
}

// normalizeScanValue coerces driver-native byte slices to strings so the
// template renderer sees plain JSON-ish scalars, matching the teacher's
// pattern of never leaking []byte out of the database layer.
func normalizeScanValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
