package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"wastemetrics/internal/domain"
	"wastemetrics/internal/ports"
)

// WasteRepository

func (db *DB) ListWasteStreams(ctx context.Context, minPeriod int) ([]domain.WasteStreamRecord, error) {
	rows, err := db.SQL.QueryContext(ctx, `
		SELECT id, company_id, reporting_period, metric, value, unit, treatment_method, hazardousness
		FROM waste_streams
		WHERE value IS NOT NULL AND reporting_period >= $1
		ORDER BY reporting_period, company_id
	`, minPeriod)
	if err != nil {
		return nil, fmt.Errorf("list waste streams: %w", err)
	}
	defer rows.Close()

	var out []domain.WasteStreamRecord
	for rows.Next() {
		var r domain.WasteStreamRecord
		var value sql.NullFloat64
		if err := rows.Scan(&r.ID, &r.CompanyID, &r.ReportingPeriod, &r.Metric, &value, &r.Unit, &r.TreatmentMethod, &r.Hazardousness); err != nil {
			return nil, fmt.Errorf("scan waste stream: %w", err)
		}
		if value.Valid {
			r.Value = &value.Float64
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list waste streams: %w", err)
	}
	return out, nil
}

func (db *DB) ListCompanyMetrics(ctx context.Context, minPeriod int) ([]domain.CompanyMetric, error) {
	rows, err := db.SQL.QueryContext(ctx, `
		SELECT company_id, reporting_period, metric_name, value
		FROM company_metrics
		WHERE value IS NOT NULL AND reporting_period >= $1
		ORDER BY reporting_period, company_id
	`, minPeriod)
	if err != nil {
		return nil, fmt.Errorf("list company metrics: %w", err)
	}
	defer rows.Close()

	var out []domain.CompanyMetric
	for rows.Next() {
		var m domain.CompanyMetric
		var value sql.NullFloat64
		if err := rows.Scan(&m.CompanyID, &m.ReportingPeriod, &m.MetricName, &value); err != nil {
			return nil, fmt.Errorf("scan company metric: %w", err)
		}
		if value.Valid {
			m.Value = &value.Float64
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list company metrics: %w", err)
	}
	return out, nil
}

// ListRecoveryRates returns the recovery rates companies reported directly.
// Directory fields are left for the caller to join.
func (db *DB) ListRecoveryRates(ctx context.Context, minPeriod int) ([]domain.CompanyMetricSnapshot, error) {
	rows, err := db.SQL.QueryContext(ctx, `
		SELECT company_id, reporting_period, value
		FROM company_metrics
		WHERE value IS NOT NULL AND reporting_period >= $1
		  AND metric_name ILIKE '%recovery rate%'
		ORDER BY company_id, reporting_period
	`, minPeriod)
	if err != nil {
		return nil, fmt.Errorf("list recovery rates: %w", err)
	}
	defer rows.Close()

	var out []domain.CompanyMetricSnapshot
	for rows.Next() {
		var s domain.CompanyMetricSnapshot
		if err := rows.Scan(&s.CompanyID, &s.ReportingPeriod, &s.RecoveryRate); err != nil {
			return nil, fmt.Errorf("scan recovery rate: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list recovery rates: %w", err)
	}
	return out, nil
}

// InsertWasteStreams stores records in one transaction and returns how many
// were written.
func (db *DB) InsertWasteStreams(ctx context.Context, importID string, records []domain.WasteStreamRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	var importRef sql.NullString
	if importID != "" {
		importRef = sql.NullString{String: importID, Valid: true}
	}
	n := 0
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO waste_streams (company_id, reporting_period, metric, value, unit, treatment_method, hazardousness, import_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, r := range records {
			var value sql.NullFloat64
			if r.Value != nil {
				value = sql.NullFloat64{Float64: *r.Value, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, r.CompanyID, r.ReportingPeriod, r.Metric, value, r.Unit, r.TreatmentMethod, r.Hazardousness, importRef); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("insert waste streams: %w", err)
	}
	return n, nil
}

// CompanyRepository

const companyColumns = `id, name, sector, country, website, latitude, longitude`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (domain.Company, error) {
	var c domain.Company
	var lat, lon sql.NullFloat64
	if err := row.Scan(&c.ID, &c.Name, &c.Sector, &c.Country, &c.Website, &lat, &lon); err != nil {
		return c, err
	}
	if lat.Valid {
		c.Latitude = &lat.Float64
	}
	if lon.Valid {
		c.Longitude = &lon.Float64
	}
	return c, nil
}

func (db *DB) ListCompanies(ctx context.Context, f ports.CompanyFilter) ([]domain.Company, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Sector != "" {
		add("sector = $%d", f.Sector)
	}
	if f.Country != "" {
		add("country = $%d", f.Country)
	}
	if f.Search != "" {
		add("name ILIKE $%d", "%"+f.Search+"%")
	}

	q := `SELECT ` + companyColumns + ` FROM companies`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY name, id`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := db.SQL.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	out := []domain.Company{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	return out, nil
}

func (db *DB) GetCompany(ctx context.Context, id string) (domain.Company, error) {
	c, err := scanCompany(db.SQL.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return c, ports.ErrNotFound
	}
	if err != nil {
		return c, fmt.Errorf("get company %s: %w", id, err)
	}
	return c, nil
}

func (db *DB) UpsertCompany(ctx context.Context, c domain.Company) (domain.Company, error) {
	var lat, lon sql.NullFloat64
	if c.Latitude != nil {
		lat = sql.NullFloat64{Float64: *c.Latitude, Valid: true}
	}
	if c.Longitude != nil {
		lon = sql.NullFloat64{Float64: *c.Longitude, Valid: true}
	}
	out, err := scanCompany(db.SQL.QueryRowContext(ctx, `
		INSERT INTO companies (id, name, sector, country, website, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			sector = EXCLUDED.sector,
			country = EXCLUDED.country,
			website = EXCLUDED.website,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			updated_at = now()
		RETURNING `+companyColumns,
		c.ID, c.Name, c.Sector, c.Country, c.Website, lat, lon))
	if err != nil {
		return out, fmt.Errorf("upsert company %s: %w", c.ID, err)
	}
	return out, nil
}

// Lookup implements ports.CompanyDirectory.
func (db *DB) Lookup(ctx context.Context, ids []string) (map[string]domain.Company, error) {
	out := make(map[string]domain.Company, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := db.SQL.QueryContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = ANY($1::text[])`, textArray(ids))
	if err != nil {
		return nil, fmt.Errorf("lookup companies: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		out[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lookup companies: %w", err)
	}
	return out, nil
}

// textArray renders ids as a Postgres text[] literal.
func textArray(ids []string) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(id))
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}
