package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/atlasdir/placepipe/internal/listing"
)

// pgxPool is the slice of pgxpool.Pool the repository needs. Tests
// substitute a pgxmock pool.
type pgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var recordColumns = []string{
	"id", "slug", "city_id", "country_code", "category", "name",
	"address", "phone", "website", "lat", "lng",
	"rating", "review_count", "place_ref", "dataset_ref",
	"content", "flags", "source", "run_id", "created_at", "updated_at",
}

// Postgres stores business records in a businesses table with a jsonb
// content column and a text[] flags column.
type Postgres struct {
	pool   pgxPool
	logger *zap.Logger
}

// NewPostgres builds a repository over a live connection pool.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *Postgres {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Postgres{pool: pool, logger: logger}
}

func (p *Postgres) FindBySlugAndCity(ctx context.Context, slug, cityID string) (*listing.BusinessRecord, error) {
	query, args, err := psql.Select(recordColumns...).
		From("businesses").
		Where(sq.Eq{"slug": slug, "city_id": cityID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rec, err := scanRecord(p.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find record %s/%s: %w", cityID, slug, err)
	}
	return rec, nil
}

func (p *Postgres) Insert(ctx context.Context, rec *listing.BusinessRecord) (int64, error) {
	contentJSON, err := json.Marshal(rec.Content)
	if err != nil {
		return 0, fmt.Errorf("marshal content: %w", err)
	}

	query, args, err := psql.Insert("businesses").
		Columns("slug", "city_id", "country_code", "category", "name",
			"address", "phone", "website", "lat", "lng",
			"rating", "review_count", "place_ref", "dataset_ref",
			"content", "flags", "source", "run_id").
		Values(rec.Slug, rec.CityID, rec.CountryCode, rec.Category, rec.Name,
			rec.Address, rec.Phone, rec.Website, rec.Lat, rec.Lng,
			rec.Rating, rec.ReviewCount, rec.PlaceRef, rec.DatasetRef,
			contentJSON, rec.Flags, rec.Source, rec.RunID).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}

	var id int64
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert record %s: %w", rec.Slug, err)
	}
	return id, nil
}

const updateFieldsSQL = `UPDATE businesses SET
	address = COALESCE($1, address),
	phone = COALESCE($2, phone),
	website = COALESCE($3, website),
	rating = COALESCE($4, rating),
	review_count = COALESCE($5, review_count),
	dataset_ref = COALESCE($6, dataset_ref),
	updated_at = now()
WHERE id = $7`

func (p *Postgres) UpdateFields(ctx context.Context, id int64, upd listing.FieldUpdate) error {
	if upd.Empty() {
		return nil
	}
	tag, err := p.pool.Exec(ctx, updateFieldsSQL,
		upd.Address, upd.Phone, upd.Website, upd.Rating, upd.ReviewCount, upd.DatasetRef, id)
	if err != nil {
		return fmt.Errorf("update record %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MergeContent reads the stored content and flags under a row lock, merges
// in memory, and writes the result back in the same transaction.
func (p *Postgres) MergeContent(ctx context.Context, id int64, content listing.Content, flags []string, lim listing.ReviewLimits) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		storedJSON  []byte
		storedFlags []string
	)
	row := tx.QueryRow(ctx, `SELECT content, flags FROM businesses WHERE id = $1 FOR UPDATE`, id)
	if err := row.Scan(&storedJSON, &storedFlags); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("read content for record %d: %w", id, err)
	}

	var stored listing.Content
	if len(storedJSON) > 0 {
		if err := json.Unmarshal(storedJSON, &stored); err != nil {
			return fmt.Errorf("decode stored content for record %d: %w", id, err)
		}
	}

	merged := listing.MergeContent(stored, content, lim)
	mergedJSON, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshal merged content: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE businesses SET content = $1, flags = $2, updated_at = now() WHERE id = $3`,
		mergedJSON, listing.UnionFlags(storedFlags, flags), id)
	if err != nil {
		return fmt.Errorf("write merged content for record %d: %w", id, err)
	}
	return tx.Commit(ctx)
}

func (p *Postgres) SelectIncomplete(ctx context.Context, f Filter, cursor int64, limit int) ([]listing.BusinessRecord, error) {
	qb := psql.Select(recordColumns...).
		From("businesses").
		Where(sq.Eq{"country_code": f.Country}).
		Where(sq.Gt{"id": cursor}).
		Limit(uint64(limit))
	if f.MissingDataset {
		qb = qb.Where(sq.Expr("NOT (flags @> ARRAY[?]::text[])", listing.FlagDatasetEnriched))
	}
	if f.MissingContent {
		qb = qb.Where(sq.Expr("coalesce(length(content->>'description'), 0) < ?", f.MinDescChars))
	}
	if f.PreferPlaceRef {
		qb = qb.OrderBy("(place_ref <> '') DESC", "id ASC")
	} else {
		qb = qb.OrderBy("id ASC")
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build incomplete select: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select incomplete: %w", err)
	}
	defer rows.Close()

	var out []listing.BusinessRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan incomplete row: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate incomplete rows: %w", err)
	}
	return out, nil
}

const countIncompleteSQL = `SELECT
	count(*),
	count(*) FILTER (WHERE phone IS NULL),
	count(*) FILTER (WHERE website IS NULL),
	count(*) FILTER (WHERE coalesce(length(content->>'description'), 0) < $2)
FROM businesses WHERE country_code = $1`

func (p *Postgres) CountIncomplete(ctx context.Context, country string, minDescChars int) (Incomplete, error) {
	var inc Incomplete
	row := p.pool.QueryRow(ctx, countIncompleteSQL, country, minDescChars)
	if err := row.Scan(&inc.Total, &inc.MissingPhone, &inc.MissingWebsite, &inc.MissingContent); err != nil {
		return Incomplete{}, fmt.Errorf("count incomplete for %s: %w", country, err)
	}
	return inc, nil
}

func scanRecord(row pgx.Row) (*listing.BusinessRecord, error) {
	var (
		rec         listing.BusinessRecord
		contentJSON []byte
	)
	err := row.Scan(
		&rec.ID, &rec.Slug, &rec.CityID, &rec.CountryCode, &rec.Category, &rec.Name,
		&rec.Address, &rec.Phone, &rec.Website, &rec.Lat, &rec.Lng,
		&rec.Rating, &rec.ReviewCount, &rec.PlaceRef, &rec.DatasetRef,
		&contentJSON, &rec.Flags, &rec.Source, &rec.RunID, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(contentJSON) > 0 {
		if err := json.Unmarshal(contentJSON, &rec.Content); err != nil {
			return nil, fmt.Errorf("decode content: %w", err)
		}
	}
	return &rec, nil
}
