package books

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Revenues(context.Context) RevenueStore   { return &revenueStore{db: s.db} }
func (s *PGStore) Purchases(context.Context) PurchaseStore { return &purchaseStore{db: s.db} }

// Revenue store ------------------------------------------------------------
type revenueStore struct{ db *sql.DB }

func (s *revenueStore) Create(ctx context.Context, r *Revenue) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into revenues(id, entry_date, base20, tva20, base55, tva55, ht, ttc, created_at)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		r.ID, r.Date, r.Base20, r.TVA20, r.Base55, r.TVA55, r.HT, r.TTC, r.CreatedAt,
	)
	return err
}

func (s *revenueStore) List(ctx context.Context, month string) ([]Revenue, error) {
	query := `select id, to_char(entry_date, 'YYYY-MM-DD'), base20, tva20, base55, tva55, ht, ttc, created_at
		 from revenues`
	args := []any{}
	if month != "" {
		query += ` where to_char(entry_date, 'YYYY-MM') = $1`
		args = append(args, month)
	}
	query += ` order by entry_date desc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Revenue
	for rows.Next() {
		var r Revenue
		if err := rows.Scan(&r.ID, &r.Date, &r.Base20, &r.TVA20, &r.Base55, &r.TVA55,
			&r.HT, &r.TTC, &r.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

func (s *revenueStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from revenues`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Purchase store -----------------------------------------------------------
type purchaseStore struct{ db *sql.DB }

func (s *purchaseStore) Create(ctx context.Context, p *Purchase) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into purchases(id, entry_date, price_ht, tva, shipping_fee, ttc, created_at)
		 values($1,$2,$3,$4,$5,$6,$7)`,
		p.ID, p.Date, p.PriceHT, p.TVA, p.ShippingFee, p.TTC, p.CreatedAt,
	)
	return err
}

func (s *purchaseStore) List(ctx context.Context, month string) ([]Purchase, error) {
	query := `select id, to_char(entry_date, 'YYYY-MM-DD'), price_ht, tva, shipping_fee, ttc, created_at
		 from purchases`
	args := []any{}
	if month != "" {
		query += ` where to_char(entry_date, 'YYYY-MM') = $1`
		args = append(args, month)
	}
	query += ` order by entry_date desc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Purchase
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.Date, &p.PriceHT, &p.TVA, &p.ShippingFee,
			&p.TTC, &p.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (s *purchaseStore) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from purchases`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
