package core

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OwnerRecord is the persistence projection of an owner account.
type OwnerRecord struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone"`
	CreatedAt    time.Time `json:"createdAt"`
}

// OwnerUpdate carries optional profile fields; nil means unchanged.
type OwnerUpdate struct {
	Name  *string
	Email *string
	Phone *string
}

// OwnerRepository defines persistence operations for the owner identity store.
type OwnerRepository interface {
	FindByEmail(ctx context.Context, email string) (*OwnerRecord, error)
	FindByID(ctx context.Context, id int64) (*OwnerRecord, error)
	Create(ctx context.Context, name, email, passwordHash, phone string) (*OwnerRecord, error)
	Update(ctx context.Context, id int64, upd OwnerUpdate) (*OwnerRecord, error)
}

// PgOwnerRepository implements OwnerRepository using pgxpool.
type PgOwnerRepository struct {
	db *pgxpool.Pool
}

func NewPgOwnerRepository(db *pgxpool.Pool) *PgOwnerRepository {
	return &PgOwnerRepository{db: db}
}

func (r *PgOwnerRepository) FindByEmail(ctx context.Context, email string) (*OwnerRecord, error) {
	const q = `SELECT id, name, email, password_hash, phone, created_at FROM owners WHERE email=$1`
	return r.scanOne(ctx, q, email)
}

func (r *PgOwnerRepository) FindByID(ctx context.Context, id int64) (*OwnerRecord, error) {
	const q = `SELECT id, name, email, password_hash, phone, created_at FROM owners WHERE id=$1`
	return r.scanOne(ctx, q, id)
}

func (r *PgOwnerRepository) Create(ctx context.Context, name, email, passwordHash, phone string) (*OwnerRecord, error) {
	const q = `INSERT INTO owners (name, email, password_hash, phone) VALUES ($1,$2,$3,$4)
RETURNING id, created_at`
	o := OwnerRecord{Name: name, Email: email, PasswordHash: passwordHash, Phone: phone}
	if err := r.db.QueryRow(ctx, q, name, email, passwordHash, phone).Scan(&o.ID, &o.CreatedAt); err != nil {
		return nil, mapPgError(err)
	}
	return &o, nil
}

func (r *PgOwnerRepository) Update(ctx context.Context, id int64, upd OwnerUpdate) (*OwnerRecord, error) {
	const q = `UPDATE owners
SET name=COALESCE($2, name), email=COALESCE($3, email), phone=COALESCE($4, phone)
WHERE id=$1
RETURNING id, name, email, password_hash, phone, created_at`
	var o OwnerRecord
	err := r.db.QueryRow(ctx, q, id, upd.Name, upd.Email, upd.Phone).
		Scan(&o.ID, &o.Name, &o.Email, &o.PasswordHash, &o.Phone, &o.CreatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &o, nil
}

func (r *PgOwnerRepository) scanOne(ctx context.Context, q string, arg any) (*OwnerRecord, error) {
	var o OwnerRecord
	err := r.db.QueryRow(ctx, q, arg).
		Scan(&o.ID, &o.Name, &o.Email, &o.PasswordHash, &o.Phone, &o.CreatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &o, nil
}

// mapPgError translates store-level errors into the service taxonomy:
// no rows -> ErrNotFound, unique violation -> ErrEmailTaken. Anything else
// passes through for the caller to log and surface as an internal failure.
func mapPgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrEmailTaken
	}
	return err
}
