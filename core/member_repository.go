package core

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MemberRecord is the persistence projection of a member account.
// DeletedAt is set on soft delete; deleted members are excluded from every
// lookup so a stale token for a deleted member stops resolving.
type MemberRecord struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Phone        string     `json:"phone"`
	OwnerID      int64      `json:"ownerId"`
	ExpiryDate   time.Time  `json:"expiryDate"`
	CreatedAt    time.Time  `json:"createdAt"`
	DeletedAt    *time.Time `json:"-"`
}

// MemberListItem is a projection for listings (no password hash).
type MemberListItem struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	ExpiryDate time.Time `json:"expiryDate"`
	CreatedAt  time.Time `json:"createdAt"`
}

// MemberUpdate carries optional profile fields; nil means unchanged.
type MemberUpdate struct {
	Name  *string
	Email *string
	Phone *string
}

// MemberCounts aggregates membership totals for an owner.
type MemberCounts struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Expired int `json:"expired"`
}

// MemberRepository defines persistence operations for the member identity store.
// All lookups exclude soft-deleted rows. Owner-scoped operations return
// ErrNotFound when the member does not belong to the given owner.
type MemberRepository interface {
	FindByEmail(ctx context.Context, email string) (*MemberRecord, error)
	FindByID(ctx context.Context, id int64) (*MemberRecord, error)
	FindOwned(ctx context.Context, ownerID, memberID int64) (*MemberRecord, error)
	Create(ctx context.Context, name, email, passwordHash, phone string, ownerID int64, expiry time.Time) (*MemberRecord, error)
	Update(ctx context.Context, ownerID, memberID int64, upd MemberUpdate) (*MemberRecord, error)
	SoftDelete(ctx context.Context, ownerID, memberID int64) error
	Renew(ctx context.Context, ownerID, memberID int64, months int) (*MemberRecord, error)
	List(ctx context.Context, ownerID int64, status string, page, perPage int) ([]MemberListItem, int, error)
	Counts(ctx context.Context, ownerID int64) (MemberCounts, error)
}

// PgMemberRepository implements MemberRepository using pgxpool.
type PgMemberRepository struct {
	db *pgxpool.Pool
}

func NewPgMemberRepository(db *pgxpool.Pool) *PgMemberRepository {
	return &PgMemberRepository{db: db}
}

const memberColumns = `id, name, email, password_hash, phone, owner_id, expiry_date, created_at, deleted_at`

func (r *PgMemberRepository) FindByEmail(ctx context.Context, email string) (*MemberRecord, error) {
	q := `SELECT ` + memberColumns + ` FROM members WHERE email=$1 AND deleted_at IS NULL`
	return r.scanOne(ctx, q, email)
}

func (r *PgMemberRepository) FindByID(ctx context.Context, id int64) (*MemberRecord, error) {
	q := `SELECT ` + memberColumns + ` FROM members WHERE id=$1 AND deleted_at IS NULL`
	return r.scanOne(ctx, q, id)
}

func (r *PgMemberRepository) FindOwned(ctx context.Context, ownerID, memberID int64) (*MemberRecord, error) {
	q := `SELECT ` + memberColumns + ` FROM members WHERE id=$1 AND owner_id=$2 AND deleted_at IS NULL`
	return r.scanOne(ctx, q, memberID, ownerID)
}

func (r *PgMemberRepository) Create(ctx context.Context, name, email, passwordHash, phone string, ownerID int64, expiry time.Time) (*MemberRecord, error) {
	const q = `INSERT INTO members (name, email, password_hash, phone, owner_id, expiry_date)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id, created_at`
	m := MemberRecord{
		Name: name, Email: email, PasswordHash: passwordHash,
		Phone: phone, OwnerID: ownerID, ExpiryDate: expiry,
	}
	if err := r.db.QueryRow(ctx, q, name, email, passwordHash, phone, ownerID, expiry).Scan(&m.ID, &m.CreatedAt); err != nil {
		return nil, mapPgError(err)
	}
	return &m, nil
}

func (r *PgMemberRepository) Update(ctx context.Context, ownerID, memberID int64, upd MemberUpdate) (*MemberRecord, error) {
	q := `UPDATE members
SET name=COALESCE($3, name), email=COALESCE($4, email), phone=COALESCE($5, phone)
WHERE id=$1 AND owner_id=$2 AND deleted_at IS NULL
RETURNING ` + memberColumns
	var m MemberRecord
	err := r.db.QueryRow(ctx, q, memberID, ownerID, upd.Name, upd.Email, upd.Phone).
		Scan(&m.ID, &m.Name, &m.Email, &m.PasswordHash, &m.Phone, &m.OwnerID, &m.ExpiryDate, &m.CreatedAt, &m.DeletedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &m, nil
}

// SoftDelete marks the member deleted; attendance and order history keep
// referencing the row.
func (r *PgMemberRepository) SoftDelete(ctx context.Context, ownerID, memberID int64) error {
	const q = `UPDATE members SET deleted_at=now() WHERE id=$1 AND owner_id=$2 AND deleted_at IS NULL`
	tag, err := r.db.Exec(ctx, q, memberID, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Renew extends the membership by the given number of months, counting from
// the current expiry when it is still in the future, otherwise from now.
func (r *PgMemberRepository) Renew(ctx context.Context, ownerID, memberID int64, months int) (*MemberRecord, error) {
	if months < 1 {
		return nil, errors.New("months must be >= 1")
	}
	q := `UPDATE members
SET expiry_date = GREATEST(expiry_date, now()) + make_interval(months => $3)
WHERE id=$1 AND owner_id=$2 AND deleted_at IS NULL
RETURNING ` + memberColumns
	var m MemberRecord
	err := r.db.QueryRow(ctx, q, memberID, ownerID, months).
		Scan(&m.ID, &m.Name, &m.Email, &m.PasswordHash, &m.Phone, &m.OwnerID, &m.ExpiryDate, &m.CreatedAt, &m.DeletedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &m, nil
}

// List returns the owner's members, optionally filtered by membership status
// ("active" or "expired"), newest first.
func (r *PgMemberRepository) List(ctx context.Context, ownerID int64, status string, page, perPage int) ([]MemberListItem, int, error) {
	if page <= 0 || perPage <= 0 {
		return nil, 0, errors.New("invalid pagination")
	}

	filter := `owner_id=$1 AND deleted_at IS NULL`
	switch status {
	case "active":
		filter += ` AND expiry_date >= now()`
	case "expired":
		filter += ` AND expiry_date < now()`
	case "":
	default:
		return nil, 0, errors.New("invalid status filter")
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM members WHERE `+filter, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
SELECT id, name, email, phone, expiry_date, created_at
FROM members
WHERE `+filter+`
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`, ownerID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]MemberListItem, 0, perPage)
	for rows.Next() {
		var m MemberListItem
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.ExpiryDate, &m.CreatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *PgMemberRepository) Counts(ctx context.Context, ownerID int64) (MemberCounts, error) {
	const q = `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE expiry_date >= now()),
       COUNT(*) FILTER (WHERE expiry_date < now())
FROM members
WHERE owner_id=$1 AND deleted_at IS NULL`
	var c MemberCounts
	if err := r.db.QueryRow(ctx, q, ownerID).Scan(&c.Total, &c.Active, &c.Expired); err != nil {
		return MemberCounts{}, err
	}
	return c, nil
}

func (r *PgMemberRepository) scanOne(ctx context.Context, q string, args ...any) (*MemberRecord, error) {
	var m MemberRecord
	err := r.db.QueryRow(ctx, q, args...).
		Scan(&m.ID, &m.Name, &m.Email, &m.PasswordHash, &m.Phone, &m.OwnerID, &m.ExpiryDate, &m.CreatedAt, &m.DeletedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return &m, nil
}
