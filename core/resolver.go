package core

import (
	"context"
	"errors"
	"fmt"
)

// IdentityResolver looks up a principal across the two disjoint identity
// stores. The owner store is always probed before the member store; this
// ordering is a contract, not an implementation accident. Emails are unique
// within each store but the stores are not cross-checked, so an email present
// in both resolves as an owner.
type IdentityResolver struct {
	owners  OwnerRepository
	members MemberRepository
}

func NewIdentityResolver(owners OwnerRepository, members MemberRepository) *IdentityResolver {
	return &IdentityResolver{owners: owners, members: members}
}

// ResolveByEmail resolves an email to a principal, owner store first.
// Soft-deleted members are excluded by the member store itself.
func (r *IdentityResolver) ResolveByEmail(ctx context.Context, email string) (Principal, error) {
	p, _, err := r.resolveWithHash(ctx, email)
	return p, err
}

// ResolveByID resolves a principal id, owner store first.
func (r *IdentityResolver) ResolveByID(ctx context.Context, id int64) (Principal, error) {
	owner, err := r.owners.FindByID(ctx, id)
	if err == nil && owner != nil {
		return ownerPrincipal(owner), nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Principal{}, fmt.Errorf("resolve id %d: %w", id, err)
	}

	member, err := r.members.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrNotFound
		}
		return Principal{}, fmt.Errorf("resolve id %d: %w", id, err)
	}
	return memberPrincipal(member), nil
}

// resolveWithHash also returns the stored password hash for login verification
// so the service does not need a second lookup.
func (r *IdentityResolver) resolveWithHash(ctx context.Context, email string) (Principal, string, error) {
	owner, err := r.owners.FindByEmail(ctx, email)
	if err == nil && owner != nil {
		return ownerPrincipal(owner), owner.PasswordHash, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Principal{}, "", fmt.Errorf("resolve email: %w", err)
	}

	member, err := r.members.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, "", ErrNotFound
		}
		return Principal{}, "", fmt.Errorf("resolve email: %w", err)
	}
	return memberPrincipal(member), member.PasswordHash, nil
}

func ownerPrincipal(o *OwnerRecord) Principal {
	return Principal{
		ID:    o.ID,
		Name:  o.Name,
		Email: o.Email,
		Phone: o.Phone,
		Role:  RoleOwner,
	}
}

func memberPrincipal(m *MemberRecord) Principal {
	expiry := m.ExpiryDate
	return Principal{
		ID:         m.ID,
		Name:       m.Name,
		Email:      m.Email,
		Phone:      m.Phone,
		Role:       RoleMember,
		ExpiryDate: &expiry,
	}
}
