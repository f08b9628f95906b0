package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Role determines authorization scope for a principal.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleMember Role = "MEMBER"
)

// Default validity window for newly created members.
const DefaultMembershipDays = 30

var (
	// ErrInvalidCredentials is returned for unknown email or wrong password.
	// Callers must surface the same message for both so neither is disclosed.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when a registration email already exists in the target store.
	ErrEmailTaken = errors.New("email already registered")
	// ErrMembershipExpired is returned when credentials are correct but the
	// member's expiry date has passed. Distinct from ErrInvalidCredentials.
	ErrMembershipExpired = errors.New("membership has expired")
	// ErrNotFound is returned when a record does not resolve in any store.
	ErrNotFound = errors.New("not found")
)

// Principal is an authenticated identity with its role attached.
// ExpiryDate is set only for members.
type Principal struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone"`
	Role       Role       `json:"role"`
	ExpiryDate *time.Time `json:"expiryDate,omitempty"`
}

// MembershipActive reports whether a member with the given expiry date still
// has access at instant now. Access is valid up to and including the expiry.
func MembershipActive(expiry, now time.Time) bool {
	return !now.After(expiry)
}

// LoginResult is the wire shape returned on successful login.
type LoginResult struct {
	AccessToken string    `json:"accessToken"`
	ExpiresIn   string    `json:"expiresIn"`
	Role        Role      `json:"role"`
	User        Principal `json:"user"`
}

// AuthService orchestrates registration, login and default-owner bootstrap.
type AuthService struct {
	owners   OwnerRepository
	members  MemberRepository
	resolver *IdentityResolver
	hasher   *PasswordHasher
	tokens   *TokenService
	now      func() time.Time
}

func NewAuthService(owners OwnerRepository, members MemberRepository, hasher *PasswordHasher, tokens *TokenService) *AuthService {
	return &AuthService{
		owners:   owners,
		members:  members,
		resolver: NewIdentityResolver(owners, members),
		hasher:   hasher,
		tokens:   tokens,
		now:      time.Now,
	}
}

// Resolver exposes the identity resolver composed by the service so the
// authorization middleware can share the same lookup contract.
func (s *AuthService) Resolver() *IdentityResolver {
	return s.resolver
}

// RegisterOwner creates a new owner account. The pre-check against the owner
// store is a best-effort UX optimization; the unique constraint in the store
// remains the authority and its violation also maps to ErrEmailTaken.
func (s *AuthService) RegisterOwner(ctx context.Context, name, email, password, phone string) (*OwnerRecord, error) {
	if existing, err := s.owners.FindByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrEmailTaken
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("register owner: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("register owner: %w", err)
	}

	return s.owners.Create(ctx, name, email, hash, phone)
}

// RegisterMember creates a member under ownerID with the default 30-day
// validity window. The caller's OWNER role is enforced by the authorization
// middleware, not here; the service trusts ownerID when called.
func (s *AuthService) RegisterMember(ctx context.Context, name, email, password, phone string, ownerID int64) (*MemberRecord, error) {
	if existing, err := s.members.FindByEmail(ctx, email); err == nil && existing != nil {
		return nil, ErrEmailTaken
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("register member: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("register member: %w", err)
	}

	expiry := s.now().Add(DefaultMembershipDays * 24 * time.Hour)
	return s.members.Create(ctx, name, email, hash, phone, ownerID, expiry)
}

// Login resolves the email across both stores (owner first), verifies the
// password, applies the membership expiry policy and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	principal, hash, err := s.resolver.resolveWithHash(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if !s.hasher.Verify(password, hash) {
		return nil, ErrInvalidCredentials
	}

	if principal.Role == RoleMember && principal.ExpiryDate != nil &&
		!MembershipActive(*principal.ExpiryDate, s.now()) {
		return nil, ErrMembershipExpired
	}

	token, err := s.tokens.Issue(principal)
	if err != nil {
		return nil, fmt.Errorf("login: issue token: %w", err)
	}

	return &LoginResult{
		AccessToken: token,
		ExpiresIn:   fmt.Sprintf("%ds", int64(s.tokens.TTL().Seconds())),
		Role:        principal.Role,
		User:        principal,
	}, nil
}
