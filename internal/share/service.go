package share

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"resumark/api/internal/util"
)

// DefaultTTL is how long a share link lives when the caller does not pick
// a duration.
const DefaultTTL = 7 * 24 * time.Hour

var (
	ErrPasswordRequired = errors.New("share requires a password")
	ErrWrongPassword    = errors.New("wrong share password")
)

// Service creates and resolves share links.
type Service struct {
	secret []byte
	store  *RedisStore
}

func NewService(secret string, store *RedisStore) *Service {
	return &Service{secret: []byte(secret), store: store}
}

// CreateLink freezes the snapshot, optionally guards it with a password,
// and returns the opaque token to embed in the share URL.
func (s *Service) CreateLink(ctx context.Context, snap Snapshot, ttl time.Duration, password string) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	snap.CreatedAt = time.Now()

	rec := record{Snapshot: snap}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return "", fmt.Errorf("hash share password: %w", err)
		}
		rec.PasswordHash = string(hash)
	}

	jti := util.NewID("shr")
	if err := s.store.save(ctx, jti, rec, ttl); err != nil {
		return "", err
	}

	token, err := IssueToken(s.secret, Claims{
		Slug: snap.Slug,
		JTI:  jti,
		Exp:  time.Now().Add(ttl).Unix(),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// Resolve verifies the token, loads the snapshot, and checks the password
// when the link has one. A missing snapshot behind a valid token means the
// link was revoked or expired server-side.
func (s *Service) Resolve(ctx context.Context, token, password string) (Snapshot, error) {
	claims, err := ParseToken(s.secret, token)
	if err != nil {
		return Snapshot{}, err
	}
	rec, err := s.store.lookup(ctx, claims.JTI)
	if err != nil {
		return Snapshot{}, err
	}
	if rec.PasswordHash != "" {
		if password == "" {
			return Snapshot{}, ErrPasswordRequired
		}
		if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) != nil {
			return Snapshot{}, ErrWrongPassword
		}
	}
	return rec.Snapshot, nil
}

// Revoke kills a link given its token.
func (s *Service) Revoke(ctx context.Context, token string) error {
	claims, err := ParseToken(s.secret, token)
	if err != nil {
		return err
	}
	return s.store.Revoke(ctx, claims.JTI)
}
