package identity

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"gymgate/internal/domain"
	"gymgate/internal/repo"
)

// ErrNotFound means the credential was well-formed but resolves to no
// registered person, or the token failed validation. Callers render both
// the same way so a kiosk cannot be used to probe which codes exist.
var ErrNotFound = errors.New("credential did not resolve")

// Resolver maps a raw presented credential to a person record. A
// credential is either an all-digits badge code or a signed member token
// whose subject is the person id.
type Resolver struct {
	Repo   repo.Repo
	Secret string
	Now    func() time.Time
}

func (r Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Resolve returns the person for a raw credential.
func (r Resolver) Resolve(ctx context.Context, raw string) (domain.Person, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Person{}, ErrNotFound
	}
	if code, err := strconv.ParseInt(raw, 10, 64); err == nil {
		p, err := r.Repo.GetPersonByCode(ctx, code)
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Person{}, ErrNotFound
		}
		return p, err
	}
	personID, err := r.validateToken(raw)
	if err != nil {
		return domain.Person{}, ErrNotFound
	}
	p, err := r.Repo.GetPerson(ctx, personID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Person{}, ErrNotFound
	}
	return p, err
}

// Hint returns a short non-sensitive form of the credential for audit rows.
func Hint(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if _, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return "code:" + raw
	}
	return "token"
}

func (r Resolver) validateToken(token string) (string, error) {
	if strings.TrimSpace(r.Secret) == "" {
		return "", errors.New("member token secret not configured")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
	)
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(r.Secret), nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("subject claim required")
	}
	return claims.Subject, nil
}

// IssueToken mints a short-lived member token for the person, for kiosks
// that scan rotating QR codes instead of badge numbers.
func (r Resolver) IssueToken(personID string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(r.Secret) == "" {
		return "", errors.New("member token secret not configured")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	now := r.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   personID,
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(r.Secret))
}
