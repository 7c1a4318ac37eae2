package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultIssuer     = "tallybook"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour
)

// Kind selects which of the two token families a signature belongs to.
// Access and refresh tokens are signed with independent secrets so holding
// one secret never allows forging the other kind.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Payload is the claim set embedded in both token kinds.
type Payload struct {
	UserID    string
	Username  string
	Role      string
	RoleLevel int
}

// Pair bundles a freshly issued access/refresh token couple.
type Pair struct {
	Access  string
	Refresh string
}

// Claims is the wire representation of Payload plus registered JWT claims.
type Claims struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	RoleLevel int    `json:"role_level"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies session tokens. Expiry is evaluated against
// absolute wall-clock seconds inside the token with zero skew tolerance: a
// token one second past expiry is invalid.
type Tokens struct {
	secrets map[Kind][]byte
	ttls    map[Kind]time.Duration
	issuer  string
	now     func() time.Time
}

// TokensOption configures Tokens.
type TokensOption func(*Tokens) error

// WithAccessTTL overrides the access token lifetime.
func WithAccessTTL(ttl time.Duration) TokensOption {
	return func(t *Tokens) error {
		if ttl > 0 {
			t.ttls[KindAccess] = ttl
		}
		return nil
	}
}

// WithRefreshTTL overrides the refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokensOption {
	return func(t *Tokens) error {
		if ttl > 0 {
			t.ttls[KindRefresh] = ttl
		}
		return nil
	}
}

// WithIssuer overrides the issuer claim.
func WithIssuer(issuer string) TokensOption {
	return func(t *Tokens) error {
		issuer = strings.TrimSpace(issuer)
		if issuer != "" {
			t.issuer = issuer
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokensOption {
	return func(t *Tokens) error {
		if fn != nil {
			t.now = fn
		}
		return nil
	}
}

// NewTokens constructs a token service from the two signing secrets.
func NewTokens(accessSecret, refreshSecret string, opts ...TokensOption) (*Tokens, error) {
	accessSecret = strings.TrimSpace(accessSecret)
	refreshSecret = strings.TrimSpace(refreshSecret)
	if accessSecret == "" || refreshSecret == "" {
		return nil, errors.New("auth: both access and refresh secrets are required")
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	t := &Tokens{
		secrets: map[Kind][]byte{
			KindAccess:  []byte(accessSecret),
			KindRefresh: []byte(refreshSecret),
		},
		ttls: map[Kind]time.Duration{
			KindAccess:  defaultAccessTTL,
			KindRefresh: defaultRefreshTTL,
		},
		issuer: defaultIssuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// TTL returns the configured lifetime for a token kind.
func (t *Tokens) TTL(kind Kind) time.Duration {
	return t.ttls[kind]
}

// Issue signs payload into a URL-safe token of the requested kind.
func (t *Tokens) Issue(kind Kind, p Payload) (string, error) {
	secret, ok := t.secrets[kind]
	if !ok {
		return "", errors.New("auth: unknown token kind")
	}
	if strings.TrimSpace(p.UserID) == "" {
		return "", errors.New("auth: payload user id is required")
	}
	now := t.now().UTC()
	claims := Claims{
		Username:  p.Username,
		Role:      p.Role,
		RoleLevel: p.RoleLevel,
		TokenType: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttls[kind])),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Verify checks signature and expiry against the secret matching kind and
// returns the embedded payload. Every failure mode maps onto ErrInvalidToken.
func (t *Tokens) Verify(kind Kind, raw string) (Payload, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Payload{}, ErrInvalidToken
	}
	secret, ok := t.secrets[kind]
	if !ok {
		return Payload{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithTimeFunc(t.now), jwt.WithExpirationRequired())
	if err != nil {
		return Payload{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Payload{}, ErrInvalidToken
	}
	if claims.TokenType != string(kind) {
		return Payload{}, ErrInvalidToken
	}
	if claims.Issuer != t.issuer {
		return Payload{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Payload{}, ErrInvalidToken
	}
	return Payload{
		UserID:    claims.Subject,
		Username:  claims.Username,
		Role:      claims.Role,
		RoleLevel: claims.RoleLevel,
	}, nil
}

// IssuePair issues an access/refresh couple for the same payload.
func (t *Tokens) IssuePair(p Payload) (Pair, error) {
	access, err := t.Issue(KindAccess, p)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := t.Issue(KindRefresh, p)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}
