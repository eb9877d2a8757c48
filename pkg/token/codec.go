// Package token encodes and verifies the compact HS256 tokens handed to
// clients as access and refresh credentials.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// MinSecretLength is the smallest HMAC key NewCodec accepts.
const MinSecretLength = 32

var signingMethod = jwt.SigningMethodHS256

// RefreshIssuer derives the issuer stamped on refresh tokens, so a refresh
// token presented as a bearer credential fails the access codec's issuer check.
func RefreshIssuer(issuer string) string {
	return strings.TrimSpace(issuer) + "/refresh"
}

// Claims is the signed payload: sub, role, iat, exp, jti and iss.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthorizationClaims is the verified view of a decoded token.
type AuthorizationClaims struct {
	SubjectID string
	RoleName  string
	JWTID     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for iat/exp.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// Codec signs and verifies tokens with a single symmetric key and issuer.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
	parser *jwt.Parser
}

// NewCodec validates the key material and returns a ready codec.
func NewCodec(secret, issuer string, opts ...Option) (*Codec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("token: secret must be at least %d bytes", MinSecretLength)
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, errors.New("token: issuer is required")
	}

	c := &Codec{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	return c, nil
}

// Encode mints a token for subjectID/roleName valid for ttl. Every call gets
// a fresh jti, so identical inputs never produce identical strings.
func (c *Codec) Encode(subjectID, roleName string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("token: ttl must be positive, got %s", ttl)
	}

	now := c.now().UTC()
	claims := Claims{
		Role: roleName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        ulid.Make().String(),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Decode verifies raw and returns its claims. Stages run in a fixed order and
// stop at the first failure: structure, declared algorithm, signature and
// standard claims, then required custom claims.
func (c *Codec) Decode(raw string) (AuthorizationClaims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return AuthorizationClaims{}, fmt.Errorf("%w: expected 3 segments, got %d", ErrFormat, len(parts))
	}

	segments := make([][]byte, len(parts))
	for i, part := range parts {
		decoded, err := base64.RawURLEncoding.DecodeString(part)
		if err != nil {
			return AuthorizationClaims{}, fmt.Errorf("%w: segment %d is not base64url", ErrFormat, i)
		}
		segments[i] = decoded
	}
	if len(segments[0]) == 0 || len(segments[1]) == 0 {
		return AuthorizationClaims{}, fmt.Errorf("%w: empty header or payload", ErrFormat)
	}

	// The header is only read to reject it; verification never uses its alg.
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(segments[0], &header); err != nil {
		return AuthorizationClaims{}, fmt.Errorf("%w: header is not json", ErrFormat)
	}
	if strings.EqualFold(strings.TrimSpace(header.Alg), "none") {
		return AuthorizationClaims{}, fmt.Errorf("%w: unsigned tokens are rejected", ErrAlgorithm)
	}
	if header.Alg != signingMethod.Alg() {
		return AuthorizationClaims{}, fmt.Errorf("%w: %q", ErrAlgorithm, header.Alg)
	}

	// Signature is checked on the raw segments before the payload is parsed,
	// so a tampered payload is reported as a signature failure.
	if err := signingMethod.Verify(parts[0]+"."+parts[1], segments[2], c.secret); err != nil {
		return AuthorizationClaims{}, ErrSignature
	}

	var claims Claims
	if _, err := c.parser.ParseWithClaims(raw, &claims, c.key); err != nil {
		return AuthorizationClaims{}, classify(err)
	}

	required := []struct {
		name  string
		value string
	}{
		{"sub", claims.Subject},
		{"role", claims.Role},
		{"jti", claims.ID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return AuthorizationClaims{}, &ClaimMissingError{Claim: r.name}
		}
	}

	out := AuthorizationClaims{
		SubjectID: claims.Subject,
		RoleName:  claims.Role,
		JWTID:     claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func (c *Codec) key(t *jwt.Token) (interface{}, error) {
	if t.Method != signingMethod {
		return nil, ErrAlgorithm
	}
	return c.secret, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrFormat, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuer
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return &ClaimMissingError{Claim: "exp"}
	default:
		return fmt.Errorf("%w: %v", ErrFormat, err)
	}
}
