package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Roles, in increasing order of privilege.
const (
	RoleCustomer = "customer"
	RoleEmployee = "employee"
	RoleOwner    = "owner"
)

var roleLevels = map[string]int{
	RoleCustomer: 1,
	RoleEmployee: 2,
	RoleOwner:    3,
}

// RoleAtLeast reports whether role grants at least the privileges of
// required. Unknown roles grant nothing.
func RoleAtLeast(role, required string) bool {
	have, ok := roleLevels[role]
	if !ok {
		return false
	}
	return have >= roleLevels[required]
}

// Claims are the access-token claims issued by the hosted auth provider.
// A missing role means customer.
type Claims struct {
	Email      string `json:"email,omitempty"`
	BusinessID string `json:"business_id,omitempty"`
	Role       string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string { return c.Subject }

func (c *Claims) EffectiveRole() string {
	if c.Role == "" {
		return RoleCustomer
	}
	return c.Role
}

// KeySource resolves RS256 verification keys by key id.
type KeySource interface {
	Get(kid string) (*rsa.PublicKey, error)
}

type VerifierConfig struct {
	// HMACSecret enables HS256 tokens.
	HMACSecret string
	// Keys enables RS256 tokens.
	Keys     KeySource
	Issuer   string
	Audience string
	Leeway   time.Duration
}

type Verifier struct {
	cfg    VerifierConfig
	parser *jwt.Parser
}

func NewVerifier(cfg VerifierConfig) *Verifier {
	methods := []string{}
	if cfg.HMACSecret != "" {
		methods = append(methods, jwt.SigningMethodHS256.Alg())
	}
	if cfg.Keys != nil {
		methods = append(methods, jwt.SigningMethodRS256.Alg())
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Verifier{cfg: cfg, parser: jwt.NewParser(opts...)}
}

// Verify checks the signature and registered claims of token and returns
// its claims. Every failure wraps ErrInvalidToken.
func (v *Verifier) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := v.parser.ParseWithClaims(token, claims, v.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (any, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if v.cfg.HMACSecret == "" {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(v.cfg.HMACSecret), nil
	case *jwt.SigningMethodRSA:
		if v.cfg.Keys == nil {
			return nil, jwt.ErrSignatureInvalid
		}
		kid, _ := token.Header["kid"].(string)
		return v.cfg.Keys.Get(kid)
	default:
		return nil, jwt.ErrSignatureInvalid
	}
}

// SignHS256 issues a token. It is used by local tooling and tests; production
// tokens come from the auth provider.
func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
