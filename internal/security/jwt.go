package security

import (
	"errors"
	"time"

	"github.com/eventora/chat-service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what the external auth service attests about a connection:
// who it is and which side of a conversation it may act as.
type Identity struct {
	UserID string
	Role   domain.Role
}

// Verifier checks a bearer credential and yields the caller's identity.
// Session issuance lives in the auth service; this side only validates.
type Verifier interface {
	Verify(token string) (Identity, error)
}

type AccessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 access tokens issued by the auth service.
type JWTVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

func NewJWTVerifier(secret []byte, issuer string, leeway time.Duration) *JWTVerifier {
	return &JWTVerifier{secret: secret, issuer: issuer, leeway: leeway}
}

func (v *JWTVerifier) Verify(tokenStr string) (Identity, error) {
	claims := &AccessClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Identity{}, domain.ErrInvalidToken
	}
	if claims.Subject == "" {
		return Identity{}, domain.ErrInvalidToken
	}

	role := domain.Role(claims.Role)
	switch role {
	case domain.RoleClient, domain.RoleProvider, domain.RoleAdmin:
	default:
		return Identity{}, domain.ErrInvalidToken
	}

	return Identity{UserID: claims.Subject, Role: role}, nil
}

// Sign issues a token with the verifier's secret. Used by tests and local
// tooling; production tokens come from the auth service.
func (v *JWTVerifier) Sign(id Identity, ttl time.Duration) (string, error) {
	if id.UserID == "" {
		return "", errors.New("empty user id")
	}
	now := time.Now()
	claims := AccessClaims{
		Role: string(id.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-v.leeway)),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
