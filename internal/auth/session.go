package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const RoleAdmin = "admin"

// Claims carried by the admin session cookie.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SessionManager signs and verifies admin session tokens (HS256).
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	return &SessionManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *SessionManager) TTL() time.Duration { return m.ttl }

// Issue returns a signed token for the given admin user.
func (m *SessionManager) Issue(user string) (string, error) {
	now := m.now()
	claims := &Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Verify validates the token and requires the admin role.
func (m *SessionManager) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Role != RoleAdmin {
		return nil, errors.New("invalid role")
	}
	return claims, nil
}

// Credentials holds the single manager account.
type Credentials struct {
	User     string
	PassHash string // bcrypt
}

// Check compares in constant time on the hash side; both failure modes look
// the same to the caller.
func (c Credentials) Check(user, password string) bool {
	if c.User == "" || user != c.User {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.PassHash), []byte(password)) == nil
}
