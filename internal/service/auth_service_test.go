package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"temperaturebox/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var testAuthConfig = AuthConfig{SigningKey: "test-signing-key", TokenTTL: 30 * time.Minute}

// operatorStore is an in-memory repository.Authorization.
type operatorStore struct {
	byName    map[string]models.Operator
	createErr error
	lookupErr error
}

func newOperatorStore() *operatorStore {
	return &operatorStore{byName: make(map[string]models.Operator)}
}

func (m *operatorStore) Create(ctx context.Context, username, hash string) (int, error) {
	if m.createErr != nil {
		return 0, m.createErr
	}
	id := len(m.byName) + 1
	m.byName[username] = models.Operator{ID: id, Username: username, PasswordHash: hash}
	return id, nil
}

func (m *operatorStore) GetByUsername(ctx context.Context, username string) (*models.Operator, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	op, ok := m.byName[username]
	if !ok {
		return nil, nil
	}
	return &op, nil
}

func signWith(t *testing.T, method jwt.SigningMethod, key any, claims *Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func validClaims(id int) *Claims {
	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OperatorID: id,
		Username:   "op",
	}
}

func TestAuthService_SignUpThenSignIn(t *testing.T) {
	store := newOperatorStore()
	svc := NewAuthService(store, testAuthConfig)
	ctx := context.Background()

	id, err := svc.SignUp(ctx, "  nina ", "s3cr3t")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	stored := store.byName["nina"]
	if stored.ID != id {
		t.Fatalf("stored operator %+v, want id %d", stored, id)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cr3t")) != nil {
		t.Fatalf("stored hash does not match the password")
	}

	token, err := svc.GenerateToken(ctx, "nina", "s3cr3t")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	op, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if op.ID != id || op.Username != "nina" || op.PasswordHash != "" {
		t.Fatalf("ParseToken = %+v", op)
	}
}

func TestAuthService_SignUpRejects(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		repoErr  error
		wantErr  error
	}{
		{name: "blank username", username: " ", password: "pw", wantErr: ErrEmptyUsername},
		{name: "blank password", username: "nina", password: "  ", wantErr: ErrEmptyPassword},
		{name: "repository error", username: "nina", password: "pw", repoErr: errors.New("db down")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newOperatorStore()
			store.createErr = tt.repoErr
			_, err := NewAuthService(store, testAuthConfig).SignUp(context.Background(), tt.username, tt.password)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil && !IsValidation(err) {
				t.Fatalf("input errors must be validation errors: %v", err)
			}
		})
	}
}

func TestAuthService_GenerateTokenFailures(t *testing.T) {
	store := newOperatorStore()
	svc := NewAuthService(store, testAuthConfig)
	if _, err := svc.SignUp(context.Background(), "nina", "correct"); err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	tests := []struct {
		name      string
		username  string
		lookupErr error
		wantErr   error
	}{
		{name: "unknown operator", username: "omar", wantErr: ErrUserNotFound},
		{name: "wrong password", username: "nina", wantErr: ErrInvalidPassword},
		{name: "repository error", username: "nina", lookupErr: errors.New("query failed")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.lookupErr = tt.lookupErr
			_, err := svc.GenerateToken(context.Background(), tt.username, "wrong")
			if err == nil {
				t.Fatalf("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthService_TokenExpiresAfterTTL(t *testing.T) {
	svc := NewAuthService(newOperatorStore(), testAuthConfig)
	issued := time.Now()
	svc.now = func() time.Time { return issued }

	token, err := svc.issueToken(models.Operator{ID: 9, Username: "nina"})
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}

	svc.now = func() time.Time { return issued.Add(29 * time.Minute) }
	if op, err := svc.ParseToken(token); err != nil || op.ID != 9 {
		t.Fatalf("ParseToken before expiry = %+v, %v", op, err)
	}

	svc.now = func() time.Time { return issued.Add(31 * time.Minute) }
	if _, err := svc.ParseToken(token); err == nil {
		t.Fatalf("token outlived the configured ttl")
	}
}

func TestAuthService_DefaultTTL(t *testing.T) {
	svc := NewAuthService(newOperatorStore(), AuthConfig{SigningKey: "k"})
	if svc.tokenTTL != time.Hour {
		t.Fatalf("tokenTTL = %v, want 1h", svc.tokenTTL)
	}
}

func TestAuthService_ParseTokenRejects(t *testing.T) {
	key := []byte(testAuthConfig.SigningKey)
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	expired := validClaims(3)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := map[string]string{
		"malformed":        "not-a-jwt",
		"foreign key":      signWith(t, jwt.SigningMethodHS256, []byte("other-key"), validClaims(5)),
		"expired":          signWith(t, jwt.SigningMethodHS256, key, expired),
		"rsa signed":       signWith(t, jwt.SigningMethodRS256, rsaKey, validClaims(12)),
		"missing operator": signWith(t, jwt.SigningMethodHS256, key, validClaims(0)),
	}
	svc := NewAuthService(newOperatorStore(), testAuthConfig)
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.ParseToken(token); err == nil {
				t.Fatalf("token accepted")
			}
		})
	}
}
