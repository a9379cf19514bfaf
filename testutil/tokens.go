// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"sync"
	"testing"

	"devconnector/auth"
)

const (
	Issuer   = "devconnector-test"
	Audience = "http://localhost:3000"
)

var (
	keyOnce sync.Once
	key     *rsa.PrivateKey
	keyErr  error
)

// Key returns a process-wide 2048 bit RSA key; generating one per test is slow.
func Key(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	keyOnce.Do(func() {
		key, keyErr = rsa.GenerateKey(rand.Reader, 2048)
	})
	if keyErr != nil {
		t.Fatalf("generate rsa key: %v", keyErr)
	}
	return key
}

func NewIssuer(t testing.TB) *auth.Issuer {
	return auth.NewIssuer(Key(t), Issuer, Audience)
}

func NewVerifier(t testing.TB) *auth.Verifier {
	return auth.NewVerifier(&Key(t).PublicKey, Issuer, Audience)
}

// Tamper flips one character inside the signature segment.
func Tamper(token string) string {
	b := []byte(token)
	i := len(b) - 10
	for j := len(b) - 1; j >= 0; j-- {
		if b[j] == '.' {
			i = j + 10
			break
		}
	}
	if i >= len(b) {
		i = len(b) - 2
	}
	if b[i] == 'A' {
		b[i] = 'z'
	} else {
		b[i] = 'A'
	}
	return string(b)
}
