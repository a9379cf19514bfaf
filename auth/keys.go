package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// KeyBits is the modulus size used by GenerateKeyPair.
const KeyBits = 4096

// LoadPrivateKey reads an RSA private key from inline PEM or, when pemText is
// empty, from path. Inline values may use literal "\n" sequences, which is how
// multi-line keys usually survive environment variables.
func LoadPrivateKey(pemText, path string) (*rsa.PrivateKey, error) {
	raw, err := readPEM(pemText, path)
	if err != nil {
		return nil, err
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("auth: parse private key: %w", err)
	}
	return key, nil
}

func LoadPublicKey(pemText, path string) (*rsa.PublicKey, error) {
	raw, err := readPEM(pemText, path)
	if err != nil {
		return nil, err
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("auth: parse public key: %w", err)
	}
	return key, nil
}

func readPEM(pemText, path string) ([]byte, error) {
	if pemText != "" {
		return []byte(strings.ReplaceAll(pemText, `\n`, "\n")), nil
	}
	if path == "" {
		return nil, fmt.Errorf("auth: no key material configured")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("auth: read key: %w", err)
	}
	return raw, nil
}

// GenerateKeyPair creates a fresh RSA key pair in PEM form.
func GenerateKeyPair(bits int) (privatePEM, publicPEM []byte, err error) {
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, err
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, nil, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, nil, err
	}
	privatePEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	publicPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privatePEM, publicPEM, nil
}

// WriteKeyPair generates a key pair into dir as private.pem and public.pem.
// The private key is written 0600.
func WriteKeyPair(dir string, bits int) (privatePath, publicPath string, err error) {
	priv, pub, err := GenerateKeyPair(bits)
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", err
	}
	privatePath = filepath.Join(dir, "private.pem")
	publicPath = filepath.Join(dir, "public.pem")
	if err := os.WriteFile(privatePath, priv, 0o600); err != nil {
		return "", "", err
	}
	if err := os.WriteFile(publicPath, pub, 0o644); err != nil {
		return "", "", err
	}
	return privatePath, publicPath, nil
}
