package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ParsePrivateKey accepts a PKCS#1 or PKCS#8 RSA private key in PEM form.
func ParsePrivateKey(pemData []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return k, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	rk, ok := k.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return rk, nil
}

// ParsePublicKey accepts a PKIX or PKCS#1 RSA public key in PEM form.
func ParsePublicKey(pemData []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if k, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return k, nil
	}
	k, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	rk, ok := k.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return rk, nil
}

// LoadPEM returns v itself when it already holds PEM text, otherwise the
// contents of the file it names. Escaped newlines from env files are
// restored.
func LoadPEM(v string) ([]byte, error) {
	if strings.Contains(v, "-----BEGIN") {
		return []byte(strings.ReplaceAll(v, `\n`, "\n")), nil
	}
	b, err := os.ReadFile(v)
	if err != nil {
		return nil, fmt.Errorf("read pem %q: %w", v, err)
	}
	return b, nil
}

// GenerateKeyPair returns a fresh RSA key as PKCS#8 private PEM and PKIX
// public PEM.
func GenerateKeyPair(bits int) (privPEM, pubPEM []byte, err error) {
	k, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, nil, err
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(k)
	if err != nil {
		return nil, nil, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
	if err != nil {
		return nil, nil, err
	}
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	return privPEM, pubPEM, nil
}

// ClientRegistry resolves the public key a client signs with.
type ClientRegistry interface {
	PublicKey(clientID string) (*rsa.PublicKey, bool)
}

// StaticRegistry is a fixed clientId -> key table loaded at startup.
type StaticRegistry map[string]*rsa.PublicKey

func (r StaticRegistry) PublicKey(clientID string) (*rsa.PublicKey, bool) {
	k, ok := r[clientID]
	return k, ok && k != nil
}

// NewStaticRegistry builds a registry from clientId -> PEM text or path.
func NewStaticRegistry(clients map[string]string) (StaticRegistry, error) {
	r := make(StaticRegistry, len(clients))
	for id, v := range clients {
		if v == "" {
			continue
		}
		raw, err := LoadPEM(v)
		if err != nil {
			return nil, fmt.Errorf("client %s: %w", id, err)
		}
		k, err := ParsePublicKey(raw)
		if err != nil {
			return nil, fmt.Errorf("client %s: %w", id, err)
		}
		r[id] = k
	}
	return r, nil
}
