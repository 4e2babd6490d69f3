package kalshi

// auth.go: firma de requests de Kalshi.
//
// Cada request autenticado (REST o el upgrade del WebSocket) lleva tres headers:
//
//	KALSHI-ACCESS-KEY        el ID de la API key
//	KALSHI-ACCESS-TIMESTAMP  milisegundos Unix
//	KALSHI-ACCESS-SIGNATURE  base64(RSA-PSS-SHA256(timestamp + method + path))
//
// El path no incluye query string. El salt de PSS es igual al largo del digest.

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"
)

const (
	headerKey       = "KALSHI-ACCESS-KEY"
	headerSignature = "KALSHI-ACCESS-SIGNATURE"
	headerTimestamp = "KALSHI-ACCESS-TIMESTAMP"
)

// Credential identifica una API key de Kalshi. Se pasa explícitamente; el
// paquete nunca lee variables de entorno.
type Credential struct {
	Token          string // API key ID
	PrivateKeyPath string // PEM, PKCS#1 o PKCS#8
}

// Signer builds the signed headers for one API key.
type Signer struct {
	keyID string
	key   *rsa.PrivateKey
	now   func() time.Time
}

// NewSigner loads the private key referenced by cred.
func NewSigner(cred Credential) (*Signer, error) {
	if cred.Token == "" || cred.PrivateKeyPath == "" {
		return nil, errors.New("kalshi.NewSigner: credential token and private key path are required")
	}
	raw, err := os.ReadFile(cred.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("kalshi.NewSigner: read key: %w", err)
	}
	key, err := ParsePrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("kalshi.NewSigner: %w", err)
	}
	return &Signer{keyID: cred.Token, key: key, now: time.Now}, nil
}

// ParsePrivateKey decodes a PEM-encoded RSA key.
func ParsePrivateKey(pemBytes []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("private key is %T, want RSA", parsed)
	}
	return key, nil
}

// Sign returns base64(RSA-PSS(timestamp + method + path)).
func (s *Signer) Sign(timestamp, method, path string) (string, error) {
	digest := sha256.Sum256([]byte(timestamp + method + path))
	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return "", fmt.Errorf("kalshi.Sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Headers builds the three auth headers for method and path.
func (s *Signer) Headers(method, path string) (http.Header, error) {
	ts := strconv.FormatInt(s.now().UnixMilli(), 10)
	sig, err := s.Sign(ts, method, path)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set(headerKey, s.keyID)
	h.Set(headerTimestamp, ts)
	h.Set(headerSignature, sig)
	return h, nil
}
