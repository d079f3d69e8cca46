package jwtx

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJWK_PEM_Ed25519(t *testing.T) {
	publicKey, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	jwk := NewEd25519JWK("test-key-id", "sig", "EdDSA", publicKey)

	pemStr, err := jwk.PEM()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(pemStr, "-----BEGIN PUBLIC KEY-----"))

	block, _ := pem.Decode([]byte(pemStr))
	require.NotNil(t, block, "PEM block should be valid")
	require.Equal(t, "PUBLIC KEY", block.Type)

	parsedKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(t, err)

	ed25519PubKey, ok := parsedKey.(ed25519.PublicKey)
	require.True(t, ok, "Parsed key should be an Ed25519 public key")
	require.Equal(t, publicKey, ed25519PubKey)
}

func TestJWK_PEM_UnsupportedKeyType(t *testing.T) {
	_, err := JWK{Kty: "RSA", Kid: "test-key"}.PEM()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported kty")
}

func TestJWK_PEM_InvalidBase64(t *testing.T) {
	_, err := JWK{Kty: "OKP", Crv: "Ed25519", X: "!!!invalid-base64!!!"}.PEM()
	require.Error(t, err)
}

func TestKeySet_RejectsWrongCurve(t *testing.T) {
	ks := NewKeySet()
	require.False(t, ks.IsReady())

	err := ks.AddJWK(JWK{Kty: "OKP", Crv: "X25519", Kid: "k"})
	require.Error(t, err)
	require.False(t, ks.IsReady())
}
