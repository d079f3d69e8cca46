package adminotp_test

import (
	"testing"

	"github.com/aussiebroadwan/adminotp/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestHealthEndpoints verifies the health checks and JWKS before bootstrap.
func TestHealthEndpoints(t *testing.T) {
	s := setupStack(t, nil)
	client := authsdk.NewSDKClient(s.BaseURL)

	health, err := client.GetLiveness(t.Context())
	assertHealthy(t, health, err)

	health, err = client.GetReadiness(t.Context())
	assertHealthy(t, health, err)
	require.Equal(t, "ok", health.Checks.Delivery)

	jwks, err := client.GetJWKS(t.Context())
	require.NoError(t, err)
	require.Len(t, jwks.Keys, 1)
	t.Logf("Key ID: %s, Algorithm: %s", jwks.Keys[0].Kid, jwks.Keys[0].Alg)
}
