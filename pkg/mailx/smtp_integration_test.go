package mailx_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/aussiebroadwan/adminotp/pkg/mailx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupMailpit starts a mailpit container and returns its SMTP port and API
// base URL.
func setupMailpit(t *testing.T) (host string, smtpPort int, apiURL string) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "axllent/mailpit:v1.21",
			ExposedPorts: []string{"1025/tcp", "8025/tcp"},
			WaitingFor: wait.ForHTTP("/livez").
				WithPort("8025/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err = container.Host(ctx)
	require.NoError(t, err)

	smtpMapped, err := container.MappedPort(ctx, "1025")
	require.NoError(t, err)
	apiMapped, err := container.MappedPort(ctx, "8025")
	require.NoError(t, err)

	smtpPort, err = strconv.Atoi(smtpMapped.Port())
	require.NoError(t, err)

	return host, smtpPort, fmt.Sprintf("http://%s:%s", host, apiMapped.Port())
}

func TestSMTP_DeliversToMailpit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	host, port, api := setupMailpit(t)

	sender, err := mailx.NewSMTP(mailx.SMTPConfig{
		Host: host,
		Port: port,
		From: "noreply@adminotp.test",
	})
	require.NoError(t, err)

	err = sender.Send(t.Context(), mailx.Message{
		To:       []string{"ops@example.com"},
		Subject:  "Your sign-in code",
		TextBody: "Your code is 482913",
	})
	require.NoError(t, err)

	var listing struct {
		Total    int `json:"total"`
		Messages []struct {
			Subject string `json:"Subject"`
			To      []struct {
				Address string `json:"Address"`
			} `json:"To"`
		} `json:"messages"`
	}

	require.Eventually(t, func() bool {
		resp, err := http.Get(api + "/api/v1/messages")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
			return false
		}
		return listing.Total == 1
	}, 10*time.Second, 200*time.Millisecond)

	require.Equal(t, "Your sign-in code", listing.Messages[0].Subject)
	require.Equal(t, "ops@example.com", listing.Messages[0].To[0].Address)
}
