package main

import (
	"bytes"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const testSecret = "0123456789abcdef0123456789abcdef-test"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := App()
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = &out
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"actionlink"}, args...))
	return out.String(), err
}

func TestGenerateThenVerify(t *testing.T) {
	t.Setenv("SECRET_KEY", testSecret)
	t.Setenv("FRONTEND_URL", "https://app.example.org")

	out, err := run(t, "generate", "--hours-id", "hrs-1", "--action", "approve", "--email", "v@org.com")
	require.NoError(t, err)
	assert.Contains(t, out, "link:    https://app.example.org/verify-hours?")

	var token string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "link:") {
			u, err := url.Parse(strings.TrimSpace(strings.TrimPrefix(line, "link:")))
			require.NoError(t, err)
			token = u.Query().Get("token")
		}
	}
	require.NotEmpty(t, token)

	out, err = run(t, "verify", "--token", token, "--hours-id", "hrs-1", "--action", "approve", "--email", "v@org.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "valid"))

	out, err = run(t, "verify", "--token", token, "--hours-id", "hrs-1", "--action", "deny", "--email", "v@org.com")
	assert.Error(t, err)
	assert.Contains(t, out, "invalid")
}

func TestGenerate_RejectsBadInput(t *testing.T) {
	t.Setenv("SECRET_KEY", testSecret)

	_, err := run(t, "generate", "--hours-id", "hrs-1", "--action", "escalate", "--email", "v@org.com")
	assert.Error(t, err)

	t.Setenv("SECRET_KEY", "short")
	_, err = run(t, "generate", "--hours-id", "hrs-1", "--action", "approve", "--email", "v@org.com")
	assert.Error(t, err)
}

func TestServiceToken(t *testing.T) {
	t.Setenv("SERVICE_JWT_SECRET", "")
	_, err := run(t, "service-token")
	assert.Error(t, err)

	t.Setenv("SERVICE_JWT_SECRET", "jwt-secret")
	out, err := run(t, "service-token", "--role", "admin")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(strings.TrimSpace(out), "."))
}
