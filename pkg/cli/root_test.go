package cli

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/superplanehq/gauth/test/support/contexts"
)

const userJSON = `{"type":"authorized_user","client_id":"id","client_secret":"very-secret","refresh_token":"refresh"}`

func serviceAccountJSON(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	data, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"project_id":     "sa-proj",
		"private_key_id": "kid",
		"private_key":    string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})),
		"client_email":   "sa@sa-proj.iam.gserviceaccount.com",
	})
	require.NoError(t, err)
	return string(data)
}

type harness struct {
	env     map[string]string
	httpCtx *contexts.HTTPContext
	out     bytes.Buffer
	err     bytes.Buffer
}

func newHarness(t *testing.T, adc string) *harness {
	t.Helper()
	h := &harness{
		env:     map[string]string{"HOME": t.TempDir()},
		httpCtx: &contexts.HTTPContext{},
	}
	if adc != "" {
		h.env["GOOGLE_APPLICATION_CREDENTIALS"] = adc
	}
	return h
}

func (h *harness) run(args ...string) error {
	cmd := NewRootCmd(Options{
		LookupEnv: func(key string) (string, bool) {
			v, ok := h.env[key]
			return v, ok
		},
		GOOS:       "linux",
		HTTPClient: h.httpCtx.Client(),
		Out:        &h.out,
		Err:        &h.err,
	})
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}

func Test_Whoami(t *testing.T) {
	t.Run("yaml output never includes secrets", func(t *testing.T) {
		h := newHarness(t, userJSON)
		require.NoError(t, h.run("whoami"))

		out := h.out.String()
		assert.Contains(t, out, "source: env-json")
		assert.Contains(t, out, "kind: authorized_user")
		assert.Contains(t, out, "profileBacked: false")
		assert.NotContains(t, out, "very-secret")
		assert.NotContains(t, out, "refresh")
	})

	t.Run("json output with project override", func(t *testing.T) {
		h := newHarness(t, serviceAccountJSON(t))
		require.NoError(t, h.run("whoami", "-o", "json", "--project", "override"))

		var id identity
		require.NoError(t, json.Unmarshal(h.out.Bytes(), &id))
		assert.Equal(t, "sa@sa-proj.iam.gserviceaccount.com", id.Email)
		assert.Equal(t, "override", id.Project)
		assert.Equal(t, "service_account", id.Kind)
	})

	t.Run("unknown output format", func(t *testing.T) {
		h := newHarness(t, userJSON)
		require.Error(t, h.run("whoami", "-o", "xml"))
	})

	t.Run("no credentials anywhere", func(t *testing.T) {
		h := newHarness(t, "")
		err := h.run("whoami")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "last tried well-known-file")
	})
}

func Test_Token(t *testing.T) {
	t.Run("service account prints a signed JWT", func(t *testing.T) {
		h := newHarness(t, serviceAccountJSON(t))
		require.NoError(t, h.run("token", "--audience", "https://example.googleapis.com/"))

		token := strings.TrimSpace(h.out.String())
		assert.Len(t, strings.Split(token, "."), 3)
		assert.Empty(t, h.httpCtx.Requests)
	})

	t.Run("authorized user performs the refresh exchange", func(t *testing.T) {
		h := newHarness(t, userJSON)
		h.httpCtx.Responses = []*http.Response{
			contexts.JSONResponse(http.StatusOK, `{"access_token":"ya29.user","expires_in":3599}`),
		}
		require.NoError(t, h.run("token"))
		assert.Equal(t, "ya29.user\n", h.out.String())
		require.Len(t, h.httpCtx.Requests, 1)
	})

	t.Run("rejected refresh surfaces the response body", func(t *testing.T) {
		h := newHarness(t, userJSON)
		h.httpCtx.Responses = []*http.Response{
			contexts.JSONResponse(http.StatusBadRequest, `{"error":"invalid_grant"}`),
		}
		err := h.run("token")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid_grant")
		assert.Contains(t, err.Error(), "400")
	})

	t.Run("invalid log level fails before resolving", func(t *testing.T) {
		h := newHarness(t, userJSON)
		require.Error(t, h.run("token", "--log-level", "loud"))
	})
}

func Test_Query(t *testing.T) {
	t.Run("prints CSV", func(t *testing.T) {
		h := newHarness(t, serviceAccountJSON(t))
		h.httpCtx.Responses = []*http.Response{
			contexts.JSONResponse(http.StatusOK, `{"jobReference":{"projectId":"sa-proj","jobId":"j"},"jobComplete":true,"schema":{"fields":[{"name":"a"},{"name":"b"}]},"rows":[{"f":[{"v":"1"},{"v":"x"}]}],"totalRows":"1"}`),
		}

		require.NoError(t, h.run("query", "SELECT 1 AS a, 'x' AS b", "--location", "EU"))
		assert.Equal(t, "a,b\n1,x\n", h.out.String())

		require.Len(t, h.httpCtx.Requests, 1)
		req := h.httpCtx.Requests[0]
		assert.Equal(t, "https://bigquery.googleapis.com/bigquery/v2/projects/sa-proj/queries", req.URL.String())
		assert.True(t, strings.HasPrefix(req.Header.Get("Authorization"), "Bearer ey"))
	})

	t.Run("dry run reports bytes", func(t *testing.T) {
		h := newHarness(t, serviceAccountJSON(t))
		h.httpCtx.Responses = []*http.Response{
			contexts.JSONResponse(http.StatusOK, `{"jobReference":{"projectId":"sa-proj"},"jobComplete":false,"totalBytesProcessed":"512"}`),
		}

		require.NoError(t, h.run("query", "SELECT 1", "--dry-run"))
		assert.Equal(t, "512 bytes would be processed\n", h.out.String())
	})
}

func Test_Tables(t *testing.T) {
	h := newHarness(t, serviceAccountJSON(t))
	h.httpCtx.Responses = []*http.Response{
		contexts.JSONResponse(http.StatusOK, `{"tables":[{"tableReference":{"tableId":"events"}},{"tableReference":{"tableId":"users"}}]}`),
	}

	require.NoError(t, h.run("tables", "analytics", "--project", "other"))
	assert.Equal(t, "events\nusers\n", h.out.String())
	assert.Contains(t, h.httpCtx.Requests[0].URL.Path, "/projects/other/datasets/analytics/tables")
}
