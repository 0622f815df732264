package registry_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"portseal/internal/domain"
	"portseal/internal/observability/logging"
	"portseal/internal/registry"
)

func newHTTPRegistry(t *testing.T, backend domain.PreKeyRegistry) *registry.Client {
	t.Helper()
	srv := httptest.NewServer(registry.NewRouter(backend, logging.Discard()))
	t.Cleanup(srv.Close)
	c := registry.NewClient(srv.URL + "/")
	c.HTTP = srv.Client()
	return c
}

func TestRouter_Healthz(t *testing.T) {
	srv := httptest.NewServer(registry.NewRouter(registry.NewMemory(registry.Options{}), logging.Discard()))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_BadJSON(t *testing.T) {
	srv := httptest.NewServer(registry.NewRouter(registry.NewMemory(registry.Options{}), logging.Discard()))
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL+"/v1/bundles", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_ClaimRequiresPost(t *testing.T) {
	srv := httptest.NewServer(registry.NewRouter(registry.NewMemory(registry.Options{}), logging.Discard()))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/v1/bundles/bob/claim")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
