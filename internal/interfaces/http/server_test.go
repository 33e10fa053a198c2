package http

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/rxn-reconciler/internal/config"
	"github.com/turtacn/rxn-reconciler/internal/testutil"
)

func TestNewServer(t *testing.T) {
	s := NewServer(config.ServerConfig{Port: 8081, ReadTimeout: time.Second}, http.NotFoundHandler(), nil)
	assert.Equal(t, ":8081", s.Addr())
	assert.Equal(t, time.Second, s.srv.ReadTimeout)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	log := testutil.NewMockLogger()
	s := NewServer(config.ServerConfig{ShutdownTimeout: 2 * time.Second}, NewRouter(fullConfig()), log)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", ln.Addr()))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "alive")

	require.NoError(t, s.Shutdown(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err, "graceful shutdown is not an error")
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.True(t, log.HasMessage("info", "http server stopped"))
}

func init() {
	gin.SetMode(gin.TestMode)
}
