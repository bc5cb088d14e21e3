package web

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusnudge/focusnudge/internal/config"
)

func TestServerListenServeShutdown(t *testing.T) {
	env := newTestEnv(t, fakeProcesses{})

	cfg := config.Default()
	cfg.Web.Host = "127.0.0.1"
	cfg.Web.Port = 0

	srv := NewServer(cfg, env.handler)
	l, err := srv.Listen()
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- srv.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.ErrorIs(t, <-served, http.ErrServerClosed)
}

func TestServerListenPortTaken(t *testing.T) {
	env := newTestEnv(t, fakeProcesses{})

	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	cfg := config.Default()
	cfg.Web.Host = "127.0.0.1"
	cfg.Web.Port = taken.Addr().(*net.TCPAddr).Port

	_, err = NewServer(cfg, env.handler).Listen()
	require.Error(t, err)
	assert.Contains(t, err.Error(), strconv.Itoa(cfg.Web.Port))
}
