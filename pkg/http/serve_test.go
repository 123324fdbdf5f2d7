package xhttp

import (
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func TestEngine_CloseOnSignal(t *testing.T) {
	e := NewServer(DefaultServerOption)
	e.GET("/ping", func(ctx *RequestCtx) { ctx.SetStatusCode(StatusOK) })
	e.DoRouting()

	ln := fasthttputil.NewInmemoryListener()
	served := make(chan error, 1)
	go func() { served <- e.Server.Serve(ln) }()

	client := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}
	status, _, err := client.Get(nil, "http://dispatcher/ping")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)

	e.CloseOnSignal()
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGQUIT))

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down on signal")
	}
}
