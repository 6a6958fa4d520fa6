package cdptest

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/mafredri/cdp/devtool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerAnswersVersion(t *testing.T) {
	srv := New(t, nil)
	require.True(t, strings.HasPrefix(srv.URL, "http://127.0.0.1:"))

	resp, err := http.Get(srv.URL + "/json/version")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	v, err := devtool.New(srv.URL).Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.3", v.Protocol)
	assert.NotEmpty(t, v.Browser)
}

func TestServerListsThroughDevtool(t *testing.T) {
	srv := New(t, nil)

	ts, err := devtool.New(srv.URL).List(context.Background())
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, "Demo", ts[0].Title)
	assert.Equal(t, srv.WebSocketURL("1"), ts[0].WebSocketDebuggerURL)
}
