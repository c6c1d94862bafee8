package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAsyncServesVars(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr, err := StartAsync(ctx, "127.0.0.1:0")
	require.NoError(t, err)

	Events.Add("order", 2)
	Connects.Add(1)

	resp, err := http.Get("http://" + addr + "/debug/vars")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var vars map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&vars))
	assert.Contains(t, vars, "xts_socket_connects")

	var events map[string]int64
	require.NoError(t, json.Unmarshal(vars["xts_socket_events"], &events))
	assert.GreaterOrEqual(t, events["order"], int64(2))
}
