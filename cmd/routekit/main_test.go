package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routekit/internal/routing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoutesCommand(t *testing.T) {
	out, err := execute(t, "routes")
	require.NoError(t, err)
	assert.Contains(t, out, "CONTROLLER")
	assert.Contains(t, out, "/ws/rooms/{room}")
	assert.Contains(t, out, "HealthCheck")

	out, err = execute(t, "routes", "--out", "json")
	require.NoError(t, err)
	var routes []routing.RouteInfo
	require.NoError(t, json.Unmarshal([]byte(out), &routes))
	assert.Len(t, routes, len(routing.Declared()))

	_, err = execute(t, "routes", "--out", "yaml")
	assert.Error(t, err)
}

func TestOpenAPICommand(t *testing.T) {
	t.Setenv("ROUTEKIT_CONFIG", "")
	out, err := execute(t, "openapi")
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "2.0", doc["swagger"])
	assert.Contains(t, doc["paths"], "/api/version")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "routekit")
}
