package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jacky-ZJQ/mcp-gateway/internal/config"
	"github.com/Jacky-ZJQ/mcp-gateway/mcp"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "gw.db")
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	body = strings.ReplaceAll(body, "$DIR", dir)
	path := filepath.Join(dir, "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestNewGatewayCatalog(t *testing.T) {
	g, err := newGateway(context.Background(), testConfig(t), discardLogger())
	require.NoError(t, err)
	defer g.Close()

	var names []string
	for _, tool := range g.engine.ListTools(context.Background()) {
		names = append(names, tool.Name)
		assert.Equal(t, mcp.SourceAutoTool, tool.Source)
	}
	assert.Equal(t, []string{"generate_course_reservation", "query_all_schools", "query_course"}, names)
}

func TestNewGatewayWithSkills(t *testing.T) {
	cfg := testConfig(t)
	cfg.Skills.Profiles = []config.SkillProfileConfig{
		{Code: "barista", Name: "Barista", Description: "Brewing advice"},
	}

	g, err := newGateway(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer g.Close()

	assert.Equal(t, 4, g.registry.Len())
	assert.Equal(t, mcp.SourceManualHandler, g.registry.Source("skill_chat_once"))
}

func TestNewGatewayOverrides(t *testing.T) {
	cfg := testConfig(t)
	cfg.MCP.AutoRegisterUnconfiguredTools = false
	cfg.MCP.Tools = []config.ToolConfig{
		{Name: "query_all_schools", Description: "Campus directory"},
	}

	g, err := newGateway(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer g.Close()

	tools := g.engine.ListTools(context.Background())
	require.Len(t, tools, 1)
	assert.Equal(t, "Campus directory", tools[0].Description)
	assert.Equal(t, mcp.SourceConfigOverride, tools[0].Source)
}

func TestNewGatewayRejectsUnknownOverride(t *testing.T) {
	cfg := testConfig(t)
	cfg.MCP.Tools = []config.ToolConfig{{Name: "no_such_tool"}}

	_, err := newGateway(context.Background(), cfg, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "building tool registry")
}

func TestGatewayHTTPHandler(t *testing.T) {
	cfg := testConfig(t)
	cfg.Quota.Limit = 1

	g, err := newGateway(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer g.Close()

	h, err := g.httpHandler()
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	defer srv.Close()

	post := func() *http.Response {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/ai/mcp",
			strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"t","version":"1"}}}`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-Id", "alice")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp := post()
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Mcp-Session-Id"))

	resp = post()
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestToolsCommand(t *testing.T) {
	path := writeConfigFile(t, `
database:
  path: $DIR/gw.db
logging:
  level: error
`)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs([]string{"--config", path, "tools"})
	root.SetOut(&out)
	require.NoError(t, root.Execute())

	var tools []mcp.Tool
	require.NoError(t, json.Unmarshal(out.Bytes(), &tools))
	assert.Len(t, tools, 3)
}

func TestStdioCommand(t *testing.T) {
	path := writeConfigFile(t, `
database:
  path: $DIR/gw.db
logging:
  level: error
`)

	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"t","version":"1"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"query_course","arguments":{"type":"Culture Salon"}}}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs([]string{"--config", path, "stdio"})
	root.SetIn(strings.NewReader(in))
	root.SetOut(&out)
	require.NoError(t, root.Execute())

	sc := bufio.NewScanner(&out)
	var lines []string
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.Len(t, lines, 2, "the notification must not produce output")

	var call struct {
		ID     int `json:"id"`
		Result struct {
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &call))
	assert.Equal(t, 2, call.ID)
	assert.False(t, call.Result.IsError)
	require.Len(t, call.Result.Content, 1)
	assert.Contains(t, call.Result.Content[0].Text, "Coffee History Salon")
}

func TestNewGatewayQuotaRedisUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Quota.Enabled = true
	cfg.Quota.Backend = config.QuotaRedis
	cfg.Quota.RedisAddr = "127.0.0.1:1"

	_, err := newGateway(context.Background(), cfg, discardLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connecting quota store")
}
