package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/promptbox/internal/app"
	"github.com/jaakkos/promptbox/internal/ownercipher"
	"github.com/jaakkos/promptbox/internal/policy"
	"github.com/jaakkos/promptbox/internal/repository"
)

// testEnv is a registry on flat files in a temp dir with every command registered.
type testEnv struct {
	server *server.MCPServer
	store  *app.SubmissionService
	auth   *app.AuthorizationRegistry
	pol    *policy.Policy
}

func newTestEnv(t *testing.T, mutate func(*policy.Config), opts ...RegisterOption) *testEnv {
	t.Helper()
	cfg := policy.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.BotOwner = "owner#0001"
	if mutate != nil {
		mutate(cfg)
	}
	pol := policy.New(cfg)

	key, err := ownercipher.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	set := repository.OpenFlatfile(pol, ownercipher.New(key))
	store, err := app.NewSubmissionService(set.Submissions, nil)
	if err != nil {
		t.Fatalf("NewSubmissionService: %v", err)
	}
	auth, err := app.NewAuthorizationRegistry(set.AdminRoles, set.SubmitRoles, nil)
	if err != nil {
		t.Fatalf("NewAuthorizationRegistry: %v", err)
	}

	s := server.NewMCPServer("test", "1.0.0")
	Register(s, store, auth, pol, nil, opts...)
	return &testEnv{server: s, store: store, auth: auth, pol: pol}
}

// callTool calls a registered tool via the MCPServer's HandleMessage.
// Returns the parsed CallToolResult or an error.
func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) (*mcp.CallToolResult, error) {
	t.Helper()

	reqJSON, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      name,
			"arguments": args,
		},
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	respJSON := s.HandleMessage(context.Background(), reqJSON)

	respBytes, marshalErr := json.Marshal(respJSON)
	if marshalErr != nil {
		t.Fatalf("marshal response: %v", marshalErr)
	}

	var resp struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	if resp.Error != nil {
		return nil, fmt.Errorf("RPC error %d: %s", resp.Error.Code, resp.Error.Message)
	}

	var result mcp.CallToolResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}

	return &result, nil
}

// resultText extracts the first text content from a CallToolResult.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("result is nil")
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content in result")
	return ""
}

// say calls a tool that is expected to succeed and returns its reply.
func (e *testEnv) say(t *testing.T, name string, args map[string]any) string {
	t.Helper()
	result, err := callTool(t, e.server, name, args)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return resultText(t, result)
}
