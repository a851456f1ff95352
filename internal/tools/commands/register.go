// Package commands exposes the submission registry as chat commands over MCP.
// A chat bridge calls one tool per command, passing the author's identity and roles.
package commands

import (
	"io"
	"log"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jaakkos/promptbox/internal/app"
	"github.com/jaakkos/promptbox/internal/policy"
)

// RegisterOption configures optional dependencies for tool registration.
type RegisterOption func(*registerOpts)

type registerOpts struct {
	shutdown func()
	now      func() time.Time
}

// WithShutdown sets the function the exit command calls after replying.
// Without it, exit is refused even for the owner.
func WithShutdown(fn func()) RegisterOption {
	return func(o *registerOpts) { o.shutdown = fn }
}

// WithClock replaces time.Now for the getsubmissions cooldown.
func WithClock(now func() time.Time) RegisterOption {
	return func(o *registerOpts) { o.now = now }
}

// handlers carries what every command needs.
type handlers struct {
	store    *app.SubmissionService
	auth     *app.AuthorizationRegistry
	pol      *policy.Policy
	logger   *log.Logger
	dumps    *cooldown
	shutdown func()
}

// Register adds every enabled command tool to s.
func Register(s *server.MCPServer, store *app.SubmissionService, auth *app.AuthorizationRegistry, pol *policy.Policy, logger *log.Logger, opts ...RegisterOption) {
	var o registerOpts
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	h := &handlers{
		store:    store,
		auth:     auth,
		pol:      pol,
		logger:   logger,
		dumps:    newCooldown(pol.DumpCooldown(), o.now),
		shutdown: o.shutdown,
	}

	add := func(tool mcp.Tool, fn server.ToolHandlerFunc) {
		if !pol.IsToolEnabled(tool.Name) {
			logger.Printf("Command %s disabled by config", tool.Name)
			return
		}
		s.AddTool(tool, fn)
	}

	// Submission commands (4)
	add(submitTool(), h.submit)
	add(randomTool(), h.random)
	add(deleteTool(), h.delete)
	add(getSubmissionsTool(), h.getSubmissions)

	// Role commands (4)
	add(roleTool("addrole", "Add a role that can delete any submission. (Admin only)"), h.addRole)
	add(roleTool("removerole", "Remove a role that can delete any submission. (Admin only)"), h.removeRole)
	add(roleTool("addsubmitrole", "Add a role that can submit texts. (Admin only)"), h.addSubmitRole)
	add(roleTool("removesubmitrole", "Remove a role that can submit texts. (Admin only)"), h.removeSubmitRole)

	// Bot commands (2)
	add(infoTool(), h.info)
	add(exitTool(), h.exit)
}

// reply is the single chat message a command answers with.
func reply(text string) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(text), nil
}

func withUser(desc string) mcp.ToolOption {
	return mcp.WithString("user", mcp.Required(), mcp.Description(desc))
}

func withRoles() mcp.ToolOption {
	return mcp.WithArray("roles", mcp.Description("Role ids held by the user. Send ids as strings; they exceed JSON number precision."))
}
