package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jaakkos/promptbox/internal/app"
)

const msgNotAdministrator = "You are missing Administrator permission(s) to run this command."

func roleTool(name, desc string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription(desc),
		withUser("User running the command"),
		mcp.WithBoolean("administrator", mcp.Description("Whether the user holds the server administrator permission")),
		mcp.WithString("role_id", mcp.Required(), mcp.Description("Role id as a decimal string")),
		mcp.WithString("role_name", mcp.Description("Role display name for the reply (defaults to the id)")),
	)
}

// roleArgs holds what every role command reads from its arguments.
type roleArgs struct {
	id   int64
	name string
}

// parseRoleArgs checks the administrator flag before anything else; ok is false
// when the caller lacks it.
func parseRoleArgs(req mcp.CallToolRequest) (ra roleArgs, ok bool, err error) {
	args := req.GetArguments()
	if _, err := requireString(args, "user"); err != nil {
		return ra, false, err
	}
	if !optionalBool(args, "administrator") {
		return ra, false, nil
	}
	ra.id, err = requireRoleID(args, "role_id")
	if err != nil {
		return ra, false, err
	}
	ra.name = optionalString(args, "role_name", strconv.FormatInt(ra.id, 10))
	return ra, true, nil
}

// changeRole runs one allow-list mutation and picks the reply by its outcome.
func (h *handlers) changeRole(req mcp.CallToolRequest, mutate func(*app.AllowList, int64) (bool, error), list *app.AllowList, changed, unchanged string) (*mcp.CallToolResult, error) {
	ra, ok, err := parseRoleArgs(req)
	if err != nil {
		return nil, err
	}
	if !ok {
		return reply(msgNotAdministrator)
	}
	done, err := mutate(list, ra.id)
	if err != nil {
		return nil, err
	}
	if done {
		h.logger.Printf("%s: role %d (%s) on %s list", req.Params.Name, ra.id, ra.name, list.Name())
		return reply(fmt.Sprintf(changed, ra.name))
	}
	return reply(fmt.Sprintf(unchanged, ra.name))
}

func (h *handlers) addRole(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.changeRole(req, (*app.AllowList).AddRole, h.auth.Admin,
		"Role %s added to admin roles.", "Role %s is already an admin role.")
}

func (h *handlers) removeRole(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.changeRole(req, (*app.AllowList).RemoveRole, h.auth.Admin,
		"Role %s removed from admin roles.", "Role %s is not an admin role.")
}

func (h *handlers) addSubmitRole(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.changeRole(req, (*app.AllowList).AddRole, h.auth.Submit,
		"Role %s added to submission roles.", "Role %s is already a submission role.")
}

func (h *handlers) removeSubmitRole(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.changeRole(req, (*app.AllowList).RemoveRole, h.auth.Submit,
		`Role "%s" removed from submission roles.`, `Role "%s" is not a submission role.`)
}
