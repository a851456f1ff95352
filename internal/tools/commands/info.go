package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// HelpText lists the commands. cooldown is the getsubmissions period shown to users.
func HelpText(cooldown time.Duration) string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	b.WriteString("!submit <category> <text> - Submit text in a category (safe, questionable, nsfw).\n")
	b.WriteString("!random [category] - Get a random submission, optionally filtered by category.\n")
	b.WriteString("!delete <text> - Delete your own submission. Admins can delete any submission.\n")
	b.WriteString("!addrole <role> - Add a role that can delete any submission. (Admin only)\n")
	b.WriteString("!removerole <role> - Remove a role that can delete any submission. (Admin only)\n")
	b.WriteString("!addsubmitrole <role> - Add a role that can submit texts. (Admin only)\n")
	b.WriteString("!removesubmitrole <role> - Remove a role that can submit texts. (Admin only)\n")
	if cooldown > 0 {
		fmt.Fprintf(&b, "!getsubmissions [category] - Get all submissions, optionally filtered by category (%s cooldown).\n", cooldown)
	} else {
		b.WriteString("!getsubmissions [category] - Get all submissions, optionally filtered by category.\n")
	}
	b.WriteString("!info - Display this help message.\n")
	b.WriteString("!exit - Shut down the bot. (Bot owner only)")
	return b.String()
}

func infoTool() mcp.Tool {
	return mcp.NewTool("info",
		mcp.WithDescription("Display the list of commands."),
	)
}

func (h *handlers) info(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return reply(HelpText(h.pol.DumpCooldown()))
}

func exitTool() mcp.Tool {
	return mcp.NewTool("exit",
		mcp.WithDescription("Shut down the bot. Only the configured bot owner may do this."),
		withUser("User running the command"),
	)
}

func (h *handlers) exit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := requireString(req.GetArguments(), "user")
	if err != nil {
		return nil, err
	}
	owner := h.pol.BotOwner()
	if owner == "" || user != owner || h.shutdown == nil {
		return reply("You do not own this bot.")
	}
	h.logger.Printf("Exit requested by %s", user)
	// Let the reply go out before the server context is cancelled.
	time.AfterFunc(100*time.Millisecond, h.shutdown)
	return reply("Exiting the bot.")
}
