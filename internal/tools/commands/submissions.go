package commands

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jaakkos/promptbox/internal/domain"
)

const (
	msgSubmitCategory = "Invalid category! Please choose from 'safe', 'questionable', or 'nsfw'."
	msgFilterCategory = "Invalid category! Please choose from 'safe', 'questionable', 'nsfw', or leave it blank for all categories."
	msgSubmitDenied   = "You do not have the required role to submit text."
)

func submitTool() mcp.Tool {
	return mcp.NewTool("submit",
		mcp.WithDescription("Submit text in a category (safe, questionable, nsfw). Requires a submission role."),
		withUser("Submitting user, e.g. 'name#1234'"),
		withRoles(),
		mcp.WithString("category", mcp.Required(), mcp.Description("safe, questionable or nsfw (any case)")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to submit; must not already exist in any category")),
	)
}

func (h *handlers) submit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := requireString(args, "user")
	if err != nil {
		return nil, err
	}
	text, err := requireString(args, "text")
	if err != nil {
		return nil, err
	}
	roles, err := roleIDs(args, "roles")
	if err != nil {
		return nil, err
	}
	raw, _ := args["category"].(string)
	category, err := domain.ParseCategory(raw)
	if err != nil {
		return reply(msgSubmitCategory)
	}

	if !h.auth.CanSubmit(roles) {
		return reply(msgSubmitDenied)
	}
	added, err := h.store.Submit(user, category, text)
	if err != nil {
		return nil, err
	}
	if !added {
		return reply(fmt.Sprintf(`The prompt "%s" already exists in the submissions.`, text))
	}
	return reply(fmt.Sprintf(`Text submitted by %s in category %s: "%s"`, user, raw, text))
}

func randomTool() mcp.Tool {
	return mcp.NewTool("random",
		mcp.WithDescription("Get a random submission, optionally filtered by category."),
		mcp.WithString("category", mcp.Description("safe, questionable or nsfw; omit for all categories")),
	)
}

func (h *handlers) random(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, ok := optionalCategory(req.GetArguments(), "category")
	if !ok {
		return reply(msgFilterCategory)
	}
	return reply(fmt.Sprintf(`Random submission: "%s"`, h.store.RandomSubmission(category)))
}

func deleteTool() mcp.Tool {
	return mcp.NewTool("delete",
		mcp.WithDescription("Delete your own submission. Users with an admin role can delete any submission."),
		withUser("User asking for the delete"),
		withRoles(),
		mcp.WithString("text", mcp.Required(), mcp.Description("Exact text of the submission")),
	)
}

func (h *handlers) delete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := requireString(args, "user")
	if err != nil {
		return nil, err
	}
	text, err := requireString(args, "text")
	if err != nil {
		return nil, err
	}
	roles, err := roleIDs(args, "roles")
	if err != nil {
		return nil, err
	}

	removed, err := h.store.Delete(user, text, h.auth.IsAdmin(roles))
	if err != nil {
		return nil, err
	}
	if !removed {
		return reply("No matching text found or insufficient permissions: " + text)
	}
	return reply("Text deleted: " + text)
}

func getSubmissionsTool() mcp.Tool {
	return mcp.NewTool("getsubmissions",
		mcp.WithDescription("Get every submission, optionally filtered by category. Limited to one call per user per cooldown period."),
		withUser("User asking for the dump; the cooldown is per user"),
		mcp.WithString("category", mcp.Description("safe, questionable or nsfw; omit for all categories")),
	)
}

func (h *handlers) getSubmissions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	user, err := requireString(args, "user")
	if err != nil {
		return nil, err
	}
	if ok, wait := h.dumps.take(user); !ok {
		return reply(fmt.Sprintf("This command is on cooldown. Please try again in %.2f seconds.", wait.Seconds()))
	}
	category, ok := optionalCategory(args, "category")
	if !ok {
		return reply(msgFilterCategory)
	}
	return reply(h.store.AllSubmissions(category))
}
