package google_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetsched/internal/accounts"
	"github.com/teemow/meetsched/internal/server"
	"github.com/teemow/meetsched/internal/tools/common"
)

// AccountManager is the subset of *accounts.Manager used by the tools.
type AccountManager interface {
	List(ctx context.Context) ([]accounts.Info, error)
	SetDefault(ctx context.Context, ref string) (string, error)
	SetLabel(ctx context.Context, ref, label string) (string, error)
	RemoveAccount(ctx context.Context, ref string) (string, error)
}

// RegisterGoogleTools registers the account management tools with the MCP server
func RegisterGoogleTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	return registerTools(s, sc.Accounts(), sc)
}

func registerTools(s *mcpserver.MCPServer, mgr AccountManager, inst common.Instrumentation) error {
	listTool := mcp.NewTool("account_list",
		mcp.WithDescription("List the configured Google accounts with their labels, credential state and which one is the default"),
	)
	s.AddTool(listTool, common.InstrumentedToolHandler("account_list", inst,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleList(ctx, mgr)
		}))

	setDefaultTool := mcp.NewTool("account_set_default",
		mcp.WithDescription("Make an account the default for tools called without an account"),
		mcp.WithString("account",
			mcp.Required(),
			mcp.Description("Account email or label"),
		),
	)
	s.AddTool(setDefaultTool, common.InstrumentedToolHandler("account_set_default", inst,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSetDefault(ctx, request, mgr)
		}))

	setLabelTool := mcp.NewTool("account_set_label",
		mcp.WithDescription("Set or clear the label of an account. Labels can be used instead of the email in the account argument of every tool."),
		mcp.WithString("account",
			mcp.Required(),
			mcp.Description("Account email or current label"),
		),
		mcp.WithString("label",
			mcp.Required(),
			mcp.Description("New label, e.g. 'work'. An empty string removes the label."),
		),
	)
	s.AddTool(setLabelTool, common.InstrumentedToolHandler("account_set_label", inst,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleSetLabel(ctx, request, mgr)
		}))

	removeTool := mcp.NewTool("account_remove",
		mcp.WithDescription("Remove an account and its stored credentials"),
		mcp.WithString("account",
			mcp.Required(),
			mcp.Description("Account email or label"),
		),
	)
	s.AddTool(removeTool, common.InstrumentedToolHandler("account_remove", inst,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleRemove(ctx, request, mgr)
		}))

	return nil
}

func handleList(ctx context.Context, mgr AccountManager) (*mcp.CallToolResult, error) {
	infos, err := mgr.List(ctx)
	if err != nil {
		return common.ErrorResult("list accounts", err), nil
	}
	if len(infos) == 0 {
		return mcp.NewToolResultText("No accounts configured. Add one with: meetsched accounts add"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d account(s):\n\n", len(infos))
	for _, info := range infos {
		b.WriteString(formatInfo(info))
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

func formatInfo(info accounts.Info) string {
	var b strings.Builder
	b.WriteString("- ")
	b.WriteString(info.Email)
	if info.Label != "" {
		fmt.Fprintf(&b, " [%s]", info.Label)
	}
	if info.IsDefault {
		b.WriteString(" (default)")
	}
	fmt.Fprintf(&b, ": %s", info.State)
	if !info.Expiry.IsZero() {
		fmt.Fprintf(&b, ", token expires %s", info.Expiry.Format(time.RFC3339))
	}
	return b.String()
}

func requiredAccount(args map[string]any) (string, *mcp.CallToolResult) {
	ref := common.GetAccountFromArgs(args)
	if ref == "" {
		return "", mcp.NewToolResultError("account is required")
	}
	return ref, nil
}

func handleSetDefault(ctx context.Context, request mcp.CallToolRequest, mgr AccountManager) (*mcp.CallToolResult, error) {
	ref, errResult := requiredAccount(request.GetArguments())
	if errResult != nil {
		return errResult, nil
	}

	email, err := mgr.SetDefault(ctx, ref)
	if err != nil {
		return common.ErrorResult("set default account", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Default account is now %s", email)), nil
}

func handleSetLabel(ctx context.Context, request mcp.CallToolRequest, mgr AccountManager) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	ref, errResult := requiredAccount(args)
	if errResult != nil {
		return errResult, nil
	}
	if _, ok := args["label"].(string); !ok {
		return mcp.NewToolResultError("label is required; pass an empty string to remove the label"), nil
	}
	label := common.StringArg(args, "label")

	email, err := mgr.SetLabel(ctx, ref, label)
	if err != nil {
		return common.ErrorResult("set account label", err), nil
	}
	if label == "" {
		return mcp.NewToolResultText(fmt.Sprintf("Label removed from %s", email)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s is now labelled %q", email, label)), nil
}

func handleRemove(ctx context.Context, request mcp.CallToolRequest, mgr AccountManager) (*mcp.CallToolResult, error) {
	ref, errResult := requiredAccount(request.GetArguments())
	if errResult != nil {
		return errResult, nil
	}

	email, err := mgr.RemoveAccount(ctx, ref)
	if err != nil {
		return common.ErrorResult("remove account", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Removed account %s and its stored credentials", email)), nil
}
