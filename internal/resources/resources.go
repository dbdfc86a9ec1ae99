package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/meetsched/internal/accounts"
	"github.com/teemow/meetsched/internal/config"
	"github.com/teemow/meetsched/internal/server"
)

const (
	AccountsURI = "meetsched://accounts"
	SettingsURI = "meetsched://settings"
)

// AccountLister lists the configured accounts.
type AccountLister interface {
	List(ctx context.Context) ([]accounts.Info, error)
}

// Settings is the JSON shape of the settings resource.
type Settings struct {
	Timezone        string `json:"timezone"`
	WorkingHours    bool   `json:"workingHours"`
	WorkdayStart    int    `json:"workdayStart"`
	WorkdayEnd      int    `json:"workdayEnd"`
	IncludeWeekends bool   `json:"includeWeekends"`
	MaxResults      int    `json:"maxResults"`
	MirrorBackend   string `json:"mirrorBackend"`
	MirrorCalendar  string `json:"mirrorCalendar,omitempty"`
}

// RegisterResources registers the meetsched resources with the MCP server
func RegisterResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	cfg := sc.Config()
	if cfg == nil {
		return fmt.Errorf("server context has no configuration")
	}
	register(s, sc.Accounts(), settingsFromConfig(cfg, sc.MirrorBackend()))
	return nil
}

func register(s *mcpserver.MCPServer, lister AccountLister, settings Settings) {
	accountsResource := mcp.NewResource(
		AccountsURI,
		"Google Accounts",
		mcp.WithResourceDescription("Configured Google accounts with label, credential state and default flag"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(accountsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleAccounts(ctx, request, lister)
	})

	settingsResource := mcp.NewResource(
		SettingsURI,
		"Scheduling Settings",
		mcp.WithResourceDescription("Time zone, working hours and local calendar mirror used when searching and booking"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(settingsResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return jsonContents(request.Params.URI, settings)
	})
}

func settingsFromConfig(cfg *config.Config, mirrorBackend string) Settings {
	tz := "Local"
	if loc, err := cfg.Location(); err == nil {
		tz = loc.String()
	}
	return Settings{
		Timezone:        tz,
		WorkingHours:    cfg.Scheduling.WorkingHours,
		WorkdayStart:    cfg.Scheduling.WorkdayStart,
		WorkdayEnd:      cfg.Scheduling.WorkdayEnd,
		IncludeWeekends: cfg.Scheduling.IncludeWeekends,
		MaxResults:      cfg.Scheduling.MaxResults,
		MirrorBackend:   mirrorBackend,
		MirrorCalendar:  cfg.Mirror.Calendar,
	}
}

func handleAccounts(ctx context.Context, request mcp.ReadResourceRequest, lister AccountLister) ([]mcp.ResourceContents, error) {
	infos, err := lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	if infos == nil {
		infos = []accounts.Info{}
	}
	return jsonContents(request.Params.URI, map[string]any{
		"accounts": infos,
	})
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource data: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(jsonData),
		},
	}, nil
}
