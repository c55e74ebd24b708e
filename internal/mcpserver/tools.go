package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/apresai/summit/internal/kiosk"
	"github.com/apresai/summit/internal/persona"
	"github.com/apresai/summit/internal/progression"
)

var tracer = otel.Tracer("summit-mcp")

func sessionParam() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Session ID returned from start_session",
	}
}

// ToolDefs returns the MCP tool definitions.
func ToolDefs() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "list_leaders",
			Description: "List the leadership personas available at the kiosk with their role and style.",
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: map[string]any{},
			},
		},
		{
			Name:        "start_session",
			Description: "Start a kiosk visit. Returns a session ID used by every other tool.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"visitor_name": map[string]any{
						"type":        "string",
						"description": "Name shown on the leaderboard",
						"default":     "Guest",
					},
				},
			},
		},
		{
			Name:        "select_leader",
			Description: "Switch the session to a leader. The conversation restarts; XP and badges are kept.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"session_id": sessionParam(),
					"leader_id": map[string]any{
						"type":        "string",
						"description": "Leader ID from list_leaders",
					},
				},
				Required: []string{"session_id", "leader_id"},
			},
		},
		{
			Name:        "ask_leader",
			Description: "Ask the selected leader a question. XP is only awarded when the leader actually answers.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"session_id": sessionParam(),
					"message": map[string]any{
						"type":        "string",
						"description": "The visitor's question",
					},
					"leader_id": map[string]any{
						"type":        "string",
						"description": "Optionally switch to this leader before asking",
					},
				},
				Required: []string{"session_id", "message"},
			},
		},
		{
			Name:        "get_progress",
			Description: "Get XP, level, badges and the latest insight card for a session.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"session_id": sessionParam(),
				},
				Required: []string{"session_id"},
			},
		},
		{
			Name:        "end_session",
			Description: "End the visit and record it on the leaderboard.",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]any{
					"session_id": sessionParam(),
				},
				Required: []string{"session_id"},
			},
		},
	}
}

// Handlers contains tool handler implementations.
type Handlers struct {
	svc *kiosk.Service
	log *slog.Logger
}

// NewHandlers creates tool handlers.
func NewHandlers(svc *kiosk.Service, logger *slog.Logger) *Handlers {
	return &Handlers{svc: svc, log: logger}
}

// HandleListLeaders returns the persona cards.
func (h *Handlers) HandleListLeaders(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.list_leaders")
	defer span.End()

	leaders := h.svc.Leaders()
	out := make([]map[string]any, 0, len(leaders))
	for _, p := range leaders {
		out = append(out, leaderCard(p))
	}
	span.SetAttributes(attribute.Int("result_count", len(out)))
	return jsonResult(map[string]any{"leaders": out, "count": len(out)})
}

func leaderCard(p *persona.Persona) map[string]any {
	return map[string]any{
		"leader_id":  p.ID,
		"name":       p.Name,
		"role":       p.Role,
		"style":      p.Personality.CommunicationStyle,
		"philosophy": p.Personality.LeadershipPhilosophy,
	}
}

// HandleStartSession opens a session.
func (h *Handlers) HandleStartSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.start_session")
	defer span.End()

	snap := h.svc.Start(mcp.ParseString(req, "visitor_name", "Guest"))
	span.SetAttributes(attribute.String("session_id", snap.ID))
	h.log.InfoContext(ctx, "Session started over MCP", "session", snap.ID)

	return jsonResult(map[string]any{
		"session_id": snap.ID,
		"message":    "Session started. Use list_leaders, then select_leader and ask_leader.",
	})
}

// HandleSelectLeader switches persona.
func (h *Handlers) HandleSelectLeader(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.select_leader")
	defer span.End()

	sid := mcp.ParseString(req, "session_id", "")
	leaderID := mcp.ParseString(req, "leader_id", "")
	if sid == "" || leaderID == "" {
		span.SetStatus(codes.Error, "missing arguments")
		return mcp.NewToolResultError("session_id and leader_id are required"), nil
	}
	span.SetAttributes(attribute.String("session_id", sid), attribute.String("leader_id", leaderID))

	snap, err := h.svc.SelectLeader(sid, leaderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select leader failed")
		return toolError(err), nil
	}
	p, _ := h.svc.Registry.Get(leaderID)
	return jsonResult(map[string]any{
		"session_id": snap.ID,
		"leader":     leaderCard(p),
		"xp":         snap.XP,
	})
}

// HandleAskLeader runs one turn. Audio is not returned over MCP.
func (h *Handlers) HandleAskLeader(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.ask_leader")
	defer span.End()

	sid := mcp.ParseString(req, "session_id", "")
	message := mcp.ParseString(req, "message", "")
	if sid == "" || message == "" {
		span.SetStatus(codes.Error, "missing arguments")
		return mcp.NewToolResultError("session_id and message are required"), nil
	}
	span.SetAttributes(attribute.String("session_id", sid))

	if leaderID := mcp.ParseString(req, "leader_id", ""); leaderID != "" {
		snap, err := h.svc.Snapshot(sid)
		if err != nil {
			return toolError(err), nil
		}
		if snap.LeaderID != leaderID {
			if _, err := h.svc.SelectLeader(sid, leaderID); err != nil {
				return toolError(err), nil
			}
		}
	}

	res, err := h.svc.Ask(ctx, sid, message, kiosk.AskOptions{})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ask failed")
		return toolError(err), nil
	}
	span.SetAttributes(attribute.Bool("degraded", res.Degraded), attribute.Int("xp_awarded", res.XPAwarded))
	h.log.InfoContext(ctx, "Question answered over MCP",
		"session", sid,
		"key_id", AuthFromContext(ctx).KeyID,
		"degraded", res.Degraded,
	)

	result := map[string]any{
		"reply":      res.Reply,
		"degraded":   res.Degraded,
		"xp_awarded": res.XPAwarded,
		"xp":         res.Progress.XP,
		"level":      res.Progress.Level.Title,
	}
	if len(res.NewBadges) > 0 {
		result["new_badges"] = badgeNames(res.NewBadges)
	}
	if res.Insight != "" {
		result["insight"] = res.Insight
	}
	return jsonResult(result)
}

// HandleGetProgress returns the XP panel.
func (h *Handlers) HandleGetProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	_, span := tracer.Start(ctx, "tool.get_progress")
	defer span.End()

	sid := mcp.ParseString(req, "session_id", "")
	if sid == "" {
		span.SetStatus(codes.Error, "missing session_id")
		return mcp.NewToolResultError("session_id is required"), nil
	}
	view, err := h.svc.Progress(sid)
	if err != nil {
		span.RecordError(err)
		return toolError(err), nil
	}
	insight, _ := h.svc.Insight(sid)

	result := map[string]any{
		"xp":              view.XP,
		"xp_label":        view.XPLabel,
		"level":           view.Level.Index,
		"level_title":     view.Level.Title,
		"progress":        view.Fraction,
		"questions_asked": view.QuestionsAsked,
		"leaders_chatted": view.LeadersChatted,
		"total_leaders":   view.TotalLeaders,
		"badges":          badgeNames(view.Badges),
	}
	if insight != "" {
		result["insight"] = insight
	}
	return jsonResult(result)
}

// HandleEndSession ends and archives the visit.
func (h *Handlers) HandleEndSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, span := tracer.Start(ctx, "tool.end_session")
	defer span.End()

	sid := mcp.ParseString(req, "session_id", "")
	if sid == "" {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	snap, err := h.svc.End(ctx, sid)
	if err != nil {
		span.RecordError(err)
		return toolError(err), nil
	}
	return jsonResult(map[string]any{
		"session_id":      snap.ID,
		"xp":              snap.XP,
		"questions_asked": snap.QuestionsAsked,
		"leaders_chatted": snap.LeadersChatted,
	})
}

func badgeNames(badges []progression.Badge) []string {
	out := make([]string, len(badges))
	for i, b := range badges {
		out[i] = b.Icon + " " + b.Name
	}
	return out
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, kiosk.ErrNoLeaderSelected):
		return mcp.NewToolResultError("no leader selected: call select_leader first")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
