package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/peterkuimelis/crib/internal/config"
)

const (
	defaultWaitMS = 2000
	maxWaitMS     = 30000
)

// activeSession is the singleton client session (one per stdio process).
var (
	activeMu      sync.Mutex
	activeSession *Session
)

// cfg holds the client tunables, set by main.
var cfg = config.Default()

// logger receives session diagnostics, set by main.
var logger = zerolog.Nop()

// SetConfig sets the client tunables used for new sessions.
func SetConfig(c config.Config) {
	cfg = c
}

// SetLogger sets the diagnostics logger. It must not write to stdout.
func SetLogger(l zerolog.Logger) {
	logger = l
}

// RegisterTools adds all session tools to the MCP server.
func RegisterTools(s *server.MCPServer) {
	s.AddTool(startSessionTool(), handleStartSession)
	s.AddTool(sendInputTool(), handleSendInput)
	s.AddTool(readOutputTool(), handleReadOutput)
	s.AddTool(stopSessionTool(), handleStopSession)
}

// --- Tool definitions ---

func startSessionTool() mcp.Tool {
	return mcp.NewTool("start_session",
		mcp.WithDescription("Join a cribbage game server as a player. Returns the first terminal output. "+
			"Answer prompts with send_input; the session ends when the server disconnects."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Username to play under")),
		mcp.WithString("addr", mcp.Required(), mcp.Description("Server address, host:port or a ws:// URL")),
	)
}

func sendInputTool() mcp.Tool {
	return mcp.NewTool("send_input",
		mcp.WithDescription("Type one line into the player's terminal (an empty string presses return), "+
			"then return the output that follows."),
		mcp.WithString("text", mcp.Description("The line to type, without newline")),
		mcp.WithNumber("wait_ms", mcp.Description("How long to wait for output, in milliseconds (default 2000)")),
	)
}

func readOutputTool() mcp.Tool {
	return mcp.NewTool("read_output",
		mcp.WithDescription("Return terminal output produced since the last call without typing anything."),
		mcp.WithNumber("wait_ms", mcp.Description("How long to wait for output, in milliseconds (default 2000)")),
	)
}

func stopSessionTool() mcp.Tool {
	return mcp.NewTool("stop_session",
		mcp.WithDescription("Close the connection and end the current session."),
	)
}

// --- Tool handlers ---

func handleStartSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	activeMu.Lock()
	defer activeMu.Unlock()

	if activeSession != nil && !activeSession.Done() {
		return mcp.NewToolResultError("A session is already running. Use stop_session first."), nil
	}

	name := request.GetString("name", "")
	addr := request.GetString("addr", "")
	if name == "" {
		return mcp.NewToolResultError("name must not be empty"), nil
	}
	if addr == "" {
		return mcp.NewToolResultError("addr must not be empty"), nil
	}

	sess, err := StartSession(name, addr, cfg, logger)
	if err != nil {
		return mcp.NewToolResultErrorf("Failed to start session: %v", err), nil
	}
	activeSession = sess

	resp := sess.ReadOutput(ctx, waitDuration(defaultWaitMS))
	return mcp.NewToolResultText(respondJSON(resp)), nil
}

func handleSendInput(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess := current()
	if sess == nil {
		return mcp.NewToolResultError("No session is running. Use start_session first."), nil
	}

	if err := sess.SendLine(request.GetString("text", "")); err != nil {
		return mcp.NewToolResultErrorf("Could not send input: %v", err), nil
	}
	resp := sess.ReadOutput(ctx, waitDuration(request.GetInt("wait_ms", defaultWaitMS)))
	return mcp.NewToolResultText(respondJSON(resp)), nil
}

func handleReadOutput(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess := current()
	if sess == nil {
		return mcp.NewToolResultError("No session is running. Use start_session first."), nil
	}
	resp := sess.ReadOutput(ctx, waitDuration(request.GetInt("wait_ms", defaultWaitMS)))
	return mcp.NewToolResultText(respondJSON(resp)), nil
}

func handleStopSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	activeMu.Lock()
	defer activeMu.Unlock()

	if activeSession == nil {
		return mcp.NewToolResultError("No session is running."), nil
	}
	resp := activeSession.Stop()
	activeSession = nil
	return mcp.NewToolResultText(respondJSON(resp)), nil
}

func current() *Session {
	activeMu.Lock()
	defer activeMu.Unlock()
	return activeSession
}

func waitDuration(ms int) time.Duration {
	if ms < 0 {
		ms = 0
	}
	if ms > maxWaitMS {
		ms = maxWaitMS
	}
	return time.Duration(ms) * time.Millisecond
}
