// Package mcp exposes a thicket Engine as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/thicket"
	"github.com/aretw0/thicket/internal/depgraph"
	"github.com/aretw0/thicket/internal/logging"
	"github.com/aretw0/thicket/internal/presentation/graph"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/cockroachdb/errors"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// GraphURI is the resource holding the sfw dependency graph.
const GraphURI = "thicket://graph"

// Engine defines the operations the MCP server needs.
type Engine interface {
	Resolve(ctx context.Context, req thicket.ResolveRequest) (*domain.ResolvedPrompt, error)
	SwapOptions(ctx context.Context, workflow domain.Workflow, name string, bindings map[string][]string) ([]domain.Choice, error)
	Snapshot(ctx context.Context, workflow domain.Workflow) (*domain.Corpus, error)
	Wildcard(ctx context.Context, workflow domain.Workflow, name string) (*domain.Wildcard, error)
	Validate(ctx context.Context, workflow domain.Workflow) ([]domain.Diagnostic, error)
	Graph(ctx context.Context, workflow domain.Workflow) (*depgraph.Graph, error)
}

// ResolveArgs are the arguments of resolve_template.
type ResolveArgs struct {
	Text     string            `json:"text,omitempty"`
	Template string            `json:"template,omitempty"`
	Workflow string            `json:"workflow,omitempty"`
	Seed     *int64            `json:"seed,omitempty"`
	Swap     map[string]string `json:"swap,omitempty"`
	Reroll   []string          `json:"reroll,omitempty"`
	Tidy     bool              `json:"tidy,omitempty"`
}

// ResolveResponse is the structured result of resolve_template.
type ResolveResponse struct {
	Text     string           `json:"text" jsonschema_description:"The resolved prompt"`
	Workflow domain.Workflow  `json:"workflow"`
	Seed     int64            `json:"seed" jsonschema_description:"Seed that reproduces this result"`
	Bindings []domain.Binding `json:"bindings"`
	Problems []domain.Problem `json:"problems,omitempty" jsonschema_description:"Directives that could not be fully resolved"`
}

// SwapArgs are the arguments of swap_options.
type SwapArgs struct {
	Name     string              `json:"name"`
	Workflow string              `json:"workflow,omitempty"`
	Bindings map[string][]string `json:"bindings,omitempty"`
}

// SwapResponse lists the eligible choices of a wildcard.
type SwapResponse struct {
	Name    string          `json:"name"`
	Choices []domain.Choice `json:"choices"`
}

// WorkflowArgs select a workflow.
type WorkflowArgs struct {
	Workflow string `json:"workflow,omitempty"`
}

// ValidateResponse is the structured result of validate_wildcards.
type ValidateResponse struct {
	OK          bool                `json:"ok"`
	Errors      int                 `json:"errors"`
	Diagnostics []domain.Diagnostic `json:"diagnostics"`
}

// Server wraps the Engine and exposes it as an MCP Server.
type Server struct {
	engine    Engine
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		engine: engine,
		logger: logger,
		mcpServer: server.NewMCPServer("thicket-mcp", strings.TrimSpace(thicket.Version),
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops it when
// ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func workflowOption() mcp.ToolOption {
	return mcp.WithString("workflow",
		mcp.Description("sfw (default) or nsfw. nsfw sees nsfw wildcards over shared ones."),
		mcp.Enum(string(domain.WorkflowSFW), string(domain.WorkflowNSFW)),
	)
}

func (s *Server) registerTools() {
	resolveTool := mcp.NewTool("resolve_template",
		mcp.WithDescription("Expand the __wildcard__ directives of a template into a prompt. Pass either raw text or the name of a stored template."),
		mcp.WithString("text", mcp.Description("Raw template text")),
		mcp.WithString("template", mcp.Description("Name of a stored template, e.g. sfw/portrait")),
		workflowOption(),
		mcp.WithNumber("seed", mcp.Description("Seed for a reproducible result")),
		mcp.WithObject("swap", mcp.Description("Forced values keyed by wildcard name")),
		mcp.WithArray("reroll", mcp.Description("Wildcards to draw again"), mcp.WithStringItems()),
		mcp.WithBoolean("tidy", mcp.Description("Collapse stray separators left by empty values")),
		mcp.WithOutputSchema[ResolveResponse](),
	)
	s.mcpServer.AddTool(resolveTool, mcp.NewStructuredToolHandler(s.handleResolve))

	swapTool := mcp.NewTool("swap_options",
		mcp.WithDescription("List the choices of a wildcard that are eligible under the given bindings."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Wildcard name")),
		workflowOption(),
		mcp.WithObject("bindings", mcp.Description("Values already chosen, keyed by wildcard name")),
		mcp.WithOutputSchema[SwapResponse](),
	)
	s.mcpServer.AddTool(swapTool, mcp.NewStructuredToolHandler(s.handleSwapOptions))

	validateTool := mcp.NewTool("validate_wildcards",
		mcp.WithDescription("Run every consistency check over the wildcards and templates of a workflow."),
		workflowOption(),
		mcp.WithOutputSchema[ValidateResponse](),
	)
	s.mcpServer.AddTool(validateTool, mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("dependency_graph",
		mcp.WithDescription("Render the wildcard dependency graph."),
		workflowOption(),
		mcp.WithString("format", mcp.Description("mermaid (default), json or yaml"), mcp.Enum(graph.Formats...)),
		mcp.WithString("focus", mcp.Description("Wildcard to highlight")),
	), s.handleGraph)

	s.mcpServer.AddTool(mcp.NewTool("list_wildcards",
		mcp.WithDescription("List the wildcards visible to a workflow."),
		workflowOption(),
	), s.handleList)

	s.mcpServer.AddTool(mcp.NewTool("get_wildcard",
		mcp.WithDescription("Get the choices of one wildcard."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Wildcard name")),
		workflowOption(),
	), s.handleGet)
}

func (s *Server) handleResolve(ctx context.Context, request mcp.CallToolRequest, args ResolveArgs) (ResolveResponse, error) {
	if args.Text == "" && args.Template == "" {
		return ResolveResponse{}, errors.New("one of text or template is required")
	}
	// An empty workflow defers to the stored template's own.
	var workflow domain.Workflow
	if args.Workflow != "" {
		wf, err := domain.ParseWorkflow(args.Workflow)
		if err != nil {
			return ResolveResponse{}, withHint(err)
		}
		workflow = wf
	}

	res, err := s.engine.Resolve(ctx, thicket.ResolveRequest{
		Text:     args.Text,
		Template: args.Template,
		Workflow: workflow,
		Seed:     args.Seed,
		Swap:     args.Swap,
		Reroll:   args.Reroll,
		Tidy:     args.Tidy,
	})
	if err != nil {
		return ResolveResponse{}, withHint(err)
	}
	if len(res.Problems) > 0 {
		s.logger.Debug("MCP resolve: partial result", "problems", len(res.Problems))
	}
	return ResolveResponse{
		Text:     res.Text,
		Workflow: res.Workflow,
		Seed:     res.Seed,
		Bindings: res.Bindings,
		Problems: res.Problems,
	}, nil
}

func (s *Server) handleSwapOptions(ctx context.Context, request mcp.CallToolRequest, args SwapArgs) (SwapResponse, error) {
	workflow, err := domain.ParseWorkflow(args.Workflow)
	if err != nil {
		return SwapResponse{}, withHint(err)
	}
	choices, err := s.engine.SwapOptions(ctx, workflow, args.Name, args.Bindings)
	if err != nil {
		return SwapResponse{}, withHint(err)
	}
	if choices == nil {
		choices = []domain.Choice{}
	}
	return SwapResponse{Name: args.Name, Choices: choices}, nil
}

func (s *Server) handleValidate(ctx context.Context, request mcp.CallToolRequest, args WorkflowArgs) (ValidateResponse, error) {
	workflow, err := domain.ParseWorkflow(args.Workflow)
	if err != nil {
		return ValidateResponse{}, withHint(err)
	}
	diags, err := s.engine.Validate(ctx, workflow)
	if err != nil {
		return ValidateResponse{}, err
	}
	if diags == nil {
		diags = []domain.Diagnostic{}
	}
	errs := len(domain.Errors(diags))
	return ValidateResponse{OK: errs == 0, Errors: errs, Diagnostics: diags}, nil
}

func (s *Server) handleGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow, err := domain.ParseWorkflow(request.GetString("workflow", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	g, err := s.engine.Graph(ctx, workflow)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("graph failed: %v", err)), nil
	}

	var overlay *graph.Overlay
	if focus := request.GetString("focus", ""); focus != "" {
		overlay = &graph.Overlay{Focus: focus}
	}
	data, err := graph.Render(g, request.GetString("format", "mermaid"), overlay)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow, err := domain.ParseWorkflow(request.GetString("workflow", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	corpus, err := s.engine.Snapshot(ctx, workflow)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("snapshot failed: %v", err)), nil
	}

	type entry struct {
		Name    string       `json:"name"`
		Scope   domain.Scope `json:"scope"`
		Choices int          `json:"choices"`
		Corrupt bool         `json:"corrupt,omitempty"`
	}
	out := make([]entry, 0, len(corpus.Wildcards)+len(corpus.Corrupt))
	for _, name := range corpus.Names() {
		w, _ := corpus.Get(name)
		out = append(out, entry{Name: name, Scope: w.Scope, Choices: len(w.Choices)})
	}
	for name, cerr := range corpus.Corrupt {
		out = append(out, entry{Name: name, Scope: cerr.Scope, Corrupt: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	jsonBytes, _ := json.Marshal(out)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	workflow, err := domain.ParseWorkflow(request.GetString("workflow", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	w, err := s.engine.Wildcard(ctx, workflow, name)
	if err != nil {
		return mcp.NewToolResultError(withHint(err).Error()), nil
	}
	jsonBytes, _ := json.Marshal(w)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Wildcard dependency graph",
		mcp.WithResourceDescription("Nodes, edges and include cycles of the sfw workflow"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		g, err := s.engine.Graph(ctx, domain.WorkflowSFW)
		if err != nil {
			return nil, fmt.Errorf("failed to build graph: %w", err)
		}
		data, err := graph.Render(g, "json", nil)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GraphURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

// withHint folds the hints attached to err into its message.
func withHint(err error) error {
	if hint := errors.FlattenHints(err); hint != "" {
		return fmt.Errorf("%w (hint: %s)", err, hint)
	}
	return err
}
