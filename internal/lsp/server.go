// Package lsp implements the transport-facing half of the language server
// described in spec.md §6: it decodes LSP requests, translates between the
// one-indexed boundary positions and the zero-indexed positions internal
// packages use, and dispatches everything else to internal/device's
// Coordinator.
package lsp

import (
	"context"
	"runtime/debug"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/fenghaitao/dml-language-server/internal/device"
	"github.com/fenghaitao/dml-language-server/internal/diag"
)

var serverInfo = makeServerInfo()

func makeServerInfo() protocol.ServerInfo {
	info := protocol.ServerInfo{Name: "dmllsp"}
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		info.Version = buildInfo.Main.Version
	}
	return info
}

// Server adapts a device.Coordinator to protocol.Server. Every method not
// overridden here falls back to unimplemented's stub.
type Server struct {
	unimplemented

	coord  *device.Coordinator
	log    *zap.Logger
	client protocol.Client
}

// NewServer wires conn's client proxy to coord. conn may be nil in tests
// that never call a method needing to publish diagnostics.
func NewServer(conn jsonrpc2.Conn, coord *device.Coordinator, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{coord: coord, log: log}
	if conn != nil {
		s.client = protocol.ClientDispatcher(conn, log.Named("client"))
	}
	return s
}

// -- Lifecycle

func (s *Server) Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
				Save:      &protocol.SaveOptions{IncludeText: false},
			},
			HoverProvider:          true,
			DefinitionProvider:     true,
			ReferencesProvider:     true,
			DocumentSymbolProvider: true,
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{"."},
			},
		},
		ServerInfo: &serverInfo,
	}, nil
}

func (s *Server) Initialized(ctx context.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.coord.Close()
}

func (s *Server) Exit(ctx context.Context) error {
	return nil
}

// -- Document sync

func (s *Server) DidOpen(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	path := filePath(params.TextDocument.URI)
	s.coord.Analyze(ctx, path, params.TextDocument.Text)
	s.publish(ctx, path)
	return nil
}

func (s *Server) DidChange(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	path := filePath(params.TextDocument.URI)
	text := params.ContentChanges[len(params.ContentChanges)-1].Text
	for _, changed := range s.coord.Invalidate(path) {
		if changed != path {
			s.publish(ctx, changed)
		}
	}
	s.coord.Analyze(ctx, path, text)
	s.publish(ctx, path)
	return nil
}

func (s *Server) DidSave(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	return nil
}

func (s *Server) DidClose(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	return nil
}

// publish sends path's current diagnostics to the client. DidOpen/DidChange
// call this for the edited file and for every file invalidated by it
// (spec.md §4.F): a dependent's stale diagnostics must not linger in the
// editor after a change to something it imports.
func (s *Server) publish(ctx context.Context, path string) {
	if s.client == nil {
		return
	}
	diags := s.coord.DiagnosticsForFile(path)
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, toDiagnostic(d))
	}
	_ = s.client.PublishDiagnostics(ctx, &protocol.PublishDiagnosticsParams{
		URI:         protocol.DocumentURI(uri.File(path)),
		Diagnostics: out,
	})
}

func toDiagnostic(d diag.Diagnostic) protocol.Diagnostic {
	return protocol.Diagnostic{
		Range:    toRange(d.Span.Range),
		Severity: protocol.DiagnosticSeverity(d.Severity),
		Code:     d.Code(),
		Source:   "dml",
		Message:  d.Message,
	}
}
