package lsp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/fenghaitao/dml-language-server/internal/device"
	"github.com/fenghaitao/dml-language-server/internal/lsp"
)

func newTestServer(t *testing.T) (*lsp.Server, *device.Coordinator) {
	t.Helper()
	coord := device.New(zap.NewNop(), nil)
	return lsp.NewServer(nil, coord, zap.NewNop()), coord
}

func docURI(path string) protocol.DocumentURI {
	return protocol.DocumentURI(uri.File(path))
}

func TestInitialize_AdvertisesCapabilities(t *testing.T) {
	s, _ := newTestServer(t)
	result, err := s.Initialize(context.Background(), &protocol.InitializeParams{})
	require.NoError(t, err)
	assert.Equal(t, true, result.Capabilities.HoverProvider)
	assert.Equal(t, true, result.Capabilities.DefinitionProvider)
	assert.Equal(t, true, result.Capabilities.ReferencesProvider)
	assert.Equal(t, true, result.Capabilities.DocumentSymbolProvider)
}

func TestDidOpen_ThenDocumentSymbol_ListsTopLevelSymbol(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	path := "/dev/foo.dml"

	err := s.DidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:  docURI(path),
			Text: "dml 1.4;\ndevice foo;\n",
		},
	})
	require.NoError(t, err)

	syms, err := s.DocumentSymbol(ctx, &protocol.DocumentSymbolParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: docURI(path)},
	})
	require.NoError(t, err)
	require.Len(t, syms, 1)
	ds, ok := syms[0].(protocol.DocumentSymbol)
	require.True(t, ok)
	assert.Equal(t, "foo", ds.Name)
}

func TestDidOpen_ThenHover_OnDeviceNameReturnsSymbol(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	path := "/dev/foo.dml"
	text := "dml 1.4;\ndevice foo;\n"

	require.NoError(t, s.DidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: docURI(path), Text: text},
	}))

	// Line 2 ("device foo;") is the second line; "foo" starts at column 8
	// (zero-indexed 7). The boundary is one-indexed per spec.md §6, so
	// line 2, character 8 lands inside the name.
	hover, err := s.Hover(ctx, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: docURI(path)},
			Position:     protocol.Position{Line: 2, Character: 8},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, hover)
	assert.Contains(t, hover.Contents.Value, "foo")
}

func TestDidChange_InvalidatesAndReanalyzes(t *testing.T) {
	s, coord := newTestServer(t)
	ctx := context.Background()
	path := "/dev/foo.dml"

	require.NoError(t, s.DidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: docURI(path), Text: "dml 1.4;\ndevice foo;\n"},
	}))

	require.NoError(t, s.DidChange(ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: docURI(path)},
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{
			{Text: "dml 1.4;\ndevice bar;\n"},
		},
	}))

	syms := coord.SymbolsInFile(path)
	require.Len(t, syms, 1)
	assert.Equal(t, "bar", syms[0].Name)
}

func TestCompletion_IncludesKeywordsAndInScopeSymbols(t *testing.T) {
	s, _ := newTestServer(t)
	ctx := context.Background()
	path := "/dev/foo.dml"

	require.NoError(t, s.DidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: docURI(path), Text: "dml 1.4;\ndevice foo;\n"},
	}))

	list, err := s.Completion(ctx, &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: docURI(path)},
			Position:     protocol.Position{Line: 3, Character: 1},
		},
	})
	require.NoError(t, err)

	var sawKeyword, sawSymbol bool
	for _, item := range list.Items {
		if item.Label == "template" {
			sawKeyword = true
		}
		if item.Label == "foo" {
			sawSymbol = true
		}
	}
	assert.True(t, sawKeyword)
	assert.True(t, sawSymbol)
}

func TestShutdown_ClosesCoordinator(t *testing.T) {
	s, _ := newTestServer(t)
	assert.NoError(t, s.Shutdown(context.Background()))
}
