package lsp

import (
	"context"
	"fmt"

	"go.lsp.dev/protocol"
)

func (s *Server) Hover(ctx context.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	path := filePath(params.TextDocument.URI)
	sym, ok := s.coord.SymbolAtPosition(path, fromPosition(params.Position))
	if !ok {
		return nil, nil
	}
	value := fmt.Sprintf("**%s** _%s_", sym.Name, sym.Kind.String())
	if sym.Detail != "" {
		value += "\n\n" + sym.Detail
	}
	if sym.Doc != "" {
		value += "\n\n" + sym.Doc
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: value},
		Range:    toRange(sym.Defined.Range),
	}, nil
}

func (s *Server) Definition(ctx context.Context, params *protocol.DefinitionParams) ([]protocol.Location, error) {
	path := filePath(params.TextDocument.URI)
	sym, ok := s.coord.SymbolAtPosition(path, fromPosition(params.Position))
	if !ok {
		return nil, nil
	}
	return []protocol.Location{toLocation(sym.Defined)}, nil
}

func (s *Server) References(ctx context.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	path := filePath(params.TextDocument.URI)
	sym, ok := s.coord.SymbolAtPosition(path, fromPosition(params.Position))
	if !ok {
		return nil, nil
	}
	var locs []protocol.Location
	for _, def := range s.coord.DefinitionsOf(sym.Name) {
		if params.Context.IncludeDeclaration {
			locs = append(locs, toLocation(def.Symbol.Defined))
		}
		for _, ref := range def.References {
			locs = append(locs, toLocation(ref.Site))
		}
	}
	return locs, nil
}

func (s *Server) DocumentSymbol(ctx context.Context, params *protocol.DocumentSymbolParams) ([]interface{}, error) {
	path := filePath(params.TextDocument.URI)
	syms := s.coord.SymbolsInFile(path)
	out := make([]interface{}, 0, len(syms))
	for _, sym := range syms {
		out = append(out, buildDocumentSymbol(sym))
	}
	return out, nil
}

// keywords are the fixed DML reserved words offered alongside in-scope
// symbols, per spec.md §6's completion behavior.
var keywords = []string{
	"device", "bank", "register", "field", "method", "param", "attribute",
	"template", "is", "connect", "interface", "port", "event", "group",
	"constant", "typedef", "struct", "import", "dml", "extern", "header",
	"footer", "in", "out", "inline", "throws", "default", "size",
}

func (s *Server) Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	path := filePath(params.TextDocument.URI)
	var items []protocol.CompletionItem
	for _, sym := range s.coord.SymbolsInScope(path, fromPosition(params.Position)) {
		items = append(items, protocol.CompletionItem{
			Label: sym.Name,
			Kind:  completionKind(sym.Kind),
			Detail: func() string {
				if sym.Detail != "" {
					return sym.Detail
				}
				return sym.Kind.String()
			}(),
		})
	}
	for _, kw := range keywords {
		items = append(items, protocol.CompletionItem{
			Label: kw,
			Kind:  protocol.CompletionItemKindKeyword,
		})
	}
	return &protocol.CompletionList{Items: items}, nil
}
