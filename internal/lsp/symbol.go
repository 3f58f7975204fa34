package lsp

import (
	"go.lsp.dev/protocol"

	"github.com/fenghaitao/dml-language-server/internal/scope"
)

// symbolKind maps a scope.Kind (spec.md §3) onto the closest
// protocol.SymbolKind. There is no DML kind for most of the LSP's finer
// distinctions (namespace, constructor, operator, ...), so several DML
// kinds share one LSP kind.
func symbolKind(k scope.Kind) protocol.SymbolKind {
	switch k {
	case scope.KindDevice:
		return protocol.SymbolKindModule
	case scope.KindBank, scope.KindGroup:
		return protocol.SymbolKindNamespace
	case scope.KindRegister, scope.KindField, scope.KindAttribute, scope.KindConnect, scope.KindPort:
		return protocol.SymbolKindProperty
	case scope.KindMethod:
		return protocol.SymbolKindMethod
	case scope.KindParameter:
		return protocol.SymbolKindVariable
	case scope.KindTemplate, scope.KindInterface:
		return protocol.SymbolKindInterface
	case scope.KindEvent:
		return protocol.SymbolKindEvent
	case scope.KindConstant:
		return protocol.SymbolKindConstant
	case scope.KindTypedef:
		return protocol.SymbolKindTypeParameter
	case scope.KindStruct:
		return protocol.SymbolKindStruct
	case scope.KindModule:
		return protocol.SymbolKindNamespace
	default:
		return protocol.SymbolKindVariable
	}
}

// completionKind maps a scope.Kind onto the closest completion-item kind,
// used when offering in-scope symbols as completion candidates.
func completionKind(k scope.Kind) protocol.CompletionItemKind {
	switch k {
	case scope.KindTemplate, scope.KindInterface:
		return protocol.CompletionItemKindInterface
	case scope.KindMethod:
		return protocol.CompletionItemKindMethod
	case scope.KindParameter, scope.KindConstant:
		return protocol.CompletionItemKindVariable
	case scope.KindTypedef, scope.KindStruct:
		return protocol.CompletionItemKindClass
	default:
		return protocol.CompletionItemKindField
	}
}

// buildDocumentSymbol converts one symbol, recursively, into the LSP
// hierarchical outline shape.
func buildDocumentSymbol(sym *scope.Symbol) protocol.DocumentSymbol {
	ds := protocol.DocumentSymbol{
		Name:           sym.Name,
		Detail:         sym.Detail,
		Kind:           symbolKind(sym.Kind),
		Range:          toRange(sym.Defined.Range),
		SelectionRange: toRange(sym.Defined.Range),
	}
	for _, child := range sym.Children {
		ds.Children = append(ds.Children, buildDocumentSymbol(child))
	}
	return ds
}
