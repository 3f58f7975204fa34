package lsp

import (
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/fenghaitao/dml-language-server/internal/span"
)

// toPosition converts a zero-indexed internal position to the one-indexed
// position used at the LSP boundary (spec.md §6). All conversions between
// the two conventions happen in this file and nowhere else.
func toPosition(pos span.Position) protocol.Position {
	return protocol.Position{
		Line:      uint32(pos.Line + 1),
		Character: uint32(pos.Column + 1),
	}
}

// fromPosition converts a one-indexed boundary position back to the
// zero-indexed convention internal packages expect.
func fromPosition(pos protocol.Position) span.Position {
	line := int(pos.Line) - 1
	col := int(pos.Character) - 1
	if line < 0 {
		line = 0
	}
	if col < 0 {
		col = 0
	}
	return span.Position{Line: line, Column: col}
}

func toRange(r span.Range) protocol.Range {
	return protocol.Range{Start: toPosition(r.Start), End: toPosition(r.End)}
}

func toLocation(sp span.Span) protocol.Location {
	return protocol.Location{
		URI:   protocol.DocumentURI(uri.File(sp.File)),
		Range: toRange(sp.Range),
	}
}

// filePath extracts the filesystem path from a document URI. Every
// coordinator lookup is keyed by this path, never by the URI itself.
func filePath(u protocol.DocumentURI) string {
	return uri.URI(u).Filename()
}
