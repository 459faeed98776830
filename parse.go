package flowgraph

import (
	"encoding/json"
	"strings"
)

// ParseDocument decodes a workflow document. Structural checks are left to
// ValidateDocument.
func ParseDocument(data []byte) (*Document, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, NewError(ErrInvalidDocument, "workflow document is empty", nil, nil)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, NewError(ErrInvalidDocument, "decode workflow document", err, nil)
	}
	return &doc, nil
}

// ParseValidDocument decodes and validates a document, returning a
// ValidationError when error diagnostics are present. Warnings are returned
// alongside a valid document.
func ParseValidDocument(data []byte) (*Document, []Diagnostic, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, nil, err
	}
	diags := ValidateDocument(doc)
	if err := AsError(diags); err != nil {
		return nil, diags, err
	}
	return doc, diags, nil
}

// MarshalDocument encodes doc as indented JSON.
func MarshalDocument(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, NewError(ErrInvalidDocument, "workflow document is nil", nil, nil)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// ParseGraph decodes editor state.
func ParseGraph(data []byte) (Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return Graph{}, NewError(ErrInvalidGraph, "decode workflow graph", err, nil)
	}
	return g, nil
}

// MarshalGraph encodes editor state as indented JSON.
func MarshalGraph(g Graph) ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}
