// Package lsp serves mz sources to editors over the Language Server
// Protocol: diagnostics from every front-end stage and semantic tokens for
// highlighting, in whichever dialect the client asks for.
package lsp

import (
	"errors"
	"sort"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/mzlang/mzc/pkg/config"
	"github.com/mzlang/mzc/pkg/diag"
	"github.com/mzlang/mzc/pkg/dialect"
	"github.com/mzlang/mzc/pkg/lexer"
	"github.com/mzlang/mzc/pkg/parser"
	"github.com/mzlang/mzc/pkg/resolve"
)

const Name = "mzc"

var log = commonlog.GetLogger("mzc.lsp")

type Handler struct {
	mu    sync.RWMutex
	docs  map[protocol.DocumentUri]string
	table *dialect.Table
	cfg   *config.Config
}

// NewHandler serves sources in the given dialect; Initialize may switch it
// through the client's initializationOptions.
func NewHandler(table *dialect.Table, cfg *config.Config) *Handler {
	return &Handler{docs: make(map[protocol.DocumentUri]string), table: table, cfg: cfg}
}

// Protocol wires the handler's methods into a glsp dispatch table.
func (h *Handler) Protocol() *protocol.Handler {
	return &protocol.Handler{
		Initialize:                     h.Initialize,
		Initialized:                    h.Initialized,
		Shutdown:                       h.Shutdown,
		SetTrace:                       h.SetTrace,
		TextDocumentDidOpen:            h.TextDocumentDidOpen,
		TextDocumentDidChange:          h.TextDocumentDidChange,
		TextDocumentDidClose:           h.TextDocumentDidClose,
		TextDocumentSemanticTokensFull: h.TextDocumentSemanticTokensFull,
	}
}

func (h *Handler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	if opts, ok := params.InitializationOptions.(map[string]any); ok {
		if name, ok := opts["dialect"].(string); ok && name != "" {
			table, err := dialect.Load(name)
			if err != nil {
				return nil, err
			}
			h.mu.Lock()
			h.table = table
			h.mu.Unlock()
		}
	}
	log.Infof("initialize, dialect %s", h.dialect().Name)

	version := "0.1.0"
	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindFull),
			},
			SemanticTokensProvider: &protocol.SemanticTokensOptions{
				Legend: protocol.SemanticTokensLegend{
					TokenTypes:     SemanticTokenTypes,
					TokenModifiers: SemanticTokenModifiers,
				},
				Full: ptrBool(true),
			},
		},
		ServerInfo: &protocol.InitializeResultServerInfo{Name: Name, Version: &version},
	}, nil
}

func (h *Handler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (h *Handler) Shutdown(ctx *glsp.Context) error {
	protocol.SetTraceValue(protocol.TraceValueOff)
	return nil
}

func (h *Handler) SetTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func (h *Handler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	log.Debugf("opened %s", params.TextDocument.URI)
	h.store(params.TextDocument.URI, params.TextDocument.Text)
	h.publish(ctx, params.TextDocument.URI)
	return nil
}

func (h *Handler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI
	for _, change := range params.ContentChanges {
		switch c := change.(type) {
		case protocol.TextDocumentContentChangeEventWhole:
			h.store(uri, c.Text)
		case protocol.TextDocumentContentChangeEvent:
			// Only full sync is advertised, so a ranged change carries the
			// whole document when its range is absent.
			if c.Range == nil {
				h.store(uri, c.Text)
			}
		}
	}
	h.publish(ctx, uri)
	return nil
}

func (h *Handler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	h.mu.Lock()
	delete(h.docs, params.TextDocument.URI)
	h.mu.Unlock()
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         params.TextDocument.URI,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (h *Handler) TextDocumentSemanticTokensFull(ctx *glsp.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	src, ok := h.document(params.TextDocument.URI)
	if !ok {
		return &protocol.SemanticTokens{Data: []uint32{}}, nil
	}
	return &protocol.SemanticTokens{Data: EncodeSemanticTokens(SemanticTokens(src, h.dialect(), h.cfg))}, nil
}

func (h *Handler) store(uri protocol.DocumentUri, text string) {
	h.mu.Lock()
	h.docs[uri] = text
	h.mu.Unlock()
}

func (h *Handler) document(uri protocol.DocumentUri) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	src, ok := h.docs[uri]
	return src, ok
}

func (h *Handler) dialect() *dialect.Table {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.table
}

func (h *Handler) publish(ctx *glsp.Context, uri protocol.DocumentUri) {
	src, ok := h.document(uri)
	if !ok {
		return
	}
	diagnostics := Diagnostics(src, h.dialect(), h.cfg)
	log.Debugf("%s: %d diagnostics", uri, len(diagnostics))
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// Diagnostics runs the front end on src and converts the first error, and
// every warning when the source is otherwise valid, into LSP diagnostics.
func Diagnostics(src string, table *dialect.Table, cfg *config.Config) []protocol.Diagnostic {
	out := []protocol.Diagnostic{}
	ls := splitLines(src)

	tokens, err := lexer.Tokenize(src, table, cfg)
	if err != nil {
		return append(out, fromError(err, ls))
	}
	prog, err := parser.New(tokens, cfg).WithDialect(table).Parse()
	if err != nil {
		return append(out, fromError(err, ls))
	}
	warnings, err := resolve.Resolve(prog, cfg)
	if err != nil {
		out = append(out, fromError(err, ls))
	}
	for _, w := range warnings {
		out = append(out, convert(w, ls))
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Range.Start, out[j].Range.Start
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Character < b.Character
	})
	return out
}

func fromError(err error, ls lines) protocol.Diagnostic {
	var de *diag.Error
	if errors.As(err, &de) {
		d := convert(diag.FromError(de), ls)
		d.Message = de.Kind.String() + ": " + de.Msg
		return d
	}
	return protocol.Diagnostic{
		Severity: ptrSeverity(protocol.DiagnosticSeverityError),
		Source:   ptrString(Name),
		Message:  err.Error(),
	}
}

func convert(d diag.Diagnostic, ls lines) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	if d.Level == diag.LevelWarning {
		severity = protocol.DiagnosticSeverityWarning
	}
	line := uint32(max(d.Line-1, 0))
	start, length := ls.span(d.Line, d.Col, d.Len)
	out := protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: start},
			End:   protocol.Position{Line: line, Character: start + length},
		},
		Severity: ptrSeverity(severity),
		Source:   ptrString(Name),
		Message:  d.Message,
	}
	if d.Name != "" {
		out.Code = &protocol.IntegerOrString{Value: d.Name}
	}
	return out
}

func ptrBool(b bool) *bool       { return &b }
func ptrString(s string) *string { return &s }

func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity { return &s }

func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind { return &k }
