// Package templaterender implements the notification engine's template
// renderer (spec §4.A): a minimal Jinja-like engine over a JSON context,
// supporting dotted-path lookups (parameters.project), array indexing
// (query1.0.column), and {% if %}/{% else %}/{% endif %} conditional
// blocks. No pack example wires an ecosystem engine with this exact
// dotted-array-index syntax (see DESIGN.md), so this is hand-written.
package templaterender

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/meetsmatch/notifyengine/internal/apperr"
)

// Definition names either an inline template string or a name resolved
// against a configured root (spec §4.A).
type Definition struct {
	Inline string
	Name   string
}

func Inline(body string) Definition { return Definition{Inline: body} }
func Named(name string) Definition  { return Definition{Name: name} }

// Loader resolves a named template to its source text. The file-backed
// root is an external collaborator; this package only needs the contract.
type Loader interface {
	Load(name string) (string, error)
}

// Renderer renders Definitions against a JSON-shaped context.
type Renderer struct {
	loader Loader
}

func New(loader Loader) *Renderer {
	return &Renderer{loader: loader}
}

// Render resolves def (inline or named) and renders it against context.
// A missing context key inside {{ }} is an error, per spec §4.A's "not
// silent empty"; a missing key used as an {% if %} condition is treated as
// false and selects the else branch.
func (r *Renderer) Render(def Definition, context map[string]interface{}) (string, error) {
	src, err := r.source(def)
	if err != nil {
		return "", err
	}
	return RenderString(src, context)
}

func (r *Renderer) source(def Definition) (string, error) {
	if def.Inline != "" {
		return def.Inline, nil
	}
	if def.Name == "" {
		return "", apperr.NewTemplateError("empty template definition", nil)
	}
	if r.loader == nil {
		return "", apperr.NewTemplateError("no template loader configured for named template "+def.Name, nil)
	}
	src, err := r.loader.Load(def.Name)
	if err != nil {
		return "", apperr.NewTemplateError("loading template "+def.Name, err)
	}
	return src, nil
}

// RenderString renders a raw template string with no name resolution —
// the "second path" in spec §4.A, used when the caller already has the
// source text in hand (inline templates, condition templates).
func RenderString(src string, context map[string]interface{}) (string, error) {
	nodes, err := parse(src)
	if err != nil {
		return "", apperr.NewTemplateError("parsing template", err)
	}
	var b strings.Builder
	if err := renderNodes(nodes, context, &b); err != nil {
		return "", apperr.NewTemplateError("rendering template", err)
	}
	return b.String(), nil
}

// --- AST ---

type nodeKind int

const (
	nodeText nodeKind = iota
	nodeExpr
	nodeIf
)

type node struct {
	kind nodeKind
	text string // nodeText
	path string // nodeExpr, nodeIf condition path
	then []node // nodeIf
	els  []node // nodeIf
}

// --- parsing ---

// parse tokenizes src into a flat stream of {{ expr }}, {% if/else/endif %}
// and literal-text tokens, then builds a tree out of the if/endif pairs.
func parse(src string) ([]node, error) {
	tokens, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	nodes, rest, err := parseNodes(tokens)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("unexpected %s without matching {%% if %%}", rest[0].value)
	}
	return nodes, nil
}

type tokenKind int

const (
	tokText tokenKind = iota
	tokExpr
	tokIf
	tokElse
	tokEndIf
)

type token struct {
	kind  tokenKind
	value string
}

func tokenize(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		exprStart := strings.Index(src[i:], "{{")
		tagStart := strings.Index(src[i:], "{%")

		next := -1
		isExpr := false
		switch {
		case exprStart == -1 && tagStart == -1:
			tokens = append(tokens, token{tokText, src[i:]})
			return tokens, nil
		case exprStart == -1:
			next, isExpr = tagStart, false
		case tagStart == -1:
			next, isExpr = exprStart, true
		case exprStart < tagStart:
			next, isExpr = exprStart, true
		default:
			next, isExpr = tagStart, false
		}

		if next > 0 {
			tokens = append(tokens, token{tokText, src[i : i+next]})
		}
		i += next

		if isExpr {
			end := strings.Index(src[i:], "}}")
			if end == -1 {
				return nil, fmt.Errorf("unterminated {{ expression")
			}
			expr := strings.TrimSpace(src[i+2 : i+end])
			tokens = append(tokens, token{tokExpr, expr})
			i += end + 2
			continue
		}

		end := strings.Index(src[i:], "%}")
		if end == -1 {
			return nil, fmt.Errorf("unterminated {%% tag")
		}
		tag := strings.TrimSpace(src[i+2 : i+end])
		i += end + 2

		switch {
		case strings.HasPrefix(tag, "if "):
			tokens = append(tokens, token{tokIf, strings.TrimSpace(tag[3:])})
		case tag == "else":
			tokens = append(tokens, token{tokElse, ""})
		case tag == "endif":
			tokens = append(tokens, token{tokEndIf, ""})
		default:
			return nil, fmt.Errorf("unknown tag %q", tag)
		}
	}
	return tokens, nil
}

// parseNodes consumes tokens until it sees an unmatched else/endif (which it
// returns as the remainder for the caller — the if-block parser below —
// to interpret), or end of input.
func parseNodes(tokens []token) ([]node, []token, error) {
	var nodes []node
	for len(tokens) > 0 {
		tk := tokens[0]
		switch tk.kind {
		case tokText:
			nodes = append(nodes, node{kind: nodeText, text: tk.value})
			tokens = tokens[1:]
		case tokExpr:
			nodes = append(nodes, node{kind: nodeExpr, path: tk.value})
			tokens = tokens[1:]
		case tokIf:
			ifNode, rest, err := parseIf(tk.value, tokens[1:])
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, ifNode)
			tokens = rest
		case tokElse, tokEndIf:
			return nodes, tokens, nil
		}
	}
	return nodes, nil, nil
}

func parseIf(cond string, tokens []token) (node, []token, error) {
	thenNodes, rest, err := parseNodes(tokens)
	if err != nil {
		return node{}, nil, err
	}
	var elseNodes []node
	if len(rest) > 0 && rest[0].kind == tokElse {
		elseNodes, rest, err = parseNodes(rest[1:])
		if err != nil {
			return node{}, nil, err
		}
	}
	if len(rest) == 0 || rest[0].kind != tokEndIf {
		return node{}, nil, fmt.Errorf("{%% if %s %%} missing {%% endif %%}", cond)
	}
	return node{kind: nodeIf, path: cond, then: thenNodes, els: elseNodes}, rest[1:], nil
}

// --- rendering ---

func renderNodes(nodes []node, context map[string]interface{}, b *strings.Builder) error {
	for _, n := range nodes {
		switch n.kind {
		case nodeText:
			b.WriteString(n.text)
		case nodeExpr:
			v, err := lookup(n.path, context)
			if err != nil {
				return err
			}
			b.WriteString(toDisplayString(v))
		case nodeIf:
			v, err := lookup(n.path, context)
			branch := n.then
			if err != nil || !truthy(v) {
				branch = n.els
			}
			if err := renderNodes(branch, context, b); err != nil {
				return err
			}
		}
	}
	return nil
}

// lookup resolves a dotted path (with optional numeric segments for array
// indexing) against context. Missing keys are an error, per spec §4.A.
func lookup(path string, context map[string]interface{}) (interface{}, error) {
	segments := strings.Split(path, ".")
	var cur interface{} = context
	for _, seg := range segments {
		switch c := cur.(type) {
		case map[string]interface{}:
			v, ok := c[seg]
			if !ok {
				return nil, fmt.Errorf("missing context key %q in path %q", seg, path)
			}
			cur = v
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, fmt.Errorf("invalid array index %q in path %q", seg, path)
			}
			cur = c[idx]
		case []map[string]interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, fmt.Errorf("invalid array index %q in path %q", seg, path)
			}
			cur = c[idx]
		default:
			return nil, fmt.Errorf("cannot index into %T at %q in path %q", cur, seg, path)
		}
	}
	return cur, nil
}

func truthy(v interface{}) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != "" && !strings.EqualFold(x, "false")
	case float64:
		return x != 0
	case int:
		return x != 0
	case []interface{}:
		return len(x) > 0
	case map[string]interface{}:
		return len(x) > 0
	default:
		return true
	}
}

func toDisplayString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", x)
	}
}
