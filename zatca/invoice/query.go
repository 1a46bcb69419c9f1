package invoice

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/go-faster/errors"
)

const (
	NamespaceInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	NamespaceCBC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	NamespaceCAC     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	NamespaceEXT     = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"
)

// Namespaces maps the prefixes accepted in paths to their URIs.
var Namespaces = map[string]string{
	"inv": NamespaceInvoice,
	"cbc": NamespaceCBC,
	"cac": NamespaceCAC,
	"ext": NamespaceEXT,
}

type step struct {
	space string // namespace URI, empty matches any
	local string
}

func (s step) match(e *etree.Element) bool {
	return e.Tag == s.local && (s.space == "" || e.NamespaceURI() == s.space)
}

// Path is a small namespace aware location path: "//cac:A/cbc:B" selects B
// children of any A in the tree, "cac:A/cbc:B" starts from the children of
// the context element. Prefixes are resolved through Namespaces, never
// through the prefixes used in the document.
type Path struct {
	expr     string
	anywhere bool
	steps    []step
}

func Compile(expr string) (*Path, error) {
	p := &Path{expr: expr}
	rest := expr
	if strings.HasPrefix(rest, "//") {
		p.anywhere = true
		rest = rest[2:]
	}
	if rest == "" {
		return nil, errors.Errorf("empty path %q", expr)
	}
	for _, part := range strings.Split(rest, "/") {
		prefix, local, ok := strings.Cut(part, ":")
		if !ok {
			local, prefix = prefix, ""
		}
		if local == "" {
			return nil, errors.Errorf("empty step in path %q", expr)
		}
		s := step{local: local}
		if prefix != "" {
			uri, known := Namespaces[prefix]
			if !known {
				return nil, errors.Errorf("unknown prefix %q in path %q", prefix, expr)
			}
			s.space = uri
		}
		p.steps = append(p.steps, s)
	}
	return p, nil
}

func MustCompile(expr string) *Path {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Path) String() string {
	return p.expr
}

// All returns the matching elements in document order.
func (p *Path) All(ctx *etree.Element) []*etree.Element {
	if ctx == nil {
		return nil
	}
	var current []*etree.Element
	if p.anywhere {
		walk(ctx, func(e *etree.Element) {
			if p.steps[0].match(e) {
				current = append(current, e)
			}
		})
	} else {
		for _, c := range ctx.ChildElements() {
			if p.steps[0].match(c) {
				current = append(current, c)
			}
		}
	}
	for _, s := range p.steps[1:] {
		var next []*etree.Element
		for _, e := range current {
			for _, c := range e.ChildElements() {
				if s.match(c) {
					next = append(next, c)
				}
			}
		}
		current = next
	}
	return current
}

// First returns the first match or nil.
func (p *Path) First(ctx *etree.Element) *etree.Element {
	all := p.All(ctx)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// Text returns the text of the first match.
func (p *Path) Text(ctx *etree.Element) (string, bool) {
	e := p.First(ctx)
	if e == nil {
		return "", false
	}
	return e.Text(), true
}

func walk(e *etree.Element, fn func(*etree.Element)) {
	fn(e)
	for _, c := range e.ChildElements() {
		walk(c, fn)
	}
}
