package docx

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// xmlNamespace is bound to the "xml" prefix without a declaration.
const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

// RootName returns the namespace-resolved name of the root element of body.
func RootName(body string) (xml.Name, error) {
	return scan(body)
}

// ValidateXML checks that body is well-formed XML with exactly one root
// element and that every prefix it uses is declared in scope. When root has
// a local name, the root element must resolve to the same name. It does not
// validate against the WordprocessingML schema.
func ValidateXML(body string, root xml.Name) error {
	got, err := scan(body)
	if err != nil {
		return err
	}
	if root.Local != "" && got != root {
		return eris.Errorf("docx: root element is {%s}%s, want {%s}%s", got.Space, got.Local, root.Space, root.Local)
	}
	return nil
}

// scan walks the raw token stream so prefixes are seen as written. RawToken
// does not pair start and end tags, so the element stack is kept here.
func scan(body string) (xml.Name, error) {
	var root xml.Name
	if strings.TrimSpace(body) == "" {
		return root, eris.New("docx: body is empty")
	}

	dec := xml.NewDecoder(strings.NewReader(body))
	dec.Strict = true

	var (
		open   []xml.Name
		scopes []map[string]string
		roots  int
	)
	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return root, eris.Wrap(err, "docx: body is not well-formed XML")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(open) == 0 {
				roots++
				if roots > 1 {
					return root, eris.Errorf("docx: second root element <%s>", qualified(t.Name))
				}
			}

			decl := map[string]string{}
			for _, a := range t.Attr {
				switch {
				case a.Name.Space == "xmlns":
					decl[a.Name.Local] = a.Value
				case a.Name.Space == "" && a.Name.Local == "xmlns":
					decl[""] = a.Value
				}
			}
			scopes = append(scopes, decl)

			space, ok := resolve(scopes, t.Name.Space)
			if !ok {
				return root, eris.Errorf("docx: element <%s> uses undeclared prefix %q", qualified(t.Name), t.Name.Space)
			}
			for _, a := range t.Attr {
				if a.Name.Space == "" || a.Name.Space == "xmlns" {
					continue
				}
				if _, ok := resolve(scopes, a.Name.Space); !ok {
					return root, eris.Errorf("docx: attribute %s on <%s> uses undeclared prefix %q",
						qualified(a.Name), qualified(t.Name), a.Name.Space)
				}
			}
			if len(open) == 0 {
				root = xml.Name{Space: space, Local: t.Name.Local}
			}
			open = append(open, t.Name)

		case xml.EndElement:
			if len(open) == 0 {
				return root, eris.Errorf("docx: unexpected end element </%s>", qualified(t.Name))
			}
			if top := open[len(open)-1]; top != t.Name {
				return root, eris.Errorf("docx: element <%s> closed by </%s>", qualified(top), qualified(t.Name))
			}
			open = open[:len(open)-1]
			scopes = scopes[:len(scopes)-1]

		case xml.CharData:
			if len(open) == 0 && strings.TrimSpace(string(t)) != "" {
				return root, eris.New("docx: text outside the root element")
			}
		}
	}

	if len(open) > 0 {
		return root, eris.Errorf("docx: element <%s> is never closed", qualified(open[len(open)-1]))
	}
	if roots == 0 {
		return root, eris.New("docx: no root element")
	}
	return root, nil
}

// resolve finds the namespace bound to prefix, innermost scope first. The
// empty prefix is always resolvable; it means no namespace when undeclared.
func resolve(scopes []map[string]string, prefix string) (string, bool) {
	if prefix == "xml" {
		return xmlNamespace, true
	}
	for i := len(scopes) - 1; i >= 0; i-- {
		if uri, ok := scopes[i][prefix]; ok {
			return uri, true
		}
	}
	return "", prefix == ""
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}
