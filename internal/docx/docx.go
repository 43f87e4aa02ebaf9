// Package docx reads and rewrites the body of OOXML word documents while
// passing every other archive member through untouched.
package docx

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/auto-oracle/internal/model"
)

// BodyMember is the archive member holding the document body markup.
const BodyMember = "word/document.xml"

// Container is an opened document archive with an editable body member.
type Container struct {
	path    string
	member  string
	reader  *zip.ReadCloser
	orig    string
	body    string
	comment string
}

// Open opens a word document and reads its body member.
func Open(path string) (*Container, error) {
	return OpenMember(path, BodyMember)
}

// OpenMember opens any zip-based container and reads member as its body.
func OpenMember(path, member string) (*Container, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, model.WrapError(err, model.KindIO, "docx: open "+path)
	}

	c := &Container{path: path, member: member, reader: r, comment: r.Comment}
	f := c.find(member)
	if f == nil {
		r.Close() //nolint:errcheck
		return nil, model.Errorf(model.KindIO, "docx: open "+path, "member %q not found", member)
	}

	data, err := readMember(f)
	if err != nil {
		r.Close() //nolint:errcheck
		return nil, model.WrapError(err, model.KindIO, "docx: read "+member)
	}
	if !utf8.Valid(data) {
		r.Close() //nolint:errcheck
		return nil, model.Errorf(model.KindIO, "docx: read "+member, "member is not valid UTF-8")
	}
	c.orig = string(data)
	c.body = c.orig
	return c, nil
}

// Body returns the current body markup.
func (c *Container) Body() string {
	return c.body
}

// SetBody replaces the body in memory. Nothing is written until Save.
func (c *Container) SetBody(body string) {
	c.body = body
}

// Members lists the archive member names in their original order.
func (c *Container) Members() []string {
	names := make([]string, len(c.reader.File))
	for i, f := range c.reader.File {
		names[i] = f.Name
	}
	return names
}

// Save writes a new archive to path. Members are copied in their stored
// (compressed) form with their original headers. A changed body is re-encoded
// as UTF-8 with its original compression method; an unchanged one is copied
// like every other member. The file is written beside path and renamed into
// place.
func (c *Container) Save(path string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return model.WrapError(err, model.KindIO, "docx: create output directory")
	}

	tmp, err := os.CreateTemp(dir, ".docx-*")
	if err != nil {
		return model.WrapError(err, model.KindIO, "docx: create temp file")
	}
	defer func() {
		if err != nil {
			tmp.Close()           //nolint:errcheck
			os.Remove(tmp.Name()) //nolint:errcheck
		}
	}()

	if err := c.write(tmp); err != nil {
		return model.WrapError(err, model.KindIO, "docx: write "+path)
	}
	if err := tmp.Close(); err != nil {
		return model.WrapError(err, model.KindIO, "docx: close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return model.WrapError(err, model.KindIO, "docx: rename to "+path)
	}
	return nil
}

// Close releases the source archive.
func (c *Container) Close() error {
	return c.reader.Close()
}

func (c *Container) write(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, f := range c.reader.File {
		if f.Name == c.member && c.body != c.orig {
			if err := writeBody(zw, f, c.body); err != nil {
				return err
			}
			continue
		}
		if err := copyRaw(zw, f); err != nil {
			return err
		}
	}
	if c.comment != "" {
		if err := zw.SetComment(c.comment); err != nil {
			return eris.Wrap(err, "set archive comment")
		}
	}
	return eris.Wrap(zw.Close(), "finish archive")
}

func (c *Container) find(name string) *zip.File {
	for _, f := range c.reader.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func copyRaw(zw *zip.Writer, f *zip.File) error {
	hdr := f.FileHeader
	dst, err := zw.CreateRaw(&hdr)
	if err != nil {
		return eris.Wrapf(err, "create member %s", f.Name)
	}
	src, err := f.OpenRaw()
	if err != nil {
		return eris.Wrapf(err, "open member %s", f.Name)
	}
	if _, err := io.Copy(dst, src); err != nil {
		return eris.Wrapf(err, "copy member %s", f.Name)
	}
	return nil
}

func writeBody(zw *zip.Writer, f *zip.File, body string) error {
	// Modified stays zero so the legacy MS-DOS timestamp is written as-is
	// instead of gaining an extended-timestamp extra field.
	hdr := zip.FileHeader{
		Name:           f.Name,
		Comment:        f.Comment,
		Method:         f.Method,
		ModifiedTime:   f.ModifiedTime, //nolint:staticcheck
		ModifiedDate:   f.ModifiedDate, //nolint:staticcheck
		CreatorVersion: f.CreatorVersion,
		ExternalAttrs:  f.ExternalAttrs,
	}
	dst, err := zw.CreateHeader(&hdr)
	if err != nil {
		return eris.Wrapf(err, "create member %s", f.Name)
	}
	if _, err := io.Copy(dst, strings.NewReader(body)); err != nil {
		return eris.Wrapf(err, "write member %s", f.Name)
	}
	return nil
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FilledPath derives the default output path for a filled document:
// "rfp.docx" becomes "rfp_filled.docx".
func FilledPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_filled" + ext
}
