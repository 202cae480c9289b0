package talon

import (
	"bytes"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path"
	"strings"
)

// Part is one part of a multipart/form-data body.
type Part struct {
	// Name overrides the field name derived from the parameter declaration.
	// Leave empty to use the declared name (lists append [i] indices).
	Name string

	// Filename is sent in the Content-Disposition header when non-empty.
	Filename string

	// ContentType is the part's Content-Type. Constructors default it;
	// an empty value falls back to application/octet-stream.
	ContentType string

	// Data is the part's payload.
	Data []byte
}

const octetStream = "application/octet-stream"

// NewPart returns a binary part with content type application/octet-stream.
func NewPart(name string, data []byte) Part {
	return Part{Name: name, ContentType: octetStream, Data: data}
}

// TextPart returns a UTF-8 text part.
func TextPart(name, value string) Part {
	return Part{Name: name, ContentType: "text/plain; charset=utf-8", Data: []byte(value)}
}

// FilePart returns a file part with the content type guessed from the
// filename's extension.
func FilePart(name, filename string, data []byte) Part {
	return Part{
		Name:        name,
		Filename:    filename,
		ContentType: ContentTypeForFile(filename),
		Data:        data,
	}
}

// WithContentType returns a copy of the part with the given content type.
func (p Part) WithContentType(ct string) Part {
	p.ContentType = ct
	return p
}

// WithFilename returns a copy of the part with the given filename.
func (p Part) WithFilename(filename string) Part {
	p.Filename = filename
	return p
}

// ContentTypeForFile guesses a content type from a filename's extension.
// Common types resolve from a fixed table so results do not vary with the
// host's mime database; unknown extensions fall back to the host table and
// finally to application/octet-stream.
func ContentTypeForFile(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".xml":
		return "application/xml"
	case ".pdf":
		return "application/pdf"
	case ".zip":
		return "application/zip"
	case ".gz":
		return "application/gzip"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".webp":
		return "image/webp"
	case ".mp4":
		return "video/mp4"
	case ".mp3":
		return "audio/mpeg"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return octetStream
}

// multipartField is one declared multipart parameter resolved to its field
// name and parts. list records whether the value was a part list: list parts
// are numbered even when the list has a single element.
type multipartField struct {
	name  string
	list  bool
	parts []Part
}

// encodeMultipart writes fields as a multipart/form-data body. A part's own
// Name overrides the field name; list values number their parts as
// field[0], field[1], and so on. boundary fixes the boundary when non-empty,
// otherwise a random one is generated. The returned content type carries the
// boundary parameter.
func encodeMultipart(boundary string, fields []multipartField) (body []byte, contentType string, err error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if boundary != "" {
		if err := w.SetBoundary(boundary); err != nil {
			return nil, "", err
		}
	}

	for _, f := range fields {
		for i, p := range f.parts {
			name := p.Name
			if name == "" {
				if f.list {
					name = fmt.Sprintf("%s[%d]", f.name, i)
				} else {
					name = f.name
				}
			}
			if err := writePart(w, name, p); err != nil {
				return nil, "", fmt.Errorf("part %q: %w", name, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writePart(w *multipart.Writer, name string, p Part) error {
	h := make(textproto.MIMEHeader, 2)
	cd := fmt.Sprintf(`form-data; name=%q`, name)
	if p.Filename != "" {
		cd += fmt.Sprintf(`; filename=%q`, p.Filename)
	}
	h.Set("Content-Disposition", cd)
	ct := p.ContentType
	if ct == "" {
		ct = octetStream
	}
	h.Set("Content-Type", ct)

	pw, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = pw.Write(p.Data)
	return err
}
