package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"sort"
)

// Multipart is a form upload. Its Content-Type, boundary included, is
// generated while encoding and never taken from caller headers.
type Multipart struct {
	Fields map[string]string
	Files  []FilePart
}

type FilePart struct {
	Field       string
	FileName    string
	ContentType string
	Content     io.Reader
}

// encodedBody is a request body plus the content type it requires, if any.
type encodedBody struct {
	reader      io.Reader
	contentType string
	forced      bool
}

func encodeBody(body any) (encodedBody, error) {
	switch b := body.(type) {
	case nil:
		return encodedBody{}, nil
	case *Multipart:
		return encodeMultipart(b)
	case []byte:
		return encodedBody{reader: bytes.NewReader(b)}, nil
	case io.Reader:
		return encodedBody{reader: b}, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return encodedBody{}, fmt.Errorf("marshal body: %w", err)
		}
		return encodedBody{reader: bytes.NewReader(data), contentType: "application/json"}, nil
	}
}

func encodeMultipart(m *Multipart) (encodedBody, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	names := make([]string, 0, len(m.Fields))
	for name := range m.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.WriteField(name, m.Fields[name]); err != nil {
			return encodedBody{}, fmt.Errorf("write field %s: %w", name, err)
		}
	}

	for _, f := range m.Files {
		if f.Content == nil {
			return encodedBody{}, fmt.Errorf("encode part %s: no content", f.Field)
		}
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.FileName))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := w.CreatePart(header)
		if err != nil {
			return encodedBody{}, fmt.Errorf("create part %s: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return encodedBody{}, fmt.Errorf("copy part %s: %w", f.Field, err)
		}
	}

	if err := w.Close(); err != nil {
		return encodedBody{}, fmt.Errorf("close multipart: %w", err)
	}
	return encodedBody{reader: &buf, contentType: w.FormDataContentType(), forced: true}, nil
}

// parsePayload decodes an error body defensively: JSON first, then trimmed
// text, then nil.
func parsePayload(data []byte) any {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err == nil {
		return v
	}
	return string(trimmed)
}
