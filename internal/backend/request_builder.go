package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/dishcovery/dishcovery-client/internal/domain"
)

const (
	// ClientTag is sent as the "client" field so the backend can tell client types apart.
	ClientTag = "frontend"

	// DefaultFilename is used when no filename can be inferred from the input.
	DefaultFilename = "photo.jpg"

	defaultMIMEType = "image/jpeg"
)

// Local input errors.
const (
	MsgNoInput        = "No image provided. Please select a photo, describe a dish or paste an image URL."
	MsgAmbiguousInput = "Choose only one input: a photo, a text description or an image URL."
	MsgNoPrompt       = "Describe the dish you want an image of."
	MsgUnreadable     = "The selected image could not be read. Please pick it again."
)

var extensionMIMETypes = map[string]string{
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
}

// Opener resolves an image reference to its content.
type Opener func(ctx context.Context, uri string) (io.ReadCloser, error)

// OpenLocal opens a filesystem path or file:// URI.
func OpenLocal(_ context.Context, uri string) (io.ReadCloser, error) {
	p := uri
	if u, err := url.Parse(uri); err == nil && u.Scheme == "file" {
		p = u.Path
	} else if err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return nil, fmt.Errorf("unsupported image uri scheme %q", u.Scheme)
	}
	return os.Open(p)
}

// Field is one text form field, in send order.
type Field struct {
	Name  string
	Value string
}

// FilePart describes the attached file of a payload.
type FilePart struct {
	Filename string
	MIMEType string
	Size     int
}

// MultipartPayload is a fully assembled multipart/form-data body.
type MultipartPayload struct {
	ContentType string
	Body        []byte
	Fields      []Field
	File        *FilePart
}

// Field returns the value of the named text field.
func (p *MultipartPayload) Field(name string) (string, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Builder assembles backend payloads. It performs no network I/O.
type Builder struct {
	open Opener
}

// NewBuilder creates a Builder. A nil opener uses OpenLocal.
func NewBuilder(open Opener) *Builder {
	if open == nil {
		open = OpenLocal
	}
	return &Builder{open: open}
}

// BuildRecipe assembles the /api/generate-recipe form.
func (b *Builder) BuildRecipe(ctx context.Context, req domain.GenerationRequest) (*MultipartPayload, error) {
	switch n := req.Input.Populated(); {
	case n == 0:
		return nil, domain.NewAPIError(domain.CodeMissingInput, MsgNoInput, "")
	case n > 1:
		return nil, domain.NewAPIError(domain.CodeAmbiguousInput, MsgAmbiguousInput, "")
	}

	w := newFormWriter()

	if req.Input.Image.HasContent() {
		content, filename, mimeType, err := b.resolveImage(ctx, req.Input.Image)
		if err != nil {
			return nil, err
		}
		if err := w.file("file", filename, mimeType, content); err != nil {
			return nil, domain.WrapAPIError(domain.CodeImageMissing, MsgUnreadable, "", err)
		}
	}

	w.optional("text_prompt", req.Input.TextPrompt)
	w.optional("image_url", req.Input.ImageURL)
	w.optional("provider", req.Provider)
	w.optional("api_key", req.APIKey)
	w.optional("model", req.Model)
	w.optional("language", req.Language)
	w.optional("client", ClientTag)

	return w.close()
}

// BuildImage assembles the /api/generate-image form.
func (b *Builder) BuildImage(req domain.ImageRequest) (*MultipartPayload, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, domain.NewAPIError(domain.CodeMissingInput, MsgNoPrompt, "")
	}

	w := newFormWriter()
	w.optional("prompt", req.Prompt)
	w.optional("provider", req.Provider)
	w.optional("api_key", req.APIKey)
	w.optional("size", req.Size)
	return w.close()
}

func (b *Builder) resolveImage(ctx context.Context, img *domain.ImageInput) ([]byte, string, string, error) {
	filename := strings.TrimSpace(img.Filename)
	if filename == "" {
		filename = FilenameFromURI(img.URI)
	}

	if len(img.Bytes) > 0 {
		mimeType := strings.TrimSpace(img.MIMEType)
		if mimeType == "" {
			mimeType = detectMIMEType(img.Bytes, filename)
		}
		if filename == DefaultFilename && img.URI == "" {
			if ext := mimetype.Detect(img.Bytes).Extension(); ext != "" && strings.HasPrefix(mimeType, "image/") {
				filename = "photo" + ext
			}
		}
		return img.Bytes, filename, mimeType, nil
	}

	rc, err := b.open(ctx, img.URI)
	if err != nil {
		return nil, "", "", domain.WrapAPIError(domain.CodeImageMissing, MsgUnreadable, "", err)
	}
	defer rc.Close()
	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", "", domain.WrapAPIError(domain.CodeImageMissing, MsgUnreadable, "", err)
	}

	mimeType := strings.TrimSpace(img.MIMEType)
	if mimeType == "" {
		mimeType = MIMETypeFromFilename(filename)
	}
	return content, filename, mimeType, nil
}

// FilenameFromURI returns the last path segment of uri, or DefaultFilename.
func FilenameFromURI(uri string) string {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return DefaultFilename
	}
	p := uri
	if u, err := url.Parse(uri); err == nil && u.Path != "" {
		p = u.Path
	}
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return DefaultFilename
	}
	return base
}

// MIMETypeFromFilename maps a filename extension to an image MIME type, defaulting to image/jpeg.
func MIMETypeFromFilename(filename string) string {
	if mt, ok := extensionMIMETypes[strings.ToLower(path.Ext(filename))]; ok {
		return mt
	}
	return defaultMIMEType
}

func detectMIMEType(content []byte, filename string) string {
	detected := mimetype.Detect(content)
	if detected.Is("application/octet-stream") || detected.Is("text/plain") {
		return MIMETypeFromFilename(filename)
	}
	mt := detected.String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

// formWriter records fields alongside the multipart body so payloads can be inspected.
type formWriter struct {
	buf     bytes.Buffer
	mw      *multipart.Writer
	payload MultipartPayload
	err     error
}

func newFormWriter() *formWriter {
	w := &formWriter{}
	w.mw = multipart.NewWriter(&w.buf)
	return w
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (w *formWriter) file(field, filename, mimeType string, content []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(filename)))
	h.Set("Content-Type", mimeType)
	part, err := w.mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	w.payload.File = &FilePart{Filename: filename, MIMEType: mimeType, Size: len(content)}
	return nil
}

// optional writes name only when value is non-empty after trimming.
func (w *formWriter) optional(name, value string) {
	value = strings.TrimSpace(value)
	if value == "" || w.err != nil {
		return
	}
	if err := w.mw.WriteField(name, value); err != nil {
		w.err = err
		return
	}
	w.payload.Fields = append(w.payload.Fields, Field{Name: name, Value: value})
}

func (w *formWriter) close() (*MultipartPayload, error) {
	if w.err != nil {
		return nil, domain.WrapAPIError(domain.CodeMissingInput, MsgNoInput, "", w.err)
	}
	if err := w.mw.Close(); err != nil {
		return nil, domain.WrapAPIError(domain.CodeMissingInput, MsgNoInput, "", err)
	}
	w.payload.ContentType = w.mw.FormDataContentType()
	w.payload.Body = w.buf.Bytes()
	return &w.payload, nil
}
