package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"
)

const (
	MediaPDF  = "application/pdf"
	MediaText = "text/plain"
	MediaDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrCorruptDocument      = errors.New("corrupt document")
	ErrEmptyContent         = errors.New("no text content")
)

// Document is an uploaded résumé as received from the caller.
type Document struct {
	Data      []byte
	MediaType string
	Filename  string
}

// Text extracts plain text from doc. Pages or parts that yield no text are skipped;
// the call fails with ErrEmptyContent only when nothing at all is left.
func Text(ctx context.Context, doc Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	media := NormalizeMediaType(doc.MediaType, doc.Filename, doc.Data)

	var (
		text string
		err  error
	)
	switch media {
	case MediaPDF:
		text, err = fromPDF(doc.Data)
	case MediaText:
		text = fromPlain(doc.Data)
	case MediaDOCX:
		text, err = fromDOCX(doc.Data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMediaType, media)
	}
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyContent, media)
	}
	return text, nil
}

// fromPlain decodes UTF-8 and falls back to ISO-8859-1 for anything else.
func fromPlain(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return ""
	}
	return string(decoded)
}

func fromPDF(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty pdf", ErrCorruptDocument)
	}
	// the pdf reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrCorruptDocument, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	var buf strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		buf.WriteString(content)
		buf.WriteString("\n")
	}
	return buf.String(), nil
}

func fromDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}

	var docFile *zip.File
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", fmt.Errorf("%w: word/document.xml missing", ErrCorruptDocument)
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	return paragraphsFromXML(raw)
}

func paragraphsFromXML(raw []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(raw))
	var buf strings.Builder
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCorruptDocument, err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			buf.Write(t)
		case xml.EndElement:
			if (t.Name.Local == "p" || t.Name.Local == "br") && buf.Len() > 0 {
				buf.WriteString("\n")
			}
		}
	}
	return buf.String(), nil
}

// NormalizeMediaType strips parameters and resolves generic types
// (application/octet-stream, application/zip) from the file extension or zip layout.
func NormalizeMediaType(mediaType, filename string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mediaType, ";")[0]))
	switch clean {
	case "", "application/octet-stream", "application/zip":
	default:
		return clean
	}

	if clean == "application/zip" && isDOCXArchive(data) {
		return MediaDOCX
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return MediaPDF
	case ".txt":
		return MediaText
	case ".docx":
		return MediaDOCX
	}
	if clean == "" {
		return "application/octet-stream"
	}
	return clean
}

func isDOCXArchive(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return true
		}
	}
	return false
}
