package loader

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// docxDocumentXML is the path of the main document body inside a .docx zip.
const docxDocumentXML = "word/document.xml"

// wtTag matches <w:t>text</w:t> including attributed forms such as
// <w:t xml:space="preserve">. Matching text nodes directly keeps content
// extractable regardless of paragraph or run attributes.
var wtTag = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// wpClose marks paragraph ends so paragraph structure survives extraction.
var wpClose = regexp.MustCompile(`</w:p>`)

// parseDOCX extracts text from .docx bytes. DOCX is a ZIP containing
// word/document.xml (OOXML); text lives in <w:t> nodes.
func parseDOCX(content []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("parse DOCX: not a zip: %w", err)
	}

	var docXML []byte
	for _, f := range zr.File {
		if f.Name != docxDocumentXML {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("parse DOCX: open %s: %w", f.Name, err)
		}
		docXML, err = io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("parse DOCX: read %s: %w", f.Name, err)
		}
		break
	}
	if docXML == nil {
		return nil, fmt.Errorf("parse DOCX: %s not found", docxDocumentXML)
	}

	// Turn paragraph closes into newlines before collecting text nodes.
	normalized := wpClose.ReplaceAllString(string(docXML), "\n")
	parts := wtTag.FindAllStringSubmatch(normalized, -1)
	if len(parts) == 0 {
		return nil, nil
	}
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.TrimSpace(unescapeXML(p[1])))
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}

var xmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
)

func unescapeXML(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return xmlEntities.Replace(s)
}
