package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

const (
	docxDefaultBody  = "word/document.xml"
	docxContentTypes = "[Content_Types].xml"
	docxMainType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

// WordprocessingML is matched with regular expressions rather than decoded:
// only paragraph boundaries and text runs matter here.
var (
	docxOverride  = regexp.MustCompile(`<Override\s[^>]*>`)
	docxAttr      = regexp.MustCompile(`(\w+)="([^"]*)"`)
	docxParagraph = regexp.MustCompile(`(?s)<w:p[\s>].*?</w:p>`)
	docxRun       = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>|<w:tab/>`)
)

// extractDOCX returns one line per non-empty paragraph of the main document
// part. Runs inside a paragraph are concatenated, since Word splits words
// across runs freely.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	bodyPath := docxDefaultBody
	if types, err := readZipPart(zr, docxContentTypes); err == nil {
		if p := docxMainPart(types); p != "" {
			bodyPath = p
		}
	}
	body, err := readZipPart(zr, bodyPath)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: %w", err)
	}

	var paragraphs []string
	for _, p := range docxParagraph.FindAll(body, -1) {
		var b strings.Builder
		for _, m := range docxRun.FindAllSubmatch(p, -1) {
			if m[1] == nil {
				b.WriteByte('\t')
				continue
			}
			b.WriteString(html.UnescapeString(string(m[1])))
		}
		if line := strings.TrimSpace(b.String()); line != "" {
			paragraphs = append(paragraphs, line)
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}

// docxMainPart finds the main document part named in [Content_Types].xml,
// whatever the attribute order. It returns "" when none is declared.
func docxMainPart(types []byte) string {
	for _, o := range docxOverride.FindAll(types, -1) {
		attrs := map[string]string{}
		for _, a := range docxAttr.FindAllSubmatch(o, -1) {
			attrs[string(a[1])] = string(a[2])
		}
		if attrs["ContentType"] == docxMainType && attrs["PartName"] != "" {
			return strings.TrimPrefix(attrs["PartName"], "/")
		}
	}
	return ""
}

func readZipPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s not found", name)
}
