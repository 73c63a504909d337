package extract

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"strings"
)

// extractDOCX pulls paragraph text out of word/document.xml. A DOCX is
// a ZIP container; the main document part is WordprocessingML where
// visible text lives in <w:t> runs grouped into <w:p> paragraphs.
func extractDOCX(path string) (*Extraction, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, &ExtractionError{Reason: ReasonCorruptFile, Path: path, Err: err}
	}
	defer r.Close() //nolint:errcheck

	var doc *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return nil, &ExtractionError{Reason: ReasonCorruptFile, Path: path,
			Err: errMissingDocumentXML}
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, &ExtractionError{Reason: ReasonCorruptFile, Path: path, Err: err}
	}
	defer rc.Close() //nolint:errcheck

	text, err := wordMLText(rc)
	if err != nil {
		return nil, &ExtractionError{Reason: ReasonCorruptFile, Path: path, Err: err}
	}
	return finish(path, "docx", text, 0)
}

var errMissingDocumentXML = &xmlStructureError{"word/document.xml not found in archive"}

type xmlStructureError struct{ msg string }

func (e *xmlStructureError) Error() string { return e.msg }

// wordMLText walks the XML token stream collecting run text. Tabs and
// breaks become whitespace, paragraph ends become newlines.
func wordMLText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var sb strings.Builder
	inText := false

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}
