package containerbuilder

import (
	"bytes"
	"encoding/xml"
)

const manifestNamespace = "urn:oasis:names:tc:opendocument:xmlns:manifest:1.0"

type manifest struct {
	XMLName xml.Name        `xml:"manifest:manifest"`
	Xmlns   string          `xml:"xmlns:manifest,attr"`
	Entries []manifestEntry `xml:"manifest:file-entry"`
}

type manifestEntry struct {
	MediaType string `xml:"manifest:media-type,attr"`
	FullPath  string `xml:"manifest:full-path,attr"`
}

// renderManifest lists the container root plus every data entry with its
// media type.
func renderManifest(documents []Document) ([]byte, error) {
	m := manifest{
		Xmlns: manifestNamespace,
		Entries: []manifestEntry{
			{MediaType: MimeType, FullPath: "/"},
		},
	}
	for _, document := range documents {
		m.Entries = append(m.Entries, manifestEntry{
			MediaType: document.MediaType,
			FullPath:  document.Name,
		})
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	encoder := xml.NewEncoder(&buf)
	encoder.Indent("", "  ")
	if err := encoder.Encode(m); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
