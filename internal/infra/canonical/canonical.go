// Package canonical produces the stable serialization of value containers.
// Field order is explicit, map keys are sorted, timestamps are RFC 3339 UTC,
// so two independent implementations derive identical bytes from the same
// logical record.
package canonical

import (
	"bytes"
	"sort"
	"time"

	"medsign/internal/domain"
)

// Marshal serializes document metadata into its canonical JSON form.
func Marshal(meta domain.DocumentMetadata) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte('{')
	writeField(buf, "author", meta.Author)
	buf.WriteByte(',')
	writeField(buf, "document_id", meta.DocumentID)
	buf.WriteByte(',')
	writeField(buf, "document_type", meta.DocumentType)
	buf.WriteByte(',')
	writeKey(buf, "fields")
	writeStringMap(buf, meta.Fields)
	buf.WriteByte(',')
	writeField(buf, "issued_at", canonicalTime(meta.IssuedAt))
	buf.WriteByte(',')
	writeField(buf, "title", meta.Title)
	buf.WriteByte('}')
	return buf.Bytes()
}

func canonicalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeStringMap(buf *bytes.Buffer, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeField(buf, k, m[k])
	}
	buf.WriteByte('}')
}

func writeField(buf *bytes.Buffer, key, value string) {
	writeKey(buf, key)
	writeString(buf, value)
}

func writeKey(buf *bytes.Buffer, key string) {
	writeString(buf, key)
	buf.WriteByte(':')
}

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"', '\\':
			buf.WriteByte('\\')
			buf.WriteRune(r)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexLower[r>>4])
				buf.WriteByte(hexLower[r&0x0f])
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

var hexLower = []byte("0123456789abcdef")
