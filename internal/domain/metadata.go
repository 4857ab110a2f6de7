package domain

import "time"

// DocumentMetadata is the value-container form of a document: a record with no
// binary body of its own. Its canonical serialization is what gets signed.
type DocumentMetadata struct {
	DocumentType string
	DocumentID   string
	Title        string
	Author       string
	IssuedAt     time.Time
	Fields       map[string]string
}
