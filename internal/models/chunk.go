package models

import (
	"fmt"
	"strconv"
)

// Metadata keys stored alongside every vector. Values are always strings so
// the index can filter with plain equality.
const (
	MetaDocumentID  = "document_id"
	MetaChunkIndex  = "chunk_index"
	MetaChunkLength = "chunk_length"
)

// ChunkID derives the id of the chunk at index within a document.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_%d", documentID, index)
}

// ChunkMetadata is the typed view of the metadata persisted with a vector.
type ChunkMetadata struct {
	DocumentID  string
	ChunkIndex  int
	ChunkLength int
}

// ToMap flattens the metadata into the index's string schema.
func (m ChunkMetadata) ToMap() map[string]string {
	return map[string]string{
		MetaDocumentID:  m.DocumentID,
		MetaChunkIndex:  strconv.Itoa(m.ChunkIndex),
		MetaChunkLength: strconv.Itoa(m.ChunkLength),
	}
}

// MetadataFromMap parses the index's string metadata. Missing or malformed
// numeric values are left at zero.
func MetadataFromMap(m map[string]string) ChunkMetadata {
	md := ChunkMetadata{DocumentID: m[MetaDocumentID]}
	md.ChunkIndex, _ = strconv.Atoi(m[MetaChunkIndex])
	md.ChunkLength, _ = strconv.Atoi(m[MetaChunkLength])
	return md
}

// IndexedVector is the unit persisted in the vector index
type IndexedVector struct {
	ID        string
	Embedding []float32
	Text      string
	Metadata  ChunkMetadata
}

// QueryResult is one ranked hit returned by the vector index. Lower distance
// means more relevant.
type QueryResult struct {
	ID       string
	Text     string
	Distance float32
	Metadata ChunkMetadata
}

// DocumentFilter builds the equality filter scoping a query to one document.
func DocumentFilter(documentID string) map[string]string {
	return map[string]string{MetaDocumentID: documentID}
}
