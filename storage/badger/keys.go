package badger

import (
	"encoding/binary"
	"time"

	"github.com/poiesic/caseingest/core"
)

// Key prefixes for different data types
const (
	indexMetaPrefix     = "idxmeta"
	indexDocumentPrefix = "idxdoc"
	runRecordPrefix     = "runrec"
	runDatePrefix       = "rund"
)

// makeIndexMetaKey generates the key holding an index's schema.
func makeIndexMetaKey(name string) []byte {
	return []byte(indexMetaPrefix + ":" + name)
}

// makeIndexDocumentPrefix generates the prefix shared by all documents of an index.
// Format: prefix:name:
func makeIndexDocumentPrefix(name string) []byte {
	return []byte(indexDocumentPrefix + ":" + name + ":")
}

// makeIndexDocumentKey generates a key for a document by its chunk id.
func makeIndexDocumentKey(name, id string) []byte {
	return append(makeIndexDocumentPrefix(name), id...)
}

// makeRunRecordKey generates a key for a run report by RunID.
func makeRunRecordKey(id core.RunID) []byte {
	return []byte(runRecordPrefix + ":" + string(id))
}

// makeRunDateKey generates a composite key for the start time index.
// Format: prefix:timestamp:id
func makeRunDateKey(startedAt time.Time, id core.RunID) []byte {
	prefixBytes := []byte(runDatePrefix + ":")
	buf := make([]byte, len(prefixBytes)+8+len(id))
	offset := copy(buf, prefixBytes)
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(startedAt.UnixMicro()))
	offset += 8
	copy(buf[offset:], id)
	return buf
}
