package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/storage"
)

// Key prefixes for different data types
const (
	documentPrefix    = "docrec"
	wordsPrefix       = "docwrd"
	tokenRecordPrefix = "doctkr"
	tokenIndexPrefix  = "doctok"
	filterIndexPrefix = "docflt"
)

const idSize = 8

// Filter tuple encoding. Each element is written as its bytes with 0x00
// escaped to 0x00 0xFF, followed by the terminator 0x00 0x01. Encoded tuples
// compare bytewise in the same order as the tuples compare element by element.
var (
	elementTerminator = []byte{0x00, 0x01}
	escapedZero       = []byte{0x00, 0xFF}

	// minKeyBound sorts before every encoded element.
	minKeyBound = []byte{0x00, 0x00}
	// maxKeyBound sorts after every encoded UTF-8 element.
	maxKeyBound = []byte{0xFF}
)

// filterBound is one position of a filter range bound.
// A nil sentinel means value is matched exactly.
type filterBound struct {
	value    string
	sentinel []byte
}

// appendID appends id in BigEndian order so lexicographic sort follows ID order.
func appendID(buf []byte, id core.ID) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// idFromKey reads the trailing ID of an index key.
func idFromKey(key []byte) (core.ID, error) {
	if len(key) < idSize {
		return 0, fmt.Errorf("%w: key too short", storage.ErrCorruptKey)
	}
	return core.ID(binary.BigEndian.Uint64(key[len(key)-idSize:])), nil
}

// makePrefixedIDKey generates a key for a per-document record.
// Format: prefix:id
func makePrefixedIDKey(prefix string, id core.ID) []byte {
	buf := make([]byte, 0, len(prefix)+1+idSize)
	buf = append(buf, prefix...)
	buf = append(buf, ':')
	return appendID(buf, id)
}

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return makePrefixedIDKey(documentPrefix, id)
}

// makeWordsKey generates a key for a word blob by document ID.
func makeWordsKey(id core.ID) []byte {
	return makePrefixedIDKey(wordsPrefix, id)
}

// makeTokenRecordKey generates a key for a token set by document ID.
func makeTokenRecordKey(id core.ID) []byte {
	return makePrefixedIDKey(tokenRecordPrefix, id)
}

// makeTokenKey generates a composite key for the token index.
// Format: prefix:token 0x00 id
func makeTokenKey(token string, id core.ID) []byte {
	return appendID(makePartialTokenKey(token), id)
}

// makePartialTokenKey generates the key prefix shared by every document
// holding exactly token.
// Format: prefix:token 0x00
func makePartialTokenKey(token string) []byte {
	buf := makeTokenPrefixKey(token)
	return append(buf, 0x00)
}

// makeTokenPrefixKey generates the key prefix shared by every token starting
// with prefix.
// Format: prefix:tokenprefix
func makeTokenPrefixKey(prefix string) []byte {
	buf := make([]byte, 0, len(tokenIndexPrefix)+1+len(prefix)+1+idSize)
	buf = append(buf, tokenIndexPrefix...)
	buf = append(buf, ':')
	return append(buf, prefix...)
}

// makeFilterKey generates a composite key for the filter index.
// Format: prefix:tuple id
func makeFilterKey(filters []string, id core.ID) []byte {
	buf := makeFilterBaseKey()
	for _, value := range filters {
		buf = appendTupleElement(buf, value)
	}
	return appendID(buf, id)
}

// makeFilterBoundKey generates a range bound for the filter index.
// Format: prefix:tuple
func makeFilterBoundKey(bounds []filterBound) []byte {
	buf := makeFilterBaseKey()
	for _, bound := range bounds {
		if bound.sentinel != nil {
			buf = append(buf, bound.sentinel...)
			continue
		}
		buf = appendTupleElement(buf, bound.value)
	}
	return buf
}

func makeFilterBaseKey() []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, filterIndexPrefix...)
	return append(buf, ':')
}

// appendTupleElement appends one escaped, terminated tuple element.
func appendTupleElement(buf []byte, value string) []byte {
	for i := 0; i < len(value); i++ {
		if value[i] == 0x00 {
			buf = append(buf, escapedZero...)
			continue
		}
		buf = append(buf, value[i])
	}
	return append(buf, elementTerminator...)
}

// decodeFilterKey splits a filter index key into its tuple and document ID.
func decodeFilterKey(key []byte) ([]string, core.ID, error) {
	base := len(filterIndexPrefix) + 1
	if len(key) < base+idSize {
		return nil, 0, fmt.Errorf("%w: filter key too short", storage.ErrCorruptKey)
	}
	id, err := idFromKey(key)
	if err != nil {
		return nil, 0, err
	}

	data := key[base : len(key)-idSize]
	var tuple []string
	var current []byte
	for i := 0; i < len(data); i++ {
		if data[i] != 0x00 {
			current = append(current, data[i])
			continue
		}
		if i+1 >= len(data) {
			return nil, 0, fmt.Errorf("%w: dangling escape in filter key", storage.ErrCorruptKey)
		}
		switch data[i+1] {
		case escapedZero[1]:
			current = append(current, 0x00)
		case elementTerminator[1]:
			tuple = append(tuple, string(current))
			current = current[:0]
		default:
			return nil, 0, fmt.Errorf("%w: bad escape 0x%02x in filter key", storage.ErrCorruptKey, data[i+1])
		}
		i++
	}
	if len(current) > 0 {
		return nil, 0, fmt.Errorf("%w: unterminated filter element", storage.ErrCorruptKey)
	}
	return tuple, id, nil
}

// makeCheckpointKey generates a key for processor checkpoints.
func makeCheckpointKey(processorType string) []byte {
	return []byte(fmt.Sprintf("%s:chkpt", processorType))
}
