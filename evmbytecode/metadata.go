package evmbytecode

import (
	"bytes"
	"encoding/binary"
)

// solc ends the code with a CBOR map describing the compilation, followed by
// the map's length as two big-endian bytes. Documented here;
// https://docs.soliditylang.org/en/latest/metadata.html#encoding-of-the-metadata-hash-in-the-bytecode
// Source maps never cover it, so it has to go before walking.
var metadataKeys = [][]byte{
	append([]byte{0x64}, "ipfs"...),
	append([]byte{0x65}, "bzzr0"...),
	append([]byte{0x65}, "bzzr1"...),
	append([]byte{0x64}, "solc"...),
}

// MetadataLength returns the length of the metadata trailer including the two
// length bytes, or zero when code does not end in one.
func MetadataLength(code []byte) int {
	if len(code) < 2 {
		return 0
	}
	cborLength := int(binary.BigEndian.Uint16(code[len(code)-2:]))
	total := cborLength + 2
	if cborLength == 0 || total > len(code) {
		return 0
	}

	cbor := code[len(code)-total : len(code)-2]
	// A map with up to 5 entries: 0xa1..0xa5.
	if cbor[0] < 0xa1 || cbor[0] > 0xa5 {
		return 0
	}
	for _, key := range metadataKeys {
		if bytes.Contains(cbor, key) {
			return total
		}
	}
	return 0
}

// StripMetadata returns code without its metadata trailer.
func StripMetadata(code []byte) []byte {
	return code[:len(code)-MetadataLength(code)]
}
