// Package csvio reads and writes the CSV files exchanged with accounting
// tools. Input may be UTF-8 (with or without BOM) or Shift_JIS; output is
// always UTF-8.
package csvio

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
)

// Encoding names a detected text encoding.
type Encoding string

const (
	EncodingUTF8    Encoding = "utf-8"
	EncodingUTF8BOM Encoding = "utf-8-bom"
	EncodingSJIS    Encoding = "shift_jis"
	EncodingUnknown Encoding = "unknown"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Detect guesses the encoding of data. Shift_JIS is reported only when the
// bytes are not valid UTF-8 and decode cleanly as Shift_JIS.
func Detect(data []byte) Encoding {
	if bytes.HasPrefix(data, utf8BOM) {
		return EncodingUTF8BOM
	}
	if utf8.Valid(data) {
		return EncodingUTF8
	}
	// The decoder substitutes U+FFFD for byte sequences it cannot map.
	decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(data)
	if err == nil && !bytes.ContainsRune(decoded, utf8.RuneError) {
		return EncodingSJIS
	}
	return EncodingUnknown
}

// ToUTF8 converts data to UTF-8 without a BOM and reports the source
// encoding. Unknown encodings are returned unchanged.
func ToUTF8(data []byte) ([]byte, Encoding, error) {
	enc := Detect(data)
	switch enc {
	case EncodingUTF8BOM:
		return data[len(utf8BOM):], enc, nil
	case EncodingSJIS:
		out, err := japanese.ShiftJIS.NewDecoder().Bytes(data)
		return out, enc, err
	default:
		return data, enc, nil
	}
}
