package model

import (
	"strconv"
)

const hexDigits = "0123456789abcdef"

// AppendQuoted appends s to dst as a JSON string using the relay's canonical
// escaping: quote, backslash, \n, \r, \t, \b and \f get short escapes, other
// control characters are written as \u00XX and every other byte is copied
// verbatim. encoding/json is not used because it also escapes <, >, & and
// U+2028/U+2029, which would change event ids.
func AppendQuoted(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			dst = append(dst, '\\', '"')
		case '\\':
			dst = append(dst, '\\', '\\')
		case '\n':
			dst = append(dst, '\\', 'n')
		case '\r':
			dst = append(dst, '\\', 'r')
		case '\t':
			dst = append(dst, '\\', 't')
		case '\b':
			dst = append(dst, '\\', 'b')
		case '\f':
			dst = append(dst, '\\', 'f')
		default:
			if c < 0x20 {
				dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
				continue
			}
			dst = append(dst, c)
		}
	}
	return append(dst, '"')
}

// AppendCanonical appends the canonical JSON array form of the tags.
func (ts Tags) AppendCanonical(dst []byte) []byte {
	dst = append(dst, '[')
	for i, tag := range ts {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, '[')
		for j, v := range tag {
			if j > 0 {
				dst = append(dst, ',')
			}
			dst = AppendQuoted(dst, v)
		}
		dst = append(dst, ']')
	}
	return append(dst, ']')
}

// Canonical returns the canonical JSON form of the tags, as stored in the
// tags column.
func (ts Tags) Canonical() string {
	return string(ts.AppendCanonical(nil))
}

// Serialize returns the canonical serialization the event id is computed over:
// [0,pubkey,created_at,kind,tags,content].
func (e *Event) Serialize() []byte {
	buf := make([]byte, 0, 128+len(e.Content))
	buf = append(buf, '[', '0', ',')
	buf = AppendQuoted(buf, e.PubKey)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, e.CreatedAt, 10)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(e.Kind), 10)
	buf = append(buf, ',')
	buf = e.Tags.AppendCanonical(buf)
	buf = append(buf, ',')
	buf = AppendQuoted(buf, e.Content)
	return append(buf, ']')
}
