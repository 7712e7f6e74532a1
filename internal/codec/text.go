package codec

import (
	"unicode"
	"unicode/utf8"
)

const upperHex = "0123456789ABCDEF"

// appendMarkupText escapes s for XML character data (attr false) or a
// double-quoted attribute value (attr true).
//
// Legal printable characters pass through, except the markup-significant
// ones which become named entities. Legal whitespace and control
// characters become numeric references so the engine's parser cannot
// normalize them away. Characters beyond the Basic Multilingual Plane are
// written as one numeric reference. Bytes that do not decode to a legal
// XML character, including encoded lone surrogates, become '?'.
func appendMarkupText(dst []byte, s string, attr bool) []byte {
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf && c >= 0x20 && c != 0x7F {
			switch c {
			case '<':
				dst = append(dst, "&lt;"...)
			case '>':
				dst = append(dst, "&gt;"...)
			case '&':
				dst = append(dst, "&amp;"...)
			case '"':
				if attr {
					dst = append(dst, "&quot;"...)
				} else {
					dst = append(dst, c)
				}
			case '\'':
				if attr {
					dst = append(dst, "&apos;"...)
				} else {
					dst = append(dst, c)
				}
			case ' ':
				dst = appendCharRef(dst, ' ')
			default:
				dst = append(dst, c)
			}
			i++
			continue
		}

		if hi, lo, ok := surrogatePair(s[i:]); ok {
			dst = appendCharRef(dst, utf16Combine(hi, lo))
			i += 6
			continue
		}
		if isEncodedSurrogate(s[i:]) {
			dst = append(dst, '?')
			i += 3
			continue
		}

		r, size := utf8.DecodeRuneInString(s[i:])
		switch {
		case r == utf8.RuneError && size <= 1:
			dst = append(dst, '?')
		case !legalXMLChar(r):
			dst = append(dst, '?')
		case r > 0xFFFF:
			dst = appendCharRef(dst, r)
		case unicode.IsSpace(r) || unicode.IsControl(r):
			dst = appendCharRef(dst, r)
		default:
			dst = append(dst, s[i:i+size]...)
		}
		i += size
	}
	return dst
}

func appendCharRef(dst []byte, r rune) []byte {
	dst = append(dst, "&#x"...)
	var buf [8]byte
	n := len(buf)
	for {
		n--
		buf[n] = upperHex[r&0xF]
		r >>= 4
		if r == 0 {
			break
		}
	}
	dst = append(dst, buf[n:]...)
	return append(dst, ';')
}

func legalXMLChar(r rune) bool {
	switch {
	case r == 0x9 || r == 0xA || r == 0xD:
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

// isEncodedSurrogate reports whether s starts with the three-byte
// generalized UTF-8 encoding of a UTF-16 surrogate code unit. Go strings
// built from unpaired UTF-16 data carry them this way.
func isEncodedSurrogate(s string) bool {
	return len(s) >= 3 && s[0] == 0xED && s[1] >= 0xA0 && s[1] <= 0xBF && s[2]&0xC0 == 0x80
}

// surrogatePair reports whether s starts with an encoded high surrogate
// immediately followed by an encoded low surrogate.
func surrogatePair(s string) (hi, lo rune, ok bool) {
	if len(s) < 6 || !isEncodedSurrogate(s) || !isEncodedSurrogate(s[3:]) {
		return 0, 0, false
	}
	hi = decodeSurrogate(s)
	lo = decodeSurrogate(s[3:])
	if hi < 0xD800 || hi > 0xDBFF || lo < 0xDC00 || lo > 0xDFFF {
		return 0, 0, false
	}
	return hi, lo, true
}

func decodeSurrogate(s string) rune {
	return rune(s[0]&0x0F)<<12 | rune(s[1]&0x3F)<<6 | rune(s[2]&0x3F)
}

func utf16Combine(hi, lo rune) rune {
	return (hi-0xD800)<<10 + (lo - 0xDC00) + 0x10000
}

// appendJSONString writes s as a JSON string. HTML characters are not
// escaped and U+2028/U+2029 are written literally. Invalid UTF-8 becomes
// U+FFFD.
func appendJSONString(dst []byte, s string) []byte {
	dst = append(dst, '"')
	start := 0
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			if c >= 0x20 && c != '"' && c != '\\' {
				i++
				continue
			}
			dst = append(dst, s[start:i]...)
			switch c {
			case '"', '\\':
				dst = append(dst, '\\', c)
			case '\n':
				dst = append(dst, '\\', 'n')
			case '\r':
				dst = append(dst, '\\', 'r')
			case '\t':
				dst = append(dst, '\\', 't')
			default:
				dst = append(dst, '\\', 'u', '0', '0', upperHex[c>>4], upperHex[c&0xF])
			}
			i++
			start = i
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			dst = append(dst, s[start:i]...)
			dst = append(dst, `�`...)
			i++
			start = i
			continue
		}
		i += size
	}
	dst = append(dst, s[start:]...)
	return append(dst, '"')
}
