package beauty

import "strings"

// urlDecode percent-decodes s, turning "+" into a space, mirroring
// RequestDecoder::urlDecode. Malformed escapes (not followed by two hex
// digits) are copied through literally rather than rejected.
func urlDecode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '%':
			if i+2 < len(s) {
				hi, okHi := hexVal(s[i+1])
				lo, okLo := hexVal(s[i+2])
				if okHi && okLo {
					b.WriteByte(byte(hi<<4 | lo))
					i += 2
					continue
				}
			}
			// Not a valid escape: copy the '%' through literally.
			b.WriteByte(c)
		case '+':
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}

// keyValDecode splits a "key=val&key2=val2" string into key/value pairs,
// matching RequestDecoder::keyValDecode exactly: a lone trailing key with no
// '=' is still emitted, and an empty input produces no pairs.
func keyValDecode(in string) []KeyVal {
	if in == "" {
		return nil
	}
	var params []KeyVal
	var key, val strings.Builder
	writingVal := false
	for i := 0; i < len(in); i++ {
		c := in[i]
		switch {
		case c == '=':
			writingVal = true
		case c == '&':
			params = append(params, KeyVal{Key: key.String(), Value: val.String()})
			key.Reset()
			val.Reset()
			writingVal = false
		case i == len(in)-1:
			if writingVal {
				val.WriteByte(c)
			} else {
				key.WriteByte(c)
			}
			params = append(params, KeyVal{Key: key.String(), Value: val.String()})
		default:
			if writingVal {
				val.WriteByte(c)
			} else {
				key.WriteByte(c)
			}
		}
	}
	return params
}
