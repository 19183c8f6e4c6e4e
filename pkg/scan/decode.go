package scan

// DecodedLen returns the byte length of raw after collapsing doubled
// qualifiers. Fields without the FieldEscaped flag decode to their raw
// length, so callers only need this on escaped fields.
func DecodedLen(raw []byte, qualifier byte) int {
	n := len(raw)
	for i := 0; i < len(raw)-1; i++ {
		if raw[i] == qualifier && raw[i+1] == qualifier {
			n--
			i++
		}
	}
	return n
}

// AppendUnescaped appends raw to dst with each doubled qualifier collapsed
// to a single byte and returns the extended slice. Lone qualifiers left by
// recovered malformed rows pass through unchanged.
func AppendUnescaped(dst, raw []byte, qualifier byte) []byte {
	for i := 0; i < len(raw); i++ {
		b := raw[i]
		dst = append(dst, b)
		if b == qualifier && i+1 < len(raw) && raw[i+1] == qualifier {
			i++
		}
	}
	return dst
}
