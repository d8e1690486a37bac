package lzw

// table is the code dictionary. Entry c expands to the expansion of
// prefix[c] followed by suffix[c]; codes below clear are literals and
// expand to themselves.
type table struct {
	suffix [tableSize]uint8
	prefix [tableSize]uint16
}

func (t *table) assign(code, prefix uint16, suffix uint8) {
	t.suffix[code] = suffix
	t.prefix[code] = prefix
}

// head returns the first byte of code's expansion.
func (t *table) head(code, clear uint16) uint8 {
	for code >= clear {
		code = t.prefix[code]
	}
	return uint8(code)
}

// unwind writes code's expansion so that it ends at len(dst) and returns the
// index of its first byte. dst must have room for the whole expansion.
func (t *table) unwind(code, clear uint16, dst []byte) int {
	i := len(dst) - 1
	for code >= clear {
		dst[i] = t.suffix[code]
		i--
		code = t.prefix[code]
	}
	dst[i] = uint8(code)
	return i
}
