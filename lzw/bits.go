package lzw

// nextCode extracts the next width-bit code, pulling bytes from the source
// one at a time as needed. Errors from the source are returned unchanged.
func (r *Reader) nextCode() (uint16, error) {
	if r.order == MSB {
		return r.nextCodeMSB()
	}
	return r.nextCodeLSB()
}

// nextCodeLSB fills bits from the low end and takes codes from the low end.
func (r *Reader) nextCodeLSB() (uint16, error) {
	for r.nBits < r.width {
		x, err := r.src.ReadByte()
		if err != nil {
			return 0, err
		}
		r.bits |= uint32(x) << r.nBits
		r.nBits += 8
	}

	code := uint16(r.bits & (1<<r.width - 1))
	r.bits >>= r.width
	r.nBits -= r.width

	return code, nil
}

// nextCodeMSB fills bits from the top of a 32-bit window and takes codes
// from the top.
func (r *Reader) nextCodeMSB() (uint16, error) {
	for r.nBits < r.width {
		x, err := r.src.ReadByte()
		if err != nil {
			return 0, err
		}
		r.bits |= uint32(x) << (24 - r.nBits)
		r.nBits += 8
	}

	code := uint16(r.bits >> (32 - r.width))
	r.bits <<= r.width
	r.nBits -= r.width

	return code, nil
}
