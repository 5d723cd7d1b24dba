package capture

import "encoding/binary"

// putInt16s encodes samples into dst, which must hold 2*len(src) bytes
func putInt16s(dst []byte, src []int16, bigEndian bool) {
	var order binary.ByteOrder = binary.LittleEndian
	if bigEndian {
		order = binary.BigEndian
	}
	for i, s := range src {
		order.PutUint16(dst[2*i:], uint16(s))
	}
}

// Sample decodes the sample starting at p[0] as a signed value in the
// range of f's bit depth. Unsigned formats are re-centred on zero.
func (f Format) Sample(p []byte) int {
	var u uint32
	n := f.SampleSize()
	for i := 0; i < n; i++ {
		b := p[i]
		if f.BigEndian {
			u = u<<8 | uint32(b)
		} else {
			u |= uint32(b) << (8 * i)
		}
	}
	bits := uint(8 * n)
	if !f.Signed {
		return int(int64(u) - int64(1)<<(bits-1))
	}
	// sign extend
	shift := 32 - bits
	return int(int32(u<<shift) >> shift)
}
