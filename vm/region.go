package vm

import "encoding/binary"

// regionSize is the fixed 12-byte header size of spec.md §4.4: three
// little-endian u32 fields laid out as the guest would see them in its
// own linear memory.
const regionSize = 12

// Region is the guest-memory descriptor { offset, capacity, length } a
// pointer argument refers to.
type Region struct {
	Offset   uint32
	Capacity uint32
	Length   uint32
}

// EncodeRegion renders a Region as its 12-byte guest-memory layout.
func EncodeRegion(r Region) []byte {
	buf := make([]byte, regionSize)
	binary.LittleEndian.PutUint32(buf[0:4], r.Offset)
	binary.LittleEndian.PutUint32(buf[4:8], r.Capacity)
	binary.LittleEndian.PutUint32(buf[8:12], r.Length)
	return buf
}

// DecodeRegion parses a Region from its 12-byte guest-memory layout.
func DecodeRegion(raw []byte) (Region, bool) {
	if len(raw) < regionSize {
		return Region{}, false
	}
	return Region{
		Offset:   binary.LittleEndian.Uint32(raw[0:4]),
		Capacity: binary.LittleEndian.Uint32(raw[4:8]),
		Length:   binary.LittleEndian.Uint32(raw[8:12]),
	}, true
}
