// Package plotgeom defines the fixed byte geometry shared by every other
// plotkit package: scoops, nonces, groups, sectors, and the BFS table of
// contents layout.
package plotgeom

// Fixed geometry constants. All arithmetic built on these must be done in
// 64-bit: 16384 nonces (4 GiB) already reach the end of the 32-bit
// byte-offset range.
const (
	ScoopSize      = 64               // bytes per scoop
	ScoopsPerNonce = 4096             // scoops per nonce
	NonceSize      = ScoopsPerNonce * ScoopSize // bytes per nonce (262144)

	SectorSize = 512  // raw device sector size
	TOCSize    = 1024 // bytes reserved for the table of contents
	TOCSlots   = 31   // maximum live plot files per device
	SlotSize   = 32   // bytes per TOC slot record
)

// Slot status codes, packed into bits 48..50 of a TOC slot's info word.
const (
	StatusOK         = 1
	StatusIncomplete = 2
	StatusConverting = 3
)

// PackInfo combines a start byte offset, a status code, and (for
// StatusConverting) the index of the last completed shuffle scoop into the
// 64-bit info word stored in a TOC slot.
//
// Layout: bits 0..47 startPos, bits 48..50 status, bits 51..63 lastScoop.
func PackInfo(startPos int64, status uint8, lastScoop uint16) uint64 {
	return uint64(startPos)&0xffffffffffff | uint64(status&0x7)<<48 | uint64(lastScoop&0x1fff)<<51
}

// UnpackInfo splits a TOC slot's info word back into its three fields.
func UnpackInfo(info uint64) (startPos int64, status uint8, lastScoop uint16) {
	startPos = int64(info & 0xffffffffffff)
	status = uint8((info >> 48) & 0x7)
	lastScoop = uint16((info >> 51) & 0x1fff)
	return
}

// NonceBytes returns the byte length of a plot holding n nonces.
func NonceBytes(nonces uint32) int64 {
	return int64(nonces) * NonceSize
}

// GroupCount returns the number of POC1 groups for the given nonces/stagger
// pair. A stagger of 0, or stagger == nonces, both describe a single group
// (POC2, or a POC1 file that is "optimized" in all but name).
func GroupCount(nonces, stagger uint32) uint32 {
	if stagger == 0 || stagger == nonces {
		return 1
	}
	return nonces / stagger
}

// IsPOC2 reports whether a stagger value describes the optimized layout.
func IsPOC2(stagger uint32) bool {
	return stagger == 0
}

// GroupSize returns the byte length of one POC1 group.
func GroupSize(stagger uint32) int64 {
	return int64(stagger) * NonceSize
}

// GroupScoopSize returns the byte length of a single scoop slice within one
// POC1 group (the contiguous run of `stagger` nonces' worth of one scoop
// index).
func GroupScoopSize(stagger uint32) int64 {
	return int64(stagger) * ScoopSize
}

// ScoopOffset returns the byte offset, within a file using the given
// stagger, of group g's slice of scoop s.
func ScoopOffset(stagger uint32, group, scoop int) int64 {
	return int64(group)*GroupSize(stagger) + int64(scoop)*GroupScoopSize(stagger)
}

// MirrorScoop returns the scoop index mirrored with s under the POC2
// pairing (s and 4095-s).
func MirrorScoop(s int) int {
	return ScoopsPerNonce - 1 - s
}

// SwapScoopHalves exchanges bytes [32:64) of every ScoopSize-sized unit
// between a and b in place. a and b must be the same length and that
// length must be a multiple of ScoopSize; they hold the contiguous
// per-nonce scoop-s and scoop-mirror(s) slices for one group. This is the
// sole bit-level operation the POC1->POC2 conversion performs: the lower
// 32 bytes of every scoop are left untouched.
func SwapScoopHalves(a, b []byte) {
	for off := 32; off+32 <= len(a); off += ScoopSize {
		for i := 0; i < 32; i++ {
			a[off+i], b[off+i] = b[off+i], a[off+i]
		}
	}
}
