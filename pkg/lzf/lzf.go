// Package lzf implements the LZF block compression format used by
// Gibson's item store to shrink large plain values before they take a
// permanent seat in the cache (§4.2).
//
// LZF trades compression ratio for raw speed: it is a single-pass LZ77
// variant with a tiny, fixed-size literal/backref framing and no
// container overhead (no magic bytes, no checksum, no dictionary). That
// makes it a good fit for an in-memory cache, where compression runs on
// every SET of a large value and decompression runs on every GET, but a
// poor fit for anything that needs portability across tools — which is
// why Gibson keeps its own copy rather than shelling out to a
// general-purpose codec (see DESIGN.md for why compress/flate was not
// substituted here).
//
// Example usage:
//
//	out := make([]byte, len(in))
//	n, err := lzf.Compress(in, out)
//	if err == lzf.ErrOutputOverflow {
//		// in didn't compress well enough to fit out; store in as-is
//	}
package lzf

import "errors"

// ErrOutputOverflow is returned by Compress when the compressed form
// would not fit in the supplied output buffer (including the case where
// compression simply doesn't shrink the input enough to matter).
var ErrOutputOverflow = errors.New("lzf: output buffer too small")

// ErrCorruptInput is returned by Decompress when the compressed stream
// references a back-reference distance or length that overruns the
// buffers being decoded, indicating truncated or corrupted input.
var ErrCorruptInput = errors.New("lzf: corrupt compressed input")

const (
	hashBits    = 16
	hashSize    = 1 << hashBits
	maxLit      = 1 << 5       // literal runs encode as 1..32 bytes
	maxOff      = 1 << 13      // back-reference distance fits 13 bits
	maxRef      = (1 << 8) + 8 // longest encodable back-reference
	minInputLen = 4
)

func hash3(in []byte, i int) uint32 {
	h := uint32(in[i])<<16 | uint32(in[i+1])<<8 | uint32(in[i+2])
	h *= 2654435761
	return h >> (32 - hashBits)
}

// Compress writes the LZF encoding of in into out and returns the number
// of bytes written. It returns (0, ErrOutputOverflow) if the compressed
// form — including the case where in is incompressible — does not fit in
// out; callers should fall back to storing the input uncompressed
// (PLAIN encoding) in that case, per §3's encoding policy.
func Compress(in, out []byte) (int, error) {
	inLen := len(in)
	if inLen < minInputLen {
		return 0, ErrOutputOverflow
	}

	htab := make([]int32, hashSize)
	for i := range htab {
		htab[i] = -1
	}

	outLen := len(out)
	oidx := 0
	litStart := 0
	litLen := 0

	flushLiterals := func() error {
		for litLen > 0 {
			chunk := litLen
			if chunk > maxLit {
				chunk = maxLit
			}
			if oidx+1+chunk > outLen {
				return ErrOutputOverflow
			}
			out[oidx] = byte(chunk - 1)
			oidx++
			copy(out[oidx:], in[litStart:litStart+chunk])
			oidx += chunk
			litStart += chunk
			litLen -= chunk
		}
		return nil
	}

	i := 0
	for i+3 <= inLen {
		h := hash3(in, i)
		ref := int(htab[h])
		htab[h] = int32(i)

		matched := false
		if ref >= 0 {
			off := i - ref - 1
			if off < maxOff && in[ref] == in[i] && in[ref+1] == in[i+1] && in[ref+2] == in[i+2] {
				length := 3
				maxLen := inLen - i
				if maxLen > maxRef {
					maxLen = maxRef
				}
				for length < maxLen && in[ref+length] == in[i+length] {
					length++
				}

				if litLen > 0 {
					if err := flushLiterals(); err != nil {
						return 0, err
					}
				}

				l := length - 2
				if l <= 6 {
					if oidx+2 > outLen {
						return 0, ErrOutputOverflow
					}
					out[oidx] = byte(l<<5) | byte((off>>8)&0x1f)
					oidx++
				} else {
					if oidx+3 > outLen {
						return 0, ErrOutputOverflow
					}
					out[oidx] = byte(7<<5) | byte((off>>8)&0x1f)
					oidx++
					out[oidx] = byte(l - 7)
					oidx++
				}
				out[oidx] = byte(off)
				oidx++

				i += length
				litStart = i
				matched = true
			}
		}

		if !matched {
			if litLen == 0 {
				litStart = i
			}
			litLen++
			i++
			if litLen == maxLit {
				if err := flushLiterals(); err != nil {
					return 0, err
				}
			}
		}
	}

	// The final 0-2 bytes never enter the match search above; fold them
	// into the pending literal run and flush.
	litLen += inLen - i
	litStart = inLen - litLen
	if err := flushLiterals(); err != nil {
		return 0, err
	}

	return oidx, nil
}

// Decompress writes the decoded form of in into out and returns the
// number of bytes written, or ErrCorruptInput if in references data
// beyond what has been decoded so far or overruns out.
func Decompress(in, out []byte) (int, error) {
	iidx := 0
	oidx := 0
	inLen := len(in)
	outLen := len(out)

	for iidx < inLen {
		ctrl := int(in[iidx])
		iidx++

		if ctrl < maxLit {
			length := ctrl + 1
			if iidx+length > inLen || oidx+length > outLen {
				return 0, ErrCorruptInput
			}
			copy(out[oidx:], in[iidx:iidx+length])
			oidx += length
			iidx += length
			continue
		}

		// Back-reference: top 3 bits of ctrl are the length selector,
		// bottom 5 bits are the high bits of the offset.
		length := ctrl >> 5
		if length == 7 {
			if iidx >= inLen {
				return 0, ErrCorruptInput
			}
			length += int(in[iidx])
			iidx++
		}
		length += 2

		if iidx >= inLen {
			return 0, ErrCorruptInput
		}
		off := (ctrl&0x1f)<<8 | int(in[iidx])
		iidx++

		ref := oidx - off - 1
		if ref < 0 || oidx+length > outLen {
			return 0, ErrCorruptInput
		}
		for i := 0; i < length; i++ {
			out[oidx+i] = out[ref+i]
		}
		oidx += length
	}

	return oidx, nil
}
