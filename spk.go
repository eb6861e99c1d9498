package assist

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// SPKSource reads asteroid positions from a binary JPL SPK (DAF) file
// such as sb441-n16.bsp. Only Chebyshev segments (data types 2 and 3)
// are supported, which is all the small-body files use. Asteroid index
// i maps onto the i-th segment in file order, matching the GM table.
type SPKSource struct {
	f     *os.File
	order binary.ByteOrder
	segs  []spkSegment
	cau   float64
}

type spkSegment struct {
	etBegin, etEnd float64
	target, center int32
	frame, dtype   int32
	start, end     int32 // 1-indexed double addresses

	// Chebyshev directory, read once from the segment trailer.
	init, intlen float64
	rsize, n     int32
}

const (
	dafRecordLen = 1024
	j2000JD      = 2451545.0
	daySeconds   = 86400.0
)

// NewSPKSource opens an SPK file read-only and scans its segment
// summaries. The au scale should come from the planetary kernel so
// that both readers share one conversion constant.
func NewSPKSource(path string, auKm float64) (*SPKSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEphemerisUnavailable, err)
	}
	s := &SPKSource{f: f, cau: auKm}
	if err := s.readFileRecord(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the file handle.
func (s *SPKSource) Close() error {
	return s.f.Close()
}

func (s *SPKSource) readFileRecord() error {
	rec := make([]byte, dafRecordLen)
	if _, err := s.f.ReadAt(rec, 0); err != nil {
		return fmt.Errorf("%w: reading file record: %v", ErrEphemerisUnavailable, err)
	}
	if string(rec[0:7]) != "DAF/SPK" {
		return fmt.Errorf("%w: not an SPK file", ErrEphemerisUnavailable)
	}
	switch string(rec[88:96]) {
	case "LTL-IEEE":
		s.order = binary.LittleEndian
	case "BIG-IEEE":
		s.order = binary.BigEndian
	default:
		return fmt.Errorf("%w: unknown binary format %q", ErrEphemerisUnavailable, rec[88:96])
	}
	nd := int32(s.order.Uint32(rec[8:12]))
	ni := int32(s.order.Uint32(rec[12:16]))
	if nd != 2 || ni != 6 {
		return fmt.Errorf("%w: unexpected summary format ND=%d NI=%d", ErrEphemerisUnavailable, nd, ni)
	}
	fward := int32(s.order.Uint32(rec[76:80]))
	return s.scanSummaries(fward)
}

func (s *SPKSource) scanSummaries(record int32) error {
	rec := make([]byte, dafRecordLen)
	for record > 0 {
		if _, err := s.f.ReadAt(rec, int64(record-1)*dafRecordLen); err != nil {
			return fmt.Errorf("%w: reading summary record: %v", ErrEphemerisUnavailable, err)
		}
		next := int32(math.Float64frombits(s.order.Uint64(rec[0:8])))
		nsum := int32(math.Float64frombits(s.order.Uint64(rec[16:24])))
		const summarySize = 5 * 8 // ND doubles + NI packed ints
		for k := int32(0); k < nsum; k++ {
			off := 24 + k*summarySize
			seg := spkSegment{
				etBegin: math.Float64frombits(s.order.Uint64(rec[off : off+8])),
				etEnd:   math.Float64frombits(s.order.Uint64(rec[off+8 : off+16])),
				target:  int32(s.order.Uint32(rec[off+16 : off+20])),
				center:  int32(s.order.Uint32(rec[off+20 : off+24])),
				frame:   int32(s.order.Uint32(rec[off+24 : off+28])),
				dtype:   int32(s.order.Uint32(rec[off+28 : off+32])),
				start:   int32(s.order.Uint32(rec[off+32 : off+36])),
				end:     int32(s.order.Uint32(rec[off+36 : off+40])),
			}
			if seg.dtype != 2 && seg.dtype != 3 {
				return fmt.Errorf("%w: unsupported SPK data type %d", ErrEphemerisUnavailable, seg.dtype)
			}
			dir, err := s.readDoubles(seg.end-3, 4)
			if err != nil {
				return err
			}
			seg.init = dir[0]
			seg.intlen = dir[1]
			seg.rsize = int32(dir[2])
			seg.n = int32(dir[3])
			s.segs = append(s.segs, seg)
		}
		record = next
	}
	if len(s.segs) == 0 {
		return fmt.Errorf("%w: SPK file holds no segments", ErrEphemerisUnavailable)
	}
	return nil
}

// readDoubles reads n doubles starting at the 1-indexed double address.
func (s *SPKSource) readDoubles(addr int32, n int32) ([]float64, error) {
	buf := make([]byte, 8*n)
	if _, err := s.f.ReadAt(buf, int64(addr-1)*8); err != nil {
		return nil, fmt.Errorf("%w: reading segment data: %v", ErrEphemerisUnavailable, err)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(s.order.Uint64(buf[8*i : 8*i+8]))
	}
	return out, nil
}

// HelioPosition implements SmallBodySource. The sb441 segments are
// heliocentric; positions come back in au.
func (s *SPKSource) HelioPosition(i int, jd float64) ([3]float64, error) {
	if i < 0 || i >= len(s.segs) {
		return [3]float64{}, fmt.Errorf("%w: asteroid %d", ErrBodyIndexOutOfRange, i)
	}
	seg := s.segs[i]
	et := (jd - j2000JD) * daySeconds
	if et < seg.etBegin || et > seg.etEnd {
		return [3]float64{}, fmt.Errorf("%w: t=%f outside segment span", ErrEphemerisUnavailable, jd)
	}
	idx := int32((et - seg.init) / seg.intlen)
	if idx < 0 {
		idx = 0
	}
	if idx >= seg.n {
		idx = seg.n - 1
	}
	rec, err := s.readDoubles(seg.start+idx*seg.rsize, seg.rsize)
	if err != nil {
		return [3]float64{}, err
	}
	mid, radius := rec[0], rec[1]
	ncomp := int32(3)
	if seg.dtype == 3 {
		ncomp = 6
	}
	ncoef := (seg.rsize - 2) / ncomp
	x := (et - mid) / radius

	// Clenshaw evaluation of the three position components.
	var pos [3]float64
	for c := int32(0); c < 3; c++ {
		coef := rec[2+c*ncoef : 2+(c+1)*ncoef]
		var b1, b2 float64
		for k := ncoef - 1; k >= 1; k-- {
			b1, b2 = 2*x*b1-b2+coef[k], b1
		}
		pos[c] = (x*b1 - b2 + coef[0]) / s.cau
	}
	return pos, nil
}
