// Package h264 provides the H.264 bitstream handling the recorder needs:
// Annex B NAL unit parsing, SPS resolution extraction, sample entry
// construction for catalog registration, and the Annex-B-to-length-prefixed
// payload transform applied before samples reach storage.
package h264

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// H.264 NAL unit type constants as defined in ITU-T H.264 Table 7-1.
const (
	NALTypeSlice      = 1
	NALTypeIDR        = 5
	NALTypeSEI        = 6
	NALTypeSPS        = 7
	NALTypePPS        = 8
	NALTypeAUD        = 9
	NALTypeFillerData = 12
)

// NALUnit is a single NAL unit split out of an Annex B byte stream. Data
// includes the NAL header byte but no start code.
type NALUnit struct {
	Type byte
	Data []byte
}

// IsKeyframe returns true if the NAL type is an IDR slice.
func IsKeyframe(nalType byte) bool { return nalType == NALTypeIDR }

// ParseAnnexB splits an Annex B byte stream into NAL units, accepting both
// 3-byte and 4-byte start codes.
func ParseAnnexB(data []byte) []NALUnit {
	n := len(data)
	if n < 4 {
		return nil
	}

	type startCode struct {
		pos       int
		dataStart int
	}
	var codes []startCode
	for i := 0; i < n-2; {
		if data[i] != 0 || data[i+1] != 0 {
			i++
			continue
		}
		if i < n-3 && data[i+2] == 0 && data[i+3] == 1 {
			codes = append(codes, startCode{i, i + 4})
			i += 4
			continue
		}
		if data[i+2] == 1 {
			codes = append(codes, startCode{i, i + 3})
			i += 3
			continue
		}
		i++
	}

	var units []NALUnit
	for i, sc := range codes {
		end := n
		if i+1 < len(codes) {
			end = codes[i+1].pos
		}
		if sc.dataStart >= end {
			continue
		}
		nal := data[sc.dataStart:end]
		units = append(units, NALUnit{Type: nal[0] & 0x1F, Data: nal})
	}
	return units
}

var errNoNALUnits = errors.New("h264: no NAL units in sample data")

// TransformSampleData rewrites an Annex B access unit into the
// length-prefixed layout stored in sample files: each NAL unit is preceded
// by its length as a 4-byte big-endian integer. AUD and filler NAL units
// are dropped; they carry no picture data. The result is appended into
// *out, which is reset and reused across calls to avoid reallocation.
func TransformSampleData(data []byte, out *[]byte) error {
	units := ParseAnnexB(data)
	if len(units) == 0 {
		return errNoNALUnits
	}

	*out = (*out)[:0]
	kept := 0
	for _, u := range units {
		if u.Type == NALTypeAUD || u.Type == NALTypeFillerData {
			continue
		}
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(u.Data)))
		*out = append(*out, lenBuf[:]...)
		*out = append(*out, u.Data...)
		kept++
	}
	if kept == 0 {
		return errNoNALUnits
	}
	return nil
}

// BuildSampleEntry builds the opaque sample entry registered with the
// catalog for an H.264 stream: an AVCDecoderConfigurationRecord
// (ISO 14496-15 §5.2.4.1.1) built from raw SPS and PPS NAL data without
// start codes. The SPS must include the NAL header byte (0x67).
func BuildSampleEntry(sps, pps []byte) ([]byte, error) {
	if len(sps) < 4 || len(pps) == 0 {
		return nil, fmt.Errorf("h264: cannot build sample entry: sps=%d pps=%d bytes", len(sps), len(pps))
	}

	buf := make([]byte, 0, 11+len(sps)+len(pps))
	buf = append(buf, 1)      // configurationVersion
	buf = append(buf, sps[1]) // AVCProfileIndication
	buf = append(buf, sps[2]) // profile_compatibility
	buf = append(buf, sps[3]) // AVCLevelIndication
	buf = append(buf, 0xFF)   // lengthSizeMinusOne = 3 | reserved
	buf = append(buf, 0xE1)   // numOfSequenceParameterSets = 1 | reserved

	buf = append(buf, byte(len(sps)>>8), byte(len(sps)))
	buf = append(buf, sps...)

	buf = append(buf, 1) // numOfPictureParameterSets
	buf = append(buf, byte(len(pps)>>8), byte(len(pps)))
	buf = append(buf, pps...)

	return buf, nil
}

// removeEmulationPrevention strips 0x03 emulation prevention bytes from RBSP
// data. Sequences of 0x00 0x00 0x03 become 0x00 0x00.
func removeEmulationPrevention(data []byte) []byte {
	out := make([]byte, 0, len(data))
	zeros := 0
	for i := 0; i < len(data); i++ {
		if zeros == 2 && data[i] == 0x03 {
			zeros = 0
			continue
		}
		if data[i] == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, data[i])
	}
	return out
}
