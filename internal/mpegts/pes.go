package mpegts

import "fmt"

// parsePES parses a reassembled video PES packet into an AccessUnit.
// Non-video stream ids are skipped with a nil, nil return.
func parsePES(payload []byte) (*AccessUnit, error) {
	if len(payload) < 9 {
		return nil, fmt.Errorf("PES packet too short (%d bytes)", len(payload))
	}
	if payload[0] != 0x00 || payload[1] != 0x00 || payload[2] != 0x01 {
		return nil, fmt.Errorf("invalid PES start code")
	}

	streamID := payload[3]
	if streamID < 0xE0 || streamID > 0xEF {
		return nil, nil // not a video elementary stream
	}

	// payload[6]: marker(2) + scrambling(2) + priority + alignment + copyright + original
	// payload[7]: PTS_DTS_indicator(2) + five other flags + extension
	// payload[8]: PES_header_data_length
	ptsDTSIndicator := payload[7] >> 6 & 0x03
	headerDataLength := int(payload[8])

	au := &AccessUnit{}
	if ptsDTSIndicator == 2 || ptsDTSIndicator == 3 {
		if len(payload) < 14 {
			return nil, fmt.Errorf("PES header truncated before PTS")
		}
		pts := parseTimestamp(payload[9:14])
		au.PTS = &pts
	}

	dataStart := 9 + headerDataLength
	if dataStart > len(payload) {
		dataStart = len(payload)
	}
	au.Data = payload[dataStart:]
	return au, nil
}

// parseTimestamp extracts a 33-bit 90 kHz timestamp from 5 PES header bytes.
func parseTimestamp(bs []byte) int64 {
	return int64(bs[0]>>1&0x07)<<30 |
		int64(bs[1])<<22 |
		int64(bs[2]>>1&0x7F)<<15 |
		int64(bs[3])<<7 |
		int64(bs[4]>>1&0x7F)
}
