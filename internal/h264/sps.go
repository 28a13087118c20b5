package h264

import "errors"

// SPSInfo holds the parameters the recorder extracts from an H.264 Sequence
// Parameter Set: the coded picture resolution after cropping.
type SPSInfo struct {
	Width  int
	Height int
}

var errSPSTooShort = errors.New("h264: SPS data too short")

type bitReader struct {
	data []byte
	pos  int
	bit  int
}

func (br *bitReader) readBit() (uint, error) {
	if br.pos >= len(br.data) {
		return 0, errSPSTooShort
	}
	val := uint((br.data[br.pos] >> (7 - br.bit)) & 1)
	br.bit++
	if br.bit == 8 {
		br.bit = 0
		br.pos++
	}
	return val, nil
}

func (br *bitReader) readBits(n int) (uint, error) {
	var val uint
	for i := 0; i < n; i++ {
		b, err := br.readBit()
		if err != nil {
			return 0, err
		}
		val = val<<1 | b
	}
	return val, nil
}

// readUE reads an unsigned Exp-Golomb coded value.
func (br *bitReader) readUE() (uint, error) {
	zeros := 0
	for {
		b, err := br.readBit()
		if err != nil {
			return 0, err
		}
		if b == 1 {
			break
		}
		zeros++
		if zeros > 31 {
			return 0, errSPSTooShort
		}
	}
	if zeros == 0 {
		return 0, nil
	}
	suffix, err := br.readBits(zeros)
	if err != nil {
		return 0, err
	}
	return (1 << zeros) - 1 + suffix, nil
}

// readSE reads a signed Exp-Golomb coded value.
func (br *bitReader) readSE() (int, error) {
	val, err := br.readUE()
	if err != nil {
		return 0, err
	}
	if val%2 == 0 {
		return -int(val / 2), nil
	}
	return int((val + 1) / 2), nil
}

func (br *bitReader) skipScalingList(size int) error {
	lastScale, nextScale := 8, 8
	for j := 0; j < size; j++ {
		if nextScale != 0 {
			delta, err := br.readSE()
			if err != nil {
				return err
			}
			nextScale = (lastScale + delta + 256) % 256
		}
		if nextScale != 0 {
			lastScale = nextScale
		}
	}
	return nil
}

// ParseSPS parses an H.264 SPS NAL unit to extract the picture resolution.
// The input should be the raw NAL data including the NAL header byte but
// without the start code.
func ParseSPS(nalu []byte) (SPSInfo, error) {
	if len(nalu) < 4 {
		return SPSInfo{}, errSPSTooShort
	}

	br := &bitReader{data: removeEmulationPrevention(nalu[1:])}

	profileIDC, err := br.readBits(8)
	if err != nil {
		return SPSInfo{}, err
	}
	if _, err := br.readBits(8); err != nil { // constraint flags
		return SPSInfo{}, err
	}
	if _, err := br.readBits(8); err != nil { // level_idc
		return SPSInfo{}, err
	}
	if _, err := br.readUE(); err != nil { // seq_parameter_set_id
		return SPSInfo{}, err
	}

	chromaFormatIDC := uint(1)
	separateColourPlane := false

	switch profileIDC {
	case 100, 110, 122, 244, 44, 83, 86, 118, 128, 138, 139, 134:
		chromaFormatIDC, err = br.readUE()
		if err != nil {
			return SPSInfo{}, err
		}
		if chromaFormatIDC == 3 {
			val, err := br.readBits(1)
			if err != nil {
				return SPSInfo{}, err
			}
			separateColourPlane = val == 1
		}
		if _, err := br.readUE(); err != nil { // bit_depth_luma_minus8
			return SPSInfo{}, err
		}
		if _, err := br.readUE(); err != nil { // bit_depth_chroma_minus8
			return SPSInfo{}, err
		}
		if _, err := br.readBits(1); err != nil { // qpprime_y_zero_transform_bypass
			return SPSInfo{}, err
		}
		scalingMatrixPresent, err := br.readBits(1)
		if err != nil {
			return SPSInfo{}, err
		}
		if scalingMatrixPresent == 1 {
			limit := 8
			if chromaFormatIDC == 3 {
				limit = 12
			}
			for i := 0; i < limit; i++ {
				flag, err := br.readBits(1)
				if err != nil {
					return SPSInfo{}, err
				}
				if flag == 1 {
					size := 16
					if i >= 6 {
						size = 64
					}
					if err := br.skipScalingList(size); err != nil {
						return SPSInfo{}, err
					}
				}
			}
		}
	}

	if _, err := br.readUE(); err != nil { // log2_max_frame_num_minus4
		return SPSInfo{}, err
	}

	picOrderCntType, err := br.readUE()
	if err != nil {
		return SPSInfo{}, err
	}
	switch picOrderCntType {
	case 0:
		if _, err := br.readUE(); err != nil { // log2_max_pic_order_cnt_lsb_minus4
			return SPSInfo{}, err
		}
	case 1:
		if _, err := br.readBits(1); err != nil { // delta_pic_order_always_zero
			return SPSInfo{}, err
		}
		if _, err := br.readSE(); err != nil { // offset_for_non_ref_pic
			return SPSInfo{}, err
		}
		if _, err := br.readSE(); err != nil { // offset_for_top_to_bottom_field
			return SPSInfo{}, err
		}
		numRefFrames, err := br.readUE()
		if err != nil {
			return SPSInfo{}, err
		}
		for i := uint(0); i < numRefFrames; i++ {
			if _, err := br.readSE(); err != nil {
				return SPSInfo{}, err
			}
		}
	}

	if _, err := br.readUE(); err != nil { // max_num_ref_frames
		return SPSInfo{}, err
	}
	if _, err := br.readBits(1); err != nil { // gaps_in_frame_num_value_allowed
		return SPSInfo{}, err
	}

	picWidthMbs, err := br.readUE()
	if err != nil {
		return SPSInfo{}, err
	}
	picHeightMapUnits, err := br.readUE()
	if err != nil {
		return SPSInfo{}, err
	}

	frameMbsOnly, err := br.readBits(1)
	if err != nil {
		return SPSInfo{}, err
	}
	if frameMbsOnly == 0 {
		if _, err := br.readBits(1); err != nil { // mb_adaptive_frame_field
			return SPSInfo{}, err
		}
	}
	if _, err := br.readBits(1); err != nil { // direct_8x8_inference
		return SPSInfo{}, err
	}

	cropLeft, cropRight, cropTop, cropBottom := uint(0), uint(0), uint(0), uint(0)
	croppingFlag, err := br.readBits(1)
	if err != nil {
		return SPSInfo{}, err
	}
	if croppingFlag == 1 {
		if cropLeft, err = br.readUE(); err != nil {
			return SPSInfo{}, err
		}
		if cropRight, err = br.readUE(); err != nil {
			return SPSInfo{}, err
		}
		if cropTop, err = br.readUE(); err != nil {
			return SPSInfo{}, err
		}
		if cropBottom, err = br.readUE(); err != nil {
			return SPSInfo{}, err
		}
	}

	chromaArrayType := chromaFormatIDC
	if separateColourPlane {
		chromaArrayType = 0
	}
	var subWidthC, subHeightC uint
	switch chromaArrayType {
	case 0, 3:
		subWidthC, subHeightC = 1, 1
	case 2:
		subWidthC, subHeightC = 2, 1
	default:
		subWidthC, subHeightC = 2, 2
	}
	cropUnitX := subWidthC
	cropUnitY := subHeightC * (2 - frameMbsOnly)

	width := int((picWidthMbs+1)*16 - cropUnitX*(cropLeft+cropRight))
	height := int((2-frameMbsOnly)*(picHeightMapUnits+1)*16 - cropUnitY*(cropTop+cropBottom))
	if width <= 0 || height <= 0 {
		return SPSInfo{}, errors.New("h264: SPS yields non-positive resolution")
	}

	return SPSInfo{Width: width, Height: height}, nil
}
