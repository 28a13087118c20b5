package mpegts

import "fmt"

// MPEG-2 CRC32 (ISO 13818-1 Annex A): polynomial 0x04C11DB7, initial value
// 0xFFFFFFFF, no bit reflection, no final XOR. PSI sections carry this CRC
// in their last four bytes.

var crcTable = makeCRCTable()

func makeCRCTable() [256]uint32 {
	var table [256]uint32
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for j := 0; j < 8; j++ {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04C11DB7
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}

// ComputeCRC32 computes the MPEG-2 CRC32 of data.
func ComputeCRC32(data []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc = crc<<8 ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}

// verifyCRC32 checks the trailing CRC of a complete PSI section.
func verifyCRC32(section []byte) error {
	if len(section) < 4 {
		return fmt.Errorf("mpegts: PSI section too short for CRC")
	}
	want := uint32(section[len(section)-4])<<24 |
		uint32(section[len(section)-3])<<16 |
		uint32(section[len(section)-2])<<8 |
		uint32(section[len(section)-1])
	if got := ComputeCRC32(section[:len(section)-4]); got != want {
		return fmt.Errorf("mpegts: PSI CRC mismatch: computed %08X, section says %08X", got, want)
	}
	return nil
}
