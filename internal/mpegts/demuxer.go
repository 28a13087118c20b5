// Package mpegts demuxes an MPEG transport stream into H.264 access units
// with presentation timestamps. It handles PAT/PMT discovery, per-packet
// continuity checking, and PES reassembly with 33-bit PTS extraction —
// the subset of MPEG-TS a camera recorder needs. PSI sections are expected
// to fit within a single transport packet, which holds for the PAT and PMT
// emitted by IP cameras and encoders.
package mpegts

import (
	"errors"
	"fmt"
	"io"
)

const (
	packetSize = 188
	syncByte   = 0x47

	pidPAT = 0x0000

	tableIDPAT = 0x00
	tableIDPMT = 0x02

	streamTypeH264 = 0x1B
)

// AccessUnit is one reassembled video PES packet: the Annex B elementary
// stream bytes of a single access unit plus its presentation timestamp.
// PTS is nil when the PES header carried no timestamp.
type AccessUnit struct {
	PTS  *int64 // 90 kHz ticks
	Data []byte
}

// Demuxer reads 188-byte transport packets from a reader and yields the
// video access units of the first H.264 program it discovers.
type Demuxer struct {
	r       io.Reader
	readBuf []byte

	pmtPIDs  map[uint16]bool
	videoPID uint16
	haveVPID bool

	pesBuf []byte
	lastCC uint8
	haveCC bool

	eof   bool
	final *AccessUnit
}

// NewDemuxer creates a Demuxer reading transport packets from r.
func NewDemuxer(r io.Reader) *Demuxer {
	return &Demuxer{
		r:       r,
		readBuf: make([]byte, packetSize),
		pmtPIDs: make(map[uint16]bool),
	}
}

// Next returns the next video access unit. It returns io.EOF once the
// underlying reader is exhausted and the final partial PES has been flushed.
func (d *Demuxer) Next() (*AccessUnit, error) {
	for {
		if d.eof {
			if au := d.final; au != nil {
				d.final = nil
				return au, nil
			}
			return nil, io.EOF
		}

		if _, err := io.ReadFull(d.r, d.readBuf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				d.eof = true
				// Flush the in-flight PES as the last access unit.
				if au, ferr := d.flushPES(); ferr == nil && au != nil {
					d.final = au
				}
				continue
			}
			return nil, fmt.Errorf("mpegts: read packet: %w", err)
		}

		au, err := d.handlePacket(d.readBuf)
		if err != nil {
			return nil, err
		}
		if au != nil {
			return au, nil
		}
	}
}

func (d *Demuxer) handlePacket(buf []byte) (*AccessUnit, error) {
	if buf[0] != syncByte {
		return nil, fmt.Errorf("mpegts: invalid sync byte 0x%02X", buf[0])
	}

	transportError := buf[1]&0x80 != 0
	pusi := buf[1]&0x40 != 0
	pid := uint16(buf[1]&0x1F)<<8 | uint16(buf[2])
	hasAdaptation := buf[3]&0x20 != 0
	hasPayload := buf[3]&0x10 != 0
	cc := buf[3] & 0x0F

	if transportError {
		// Corrupt packet; drop any partial PES it may belong to.
		if d.haveVPID && pid == d.videoPID {
			d.pesBuf = nil
		}
		return nil, nil
	}

	offset := 4
	if hasAdaptation {
		if offset >= packetSize {
			return nil, nil
		}
		offset += 1 + int(buf[offset])
		if offset > packetSize {
			offset = packetSize
		}
	}
	if !hasPayload || offset >= packetSize {
		return nil, nil
	}
	payload := buf[offset:]

	switch {
	case pid == pidPAT:
		if pusi {
			if err := d.parsePAT(payload); err != nil {
				return nil, err
			}
		}
	case d.pmtPIDs[pid]:
		if pusi {
			if err := d.parsePMT(payload); err != nil {
				return nil, err
			}
		}
	case d.haveVPID && pid == d.videoPID:
		return d.handleVideoPayload(payload, pusi, cc)
	}
	return nil, nil
}

func (d *Demuxer) handleVideoPayload(payload []byte, pusi bool, cc uint8) (*AccessUnit, error) {
	if d.haveCC {
		expected := (d.lastCC + 1) & 0x0F
		if cc == d.lastCC {
			return nil, nil // duplicate packet
		}
		if cc != expected {
			// Unsignaled discontinuity; the partial PES is unusable.
			d.pesBuf = nil
		}
	}
	d.lastCC = cc
	d.haveCC = true

	if !pusi {
		if d.pesBuf != nil {
			d.pesBuf = append(d.pesBuf, payload...)
		}
		return nil, nil
	}

	au, err := d.flushPES()
	d.pesBuf = append(d.pesBuf[:0], payload...)
	if err != nil {
		return nil, err
	}
	return au, nil
}

// flushPES parses the buffered PES packet into an access unit. A nil, nil
// return means there was nothing useful buffered.
func (d *Demuxer) flushPES() (*AccessUnit, error) {
	buf := d.pesBuf
	d.pesBuf = nil
	if len(buf) == 0 {
		return nil, nil
	}
	au, err := parsePES(buf)
	if err != nil {
		return nil, fmt.Errorf("mpegts: %w", err)
	}
	if au == nil || len(au.Data) == 0 {
		return nil, nil
	}
	return au, nil
}

func (d *Demuxer) parsePAT(payload []byte) error {
	section, err := psiSection(payload, tableIDPAT)
	if err != nil || section == nil {
		return err
	}
	// Program entries run from byte 8 to 4 bytes before the section end.
	for i := 8; i+4 <= len(section)-4; i += 4 {
		programNumber := uint16(section[i])<<8 | uint16(section[i+1])
		if programNumber == 0 {
			continue // network PID
		}
		pmtPID := uint16(section[i+2]&0x1F)<<8 | uint16(section[i+3])
		d.pmtPIDs[pmtPID] = true
	}
	return nil
}

func (d *Demuxer) parsePMT(payload []byte) error {
	section, err := psiSection(payload, tableIDPMT)
	if err != nil || section == nil {
		return err
	}
	if len(section) < 16 {
		return fmt.Errorf("mpegts: PMT too short")
	}
	programInfoLength := int(section[10]&0x0F)<<8 | int(section[11])
	offset := 12 + programInfoLength
	for offset+5 <= len(section)-4 {
		streamType := section[offset]
		elementaryPID := uint16(section[offset+1]&0x1F)<<8 | uint16(section[offset+2])
		esInfoLength := int(section[offset+3]&0x0F)<<8 | int(section[offset+4])
		if streamType == streamTypeH264 && !d.haveVPID {
			d.videoPID = elementaryPID
			d.haveVPID = true
		}
		offset += 5 + esInfoLength
	}
	return nil
}

// psiSection extracts and CRC-checks the first PSI section from a payload
// that begins with a pointer field. Returns nil, nil if the section carries
// a different table id.
func psiSection(payload []byte, tableID byte) ([]byte, error) {
	if len(payload) < 1 {
		return nil, fmt.Errorf("mpegts: PSI payload too short")
	}
	offset := 1 + int(payload[0])
	if offset+3 > len(payload) {
		return nil, fmt.Errorf("mpegts: PSI pointer field out of range")
	}
	if payload[offset] != tableID {
		return nil, nil
	}
	sectionLength := int(payload[offset+1]&0x0F)<<8 | int(payload[offset+2])
	end := offset + 3 + sectionLength
	if end > len(payload) {
		return nil, fmt.Errorf("mpegts: PSI section exceeds packet")
	}
	section := payload[offset:end]
	if err := verifyCRC32(section); err != nil {
		return nil, err
	}
	return section, nil
}
