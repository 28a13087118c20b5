package source

import (
	"fmt"
	"io"

	"github.com/openvigil/vigil/internal/h264"
	"github.com/openvigil/vigil/internal/media"
	"github.com/openvigil/vigil/internal/mpegts"
)

// extraDataScanLimit bounds how many access units ExtraData inspects while
// waiting for the stream's parameter sets before giving up on the connection.
const extraDataScanLimit = 256

// demuxStream adapts a raw MPEG-TS byte stream (SRT connection or local
// file) into the Stream interface: it demuxes transport packets into H.264
// access units and tags each with its key-frame flag.
type demuxStream struct {
	rc     io.ReadCloser
	dmx    *mpegts.Demuxer
	queued []*media.Packet
	sps    []byte
	pps    []byte
	extra  *media.ExtraData
}

func newDemuxStream(rc io.ReadCloser) *demuxStream {
	return &demuxStream{rc: rc, dmx: mpegts.NewDemuxer(rc)}
}

// ExtraData reads ahead until the stream's SPS and PPS have been observed,
// then reports the connection's codec parameters. Packets consumed while
// scanning are queued for Next so no sample is lost.
func (s *demuxStream) ExtraData() (*media.ExtraData, error) {
	if s.extra != nil {
		return s.extra, nil
	}
	for i := 0; i < extraDataScanLimit; i++ {
		if s.sps != nil && s.pps != nil {
			break
		}
		pkt, err := s.readPacket()
		if err != nil {
			return nil, fmt.Errorf("awaiting parameter sets: %w", err)
		}
		s.queued = append(s.queued, pkt)
	}
	if s.sps == nil || s.pps == nil {
		return nil, fmt.Errorf("no parameter sets in first %d access units", extraDataScanLimit)
	}

	info, err := h264.ParseSPS(s.sps)
	if err != nil {
		return nil, fmt.Errorf("parse SPS: %w", err)
	}
	entry, err := h264.BuildSampleEntry(s.sps, s.pps)
	if err != nil {
		return nil, err
	}
	s.extra = &media.ExtraData{
		Width:       info.Width,
		Height:      info.Height,
		SampleEntry: entry,
		// TS sources carry Annex B payloads, which must be rewritten to
		// the length-prefixed storage layout.
		NeedTransform: true,
	}
	return s.extra, nil
}

// Next returns the next packet, draining any packets buffered by ExtraData
// first. It returns io.EOF on clean end of stream.
func (s *demuxStream) Next() (*media.Packet, error) {
	if len(s.queued) > 0 {
		pkt := s.queued[0]
		s.queued = s.queued[1:]
		return pkt, nil
	}
	return s.readPacket()
}

func (s *demuxStream) readPacket() (*media.Packet, error) {
	for {
		au, err := s.dmx.Next()
		if err != nil {
			return nil, err
		}

		units := h264.ParseAnnexB(au.Data)
		if len(units) == 0 {
			continue // no NAL units; not a usable access unit
		}

		isKey := false
		for _, u := range units {
			switch {
			case u.Type == h264.NALTypeSPS:
				s.sps = append(s.sps[:0], u.Data...)
				isKey = true
			case u.Type == h264.NALTypePPS:
				s.pps = append(s.pps[:0], u.Data...)
			case h264.IsKeyframe(u.Type):
				isKey = true
			}
		}

		return &media.Packet{
			PTS:   au.PTS,
			IsKey: isKey,
			Data:  au.Data,
		}, nil
	}
}

func (s *demuxStream) Close() error {
	return s.rc.Close()
}
