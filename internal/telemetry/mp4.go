package telemetry

import (
	"bytes"
	"fmt"

	"github.com/abema/go-mp4"

	"github.com/ChadR23/sentry-six/internal/models"
)

// MP4Decoder is the default FrameDecoder. It walks the MP4 sample tables
// of the first video track, derives each sample's duration from stts, and
// scans each sample's NAL units for Tesla SEI telemetry.
type MP4Decoder struct{}

// NewMP4Decoder creates the default MP4/SEI frame decoder.
func NewMP4Decoder() *MP4Decoder {
	return &MP4Decoder{}
}

// videoTrack holds the sample-table view needed to iterate samples.
type videoTrack struct {
	timescale    uint32
	durations    []uint32 // per-sample delta in timescale units
	sizes        []uint32
	chunkOffsets []uint64
	stscEntries  []mp4.StscEntry
	nalLengthSize int
}

// DecodeFrames implements FrameDecoder.
func (d *MP4Decoder) DecodeFrames(data []byte) ([]Frame, error) {
	r := bytes.NewReader(data)

	track, err := readVideoTrack(r)
	if err != nil {
		return nil, err
	}
	if track.timescale == 0 {
		return nil, fmt.Errorf("video track has zero timescale")
	}

	offsets := sampleOffsets(track)
	frames := make([]Frame, 0, len(track.sizes))
	for i, size := range track.sizes {
		var dur uint32
		if i < len(track.durations) {
			dur = track.durations[i]
		}
		f := Frame{DurationMs: float64(dur) * 1000 / float64(track.timescale)}

		if i < len(offsets) {
			start := offsets[i]
			end := start + uint64(size)
			if end <= uint64(len(data)) {
				f.SEI = scanSampleSEI(data[start:end], track.nalLengthSize)
			}
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// readVideoTrack locates the first 'vide' track and loads its sample
// tables.
func readVideoTrack(r *bytes.Reader) (*videoTrack, error) {
	traks, err := mp4.ExtractBoxes(r, nil, []mp4.BoxPath{
		{mp4.BoxTypeMoov(), mp4.BoxTypeTrak()},
	})
	if err != nil {
		return nil, fmt.Errorf("reading moov: %w", err)
	}

	for _, trak := range traks {
		hdlrs, err := mp4.ExtractBoxesWithPayload(r, trak, []mp4.BoxPath{
			{mp4.BoxTypeMdia(), mp4.BoxTypeHdlr()},
		})
		if err != nil || len(hdlrs) == 0 {
			continue
		}
		hdlr, ok := hdlrs[0].Payload.(*mp4.Hdlr)
		if !ok || string(hdlr.HandlerType[:]) != "vide" {
			continue
		}
		return loadSampleTables(r, trak)
	}
	return nil, fmt.Errorf("no video track found")
}

// loadSampleTables reads mdhd/stts/stsz/stsc/stco(co64)/avcC for one trak.
func loadSampleTables(r *bytes.Reader, trak *mp4.BoxInfo) (*videoTrack, error) {
	track := &videoTrack{nalLengthSize: 4}

	mdia := mp4.BoxPath{mp4.BoxTypeMdia()}
	stbl := mp4.BoxPath{mp4.BoxTypeMdia(), mp4.BoxTypeMinf(), mp4.BoxTypeStbl()}

	boxes, err := mp4.ExtractBoxesWithPayload(r, trak, []mp4.BoxPath{
		append(mdia, mp4.BoxTypeMdhd()),
		append(stbl, mp4.BoxTypeStts()),
		append(stbl, mp4.BoxTypeStsz()),
		append(stbl, mp4.BoxTypeStsc()),
		append(stbl, mp4.BoxTypeStco()),
		append(stbl, mp4.BoxTypeCo64()),
	})
	if err != nil {
		return nil, fmt.Errorf("reading sample tables: %w", err)
	}

	for _, b := range boxes {
		switch p := b.Payload.(type) {
		case *mp4.Mdhd:
			track.timescale = p.Timescale
		case *mp4.Stts:
			for _, e := range p.Entries {
				for i := uint32(0); i < e.SampleCount; i++ {
					track.durations = append(track.durations, e.SampleDelta)
				}
			}
		case *mp4.Stsz:
			if p.SampleSize != 0 {
				track.sizes = make([]uint32, p.SampleCount)
				for i := range track.sizes {
					track.sizes[i] = p.SampleSize
				}
			} else {
				track.sizes = p.EntrySize
			}
		case *mp4.Stsc:
			track.stscEntries = p.Entries
		case *mp4.Stco:
			for _, off := range p.ChunkOffset {
				track.chunkOffsets = append(track.chunkOffsets, uint64(off))
			}
		case *mp4.Co64:
			track.chunkOffsets = append(track.chunkOffsets, p.ChunkOffset...)
		}
	}

	// NAL length prefix size from avcC; default 4 when absent.
	avccs, err := mp4.ExtractBoxesWithPayload(r, trak, []mp4.BoxPath{
		{mp4.BoxTypeMdia(), mp4.BoxTypeMinf(), mp4.BoxTypeStbl(), mp4.BoxTypeStsd(), mp4.BoxTypeAvc1(), mp4.BoxTypeAvcC()},
	})
	if err == nil && len(avccs) > 0 {
		if avcc, ok := avccs[0].Payload.(*mp4.AVCDecoderConfiguration); ok {
			track.nalLengthSize = int(avcc.LengthSizeMinusOne) + 1
		}
	}

	if len(track.sizes) == 0 || len(track.chunkOffsets) == 0 {
		return nil, fmt.Errorf("empty sample tables")
	}
	return track, nil
}

// sampleOffsets expands the chunk tables into a per-sample byte offset
// list.
func sampleOffsets(t *videoTrack) []uint64 {
	offsets := make([]uint64, 0, len(t.sizes))
	sample := 0

	for ci := 0; ci < len(t.chunkOffsets) && sample < len(t.sizes); ci++ {
		perChunk := samplesPerChunk(t.stscEntries, uint32(ci+1))
		off := t.chunkOffsets[ci]
		for s := uint32(0); s < perChunk && sample < len(t.sizes); s++ {
			offsets = append(offsets, off)
			off += uint64(t.sizes[sample])
			sample++
		}
	}
	return offsets
}

// samplesPerChunk resolves the stsc run covering the 1-based chunk index.
func samplesPerChunk(entries []mp4.StscEntry, chunk uint32) uint32 {
	count := uint32(1)
	for _, e := range entries {
		if e.FirstChunk > chunk {
			break
		}
		count = e.SamplesPerChunk
	}
	return count
}

// scanSampleSEI walks the length-prefixed NAL units of one sample and
// returns the first Tesla telemetry record found.
func scanSampleSEI(sample []byte, nalLengthSize int) *models.TelemetrySample {
	off := 0
	for off+nalLengthSize <= len(sample) {
		var nalLen int
		for i := 0; i < nalLengthSize; i++ {
			nalLen = nalLen<<8 | int(sample[off+i])
		}
		off += nalLengthSize
		if nalLen <= 0 || off+nalLen > len(sample) {
			return nil
		}
		nal := sample[off : off+nalLen]
		off += nalLen

		// nal_unit_type 6 is SEI.
		if len(nal) > 1 && nal[0]&0x1F == 6 {
			if rec := parseSEINal(stripEmulationPrevention(nal[1:])); rec != nil {
				return rec
			}
		}
	}
	return nil
}

// stripEmulationPrevention removes 0x03 bytes inserted after two zero
// bytes (the H.264 emulation prevention scheme).
func stripEmulationPrevention(in []byte) []byte {
	out := make([]byte, 0, len(in))
	zeros := 0
	for i := 0; i < len(in); i++ {
		if zeros >= 2 && in[i] == 0x03 {
			zeros = 0
			continue
		}
		if in[i] == 0 {
			zeros++
		} else {
			zeros = 0
		}
		out = append(out, in[i])
	}
	return out
}

// parseSEINal walks the SEI payload list of one NAL looking for the
// user_data_unregistered payload carrying Tesla telemetry.
func parseSEINal(rbsp []byte) *models.TelemetrySample {
	off := 0
	for off < len(rbsp) {
		payloadType := 0
		for off < len(rbsp) && rbsp[off] == 0xFF {
			payloadType += 255
			off++
		}
		if off >= len(rbsp) {
			return nil
		}
		payloadType += int(rbsp[off])
		off++

		payloadSize := 0
		for off < len(rbsp) && rbsp[off] == 0xFF {
			payloadSize += 255
			off++
		}
		if off >= len(rbsp) {
			return nil
		}
		payloadSize += int(rbsp[off])
		off++

		if off+payloadSize > len(rbsp) {
			return nil
		}

		// payload type 5: user_data_unregistered.
		if payloadType == 5 {
			if rec := ParseTeslaSEI(rbsp[off : off+payloadSize]); rec != nil {
				return rec
			}
		}
		off += payloadSize
	}
	return nil
}
