package recorder

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"ai-interview-capture-service/internal/service/media"
)

// SessionContentType is the media type of the session recording artifact.
const SessionContentType = "application/x-interview-recording"

const (
	containerMagic   = "IREC"
	containerVersion = 1
	headerSize       = 4 + 1 + 4 + 2 + 2
	recordHeaderSize = 1 + 8 + 8 + 4
)

// ErrBadContainer is returned for data that is not a session recording.
var ErrBadContainer = errors.New("recorder: not a session recording")

// The session recording interleaves both tracks in arrival order:
//
//	header:  "IREC" | version u8 | sample rate u32 | channels u16 | bits u16
//	record:  track u8 ('A' or 'V') | seq u64 | offset µs u64 | length u32 | data
//
// All integers are big-endian.

func appendHeader(dst []byte, f media.AudioFormat) []byte {
	dst = append(dst, containerMagic...)
	dst = append(dst, containerVersion)
	dst = binary.BigEndian.AppendUint32(dst, uint32(f.SampleRate))
	dst = binary.BigEndian.AppendUint16(dst, uint16(f.Channels))
	dst = binary.BigEndian.AppendUint16(dst, uint16(f.BitsPerSample))
	return dst
}

func appendRecord(dst []byte, c media.Chunk) []byte {
	track := byte('V')
	if c.Track == media.TrackAudio {
		track = 'A'
	}
	dst = append(dst, track)
	dst = binary.BigEndian.AppendUint64(dst, uint64(c.Seq))
	dst = binary.BigEndian.AppendUint64(dst, uint64(c.At/time.Microsecond))
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(c.Data)))
	return append(dst, c.Data...)
}

func recordSize(c media.Chunk) int {
	return recordHeaderSize + len(c.Data)
}

// ReadContainer decodes a session recording.
func ReadContainer(data []byte) (media.AudioFormat, []media.Chunk, error) {
	var f media.AudioFormat
	if len(data) < headerSize || string(data[:4]) != containerMagic {
		return f, nil, ErrBadContainer
	}
	if v := data[4]; v != containerVersion {
		return f, nil, fmt.Errorf("%w: version %d", ErrBadContainer, v)
	}
	f.SampleRate = int(binary.BigEndian.Uint32(data[5:9]))
	f.Channels = int(binary.BigEndian.Uint16(data[9:11]))
	f.BitsPerSample = int(binary.BigEndian.Uint16(data[11:13]))

	var chunks []media.Chunk
	rest := data[headerSize:]
	for len(rest) > 0 {
		if len(rest) < recordHeaderSize {
			return f, chunks, io.ErrUnexpectedEOF
		}
		c := media.Chunk{Track: media.TrackVideo}
		if rest[0] == 'A' {
			c.Track = media.TrackAudio
		}
		c.Seq = int64(binary.BigEndian.Uint64(rest[1:9]))
		c.At = time.Duration(binary.BigEndian.Uint64(rest[9:17])) * time.Microsecond
		n := int(binary.BigEndian.Uint32(rest[17:21]))
		rest = rest[recordHeaderSize:]
		if len(rest) < n {
			return f, chunks, io.ErrUnexpectedEOF
		}
		c.Data = rest[:n]
		rest = rest[n:]
		chunks = append(chunks, c)
	}
	return f, chunks, nil
}
