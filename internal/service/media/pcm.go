package media

import (
	"encoding/binary"
	"math"
)

// samples decodes little-endian 16-bit PCM.
func samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return out
}

// pcmBytes encodes samples as little-endian 16-bit PCM.
func pcmBytes(s []int16) []byte {
	out := make([]byte, 2*len(s))
	for i, v := range s {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

// saturate clamps a mixed sample to the int16 range.
func saturate(v int32) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	default:
		return int16(v)
	}
}

// mix adds other onto dst sample by sample, saturating.
func mix(dst, other []int16) {
	for i := range dst {
		if i >= len(other) {
			return
		}
		dst[i] = saturate(int32(dst[i]) + int32(other[i]))
	}
}

// downmix averages interleaved channels into mono.
func downmix(s []int16, channels int) []int16 {
	if channels <= 1 {
		return s
	}
	out := make([]int16, len(s)/channels)
	for i := range out {
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(s[i*channels+c])
		}
		out[i] = int16(sum / int32(channels))
	}
	return out
}

// resample converts mono samples between rates with linear interpolation.
func resample(s []int16, from, to int) []int16 {
	if from == to || len(s) == 0 || from <= 0 || to <= 0 {
		return s
	}
	n := int(int64(len(s)) * int64(to) / int64(from))
	out := make([]int16, n)
	step := float64(from) / float64(to)
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= len(s)-1 {
			out[i] = s[len(s)-1]
			continue
		}
		frac := pos - float64(j)
		out[i] = int16(math.Round(float64(s[j])*(1-frac) + float64(s[j+1])*frac))
	}
	return out
}
