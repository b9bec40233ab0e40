package audio

import "fmt"

const (
	DefaultSampleRate = 16000
	DefaultFormat     = "linear16"
)

// GetDefaultEncodingInfo returns the capture format Luna uses end to end:
// 16-bit little-endian signed PCM, mono, 16 kHz.
func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat)}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// MimeType renders the MIME-style content-type string sent across the
// provider conversation boundary.
func (e EncodingInfo) MimeType() string {
	switch e.Format {
	case EncodingLinear16:
		return fmt.Sprintf("audio/l16;rate=%d;channels=1", e.SampleRate)
	case EncodingMulaw:
		return fmt.Sprintf("audio/basic;rate=%d", e.SampleRate)
	case EncodingALaw:
		return fmt.Sprintf("audio/alaw;rate=%d", e.SampleRate)
	}
	return "application/octet-stream"
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	case EncodingLinear16:
		return 0
	}

	return 0
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
