package testsupport

// mp3FrameHeader is MPEG-1 Layer III, 128 kbit/s, 44.1 kHz, no padding.
var mp3FrameHeader = []byte{0xFF, 0xFB, 0x90, 0x64}

const (
	mp3FrameBytes = 417
	// MP3FrameSeconds is the playback length of one frame from SilentMP3.
	MP3FrameSeconds = 1152.0 / 44100.0
)

// SilentMP3 returns a headerless MP3 stream of frames zero-filled frames.
func SilentMP3(frames int) []byte {
	out := make([]byte, 0, frames*mp3FrameBytes)
	for i := 0; i < frames; i++ {
		frame := make([]byte, mp3FrameBytes)
		copy(frame, mp3FrameHeader)
		out = append(out, frame...)
	}
	return out
}
