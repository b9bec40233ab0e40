package miniaudio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/lunavoice/luna/core/audio"
)

// captureFrames is the device period length: 30ms at the default
// sample rate, short enough to keep the transcription feed responsive.
const captureFrames = 480

type captureDevice struct {
	device *malgo.Device

	mu      sync.Mutex
	onAudio func(audio []byte)
}

// newCaptureDevice opens the default capture device in the wire format
// the rest of the pipeline expects: mono linear16 at the default
// sample rate.
func newCaptureDevice(audioContext *malgo.AllocatedContext) (*captureDevice, error) {
	encoding := audio.GetDefaultEncodingInfo()

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(encoding.SampleRate)
	config.Capture.Format = malgo.FormatS16
	config.Capture.Channels = 1
	config.PerformanceProfile = malgo.LowLatency
	config.PeriodSizeInFrames = captureFrames
	config.Periods = 3
	config.Alsa.NoMMap = 1

	d := &captureDevice{}
	device, err := malgo.InitDevice(audioContext.Context, config, malgo.DeviceCallbacks{
		// Mono, so a frame is a single sample.
		Data: d.deliver(encoding.Format.ByteSize()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize capture device: %w", err)
	}
	d.device = device
	return d, nil
}

// deliver builds the device data callback. Miniaudio owns the input
// buffer, so each period is copied out before it crosses goroutines.
func (d *captureDevice) deliver(frameBytes int) malgo.DataProc {
	return func(_, input []byte, frameCount uint32) {
		n := int(frameCount) * frameBytes
		if n == 0 || len(input) < n {
			return
		}

		d.mu.Lock()
		handler := d.onAudio
		d.mu.Unlock()
		if handler == nil {
			return
		}

		frames := make([]byte, n)
		copy(frames, input[:n])
		handler(frames)
	}
}

func (d *captureDevice) start(onAudio func(audio []byte)) error {
	d.mu.Lock()
	d.onAudio = onAudio
	d.mu.Unlock()

	if d.device.IsStarted() {
		return nil
	}
	if err := d.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	return nil
}

func (d *captureDevice) stop() error {
	d.mu.Lock()
	d.onAudio = nil
	d.mu.Unlock()

	if !d.device.IsStarted() {
		return nil
	}
	if err := d.device.Stop(); err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}
	return nil
}

func (d *captureDevice) uninit() {
	_ = d.stop()
	d.device.Uninit()
}
