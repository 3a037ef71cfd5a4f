package audio

import (
	"fmt"

	"github.com/veandco/go-sdl2/sdl"
)

type sdlDevice struct {
	id sdl.AudioDeviceID
}

func openSDL(spec Spec) (*sdlDevice, error) {
	if err := sdl.InitSubSystem(sdl.INIT_AUDIO); err != nil {
		return nil, fmt.Errorf("sdl: %w", err)
	}
	want := sdl.AudioSpec{
		Freq:     int32(spec.Frequency),
		Format:   sdl.AUDIO_S16SYS,
		Channels: uint8(spec.Channels),
		Samples:  uint16(spec.Samples),
	}
	// no allowed changes, SDL converts to whatever the hardware wants
	id, err := sdl.OpenAudioDevice("", false, &want, nil, 0)
	if err != nil {
		sdl.QuitSubSystem(sdl.INIT_AUDIO)
		return nil, fmt.Errorf("open device: %w", err)
	}
	sdl.PauseAudioDevice(id, false)
	return &sdlDevice{id: id}, nil
}

func (d *sdlDevice) Queue(data []byte) error { return sdl.QueueAudio(d.id, data) }
func (d *sdlDevice) Queued() uint32          { return sdl.GetQueuedAudioSize(d.id) }

func (d *sdlDevice) Close() {
	sdl.CloseAudioDevice(d.id)
	sdl.QuitSubSystem(sdl.INIT_AUDIO)
}
