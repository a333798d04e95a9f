//go:build linux

package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	_ "github.com/pion/mediadevices/pkg/driver/screen"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/qrave1/TeleVisit/internal/application/constant"
	"github.com/qrave1/TeleVisit/internal/domain"
)

const rtpMTU = 1200

// DeviceCapturer захватывает V4L2 камеру, микрофон и экран через pion/mediadevices
type DeviceCapturer struct {
	selector *mediadevices.CodecSelector

	// mediadevices не любит параллельный захват одного устройства
	mu sync.Mutex
}

func NewCapturer() (*DeviceCapturer, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("vp8 params: %w", err)
	}
	vpxParams.BitRate = 1_500_000

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("opus params: %w", err)
	}

	return &DeviceCapturer{
		selector: mediadevices.NewCodecSelector(
			mediadevices.WithVideoEncoders(&vpxParams),
			mediadevices.WithAudioEncoders(&opusParams),
		),
	}, nil
}

func (c *DeviceCapturer) UserMedia(ctx context.Context, facing domain.Facing) (*Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cameraID, hasCamera := pickCamera(mediadevices.EnumerateDevices(), facing)

	type attempt struct {
		video bool
		audio bool
		label string
	}

	var lastErr error

	for _, a := range []attempt{
		{true, true, "video+audio"},
		{true, false, "video-only"},
		{false, true, "audio-only"},
	} {
		if a.video && !hasCamera {
			continue
		}

		constraints := mediadevices.MediaStreamConstraints{Codec: c.selector}
		if a.video {
			constraints.Video = func(mc *mediadevices.MediaTrackConstraints) {
				mc.DeviceID = prop.String(cameraID)
				mc.FrameFormat = prop.FrameFormatOneOf{
					frame.FormatYUYV,
					frame.FormatI420,
					frame.FormatI444,
					frame.FormatRGBA,
				}
				mc.Width = prop.IntRanged{Max: 640}
				mc.Height = prop.IntRanged{Max: 480}
			}
		}
		if a.audio {
			constraints.Audio = func(_ *mediadevices.MediaTrackConstraints) {}
		}

		ms, err := mediadevices.GetUserMedia(constraints)
		if err != nil {
			slog.Warn("get user media failed", slog.String("attempt", a.label), slog.Any(constant.Error, err))
			lastErr = err
			continue
		}

		stream, err := wrapStream(ms.GetTracks())
		if err != nil {
			slog.Warn("wrap captured tracks", slog.String("attempt", a.label), slog.Any(constant.Error, err))
			lastErr = err
			continue
		}

		slog.Info("local media captured", slog.String("attempt", a.label), slog.String(constant.StreamID, stream.ID))

		return stream, nil
	}

	return nil, classify(lastErr)
}

func (c *DeviceCapturer) DisplayMedia(ctx context.Context) (Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms, err := mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
		Video: func(_ *mediadevices.MediaTrackConstraints) {},
		Codec: c.selector,
	})
	if err != nil {
		return nil, classify(err)
	}

	tracks := ms.GetVideoTracks()
	if len(tracks) == 0 {
		return nil, ErrNoDevice
	}

	return wrapTrack(tracks[0], "screen-"+uuid.NewString())
}

func wrapStream(tracks []mediadevices.Track) (*Stream, error) {
	stream := &Stream{ID: uuid.NewString()}

	for _, mt := range tracks {
		t, err := wrapTrack(mt, stream.ID)
		if err != nil {
			for _, done := range tracks {
				_ = done.Close()
			}
			stream.Stop()
			return nil, err
		}

		if t.Kind() == KindVideo {
			stream.Video = t
		} else {
			stream.Audio = t
		}
	}

	if stream.Audio == nil && stream.Video == nil {
		return nil, ErrNoDevice
	}

	return stream, nil
}

func wrapTrack(mt mediadevices.Track, streamID string) (Track, error) {
	kind := KindOf(mt.Kind())

	codec := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	if kind == KindVideo {
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	}

	reader, err := mt.NewRTPReader(codec.MimeType, rand.Uint32(), rtpMTU)
	if err != nil {
		_ = mt.Close()
		return nil, fmt.Errorf("%s rtp reader: %w", kind, err)
	}

	return NewRTPTrack(kind, codec, string(kind)+"-"+uuid.NewString(), streamID, &deviceSource{reader: reader, track: mt})
}

// deviceSource закрывает и reader, и само устройство
type deviceSource struct {
	reader mediadevices.RTPReadCloser
	track  mediadevices.Track
}

func (s *deviceSource) Read() (pkts []*rtp.Packet, release func(), err error) {
	return s.reader.Read()
}

func (s *deviceSource) Close() error {
	return errors.Join(s.reader.Close(), s.track.Close())
}

// pickCamera: первая камера - фронтальная, последняя - задняя
func pickCamera(devices []mediadevices.MediaDeviceInfo, facing domain.Facing) (string, bool) {
	var cameras []string

	for _, d := range devices {
		if d.Kind == mediadevices.VideoInput {
			cameras = append(cameras, d.DeviceID)
		}
	}

	if len(cameras) == 0 {
		return "", false
	}

	if facing == domain.FacingEnvironment {
		return cameras[len(cameras)-1], true
	}

	return cameras[0], true
}

func classify(err error) error {
	switch {
	case err == nil:
		return ErrNoDevice
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	default:
		return fmt.Errorf("%w: %v", ErrNoDevice, err)
	}
}
