//go:build !linux

package media

import (
	"context"

	"github.com/qrave1/TeleVisit/internal/domain"
)

// DeviceCapturer без драйверов устройств: звонок идёт только на приём
type DeviceCapturer struct{}

func NewCapturer() (*DeviceCapturer, error) {
	return &DeviceCapturer{}, nil
}

func (c *DeviceCapturer) UserMedia(context.Context, domain.Facing) (*Stream, error) {
	return nil, ErrNoDevice
}

func (c *DeviceCapturer) DisplayMedia(context.Context) (Track, error) {
	return nil, ErrNoDevice
}
