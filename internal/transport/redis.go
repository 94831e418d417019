package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spherical/glance/internal/domain"
	"github.com/spherical/glance/internal/observability"
)

// Channel suffixes used on the accessory gateway.
const (
	channelOutbound       = "accessory:tx"
	channelTaps           = "accessory:taps"
	channelCaptureRequest = "accessory:capture:req"
	channelCaptureReply   = "accessory:capture:resp"
)

// Frame is the JSON envelope published for outbound messages.
type Frame struct {
	Code    domain.MessageCode `json:"code"`
	Payload string             `json:"payload"`
}

// CaptureRequest asks the gateway to take a photo.
type CaptureRequest struct {
	ID       string                  `json:"id"`
	Quality  int                     `json:"quality"`
	Exposure domain.ExposureSettings `json:"exposure"`
}

// CaptureReply carries the photo bytes back from the gateway.
type CaptureReply struct {
	ID    string `json:"id"`
	Image []byte `json:"image,omitempty"`
	Error string `json:"error,omitempty"`
}

// Redis talks to an accessory gateway over Redis pub/sub. The gateway owns
// the BLE link and relays frames, taps and photos.
type Redis struct {
	client *redis.Client
	prefix string
	logger *observability.Logger
	now    func() time.Time
}

// NewRedis creates a transport on client. Channel names are prefixed with
// prefix, which defaults to "glance:".
func NewRedis(client *redis.Client, prefix string, logger *observability.Logger) *Redis {
	if prefix == "" {
		prefix = "glance:"
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &Redis{
		client: client,
		prefix: prefix,
		logger: logger.WithComponent("transport"),
		now:    time.Now,
	}
}

func (r *Redis) channel(name string) string {
	return r.prefix + name
}

// Send publishes msg to the gateway.
func (r *Redis) Send(ctx context.Context, msg domain.Message) error {
	data, err := json.Marshal(Frame{Code: msg.Code, Payload: msg.Payload})
	if err != nil {
		return domain.TransportError("failed to encode frame", err)
	}
	if err := r.client.Publish(ctx, r.channel(channelOutbound), data).Err(); err != nil {
		return domain.TransportError("publish failed", err)
	}
	return nil
}

// Taps subscribes to tap notifications. The channel closes when ctx ends.
func (r *Redis) Taps(ctx context.Context) (<-chan int, error) {
	sub := r.client.Subscribe(ctx, r.channel(channelTaps))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, domain.TransportError("tap subscription failed", err)
	}

	out := make(chan int, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				n, err := ParseTap(msg.Payload)
				if err != nil {
					r.logger.Warn().Str("payload", msg.Payload).Msg("ignoring malformed tap")
					continue
				}
				select {
				case out <- n:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// RequestCapture asks the gateway for a photo and waits for the matching reply.
func (r *Redis) RequestCapture(ctx context.Context, settings domain.CaptureSettings) (domain.CapturedImage, error) {
	started := r.now()
	req := CaptureRequest{ID: uuid.NewString(), Quality: settings.Quality, Exposure: settings.Exposure}

	sub := r.client.Subscribe(ctx, r.channel(channelCaptureReply))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return domain.CapturedImage{}, domain.TransportError("capture subscription failed", err)
	}

	data, err := json.Marshal(req)
	if err != nil {
		return domain.CapturedImage{}, domain.TransportError("failed to encode capture request", err)
	}
	if err := r.client.Publish(ctx, r.channel(channelCaptureRequest), data).Err(); err != nil {
		return domain.CapturedImage{}, domain.TransportError("capture request failed", err)
	}

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return domain.CapturedImage{}, domain.TransportError("capture cancelled", ctx.Err())
		case msg, ok := <-msgs:
			if !ok {
				return domain.CapturedImage{}, domain.TransportError("capture subscription closed", nil)
			}
			var reply CaptureReply
			if err := json.Unmarshal([]byte(msg.Payload), &reply); err != nil {
				r.logger.Warn().Err(err).Msg("ignoring malformed capture reply")
				continue
			}
			if reply.ID != req.ID {
				continue
			}
			return r.toImage(reply, settings, started)
		}
	}
}

func (r *Redis) toImage(reply CaptureReply, settings domain.CaptureSettings, started time.Time) (domain.CapturedImage, error) {
	if reply.Error != "" {
		return domain.CapturedImage{}, domain.TransportError("accessory reported capture failure", fmt.Errorf("%s", reply.Error))
	}
	if len(reply.Image) == 0 {
		return domain.CapturedImage{}, domain.TransportError("accessory returned an empty image", nil)
	}
	now := r.now()
	return domain.CapturedImage{
		Data: reply.Image,
		Metadata: domain.CaptureMetadata{
			Quality:    settings.Quality,
			Exposure:   settings.Exposure,
			ByteSize:   len(reply.Image),
			Elapsed:    now.Sub(started),
			CapturedAt: now,
		},
	}, nil
}

// ParseTap decodes a tap notification payload.
func ParseTap(payload string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(payload))
	if err != nil {
		return 0, fmt.Errorf("invalid tap payload %q: %w", payload, err)
	}
	return n, nil
}
