package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"netlens/internal/models"

	"github.com/google/gopacket"
)

// Source reads raw frames from a packet data source and pushes one event per
// frame to the aggregator's inbox.
type Source struct {
	data    gopacket.PacketDataSource
	decoder gopacket.Decoder
	logger  *slog.Logger
	observe func(models.NetworkEvent)
	close   func()
}

// NewSource wraps any gopacket data source (a live pcap handle, an offline
// file or a test fixture). decoder is the link-layer decoder for its frames.
func NewSource(data gopacket.PacketDataSource, decoder gopacket.Decoder, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{data: data, decoder: decoder, logger: logger}
}

// Observe registers a callback invoked with every translated event before it
// is sent downstream. Must be called before Run.
func (s *Source) Observe(fn func(models.NetworkEvent)) {
	s.observe = fn
}

// Run reads until the context ends or the source is exhausted. Sends block
// when out is full; no event is dropped at this stage.
func (s *Source) Run(ctx context.Context, out chan<- models.NetworkEvent) error {
	var frames uint64
	defer func() {
		s.logger.Info("capture stopped", "frames", frames)
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		data, ci, err := s.data.ReadPacketData()
		if err != nil {
			if isReadTimeout(err) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read packet: %w", err)
		}

		ev := Translate(data, ci, s.decoder)
		frames++
		if s.observe != nil {
			s.observe(ev)
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

// Close releases the underlying handle, if the source owns one.
func (s *Source) Close() {
	if s.close != nil {
		s.close()
		s.close = nil
	}
}
