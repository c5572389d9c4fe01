package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/gopacket/pcap"
)

// ErrDeviceNotFound is returned when the requested interface does not exist.
var ErrDeviceNotFound = errors.New("capture device not found")

// LiveConfig controls how the interface is opened.
type LiveConfig struct {
	Interface   string
	Snaplen     int32         // defaults to 65535
	Promisc     bool
	ReadTimeout time.Duration // defaults to 1s
	Filter      string        // optional BPF expression
}

// OpenLive opens a pcap handle on the configured interface.
func OpenLive(cfg LiveConfig, logger *slog.Logger) (*Source, error) {
	if cfg.Snaplen <= 0 {
		cfg.Snaplen = 65535
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = time.Second
	}

	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("list capture devices: %w", err)
	}
	found := false
	for _, d := range devs {
		if d.Name == cfg.Interface {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, cfg.Interface)
	}

	handle, err := pcap.OpenLive(cfg.Interface, cfg.Snaplen, cfg.Promisc, cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("open device %s: %w", cfg.Interface, err)
	}

	if cfg.Filter != "" {
		if err := handle.SetBPFFilter(cfg.Filter); err != nil {
			handle.Close()
			return nil, fmt.Errorf("set BPF filter %q: %w", cfg.Filter, err)
		}
	}

	src := NewSource(handle, handle.LinkType(), logger)
	src.close = handle.Close
	src.logger.Info("capture opened", "interface", cfg.Interface, "link_type", handle.LinkType().String(), "filter", cfg.Filter)
	return src, nil
}

func isReadTimeout(err error) bool {
	return errors.Is(err, pcap.NextErrorTimeoutExpired)
}
