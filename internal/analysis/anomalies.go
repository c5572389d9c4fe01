package analysis

import (
	"fmt"
	"sync"
	"time"

	"netlens/internal/models"
)

// AnomalyType represents the type of anomaly detected.
type AnomalyType string

const (
	AnomalyBroadcastStorm AnomalyType = "BROADCAST_STORM"
	AnomalyUnsecure       AnomalyType = "UNSECURE_PROTOCOL"
	AnomalyDoS            AnomalyType = "POSSIBLE_DOS"
)

// Config holds configuration for the anomaly detector.
type Config struct {
	BroadcastThreshold int           // link-layer broadcasts per second
	DoSThreshold       int           // packets per second per source
	UnsecureCooldown   time.Duration // per source/port alert throttle
	CleanupInterval    time.Duration
	DataRetention      time.Duration
	MaxAlerts          int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BroadcastThreshold: 50,
		DoSThreshold:       500,
		UnsecureCooldown:   10 * time.Second,
		CleanupInterval:    1 * time.Minute,
		DataRetention:      5 * time.Minute,
		MaxAlerts:          20,
	}
}

// Alert represents a locally detected anomaly.
type Alert struct {
	Type      AnomalyType
	Source    string
	Message   string
	Timestamp time.Time
}

var unsecurePorts = map[uint16]bool{
	21: true,
	23: true,
	80: true,
}

// AnomalyDetector flags simple patterns in the event stream. Timing uses
// capture timestamps so replayed traffic behaves like live traffic.
type AnomalyDetector struct {
	mu sync.Mutex

	config Config

	broadcastCount  int
	broadcastWindow time.Time

	unsecureAlerts map[string]time.Time // "src:port" -> last alert

	ipPacketCount map[string]int
	ipWindow      map[string]time.Time

	alerts []Alert

	lastCleanup time.Time
}

// NewAnomalyDetector creates a new anomaly detection engine.
func NewAnomalyDetector(cfg Config) *AnomalyDetector {
	if cfg.MaxAlerts <= 0 {
		cfg.MaxAlerts = 20
	}
	return &AnomalyDetector{
		config:         cfg,
		unsecureAlerts: make(map[string]time.Time),
		ipPacketCount:  make(map[string]int),
		ipWindow:       make(map[string]time.Time),
		alerts:         make([]Alert, 0),
	}
}

// ProcessEvent checks one event against every rule.
func (ad *AnomalyDetector) ProcessEvent(ev models.NetworkEvent) {
	ad.mu.Lock()
	defer ad.mu.Unlock()

	now := ev.Timestamp
	if now.IsZero() {
		now = time.Now()
	}

	if ad.lastCleanup.IsZero() {
		ad.lastCleanup = now
	} else if now.Sub(ad.lastCleanup) > ad.config.CleanupInterval {
		ad.cleanup(now)
		ad.lastCleanup = now
	}

	ad.detectBroadcastStorm(ev, now)
	ad.detectUnsecureProtocol(ev, now)
	ad.detectDoS(ev, now)
}

func (ad *AnomalyDetector) cleanup(now time.Time) {
	for key, lastAlert := range ad.unsecureAlerts {
		if now.Sub(lastAlert) > ad.config.DataRetention {
			delete(ad.unsecureAlerts, key)
		}
	}
	for ip, windowStart := range ad.ipWindow {
		if now.Sub(windowStart) > ad.config.DataRetention {
			delete(ad.ipWindow, ip)
			delete(ad.ipPacketCount, ip)
		}
	}
}

// detectBroadcastStorm flags more link-layer broadcasts than the threshold
// within one second.
func (ad *AnomalyDetector) detectBroadcastStorm(ev models.NetworkEvent, now time.Time) {
	if !ev.Broadcast {
		return
	}
	if now.Sub(ad.broadcastWindow) > time.Second {
		ad.broadcastCount = 0
		ad.broadcastWindow = now
	}

	ad.broadcastCount++
	if ad.broadcastCount <= ad.config.BroadcastThreshold {
		return
	}

	ad.addAlert(Alert{
		Type:      AnomalyBroadcastStorm,
		Source:    "Network",
		Message:   fmt.Sprintf("Broadcast storm detected: %d broadcasts in 1 second", ad.broadcastCount),
		Timestamp: now,
	})
	ad.broadcastCount = 0
	ad.broadcastWindow = now
}

// detectUnsecureProtocol flags plaintext protocols by destination port.
func (ad *AnomalyDetector) detectUnsecureProtocol(ev models.NetworkEvent, now time.Time) {
	if ev.Transport != models.TransportTCP || !ev.HasPorts() || !unsecurePorts[ev.DstPort] {
		return
	}

	key := fmt.Sprintf("%s:%d", ev.SourceAddress, ev.DstPort)
	lastAlert, exists := ad.unsecureAlerts[key]
	if exists && now.Sub(lastAlert) <= ad.config.UnsecureCooldown {
		return
	}

	ad.addAlert(Alert{
		Type:      AnomalyUnsecure,
		Source:    ev.SourceAddress,
		Message:   fmt.Sprintf("Plaintext %s traffic on port %d from %s", GetServiceName(ev.DstPort), ev.DstPort, ev.SourceAddress),
		Timestamp: now,
	})
	ad.unsecureAlerts[key] = now
}

// detectDoS flags a single source exceeding the packet rate threshold.
func (ad *AnomalyDetector) detectDoS(ev models.NetworkEvent, now time.Time) {
	src := ev.SourceAddress
	if src == "" || src == models.NotAvailable {
		return
	}

	start, exists := ad.ipWindow[src]
	if !exists || now.Sub(start) > time.Second {
		ad.ipWindow[src] = now
		ad.ipPacketCount[src] = 0
	}

	ad.ipPacketCount[src]++
	if ad.ipPacketCount[src] <= ad.config.DoSThreshold {
		return
	}

	ad.addAlert(Alert{
		Type:      AnomalyDoS,
		Source:    src,
		Message:   fmt.Sprintf("High packet rate from %s: %d pps", src, ad.ipPacketCount[src]),
		Timestamp: now,
	})
	ad.ipPacketCount[src] = 0
	ad.ipWindow[src] = now
}

func (ad *AnomalyDetector) addAlert(alert Alert) {
	ad.alerts = append(ad.alerts, alert)
	if len(ad.alerts) > ad.config.MaxAlerts {
		ad.alerts = ad.alerts[len(ad.alerts)-ad.config.MaxAlerts:]
	}
}

// GetRecentAlerts returns the most recent alerts (thread-safe).
func (ad *AnomalyDetector) GetRecentAlerts(limit int) []Alert {
	ad.mu.Lock()
	defer ad.mu.Unlock()

	start := 0
	if len(ad.alerts) > limit {
		start = len(ad.alerts) - limit
	}

	result := make([]Alert, len(ad.alerts)-start)
	copy(result, ad.alerts[start:])
	return result
}
