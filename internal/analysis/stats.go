package analysis

import (
	"sort"
	"sync"
	"time"

	"netlens/internal/models"
)

// IPStat holds stats for a single source address.
type IPStat struct {
	IP    string
	Bytes int
}

// ProtocolStat holds stats for a single transport label.
type ProtocolStat struct {
	Protocol string
	Count    int64
}

// TrafficStats tracks live statistics for the operator view. It observes the
// event stream next to the aggregator and never touches its buffer.
type TrafficStats struct {
	mu             sync.Mutex
	totalBytes     int64
	totalPackets   int64
	windowBytes    int64
	windowPackets  int64
	lastTick       time.Time
	ipBytes        map[string]int
	protocolCounts map[string]int64

	anomalyDetector *AnomalyDetector
}

// NewTrafficStats creates a new TrafficStats instance.
func NewTrafficStats() *TrafficStats {
	return NewTrafficStatsWithConfig(DefaultConfig())
}

// NewTrafficStatsWithConfig uses cfg for the embedded anomaly detector.
func NewTrafficStatsWithConfig(cfg Config) *TrafficStats {
	return &TrafficStats{
		lastTick:        time.Now(),
		ipBytes:         make(map[string]int),
		protocolCounts:  make(map[string]int64),
		anomalyDetector: NewAnomalyDetector(cfg),
	}
}

// ProcessEvent updates stats with a new event.
func (s *TrafficStats) ProcessEvent(ev models.NetworkEvent) {
	s.mu.Lock()
	s.totalBytes += int64(ev.Length)
	s.totalPackets++
	s.windowBytes += int64(ev.Length)
	s.windowPackets++

	if ev.SourceAddress != "" && ev.SourceAddress != models.NotAvailable {
		s.ipBytes[ev.SourceAddress] += ev.Length
	}
	s.protocolCounts[ev.Transport]++
	s.mu.Unlock()

	// detector has its own mutex
	s.anomalyDetector.ProcessEvent(ev)
}

// GetRates returns the bandwidth (bps) and packet rate (pps) since the last call.
func (s *TrafficStats) GetRates() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	duration := now.Sub(s.lastTick).Seconds()
	if duration == 0 {
		return 0, 0
	}

	bps := (float64(s.windowBytes) * 8) / duration
	pps := float64(s.windowPackets) / duration

	s.windowBytes = 0
	s.windowPackets = 0
	s.lastTick = now

	return bps, pps
}

// Totals returns the bytes and packets seen since start.
func (s *TrafficStats) Totals() (bytes, packets int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalBytes, s.totalPackets
}

// GetTopTalkers returns the top N source addresses by volume.
func (s *TrafficStats) GetTopTalkers(limit int) []IPStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make([]IPStat, 0, len(s.ipBytes))
	for ip, bytes := range s.ipBytes {
		stats = append(stats, IPStat{IP: ip, Bytes: bytes})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Bytes == stats[j].Bytes {
			return stats[i].IP < stats[j].IP
		}
		return stats[i].Bytes > stats[j].Bytes
	})

	if len(stats) > limit {
		return stats[:limit]
	}
	return stats
}

// GetProtocolStats returns the transport distribution, most frequent first.
func (s *TrafficStats) GetProtocolStats() []ProtocolStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make([]ProtocolStat, 0, len(s.protocolCounts))
	for proto, count := range s.protocolCounts {
		stats = append(stats, ProtocolStat{Protocol: proto, Count: count})
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count == stats[j].Count {
			return stats[i].Protocol < stats[j].Protocol
		}
		return stats[i].Count > stats[j].Count
	})

	return stats
}

// GetAlerts returns up to limit recent alerts, newest last.
func (s *TrafficStats) GetAlerts(limit int) []Alert {
	return s.anomalyDetector.GetRecentAlerts(limit)
}
