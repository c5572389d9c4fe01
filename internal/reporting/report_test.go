package reporting

import (
	"strings"
	"testing"
	"time"

	"netlens/internal/analysis"
	"netlens/internal/models"
)

func TestSessionSummary(t *testing.T) {
	stats := analysis.NewTrafficStats()
	now := time.Now()

	stats.ProcessEvent(models.NetworkEvent{
		Timestamp:     now,
		SourceAddress: "192.168.1.10",
		DestAddress:   "1.1.1.1",
		Transport:     models.TransportTCP,
		DstPort:       80,
		Length:        500,
	})
	stats.ProcessEvent(models.NetworkEvent{
		Timestamp:     now,
		SourceAddress: "192.168.1.10",
		DestAddress:   "8.8.8.8",
		Transport:     models.TransportUDP,
		DstPort:       53,
		Length:        300,
	})

	journal := NewJournal(10)
	journal.Record(models.Analysis{BatchID: "b1", Reason: models.ReleaseTimer, EventCount: 2, Response: "Plaintext HTTP seen.\nMore detail."})
	journal.Record(models.Analysis{BatchID: "b2", Question: "any DNS?", EventCount: 1, Err: "backend returned 500"})

	out := SessionSummary(Session{
		Interface: "eth0",
		Mode:      "autonomous",
		Model:     "llama2",
		Started:   now.Add(-time.Minute),
		Ended:     now,
		Stats:     stats,
		Journal:   journal,
	})

	for _, want := range []string{
		"Session Summary",
		"eth0",
		"192.168.1.10",
		"Packets: 2",
		"TCP=1",
		"Analyses: 2 (1 failed)",
		"Plaintext HTTP seen. ...",
		"error: backend returned 500",
		"UNSECURE_PROTOCOL",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestSessionSummary_NoTraffic(t *testing.T) {
	out := SessionSummary(Session{Interface: "lo", Stats: analysis.NewTrafficStats(), Journal: NewJournal(0)})

	if !strings.Contains(out, "No traffic captured.") {
		t.Errorf("expected empty traffic notice:\n%s", out)
	}
	if !strings.Contains(out, "Analyses: 0 (0 failed)") {
		t.Errorf("expected zero analyses:\n%s", out)
	}
}

func TestJournal_Bounded(t *testing.T) {
	j := NewJournal(2)
	for _, id := range []string{"a", "b", "c"} {
		j.Record(models.Analysis{BatchID: id})
	}

	recent := j.Recent(10)
	if len(recent) != 2 || recent[0].BatchID != "b" || recent[1].BatchID != "c" {
		t.Fatalf("unexpected journal contents: %+v", recent)
	}
	if total, _ := j.Counts(); total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}
}

func TestFormatBytes(t *testing.T) {
	if got := formatBytes(512); got != "512 B" {
		t.Errorf("got %q", got)
	}
	if got := formatBytes(1536); got != "1.5 KB" {
		t.Errorf("got %q", got)
	}
}
