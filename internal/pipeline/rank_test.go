package pipeline

import (
	"reflect"
	"testing"
	"time"
)

func ms(v int64) *int64 { return &v }

func rec(addr string, latency *int64) AddressRecord {
	r := AddressRecord{Address: addr, LatencyMs: latency}
	if latency == nil {
		r.LastError = "probe: timeout"
	}
	return r
}

func bestAddrs(snap *RankedSnapshot) []string {
	out := make([]string, len(snap.Best))
	for i, r := range snap.Best {
		out[i] = r.Address
	}
	return out
}

func TestRank_SortsAscendingAndTakesK(t *testing.T) {
	probed := []AddressRecord{
		rec("A", ms(50)),
		rec("B", nil),
		rec("C", ms(10)),
		rec("D", ms(70)),
	}

	snap := Rank(probed, 2, time.Now())

	if got, want := bestAddrs(snap), []string{"C", "A"}; !reflect.DeepEqual(got, want) {
		t.Errorf("best: got %v, want %v", got, want)
	}
	if len(snap.AllProbed) != 4 {
		t.Errorf("all_probed: got %d, want 4", len(snap.AllProbed))
	}
}

func TestRank_BestNeverContainsFailures(t *testing.T) {
	probed := []AddressRecord{
		rec("A", nil),
		rec("B", ms(5)),
		rec("C", nil),
	}

	snap := Rank(probed, 10, time.Now())

	for _, r := range snap.Best {
		if r.LatencyMs == nil {
			t.Errorf("best contains failed record %q", r.Address)
		}
	}
	if len(snap.Best) != 1 {
		t.Errorf("best: got %d, want 1", len(snap.Best))
	}
}

func TestRank_FewerSuccessesThanK(t *testing.T) {
	probed := []AddressRecord{rec("A", ms(30)), rec("B", ms(20))}

	snap := Rank(probed, 25, time.Now())

	if got, want := bestAddrs(snap), []string{"B", "A"}; !reflect.DeepEqual(got, want) {
		t.Errorf("best: got %v, want %v", got, want)
	}
}

func TestRank_ZeroSuccessesYieldsEmptyBest(t *testing.T) {
	probed := []AddressRecord{rec("A", nil), rec("B", nil)}

	snap := Rank(probed, 5, time.Now())

	if len(snap.Best) != 0 {
		t.Errorf("best: got %d, want 0", len(snap.Best))
	}
	if len(snap.AllProbed) != 2 {
		t.Errorf("all_probed: got %d, want 2", len(snap.AllProbed))
	}
}

func TestRank_TiesKeepInputOrder(t *testing.T) {
	probed := []AddressRecord{
		rec("first", ms(10)),
		rec("second", ms(10)),
		rec("third", ms(10)),
	}

	want := []string{"first", "second", "third"}
	for i := 0; i < 5; i++ {
		snap := Rank(probed, 3, time.Now())
		if got := bestAddrs(snap); !reflect.DeepEqual(got, want) {
			t.Fatalf("run %d: best %v, want %v", i, got, want)
		}
	}
}

func TestRank_NonDecreasingInvariant(t *testing.T) {
	probed := []AddressRecord{
		rec("A", ms(90)), rec("B", ms(10)), rec("C", ms(40)),
		rec("D", ms(10)), rec("E", nil), rec("F", ms(5)),
	}

	snap := Rank(probed, 4, time.Now())

	for i := 1; i < len(snap.Best); i++ {
		if *snap.Best[i].LatencyMs < *snap.Best[i-1].LatencyMs {
			t.Fatalf("best not sorted at %d: %v", i, bestAddrs(snap))
		}
	}
}
