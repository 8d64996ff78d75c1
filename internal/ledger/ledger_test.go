package ledger

import (
	"sync"
	"testing"
)

func TestTryReserveSingleWinnerUnderContention(t *testing.T) {
	l := New(nil)
	l.SetOnline("d1")

	const n = 64
	var wg sync.WaitGroup
	wins := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.TryReserve("d1") {
				wins <- "won"
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one winner, got %d", count)
	}
	available, inFlight, ok := l.Status("d1")
	if !ok || available || !inFlight {
		t.Fatalf("unexpected state after reserve: available=%v inFlight=%v ok=%v", available, inFlight, ok)
	}
}

func TestReleaseRestoresAvailability(t *testing.T) {
	l := New(nil)
	l.SetOnline("d1")
	if !l.TryReserve("d1") {
		t.Fatal("first reserve should win")
	}
	if l.TryReserve("d1") {
		t.Fatal("second reserve must fail while offer in flight")
	}
	l.Release("d1")
	if !l.TryReserve("d1") {
		t.Fatal("driver should be reservable again after release")
	}
}

func TestOfferInFlightImpliesUnavailable(t *testing.T) {
	l := New(nil)
	l.SetOnline("d1")
	l.TryReserve("d1")
	available, inFlight, _ := l.Status("d1")
	if inFlight && available {
		t.Fatal("offerInFlight=true must imply available=false")
	}
}

func TestSetOfflineBlocksReserveAndSurvivesRelease(t *testing.T) {
	l := New(nil)
	l.SetOnline("d1")
	l.TryReserve("d1")
	l.SetOffline("d1")
	// A release racing the disconnect must not resurrect the driver.
	l.Release("d1")
	if l.TryReserve("d1") {
		t.Fatal("offline driver must not be reservable")
	}
	available, inFlight, _ := l.Status("d1")
	if available || inFlight {
		t.Fatalf("offline driver should hold no flags: available=%v inFlight=%v", available, inFlight)
	}
}

func TestReserveUnknownOrOfflineDriver(t *testing.T) {
	l := New(nil)
	if l.TryReserve("ghost") {
		t.Fatal("unknown driver must not be reservable")
	}
	l.SetOnline("d1")
	l.SetOffline("d1")
	if l.TryReserve("d1") {
		t.Fatal("offline driver must not be reservable")
	}
}

func TestLivenessGate(t *testing.T) {
	open := true
	l := New(func(string) bool { return open })
	l.SetOnline("d1")
	open = false
	if l.TryReserve("d1") {
		t.Fatal("driver with a closed connection must not be reservable")
	}
	open = true
	if !l.TryReserve("d1") {
		t.Fatal("driver should be reservable once the connection is open")
	}
}

func TestTripLifecycle(t *testing.T) {
	l := New(nil)
	l.SetOnline("d1")
	if !l.TryReserve("d1") {
		t.Fatal("reserve failed")
	}
	l.BeginTrip("d1")
	available, inFlight, _ := l.Status("d1")
	if available || inFlight {
		t.Fatalf("driver on trip must be unavailable with no offer in flight: available=%v inFlight=%v", available, inFlight)
	}
	// Release from a stale timer while on a trip must not free the driver.
	l.Release("d1")
	if l.TryReserve("d1") {
		t.Fatal("driver on trip must not be reservable")
	}
	l.EndTrip("d1")
	if !l.TryReserve("d1") {
		t.Fatal("driver should be reservable after the trip ends")
	}
}
