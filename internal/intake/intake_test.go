// ABOUTME: Tests for the encoded-packet intake
// ABOUTME: Covers overflow drop-oldest, malformed rejection, and blocking pop
package intake

import (
	"testing"
	"time"
)

func TestPushPopOrder(t *testing.T) {
	in := New(4)
	in.Push([]byte{1, 2, 3})
	in.Push([]byte{4, 5})

	pkt, shutdown := in.PopBlocking(10 * time.Millisecond)
	if shutdown {
		t.Fatal("unexpected shutdown")
	}
	if string(pkt) != string([]byte{1, 2, 3}) {
		t.Errorf("expected first packet, got %v", pkt)
	}

	pkt, _ = in.PopBlocking(10 * time.Millisecond)
	if string(pkt) != string([]byte{4, 5}) {
		t.Errorf("expected second packet, got %v", pkt)
	}
}

func TestMalformedPacketsRejected(t *testing.T) {
	in := New(4)
	in.Push(nil)
	in.Push(make([]byte, MaxPacketBytes+1))

	if in.Len() != 0 {
		t.Errorf("expected 0 queued packets, got %d", in.Len())
	}
}

func TestOverflowDropsOldest(t *testing.T) {
	in := New(2)
	in.Push([]byte{1})
	in.Push([]byte{2})
	in.Push([]byte{3}) // overflow: drops packet {1}

	if in.Len() != 2 {
		t.Fatalf("expected 2 queued, got %d", in.Len())
	}

	pkt, _ := in.PopBlocking(10 * time.Millisecond)
	if pkt[0] != 2 {
		t.Errorf("expected oldest surviving packet to be {2}, got %v", pkt)
	}
	pkt, _ = in.PopBlocking(10 * time.Millisecond)
	if pkt[0] != 3 {
		t.Errorf("expected {3}, got %v", pkt)
	}
}

func TestPopBlockingTimesOutEmpty(t *testing.T) {
	in := New(4)
	start := time.Now()
	pkt, shutdown := in.PopBlocking(5 * time.Millisecond)
	elapsed := time.Since(start)

	if pkt != nil {
		t.Errorf("expected nil packet on empty timeout, got %v", pkt)
	}
	if shutdown {
		t.Error("unexpected shutdown")
	}
	if elapsed > 100*time.Millisecond {
		t.Errorf("timeout took too long: %v", elapsed)
	}
}

func TestClearResetsQueue(t *testing.T) {
	in := New(4)
	in.Push([]byte{1})
	in.Push([]byte{2})
	in.Clear()

	if in.Len() != 0 {
		t.Errorf("expected empty after Clear, got %d", in.Len())
	}
}

func TestShutdownWakesPop(t *testing.T) {
	in := New(4)
	done := make(chan bool, 1)

	go func() {
		_, shutdown := in.PopBlocking(time.Second)
		done <- shutdown
	}()

	time.Sleep(5 * time.Millisecond)
	in.Shutdown()

	select {
	case shutdown := <-done:
		if !shutdown {
			t.Error("expected shutdown to be observed")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("PopBlocking did not wake on shutdown")
	}
}

func TestPushAfterShutdownIsNoop(t *testing.T) {
	in := New(4)
	in.Shutdown()
	in.Push([]byte{1})

	if in.Len() != 0 {
		t.Errorf("expected push after shutdown to be dropped, got len=%d", in.Len())
	}
}
