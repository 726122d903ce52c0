package protocol

import (
	"sync"
	"testing"
)

func TestByteRing(t *testing.T) {
	ring := NewByteRing(10)

	if !ring.IsEmpty() {
		t.Error("New ring should be empty")
	}

	if ring.Available() != 0 {
		t.Errorf("Empty ring should have 0 available, got %d", ring.Available())
	}

	for _, b := range []byte{1, 2, 3, 4, 5} {
		if !ring.Push(b) {
			t.Fatalf("Push(%d) failed on non-full ring", b)
		}
	}

	if ring.Available() != 5 {
		t.Errorf("Expected 5 bytes available, got %d", ring.Available())
	}

	for want := byte(1); want <= 3; want++ {
		got, ok := ring.Pop()
		if !ok || got != want {
			t.Errorf("Pop() = %d, %v; want %d, true", got, ok, want)
		}
	}

	if ring.Available() != 2 {
		t.Errorf("After reading 3, expected 2 available, got %d", ring.Available())
	}

	if ring.Free() != 7 {
		t.Errorf("Expected 7 bytes free, got %d", ring.Free())
	}
}

func TestByteRingFullDropsAndLatchesOverrun(t *testing.T) {
	ring := NewByteRing(10)

	written := 0
	for i := 0; i < 12; i++ {
		if ring.Push(byte(i)) {
			written++
		}
	}

	// Buffer size is 10, can only store 9 (one slot reserved)
	if written != 9 {
		t.Errorf("Expected to write 9 bytes to size-10 ring, wrote %d", written)
	}
	if ring.Dropped() != 3 {
		t.Errorf("Expected 3 dropped bytes, got %d", ring.Dropped())
	}
	if !ring.TakeOverrun() {
		t.Error("Expected overrun to be latched")
	}
	if ring.TakeOverrun() {
		t.Error("TakeOverrun should clear the flag")
	}

	// Existing data is never overwritten
	for want := byte(0); want < 9; want++ {
		got, ok := ring.Pop()
		if !ok || got != want {
			t.Fatalf("Pop() = %d, %v; want %d, true", got, ok, want)
		}
	}
	if _, ok := ring.Pop(); ok {
		t.Error("Pop on empty ring should fail")
	}
}

func TestByteRingWrapAround(t *testing.T) {
	ring := NewByteRing(5)

	for _, b := range []byte{1, 2, 3, 4} {
		ring.Push(b)
	}

	ring.Pop()
	ring.Pop()

	// Write more (will wrap around)
	if !ring.Push(5) || !ring.Push(6) {
		t.Fatal("Expected wrapped pushes to succeed")
	}

	var got []byte
	for {
		b, ok := ring.Pop()
		if !ok {
			break
		}
		got = append(got, b)
	}
	want := []byte{3, 4, 5, 6}
	if string(got) != string(want) {
		t.Errorf("Wrap-around data mismatch: got %v, want %v", got, want)
	}
}

func TestByteRingConcurrentProducerConsumer(t *testing.T) {
	ring := NewByteRing(IngressCapacity)
	const total = 100000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if ring.Push(byte(i)) {
				i++
			}
		}
	}()

	for i := 0; i < total; {
		b, ok := ring.Pop()
		if !ok {
			continue
		}
		if b != byte(i) {
			t.Fatalf("byte %d: got %d, want %d", i, b, byte(i))
		}
		i++
	}
	wg.Wait()
}

func TestByteRingReset(t *testing.T) {
	ring := NewByteRing(4)
	ring.Push(1)
	ring.Push(2)
	ring.Push(3)
	ring.Push(4)

	ring.Reset()

	if !ring.IsEmpty() {
		t.Error("Ring should be empty after reset")
	}
	if ring.TakeOverrun() {
		t.Error("Reset should clear the overrun flag")
	}
}
