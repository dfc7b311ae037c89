package buffer

import "testing"

func TestQueueDrainPreservesFIFOOrder(t *testing.T) {
	q := New(0)
	for i := 0; i < 5; i++ {
		if err := q.Push(Item{Kind: BinaryAudio, Bytes: []byte{byte(i)}}); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}

	var got []byte
	q.Drain(func(it Item) {
		got = append(got, it.Bytes[0])
	})

	want := []byte{0, 1, 2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("drained %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("item %d = %d, want %d", i, got[i], want[i])
		}
	}

	if q.Len() != 0 {
		t.Errorf("queue should be empty after Drain, has %d items", q.Len())
	}
}

func TestQueuePushRejectsOverBudget(t *testing.T) {
	q := New(4)
	if err := q.Push(Item{Kind: BinaryAudio, Bytes: []byte{1, 2}}); err != nil {
		t.Fatalf("first Push: %v", err)
	}
	if err := q.Push(Item{Kind: BinaryAudio, Bytes: []byte{3, 4}}); err != nil {
		t.Fatalf("second Push: %v", err)
	}
	if err := q.Push(Item{Kind: BinaryAudio, Bytes: []byte{5}}); err != ErrFull {
		t.Fatalf("third Push error = %v, want ErrFull", err)
	}
}

func TestQueueDrainAllowsReentrantPush(t *testing.T) {
	q := New(0)
	_ = q.Push(Item{Kind: TextInput, Text: "hello"})

	var replayed int
	q.Drain(func(it Item) {
		replayed++
		_ = q.Push(Item{Kind: TextInput, Text: "queued-during-drain"})
	})

	if replayed != 1 {
		t.Fatalf("replayed %d items, want 1", replayed)
	}
	if q.Len() != 1 {
		t.Fatalf("queue should hold the re-pushed item, has %d", q.Len())
	}
}

func TestQueueIsEmpty(t *testing.T) {
	q := New(0)
	if !q.IsEmpty() {
		t.Fatal("new queue should be empty")
	}
	_ = q.Push(Item{Kind: SessionStart})
	if q.IsEmpty() {
		t.Fatal("queue with one item should not be empty")
	}
	q.Clear()
	if !q.IsEmpty() {
		t.Fatal("queue should be empty after Clear")
	}
}
