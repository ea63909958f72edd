package query

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hrsignal/temporal-engine/pkg/temporal"
)

func rec(id string) *temporal.Record {
	return &temporal.Record{ID: id}
}

func TestLRUCache(t *testing.T) {
	tests := []struct {
		name string
		fn   func(t *testing.T)
	}{
		{"SetAndGet", testSetAndGet},
		{"GetMiss", testGetMiss},
		{"GetExpired", testGetExpired},
		{"SetOverMaxSizeEvictsOldest", testSetOverMaxSizeEvictsOldest},
		{"InvalidatePrefixRemovesSeries", testInvalidatePrefixRemovesSeries},
		{"InvalidateAllClearsCache", testInvalidateAllClearsCache},
		{"ConcurrentAccess", testConcurrentAccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.fn)
	}
}

func testSetAndGet(t *testing.T) {
	c := NewLRUCache(10, 5*time.Second)
	c.Set("key1", rec("r1"))

	got, ok := c.Get("key1")
	if !ok {
		t.Fatal("expected cache hit, got miss")
	}
	if got.ID != "r1" {
		t.Fatalf("expected %q, got %q", "r1", got.ID)
	}
}

func testGetMiss(t *testing.T) {
	c := NewLRUCache(10, 5*time.Second)

	got, ok := c.Get("nonexistent")
	if ok {
		t.Fatal("expected cache miss, got hit")
	}
	if got != nil {
		t.Fatalf("expected nil value on miss, got %q", got.ID)
	}
}

func testGetExpired(t *testing.T) {
	c := NewLRUCache(10, 50*time.Millisecond)
	c.Set("key1", rec("r1"))

	if _, ok := c.Get("key1"); !ok {
		t.Fatal("expected hit before expiry")
	}

	time.Sleep(60 * time.Millisecond)

	if _, ok := c.Get("key1"); ok {
		t.Fatal("expected miss after expiry")
	}
	if c.Size() != 0 {
		t.Fatalf("expected expired entry to be deleted, size=%d", c.Size())
	}
}

func testSetOverMaxSizeEvictsOldest(t *testing.T) {
	c := NewLRUCache(3, 5*time.Second)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("key%d", i), rec(fmt.Sprintf("r%d", i)))
		time.Sleep(time.Millisecond)
	}

	c.Set("key3", rec("r3"))

	if c.Size() != 3 {
		t.Fatalf("expected size 3 after eviction, got %d", c.Size())
	}
	if _, ok := c.Get("key0"); ok {
		t.Fatal("expected oldest entry to be evicted")
	}
	if _, ok := c.Get("key3"); !ok {
		t.Fatal("expected newest entry to be present")
	}
}

func testInvalidatePrefixRemovesSeries(t *testing.T) {
	c := NewLRUCache(10, 5*time.Second)
	c.Set("acme|emp-1|fp1|t1", rec("r1"))
	c.Set("acme|emp-1|fp1|t2", rec("r2"))
	c.Set("acme|emp-2|fp1|t1", rec("r3"))

	c.InvalidatePrefix("acme|emp-1|fp1|")

	if _, ok := c.Get("acme|emp-1|fp1|t1"); ok {
		t.Fatal("expected series entry to be invalidated")
	}
	if _, ok := c.Get("acme|emp-1|fp1|t2"); ok {
		t.Fatal("expected series entry to be invalidated")
	}
	if _, ok := c.Get("acme|emp-2|fp1|t1"); !ok {
		t.Fatal("expected other series to survive")
	}
}

func testInvalidateAllClearsCache(t *testing.T) {
	c := NewLRUCache(10, 5*time.Second)
	c.Set("key1", rec("r1"))
	c.Set("key2", rec("r2"))

	c.InvalidateAll()

	if c.Size() != 0 {
		t.Fatalf("expected empty cache, size=%d", c.Size())
	}
}

func testConcurrentAccess(t *testing.T) {
	c := NewLRUCache(100, 5*time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("key%d-%d", n, j)
				c.Set(key, rec(key))
				c.Get(key)
				if j%10 == 0 {
					c.InvalidatePrefix(fmt.Sprintf("key%d-", n))
				}
			}
		}(i)
	}
	wg.Wait()
}
