package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/standardbeagle/pci/internal/detect"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func sampleUsages(file string) []detect.Usage {
	return []detect.Usage{
		{File: file, Line: 3, Type: detect.UsageImport, Code: "use App\\Models\\User"},
		{File: file, Line: 9, Type: detect.UsageNew, Code: "new User"},
	}
}

func TestResultCache_Creation(t *testing.T) {
	c := New(DefaultConfig())
	defer c.Close()

	stats := c.Stats()
	if stats.Entries != 0 {
		t.Errorf("Expected empty cache, got %d entries", stats.Entries)
	}
	if stats.TTLHours != 24 {
		t.Errorf("Expected default TTL of 24h, got %v", stats.TTLHours)
	}
}

func TestResultCache_KeyDependsOnContentAndTarget(t *testing.T) {
	k1 := Key("App\\Models\\User", []byte("<?php new User();"))
	k2 := Key("App\\Models\\User", []byte("<?php new User(); // changed"))
	k3 := Key("App\\Models\\Post", []byte("<?php new User();"))

	if k1 == k2 {
		t.Error("Different content must produce different keys")
	}
	if k1 == k3 {
		t.Error("Different targets must produce different keys")
	}
	if k1 != Key("App\\Models\\User", []byte("<?php new User();")) {
		t.Error("Key must be deterministic")
	}
}

func TestResultCache_PutGet(t *testing.T) {
	c := New(DefaultConfig())
	defer c.Close()

	key := Key("App\\Models\\User", []byte("content"))
	c.Put(key, "/vendor/pkg/File.php", sampleUsages("File.php"))

	usages, ok := c.Get(key)
	if !ok {
		t.Fatal("Expected cache hit")
	}
	if len(usages) != 2 {
		t.Errorf("Expected 2 usages, got %d", len(usages))
	}

	if _, ok := c.Get("missing:key"); ok {
		t.Error("Expected miss for unknown key")
	}
}

func TestResultCache_TTLExpiry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = 10 * time.Millisecond
	c := New(cfg)
	defer c.Close()

	key := Key("App\\Models\\User", []byte("content"))
	c.Put(key, "/vendor/pkg/File.php", sampleUsages("File.php"))

	if _, ok := c.Get(key); !ok {
		t.Fatal("Expected hit before expiry")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get(key); ok {
		t.Error("Expected miss after TTL expiry")
	}
}

func TestResultCache_InvalidatePath(t *testing.T) {
	c := New(DefaultConfig())
	defer c.Close()

	// two targets cached for the same file
	k1 := Key("App\\Models\\User", []byte("content"))
	k2 := Key("App\\Models\\Post", []byte("content"))
	c.Put(k1, "/vendor/pkg/File.php", sampleUsages("File.php"))
	c.Put(k2, "/vendor/pkg/File.php", nil)
	c.Put(Key("App\\Models\\User", []byte("other")), "/vendor/pkg/Other.php", nil)

	removed := c.InvalidatePath("/vendor/pkg/File.php")
	if removed != 2 {
		t.Errorf("Expected 2 entries invalidated, got %d", removed)
	}
	if _, ok := c.Get(k1); ok {
		t.Error("Entry for invalidated path must be gone")
	}
	if c.Stats().Entries != 1 {
		t.Errorf("Unrelated entry must survive, have %d entries", c.Stats().Entries)
	}
}

func TestResultCache_Flush(t *testing.T) {
	c := New(DefaultConfig())
	defer c.Close()

	for i := 0; i < 5; i++ {
		key := Key("App\\Models\\User", []byte(fmt.Sprintf("content-%d", i)))
		c.Put(key, fmt.Sprintf("/vendor/f%d.php", i), nil)
	}

	flushed := c.Flush()
	if flushed != 5 {
		t.Errorf("Expected 5 entries flushed, got %d", flushed)
	}
	if c.Stats().Entries != 0 {
		t.Errorf("Expected empty cache after flush, got %d", c.Stats().Entries)
	}
}

func TestResultCache_EvictsOldestAtCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEntries = 3
	c := New(cfg)
	defer c.Close()

	for i := 0; i < 5; i++ {
		key := Key("App\\Models\\User", []byte(fmt.Sprintf("content-%d", i)))
		c.Put(key, fmt.Sprintf("/vendor/f%d.php", i), nil)
		time.Sleep(time.Millisecond) // distinct cachedAt timestamps
	}

	stats := c.Stats()
	if stats.Entries > 3 {
		t.Errorf("Expected at most 3 entries, got %d", stats.Entries)
	}
	if stats.Evictions < 2 {
		t.Errorf("Expected at least 2 evictions, got %d", stats.Evictions)
	}
}

func TestResultCache_StatsHitRate(t *testing.T) {
	c := New(DefaultConfig())
	defer c.Close()

	key := Key("App\\Models\\User", []byte("content"))
	c.Put(key, "/vendor/f.php", nil)

	c.Get(key)          // hit
	c.Get("absent:key") // miss

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Expected 1 hit / 1 miss, got %d / %d", stats.Hits, stats.Misses)
	}
	if stats.HitRate != 0.5 {
		t.Errorf("Expected hit rate 0.5, got %v", stats.HitRate)
	}
}

func TestResultCache_ConcurrentAccess(t *testing.T) {
	c := New(DefaultConfig())
	defer c.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := Key("App\\Models\\User", []byte(fmt.Sprintf("content-%d-%d", g, i%10)))
				c.Put(key, fmt.Sprintf("/vendor/f%d.php", i%10), sampleUsages("f.php"))
				c.Get(key)
				if i%25 == 0 {
					c.InvalidatePath(fmt.Sprintf("/vendor/f%d.php", i%10))
				}
			}
		}(g)
	}
	wg.Wait()
}

func TestResultCache_AutoCleanupStopsOnClose(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TTL = time.Millisecond
	cfg.AutoCleanup = true
	cfg.CleanupInterval = 5 * time.Millisecond
	c := New(cfg)

	c.Put(Key("App\\X", []byte("a")), "/vendor/a.php", nil)
	time.Sleep(25 * time.Millisecond)

	c.Close()
	// goleak in TestMain verifies the cleanup goroutine exited
}

func TestResultCache_UpdateTTL(t *testing.T) {
	c := New(DefaultConfig())
	defer c.Close()

	key := Key("App\\Models\\User", []byte("content"))
	c.Put(key, "/vendor/f.php", nil)

	c.UpdateTTL(time.Nanosecond)
	time.Sleep(time.Millisecond)
	if _, ok := c.Get(key); ok {
		t.Error("Expected miss after TTL shortened below entry age")
	}
}
