package metadata

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
)

// countingReader 记录每个资源被解析的次数
type countingReader struct {
	mu    sync.Mutex
	reads map[string]int
	fail  map[string]error
}

func newCountingReader() *countingReader {
	return &countingReader{reads: make(map[string]int), fail: make(map[string]error)}
}

func (r *countingReader) Read(resource string) (*Metadata, error) {
	r.mu.Lock()
	r.reads[resource]++
	r.mu.Unlock()
	if err := r.fail[resource]; err != nil {
		return nil, err
	}
	return &Metadata{Resource: resource}, nil
}

func (r *countingReader) count(resource string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads[resource]
}

func TestCacheHitReusesEntry(t *testing.T) {
	reader := newCountingReader()
	c := NewCache(reader, WithCapacity(4))

	m1, err := c.Get("r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	m2, err := c.Get("r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if m1 != m2 {
		t.Error("Expected cached metadata to be reused")
	}
	if reader.count("r1") != 1 {
		t.Errorf("Expected 1 read, got %d", reader.count("r1"))
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	reader := newCountingReader()
	c := NewCache(reader, WithCapacity(3))

	// 依次插入 r1 r2 r3，再访问 r1 把它提为最近使用
	for _, res := range []string{"r1", "r2", "r3"} {
		if _, err := c.Get(res); err != nil {
			t.Fatalf("Get %s failed: %v", res, err)
		}
	}
	if _, err := c.Get("r1"); err != nil {
		t.Fatalf("Get r1 failed: %v", err)
	}

	// 插入 r4 应淘汰最久未使用的 r2，而不是 r1
	if _, err := c.Get("r4"); err != nil {
		t.Fatalf("Get r4 failed: %v", err)
	}

	if c.Contains("r2") {
		t.Error("Expected r2 to be evicted")
	}
	if !c.Contains("r1") {
		t.Error("Expected r1 to survive eviction")
	}
	if !c.Contains("r3") || !c.Contains("r4") {
		t.Error("Expected r3 and r4 to be present")
	}
	if c.Len() != 3 {
		t.Errorf("Expected len 3, got %d", c.Len())
	}
}

func TestCacheReadErrorNotCached(t *testing.T) {
	reader := newCountingReader()
	reader.fail["bad"] = fmt.Errorf("parse failure")
	c := NewCache(reader)

	if _, err := c.Get("bad"); err == nil {
		t.Fatal("Expected read error")
	}
	if c.Contains("bad") {
		t.Error("Failed read must not be cached")
	}

	// 失败不粘滞：修复后下次 Get 重新解析
	delete(reader.fail, "bad")
	if _, err := c.Get("bad"); err != nil {
		t.Fatalf("Get after recovery failed: %v", err)
	}
	if reader.count("bad") != 2 {
		t.Errorf("Expected 2 reads, got %d", reader.count("bad"))
	}
}

func TestCacheClear(t *testing.T) {
	reader := newCountingReader()
	c := NewCache(reader)

	c.Get("r1")
	c.Get("r2")
	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Expected empty cache after Clear, got %d", c.Len())
	}
	c.Get("r1")
	if reader.count("r1") != 2 {
		t.Errorf("Expected re-read after Clear, got %d reads", reader.count("r1"))
	}
}

func TestCacheConcurrentGet(t *testing.T) {
	reader := newCountingReader()
	c := NewCache(reader, WithCapacity(8))

	var wg sync.WaitGroup
	var errs atomic.Int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				res := fmt.Sprintf("r%d", (i+j)%16)
				if _, err := c.Get(res); err != nil {
					errs.Add(1)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	if errs.Load() != 0 {
		t.Fatalf("Concurrent Get reported %d errors", errs.Load())
	}
	if c.Len() > 8 {
		t.Errorf("Cache exceeded capacity: %d", c.Len())
	}
}

func TestStructReader(t *testing.T) {
	type sample struct {
		Name  string
		Limit int
		inner string
	}

	r := NewStructReader()
	id := r.Identity(reflect.TypeOf(&sample{}))
	if id2 := r.Identity(reflect.TypeOf(sample{})); id2 != id {
		t.Errorf("Pointer and value identity differ: %s vs %s", id, id2)
	}

	meta, err := r.Read(id)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if _, ok := meta.Fields["Name"]; !ok {
		t.Error("Expected exported field Name")
	}
	if _, ok := meta.Fields["Limit"]; !ok {
		t.Error("Expected exported field Limit")
	}
	if _, ok := meta.Fields["inner"]; ok {
		t.Error("Unexported field must not be injectable")
	}

	if _, err := r.Read("unknown"); err == nil {
		t.Error("Expected error for unregistered resource")
	}
}
