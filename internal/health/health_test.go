package health

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestCheckAll_EmptyRegistry(t *testing.T) {
	r := NewRegistry()
	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("empty registry should be healthy")
	}
	if len(statuses) != 0 {
		t.Fatalf("expected 0 statuses, got %d", len(statuses))
	}
}

func TestCheckAll_NamesAndOrder(t *testing.T) {
	r := NewRegistry()
	r.Register("database", func(_ context.Context) Status {
		return Status{Healthy: true}
	})
	r.Register("realtime", func(_ context.Context) Status {
		return Status{Healthy: true, Detail: "12 clients"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if !healthy {
		t.Fatal("all-healthy registry should report healthy")
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	// Name comes from registration, not from the probe's return value.
	if statuses[0].Name != "database" || statuses[1].Name != "realtime" {
		t.Fatalf("statuses out of order: %q, %q", statuses[0].Name, statuses[1].Name)
	}
	if statuses[1].Detail != "12 clients" {
		t.Fatalf("detail not carried through: %q", statuses[1].Detail)
	}
}

func TestCheckAll_OneUnhealthyFlipsAggregate(t *testing.T) {
	r := NewRegistry()
	r.Register("database", func(_ context.Context) Status {
		return Status{Healthy: true}
	})
	r.Register("stripe", func(_ context.Context) Status {
		return Status{Healthy: false, Detail: "connection refused"}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Fatal("registry with an unhealthy probe should report unhealthy")
	}
	if statuses[0].Healthy != true || statuses[1].Healthy != false {
		t.Fatal("per-subsystem results should be independent of the aggregate")
	}
}

func TestCheckAll_RecordsLatency(t *testing.T) {
	r := NewRegistry()
	r.Register("slow", func(_ context.Context) Status {
		time.Sleep(20 * time.Millisecond)
		return Status{Healthy: true}
	})

	_, statuses := r.CheckAll(context.Background())
	if statuses[0].LatencyMS < 15 {
		t.Fatalf("expected latency >= 15ms, got %v", statuses[0].LatencyMS)
	}
}

func TestCheckAll_StuckProbeTimesOut(t *testing.T) {
	old := checkTimeout
	checkTimeout = 50 * time.Millisecond
	defer func() { checkTimeout = old }()

	r := NewRegistry()
	r.Register("stuck", func(ctx context.Context) Status {
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond) // keep running past the deadline
		return Status{Healthy: true}
	})

	healthy, statuses := r.CheckAll(context.Background())
	if healthy {
		t.Fatal("stuck probe should count as unhealthy")
	}
	if statuses[0].Detail != "check timed out" {
		t.Fatalf("expected timeout detail, got %q", statuses[0].Detail)
	}
}

func TestRegistry_ConcurrentRegisterAndCheck(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register("probe", func(_ context.Context) Status {
				return Status{Healthy: true}
			})
		}()
	}
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.CheckAll(context.Background())
		}()
	}
	wg.Wait()
}
