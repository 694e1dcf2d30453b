package runtime

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/entweave/entweave/pkg/definition"
	"github.com/entweave/entweave/pkg/stores"
	"github.com/entweave/entweave/pkg/telemetry"
)

func quietTelemetry(t *testing.T) *telemetry.Telemetry {
	t.Helper()
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = "error"
	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		t.Fatalf("failed to build telemetry: %v", err)
	}
	return tel
}

func boundContext(t *testing.T, raw map[string]any, opts ...Option) (*Context, *stores.MemoryStore) {
	t.Helper()
	d, err := definition.Define(raw)
	if err != nil {
		t.Fatalf("define failed: %v", err)
	}
	opts = append([]Option{WithTelemetry(quietTelemetry(t))}, opts...)
	rc := New(d, opts...)
	store := stores.NewMemoryStore()
	if err := rc.Bind(context.Background(), store); err != nil {
		t.Fatalf("bind failed: %v", err)
	}
	return rc, store
}

func TestBindFreshStorage(t *testing.T) {
	rc, store := boundContext(t, map[string]any{"type": "Customer", "version": 3})

	if rc.State() != StateBound {
		t.Errorf("state = %q", rc.State())
	}
	raw, ok, err := store.Get(context.Background(), "__entweave/version")
	if err != nil || !ok {
		t.Fatalf("version key missing: ok=%v err=%v", ok, err)
	}
	if string(raw) != "3" {
		t.Errorf("stored version = %q, want 3", raw)
	}
	if _, ok, _ := store.Get(context.Background(), "__entweave/definition"); !ok {
		t.Error("definition metadata not persisted")
	}
}

func TestCRUDRequiresBind(t *testing.T) {
	d, err := definition.Define(map[string]any{"type": "Customer"})
	if err != nil {
		t.Fatalf("define failed: %v", err)
	}
	rc := New(d, WithTelemetry(quietTelemetry(t)))

	if _, err := rc.Create(context.Background(), "a", nil); !errors.Is(err, ErrNotBound) {
		t.Errorf("create error = %v, want ErrNotBound", err)
	}
	if _, _, err := rc.Get(context.Background(), "a"); !errors.Is(err, ErrNotBound) {
		t.Errorf("get error = %v, want ErrNotBound", err)
	}
}

// TestMigrationOrdering verifies migrations {2,4,5} from stored version 1 run
// in ascending order, each exactly once.
func TestMigrationOrdering(t *testing.T) {
	var ran []int
	migration := func(v int) definition.MigrationFunc {
		return func(ctx context.Context, h definition.HandlerContext) error {
			ran = append(ran, v)
			return nil
		}
	}

	d, err := definition.Define(map[string]any{
		"type":      "Customer",
		"version":   5,
		"migrate.2": migration(2),
		"migrate.4": migration(4),
		"migrate.5": migration(5),
	})
	if err != nil {
		t.Fatalf("define failed: %v", err)
	}

	store := stores.NewMemoryStore()
	store.Put(context.Background(), "__entweave/version", []byte("1"))

	rc := New(d, WithTelemetry(quietTelemetry(t)))
	if err := rc.Bind(context.Background(), store); err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	if len(ran) != 3 || ran[0] != 2 || ran[1] != 4 || ran[2] != 5 {
		t.Errorf("migrations ran = %v, want [2 4 5]", ran)
	}

	// Re-binding an already-current pair runs zero migrations.
	ran = nil
	rc2 := New(d, WithTelemetry(quietTelemetry(t)))
	if err := rc2.Bind(context.Background(), store); err != nil {
		t.Fatalf("rebind failed: %v", err)
	}
	if len(ran) != 0 {
		t.Errorf("rebind ran %v, want none", ran)
	}
}

// TestMigrationFailureKeepsLastVersion verifies a failing migration aborts
// the rest and leaves the last successful version recorded.
func TestMigrationFailureKeepsLastVersion(t *testing.T) {
	d, err := definition.Define(map[string]any{
		"type":    "Customer",
		"version": 4,
		"migrate.2": definition.MigrationFunc(func(ctx context.Context, h definition.HandlerContext) error {
			return nil
		}),
		"migrate.3": definition.MigrationFunc(func(ctx context.Context, h definition.HandlerContext) error {
			return fmt.Errorf("bad data")
		}),
		"migrate.4": definition.MigrationFunc(func(ctx context.Context, h definition.HandlerContext) error {
			t.Error("migration 4 must not run after 3 failed")
			return nil
		}),
	})
	if err != nil {
		t.Fatalf("define failed: %v", err)
	}

	store := stores.NewMemoryStore()
	store.Put(context.Background(), "__entweave/version", []byte("1"))

	rc := New(d, WithTelemetry(quietTelemetry(t)))
	err = rc.Bind(context.Background(), store)
	if !errors.Is(err, ErrMigrationFailed) {
		t.Fatalf("bind error = %v, want ErrMigrationFailed", err)
	}
	if rc.State() != StateUnbound {
		t.Errorf("state = %q after failed bind", rc.State())
	}

	raw, _, _ := store.Get(context.Background(), "__entweave/version")
	if string(raw) != "2" {
		t.Errorf("stored version = %q, want last successful 2", raw)
	}
}

func TestBindVersionConflict(t *testing.T) {
	d, err := definition.Define(map[string]any{"type": "Customer", "version": 2})
	if err != nil {
		t.Fatalf("define failed: %v", err)
	}

	store := stores.NewMemoryStore()
	store.Put(context.Background(), "__entweave/version", []byte("7"))

	rc := New(d, WithTelemetry(quietTelemetry(t)))
	if err := rc.Bind(context.Background(), store); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("bind error = %v, want ErrVersionConflict", err)
	}
}

// TestCreateFiresHandlerOnce verifies the created handler runs exactly once,
// synchronously, before Create returns.
func TestCreateFiresHandlerOnce(t *testing.T) {
	fired := 0
	rc, _ := boundContext(t, map[string]any{
		"type": "Customer",
		"onCustomerCreated": definition.EventHandler(func(ctx context.Context, h definition.HandlerContext, ev definition.Event) error {
			fired++
			if ev.Previous != nil {
				t.Error("created event must have nil previous")
			}
			if ev.Current == nil || ev.Current.ID != "acme" {
				t.Errorf("created event current = %+v", ev.Current)
			}
			return nil
		}),
	})

	inst, err := rc.Create(context.Background(), "acme", map[string]any{"name": "Acme"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if fired != 1 {
		t.Errorf("handler fired %d times, want 1", fired)
	}
	if inst.Version != 1 || inst.Type != "Customer" {
		t.Errorf("instance = %+v", inst)
	}
}

func TestPutDeliversPreviousState(t *testing.T) {
	var got definition.Event
	rc, _ := boundContext(t, map[string]any{
		"type": "Customer",
		"onCustomerUpdated": definition.EventHandler(func(ctx context.Context, h definition.HandlerContext, ev definition.Event) error {
			got = ev
			return nil
		}),
	})

	ctx := context.Background()
	if _, err := rc.Create(ctx, "acme", map[string]any{"tier": "free"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := rc.Put(ctx, "acme", map[string]any{"tier": "pro"}); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	if got.Previous == nil || got.Previous.Data["tier"] != "free" {
		t.Errorf("previous = %+v", got.Previous)
	}
	if got.Current == nil || got.Current.Data["tier"] != "pro" {
		t.Errorf("current = %+v", got.Current)
	}

	// Put is a full replace, not a merge.
	if _, err := rc.Put(ctx, "acme", map[string]any{"name": "Acme"}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	inst, _, err := rc.Get(ctx, "acme")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if _, ok := inst.Data["tier"]; ok {
		t.Error("put merged instead of replacing")
	}
}

func TestGetMissIsNotAnError(t *testing.T) {
	rc, _ := boundContext(t, map[string]any{"type": "Customer"})

	inst, ok, err := rc.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get errored on miss: %v", err)
	}
	if ok || inst != nil {
		t.Errorf("miss = (%+v, %v)", inst, ok)
	}
}

func TestDeleteReportsRemoval(t *testing.T) {
	fired := 0
	rc, _ := boundContext(t, map[string]any{
		"type": "Customer",
		"onCustomerDeleted": definition.EventHandler(func(ctx context.Context, h definition.HandlerContext, ev definition.Event) error {
			fired++
			return nil
		}),
	})

	ctx := context.Background()
	rc.Create(ctx, "acme", nil)

	removed, err := rc.Delete(ctx, "acme")
	if err != nil || !removed {
		t.Fatalf("delete = (%v, %v)", removed, err)
	}
	removed, err = rc.Delete(ctx, "acme")
	if err != nil || removed {
		t.Errorf("second delete = (%v, %v)", removed, err)
	}
	if fired != 1 {
		t.Errorf("deleted handler fired %d times, want 1", fired)
	}
}

func TestInstancesExcludesReservedKeys(t *testing.T) {
	rc, _ := boundContext(t, map[string]any{"type": "Customer"})

	ctx := context.Background()
	rc.Create(ctx, "a", nil)
	rc.Create(ctx, "b", nil)

	list, err := rc.Instances(ctx)
	if err != nil {
		t.Fatalf("instances failed: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("instances = %d, want 2", len(list))
	}

	if _, err := rc.Create(ctx, "__entweave/definition", nil); !errors.Is(err, ErrReservedKey) {
		t.Errorf("reserved create error = %v", err)
	}
}

func TestCallComputeNative(t *testing.T) {
	rc, _ := boundContext(t, map[string]any{
		"type": "Invoice",
		"total": func(data map[string]any) any {
			return data["net"].(int) + data["tax"].(int)
		},
	})

	out, err := rc.Call(context.Background(), "total", map[string]any{"net": 100, "tax": 19})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if out != 119 {
		t.Errorf("total = %v, want 119", out)
	}
}

func TestCallComputeStarlark(t *testing.T) {
	rc, _ := boundContext(t, map[string]any{
		"type": "Invoice",
		"total": map[string]any{
			"source": "compute",
			"code":   "def compute(data):\n    return data[\"net\"] + data[\"tax\"]",
		},
	})

	out, err := rc.Call(context.Background(), "total", map[string]any{"net": 100, "tax": 19})
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if n, ok := out.(int64); !ok || n != 119 {
		t.Errorf("total = %v (%T), want 119", out, out)
	}
}

// TestCallGenerativeDefers verifies generative functions build a deferred
// request instead of executing.
func TestCallGenerativeDefers(t *testing.T) {
	rc, _ := boundContext(t, map[string]any{
		"type": "Customer",
		"draftEmail": definition.GenerativeFunction{
			Prompt: "Draft an email to {name} about {topic}",
			Model:  "large",
		},
	})

	out, err := rc.Call(context.Background(), "draftEmail", "Acme", "renewal")
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	dc, ok := out.(*DeferredCall)
	if !ok {
		t.Fatalf("call returned %T, want *DeferredCall", out)
	}
	if dc.Function != "draftEmail" || dc.Model != "large" {
		t.Errorf("deferred = %+v", dc)
	}
	if dc.Args["name"] != "Acme" || dc.Args["topic"] != "renewal" {
		t.Errorf("args = %v", dc.Args)
	}
}

func TestCallUnknownFunction(t *testing.T) {
	rc, _ := boundContext(t, map[string]any{"type": "Customer"})

	if _, err := rc.Call(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("call error = %v, want ErrNotFound", err)
	}
}

func TestComputeField(t *testing.T) {
	rc, _ := boundContext(t, map[string]any{
		"type": "Invoice",
		"doubled": map[string]any{
			"source": "compute",
			"code":   "result = data[\"n\"] * 2",
		},
	})

	out, err := rc.ComputeField(context.Background(), "doubled", map[string]any{"n": 21})
	if err != nil {
		t.Fatalf("compute field failed: %v", err)
	}
	if n, ok := out.(int64); !ok || n != 42 {
		t.Errorf("doubled = %v (%T), want 42", out, out)
	}
}

func TestRunSchedule(t *testing.T) {
	fired := 0
	rc, _ := boundContext(t, map[string]any{
		"type": "Customer",
		"everyHour": definition.ScheduleHandler(func(ctx context.Context, h definition.HandlerContext) error {
			fired++
			return nil
		}),
		"0 0 * * *": definition.ScheduleHandler(func(ctx context.Context, h definition.HandlerContext) error {
			fired += 10
			return nil
		}),
	})

	ctx := context.Background()
	if err := rc.RunSchedule(ctx, "everyHour"); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}
	if err := rc.RunCron(ctx, "0 0 * * *"); err != nil {
		t.Fatalf("cron failed: %v", err)
	}
	if fired != 11 {
		t.Errorf("fired = %d, want 11", fired)
	}
	if err := rc.RunSchedule(ctx, "everyDecade"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown schedule error = %v", err)
	}
}
