package resque

import (
	"context"
	"testing"
)

func TestClassRegistryRegisterAndGet(t *testing.T) {
	reg := NewClassRegistry()
	reg.Register("Log", func() Performer {
		return PerformerFunc(func(ctx context.Context, args []interface{}) (interface{}, error) {
			return "ok", nil
		})
	})

	p, err := reg.Get("Log")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	result, err := p.Perform(context.Background(), nil)
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if result != "ok" {
		t.Fatalf("result = %v, want %q", result, "ok")
	}
}

func TestClassRegistryGetUnknownClass(t *testing.T) {
	reg := NewClassRegistry()
	if _, err := reg.Get("Missing"); err == nil {
		t.Fatal("expected error for unregistered class")
	}
}

func TestClassRegistryGetReturnsFreshInstance(t *testing.T) {
	reg := NewClassRegistry()
	type counter struct{ n int }
	reg.Register("Counter", func() Performer {
		c := &counter{}
		return PerformerFunc(func(ctx context.Context, args []interface{}) (interface{}, error) {
			c.n++
			return c.n, nil
		})
	})

	p1, _ := reg.Get("Counter")
	p2, _ := reg.Get("Counter")

	r1, _ := p1.Perform(context.Background(), nil)
	r2, _ := p2.Perform(context.Background(), nil)

	if r1 != 1 || r2 != 1 {
		t.Fatalf("expected each Get to construct a fresh instance, got r1=%v r2=%v", r1, r2)
	}
}

func TestClassRegistryList(t *testing.T) {
	reg := NewClassRegistry()
	reg.Register("A", func() Performer { return nil })
	reg.Register("B", func() Performer { return nil })

	names := reg.List()
	if len(names) != 2 {
		t.Fatalf("List() length = %d, want 2", len(names))
	}
}
