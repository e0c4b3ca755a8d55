package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/dhcp"
)

var t0 = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func sampleLeases() []dhcp.Lease {
	return []dhcp.Lease{
		{Address: 0o1, Parent: 0, RequestID: 11, GrantedAt: t0, ExpiresAt: t0.Add(10 * time.Minute)},
		{Address: 0o21, Parent: 0o1, RequestID: 12, GrantedAt: t0, ExpiresAt: t0.Add(5 * time.Minute)},
	}
}

func TestLeaseFileStore(t *testing.T) {
	t.Run("SaveAndLoad", func(t *testing.T) {
		store := NewLeaseFileStore(filepath.Join(t.TempDir(), "sub", "leases.json"), address.RootNode0)

		if err := store.Save(sampleLeases()); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("len(leases) = %d, want 2", len(got))
		}
		if got[1].Address != 0o21 || got[1].Parent != 0o1 || got[1].RequestID != 12 {
			t.Errorf("leases[1] = %+v", got[1])
		}
		if !got[0].ExpiresAt.Equal(t0.Add(10 * time.Minute)) {
			t.Errorf("ExpiresAt = %v", got[0].ExpiresAt)
		}

		state, err := store.LoadState()
		if err != nil {
			t.Fatalf("LoadState() error = %v", err)
		}
		if state.Version != StateVersion {
			t.Errorf("Version = %d, want %d", state.Version, StateVersion)
		}
		if state.SavedAt.IsZero() {
			t.Error("SavedAt not set")
		}
	})

	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewLeaseFileStore(filepath.Join(t.TempDir(), "missing.json"), address.RootNode0)

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %v, want nil for non-existent file", got)
		}
	})

	t.Run("WrongRoot", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "leases.json")
		if err := NewLeaseFileStore(path, address.RootNode0).Save(sampleLeases()); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if _, err := NewLeaseFileStore(path, address.RootNode2).Load(); err == nil {
			t.Error("expected error loading another root's leases")
		}
	})

	t.Run("ForeignLease", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "leases.json")
		leases := append(sampleLeases(), dhcp.Lease{Address: address.RootNode1 + 0o1, Parent: address.RootNode1})
		if err := NewLeaseFileStore(path, address.RootNode0).Save(leases); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if _, err := NewLeaseFileStore(path, address.RootNode0).Load(); !errors.Is(err, ErrForeignLease) {
			t.Errorf("Load() error = %v, want ErrForeignLease", err)
		}
	})

	t.Run("NoTempFilesLeft", func(t *testing.T) {
		dir := t.TempDir()
		store := NewLeaseFileStore(filepath.Join(dir, "leases.json"), address.RootNode0)
		for range 3 {
			if err := store.Save(sampleLeases()); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 {
			t.Errorf("directory holds %d entries, want 1", len(entries))
		}
	})

	t.Run("Corrupt", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "leases.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := NewLeaseFileStore(path, address.RootNode0).Load(); err == nil {
			t.Error("expected error for corrupt file")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		store := NewLeaseFileStore(filepath.Join(t.TempDir(), "leases.json"), address.RootNode0)
		_ = store.Save(sampleLeases())

		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("second Clear() error = %v", err)
		}
		got, err := store.Load()
		if err != nil || got != nil {
			t.Errorf("Load() after Clear() = %v, %v", got, err)
		}
	})

	t.Run("RestoresServer", func(t *testing.T) {
		store := NewLeaseFileStore(filepath.Join(t.TempDir(), "leases.json"), address.RootNode0)

		srv, err := dhcp.NewServer(address.RootNode0, dhcp.Config{Store: store})
		if err != nil {
			t.Fatal(err)
		}
		lease, err := srv.Offer(dhcp.Request{RequestID: 1, Parent: address.RootNode0}, time.Now())
		if err != nil {
			t.Fatal(err)
		}

		restored, err := dhcp.NewServer(address.RootNode0, dhcp.Config{Store: store})
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := restored.Lookup(lease.Address); !ok {
			t.Errorf("lease %v not restored", lease.Address)
		}
	})
}

func TestSQLiteLeaseStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "leases.db")

	root0, err := OpenSQLite(ctx, path, address.RootNode0)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = root0.Close() }()

	got, err := root0.Load()
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len(leases) = %d, want 0", len(got))
	}

	if err := root0.Save(sampleLeases()); err != nil {
		t.Fatalf("save: %v", err)
	}

	root1, err := OpenSQLite(ctx, path, address.RootNode1)
	if err != nil {
		t.Fatalf("open second root: %v", err)
	}
	defer func() { _ = root1.Close() }()
	if err := root1.Save([]dhcp.Lease{{Address: address.RootNode1 + 1, Parent: address.RootNode1, ExpiresAt: t0}}); err != nil {
		t.Fatalf("save root1: %v", err)
	}

	got, err = root0.LoadContext(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(leases) = %d, want 2", len(got))
	}
	want := sampleLeases()
	for i := range want {
		if got[i].Address != want[i].Address || got[i].Parent != want[i].Parent || got[i].RequestID != want[i].RequestID {
			t.Errorf("leases[%d] = %+v, want %+v", i, got[i], want[i])
		}
		if !got[i].ExpiresAt.Equal(want[i].ExpiresAt) || !got[i].GrantedAt.Equal(want[i].GrantedAt) {
			t.Errorf("leases[%d] times = %v/%v", i, got[i].GrantedAt, got[i].ExpiresAt)
		}
	}

	// Saving replaces the table of one root only.
	if err := root0.Save(want[:1]); err != nil {
		t.Fatalf("save subset: %v", err)
	}
	got, _ = root0.Load()
	if len(got) != 1 {
		t.Errorf("len(leases) = %d, want 1", len(got))
	}
	other, _ := root1.Load()
	if len(other) != 1 {
		t.Errorf("root1 leases = %d, want 1", len(other))
	}
}
