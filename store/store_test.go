package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jianghu-lite/internal/config"
	"jianghu-lite/jianghu"
	"jianghu-lite/savegame"
)

func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := st.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := st.Set(ctx, "k", []byte("v1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := st.Set(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, ok, err := st.Get(ctx, "k")
	if err != nil || !ok || string(got) != "v2" {
		t.Fatalf("Get = %q %v %v", got, ok, err)
	}
	if err := st.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok, _ := st.Get(ctx, "k"); ok {
		t.Fatal("key survived Remove")
	}
	if err := st.Remove(ctx, "k"); err != nil {
		t.Fatalf("second Remove: %v", err)
	}

	now := time.Now().UTC()
	snap := &savegame.Snapshot{
		Phase:     savegame.PhasePlaying,
		Timestamp: now,
		Session:   jianghu.NewSessionState(10, now),
		Player:    jianghu.NewPlayer().Export(),
	}
	snap.Session.CurrentRound = 3
	if err := savegame.Save(ctx, st, snap); err != nil {
		t.Fatalf("savegame.Save: %v", err)
	}
	loaded, err := savegame.Load(ctx, st, now, savegame.DefaultTTL)
	if err != nil {
		t.Fatalf("savegame.Load: %v", err)
	}
	if loaded.Session.CurrentRound != 3 || loaded.Checksum != snap.Checksum {
		t.Fatalf("loaded: %+v", loaded)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "saves.db")
	st, err := NewSQLite(path, 0)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer st.Close()
	exerciseStore(t, st)

	// data survives reopen
	_ = st.Set(context.Background(), "persist", []byte("yes"))
	_ = st.Close()
	again, err := NewSQLite(path, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer again.Close()
	if v, ok, _ := again.Get(context.Background(), "persist"); !ok || string(v) != "yes" {
		t.Fatalf("after reopen: %q %v", v, ok)
	}
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("JIANGHU_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("JIANGHU_TEST_POSTGRES_DSN not set")
	}
	st, err := NewPostgres(dsn, 0)
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer st.Close()
	exerciseStore(t, st)
}

func TestNewFromConfig(t *testing.T) {
	st, mode, err := NewFromConfig(config.Config{Store: "mem"})
	if err != nil || mode != config.StoreMemory {
		t.Fatalf("memory: %v %s", err, mode)
	}
	_ = st.Close()

	st, mode, err = NewFromConfig(config.Config{Store: "local", SQLitePath: filepath.Join(t.TempDir(), "a.db")})
	if err != nil || mode != config.StoreSQLite {
		t.Fatalf("sqlite: %v %s", err, mode)
	}
	_ = st.Close()

	if _, _, err := NewFromConfig(config.Config{Store: "redis"}); err == nil {
		t.Fatal("unknown mode accepted")
	}
	if _, err := NewSQLite("  ", 0); err == nil {
		t.Fatal("empty path accepted")
	}
}
