package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/nvandessel/co2twin/internal/dataset"
	"github.com/nvandessel/co2twin/internal/sector"
)

func openTestLibrary(t *testing.T) *Library {
	t.Helper()
	lib, err := Open(filepath.Join(t.TempDir(), "lib", "co2twin.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { lib.Close() })
	lib.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return lib
}

func TestOpen_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "co2twin.db")
	lib, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer lib.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file was not created: %v", err)
	}
	if lib.Path() != path {
		t.Errorf("Path() = %q, want %q", lib.Path(), path)
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "co2twin.db")
	ctx := context.Background()

	lib, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	ds := &dataset.Dataset{City: "Delhi", Sectors: sector.Values{"transport": 1200}, Order: []string{"transport"}}
	if err := lib.PutDataset(ctx, "delhi", ds); err != nil {
		t.Fatal(err)
	}
	lib.Close()

	lib, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer lib.Close()

	got, err := lib.GetDataset(ctx, "delhi")
	if err != nil {
		t.Fatalf("GetDataset after reopen: %v", err)
	}
	if got.City != "Delhi" {
		t.Errorf("City = %q, want Delhi", got.City)
	}
}

func TestLibrary_Datasets(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()

	delhi := &dataset.Dataset{
		City:    "Delhi",
		Sectors: sector.Values{"transport": 1200, "energy": 2200, "industry": 1500},
		Order:   []string{"transport", "energy", "industry"},
	}
	if err := lib.PutDataset(ctx, "delhi", delhi); err != nil {
		t.Fatalf("PutDataset() error = %v", err)
	}
	oslo := &dataset.Dataset{City: "Oslo", Sectors: sector.Values{"power": 10}}
	if err := lib.PutDataset(ctx, "oslo", oslo); err != nil {
		t.Fatalf("PutDataset() error = %v", err)
	}

	got, err := lib.GetDataset(ctx, "delhi")
	if err != nil {
		t.Fatalf("GetDataset() error = %v", err)
	}
	if diff := cmp.Diff(delhi, got); diff != "" {
		t.Errorf("GetDataset mismatch (-want +got):\n%s", diff)
	}

	infos, err := lib.ListDatasets(ctx)
	if err != nil {
		t.Fatalf("ListDatasets() error = %v", err)
	}
	wantInfos := []DatasetInfo{
		{Name: "delhi", City: "Delhi", Sectors: 3, ImportedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		{Name: "oslo", City: "Oslo", Sectors: 1, ImportedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	if diff := cmp.Diff(wantInfos, infos); diff != "" {
		t.Errorf("ListDatasets mismatch (-want +got):\n%s", diff)
	}

	names, err := lib.DatasetNames(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"delhi", "oslo"}, names); diff != "" {
		t.Errorf("DatasetNames mismatch (-want +got):\n%s", diff)
	}
}

func TestLibrary_PutDatasetReplaces(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()

	first := &dataset.Dataset{City: "A", Sectors: sector.Values{"x": 1, "y": 2}, Order: []string{"x", "y"}}
	second := &dataset.Dataset{City: "B", Sectors: sector.Values{"z": 3}, Order: []string{"z"}}

	if err := lib.PutDataset(ctx, "city", first); err != nil {
		t.Fatal(err)
	}
	if err := lib.PutDataset(ctx, "city", second); err != nil {
		t.Fatal(err)
	}

	got, err := lib.GetDataset(ctx, "city")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(second, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestLibrary_DeleteDataset(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()

	ds := &dataset.Dataset{City: "A", Sectors: sector.Values{"x": 1}, Order: []string{"x"}}
	if err := lib.PutDataset(ctx, "a", ds); err != nil {
		t.Fatal(err)
	}
	if err := lib.DeleteDataset(ctx, "a"); err != nil {
		t.Fatalf("DeleteDataset() error = %v", err)
	}
	if _, err := lib.GetDataset(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDataset after delete error = %v, want ErrNotFound", err)
	}
	if err := lib.DeleteDataset(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteDataset error = %v, want ErrNotFound", err)
	}
}

func TestLibrary_PutDatasetValidation(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()

	if err := lib.PutDataset(ctx, "", &dataset.Dataset{}); err == nil {
		t.Error("expected error for empty name")
	}
	if err := lib.PutDataset(ctx, "x", nil); err == nil {
		t.Error("expected error for nil dataset")
	}
}

func TestLibrary_Graphs(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()

	g := sector.DefaultGraph()
	if err := lib.PutGraph(ctx, "default", g); err != nil {
		t.Fatalf("PutGraph() error = %v", err)
	}

	got, err := lib.GetGraph(ctx, "default")
	if err != nil {
		t.Fatalf("GetGraph() error = %v", err)
	}
	if diff := cmp.Diff(g.Map(), got.Map()); diff != "" {
		t.Errorf("graph mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(g.Sources(), got.Sources()); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}

	if err := lib.PutGraph(ctx, "empty", sector.NewGraph(nil)); err != nil {
		t.Fatal(err)
	}

	infos, err := lib.ListGraphs(ctx)
	if err != nil {
		t.Fatalf("ListGraphs() error = %v", err)
	}
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := []GraphInfo{
		{Name: "default", Edges: 4, CreatedAt: created},
		{Name: "empty", Edges: 0, CreatedAt: created},
	}
	if diff := cmp.Diff(want, infos); diff != "" {
		t.Errorf("ListGraphs mismatch (-want +got):\n%s", diff)
	}
}

func TestLibrary_PutGraphReplaces(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()

	if err := lib.PutGraph(ctx, "p", sector.DefaultGraph()); err != nil {
		t.Fatal(err)
	}
	replacement := sector.NewGraph(map[string]map[string]float64{"a": {"b": 0.1}})
	if err := lib.PutGraph(ctx, "p", replacement); err != nil {
		t.Fatal(err)
	}

	got, err := lib.GetGraph(ctx, "p")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(replacement.Map(), got.Map()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestLibrary_DeleteGraph(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()

	if err := lib.PutGraph(ctx, "p", sector.DefaultGraph()); err != nil {
		t.Fatal(err)
	}
	if err := lib.DeleteGraph(ctx, "p"); err != nil {
		t.Fatalf("DeleteGraph() error = %v", err)
	}
	if _, err := lib.GetGraph(ctx, "p"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetGraph after delete error = %v, want ErrNotFound", err)
	}
	if err := lib.DeleteGraph(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteGraph(missing) error = %v, want ErrNotFound", err)
	}
}

func TestLibrary_NotFound(t *testing.T) {
	lib := openTestLibrary(t)
	ctx := context.Background()

	if _, err := lib.GetDataset(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDataset error = %v, want ErrNotFound", err)
	}
	if _, err := lib.GetGraph(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetGraph error = %v, want ErrNotFound", err)
	}
}

func TestValidateIntegrity(t *testing.T) {
	lib := openTestLibrary(t)
	if err := ValidateIntegrity(context.Background(), lib.db); err != nil {
		t.Errorf("ValidateIntegrity() error = %v", err)
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "co2twin.db")
	lib, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lib.db.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion+1); err != nil {
		t.Fatal(err)
	}
	lib.Close()

	if lib, err := Open(path); err == nil {
		lib.Close()
		t.Fatal("Open() succeeded on a library from a newer version")
	}
}
