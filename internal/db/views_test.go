package db

import (
	"errors"
	"testing"
)

func TestSaveViews_LoadAndOverwrite(t *testing.T) {
	ds := setupTestDataset(t)

	err := ds.SaveViews(
		SavedView{Name: "flagged", Kind: ViewSelect, ItemIDs: []string{"a", "b"}},
		SavedView{Name: "grouped", Kind: ViewGroupBy, GroupField: "duplicate_group_id", ItemIDs: []string{"a", "b"}},
	)
	if err != nil {
		t.Fatalf("SaveViews: %v", err)
	}

	v, err := ds.LoadView("grouped")
	if err != nil {
		t.Fatalf("LoadView: %v", err)
	}
	if v.Kind != ViewGroupBy || v.GroupField != "duplicate_group_id" || len(v.ItemIDs) != 2 {
		t.Errorf("unexpected view: %+v", v)
	}

	if err := ds.SaveViews(SavedView{Name: "flagged", Kind: ViewSelect, ItemIDs: []string{"c"}}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	v, err = ds.LoadView("flagged")
	if err != nil {
		t.Fatal(err)
	}
	if len(v.ItemIDs) != 1 || v.ItemIDs[0] != "c" {
		t.Errorf("expected overwritten ids [c], got %v", v.ItemIDs)
	}

	names, err := ds.ListViews()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "flagged" || names[1] != "grouped" {
		t.Errorf("unexpected view names: %v", names)
	}
}

func TestSaveViews_EmptyNameRollsBack(t *testing.T) {
	ds := setupTestDataset(t)
	err := ds.SaveViews(
		SavedView{Name: "ok", Kind: ViewSelect},
		SavedView{Name: "", Kind: ViewSelect},
	)
	if err == nil {
		t.Fatal("expected error for empty name")
	}
	has, err := ds.HasView("ok")
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Error("partial write should have been rolled back")
	}
}

func TestLoadView_NotFound(t *testing.T) {
	ds := setupTestDataset(t)
	if _, err := ds.LoadView("never"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteView(t *testing.T) {
	ds := setupTestDataset(t)
	if err := ds.SaveViews(SavedView{Name: "v", Kind: ViewSelect, ItemIDs: []string{"x"}}); err != nil {
		t.Fatal(err)
	}
	if err := ds.DeleteView("v"); err != nil {
		t.Fatalf("DeleteView: %v", err)
	}
	if err := ds.DeleteView("v"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestViews_ScopedToDataset(t *testing.T) {
	ds := setupTestDataset(t)
	other, err := ds.db.CreateDataset("other")
	if err != nil {
		t.Fatal(err)
	}
	if err := ds.SaveViews(SavedView{Name: "v", Kind: ViewSelect}); err != nil {
		t.Fatal(err)
	}
	has, err := other.HasView("v")
	if err != nil {
		t.Fatal(err)
	}
	if has {
		t.Error("view leaked into another dataset")
	}
}

func TestDeleteDataset_Cascades(t *testing.T) {
	ds := setupTestDataset(t)
	if _, err := ds.AddItem("/a.jpg", nil); err != nil {
		t.Fatal(err)
	}
	if err := ds.SaveViews(SavedView{Name: "v", Kind: ViewSelect}); err != nil {
		t.Fatal(err)
	}
	if err := ds.SaveSimilarityRun(SimilarityRun{Key: "sim", Metric: "cosine", NumItems: 1}); err != nil {
		t.Fatal(err)
	}

	if err := ds.db.DeleteDataset("test"); err != nil {
		t.Fatalf("DeleteDataset: %v", err)
	}
	exists, err := ds.db.DatasetExists("test")
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("dataset still exists")
	}

	recreated, err := ds.db.CreateDataset("test")
	if err != nil {
		t.Fatal(err)
	}
	if n, _ := recreated.Count(); n != 0 {
		t.Errorf("expected empty recreated dataset, got %d items", n)
	}
	if _, err := recreated.LoadSimilarityRun("sim"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected similarity run gone, got %v", err)
	}
}

func TestOpenDataset_NotFound(t *testing.T) {
	ds := setupTestDataset(t)
	if _, err := ds.db.OpenDataset("nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	got, err := ds.db.OpenOrCreateDataset("nope")
	if err != nil {
		t.Fatalf("OpenOrCreateDataset: %v", err)
	}
	if got.Name != "nope" {
		t.Errorf("unexpected name %s", got.Name)
	}
}
