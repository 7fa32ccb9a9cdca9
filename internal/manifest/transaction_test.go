package manifest

import (
	"errors"
	"os"
	"testing"

	"github.com/Faultbox/vibble/pkg/jsonutil"
)

func TestBeginMissingWithoutCreate(t *testing.T) {
	s := newTestStore(t, "")

	if _, err := s.BeginAssetEdit("nothing", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.BeginAssetTransaction("", true); !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
}

func TestEditSessionCommit(t *testing.T) {
	s := newTestStore(t, "")

	flushed := 0
	s.OnFlush(func() { flushed++ })

	edit, err := s.BeginAssetEdit("lamp", true)
	if err != nil {
		t.Fatalf("BeginAssetEdit failed: %v", err)
	}
	edit.Draft()["asset_type"] = "object"
	if !edit.Commit() {
		t.Fatal("expected commit to succeed")
	}
	if edit.Commit() {
		t.Error("expected second commit on a closed session to fail")
	}
	if flushed != 1 {
		t.Errorf("expected 1 flush notification, got %d", flushed)
	}

	entry, ok := s.Asset("lamp")
	if !ok {
		t.Fatal("expected lamp asset")
	}
	if entry["asset_type"] != "object" || entry["asset_name"] != "lamp" {
		t.Errorf("unexpected entry %v", entry)
	}
	doc := readFile(t, s.Path())
	assets, _ := jsonutil.GetObject(doc, "assets")
	if _, ok := assets["lamp"]; !ok {
		t.Error("expected lamp on disk")
	}
}

func TestEditSessionResolvesCase(t *testing.T) {
	s := newTestStore(t, `{"version": 1, "maps": {}, "assets": {"Lamp": {"asset_name": "Lamp"}}}`)

	edit, err := s.BeginAssetEdit("lamp", false)
	if err != nil {
		t.Fatalf("BeginAssetEdit failed: %v", err)
	}
	if edit.Key() != "Lamp" {
		t.Errorf("expected key Lamp, got %s", edit.Key())
	}
}

func TestTransactionCancel(t *testing.T) {
	s := newTestStore(t, "")

	tx, err := s.BeginAssetTransaction("barrel", true)
	if err != nil {
		t.Fatalf("BeginAssetTransaction failed: %v", err)
	}
	tx.Draft()["tags"] = []any{"wood"}
	tx.Cancel()

	if _, ok := s.Asset("barrel"); ok {
		t.Error("expected cancelled draft to be discarded")
	}
	if tx.Finalize() {
		t.Error("expected finalize after cancel to fail")
	}
}

func TestTransactionSaveThenFinalize(t *testing.T) {
	s := newTestStore(t, "")

	tx, err := s.BeginMapTransaction("forest", true)
	if err != nil {
		t.Fatalf("BeginMapTransaction failed: %v", err)
	}
	tx.Draft()["map_layers"] = []any{}
	if !tx.Save() {
		t.Fatal("expected partial save to succeed")
	}
	if tx.Closed() {
		t.Error("expected transaction to stay open after Save")
	}
	if _, ok := s.FindMap("forest"); !ok {
		t.Error("expected partial save to be visible")
	}

	tx.Draft()["content_root"] = "maps/forest"
	if !tx.Finalize() {
		t.Fatal("expected finalize to succeed")
	}
	entry, _ := s.FindMap("forest")
	if entry["content_root"] != "maps/forest" {
		t.Errorf("expected content_root, got %v", entry["content_root"])
	}
}

func TestCommitFailurePreservesDraft(t *testing.T) {
	s := newTestStore(t, `{"version": 1, "maps": {}, "assets": {"tree": {"asset_name": "tree", "z_threshold": 1}}}`)

	// A directory at the temp path makes the write fail.
	if err := os.Mkdir(s.Path()+".tmp", 0755); err != nil {
		t.Fatalf("failed to block temp path: %v", err)
	}

	tx, err := s.BeginAssetTransaction("tree", false)
	if err != nil {
		t.Fatalf("BeginAssetTransaction failed: %v", err)
	}
	tx.Draft()["z_threshold"] = 9
	if tx.Finalize() {
		t.Fatal("expected finalize to fail")
	}
	if tx.Closed() {
		t.Error("expected transaction to remain open for retry")
	}
	if tx.Draft()["z_threshold"] != 9 {
		t.Error("expected draft to be preserved")
	}
	entry, _ := s.Asset("tree")
	if jsonutil.Int(entry, "z_threshold", 0) != 1 {
		t.Errorf("expected store to keep the old value, got %v", entry["z_threshold"])
	}

	if err := os.RemoveAll(s.Path() + ".tmp"); err != nil {
		t.Fatal(err)
	}
	if !tx.Finalize() {
		t.Fatal("expected retry to succeed")
	}
	entry, _ = s.Asset("tree")
	if jsonutil.Int(entry, "z_threshold", 0) != 9 {
		t.Errorf("expected z_threshold 9 after retry, got %v", entry["z_threshold"])
	}
}
