package store

import (
	"testing"
	"time"

	"github.com/dukerupert/katalog/internal/model"
)

func TestExportLifecycle(t *testing.T) {
	es := NewExportStore(setupTestDB(t))

	e, err := es.Create("katalog-20260101.enc", "exports/katalog-20260101.enc")
	if err != nil {
		t.Fatalf("create export: %v", err)
	}
	if e.Status != model.ExportStatusPending {
		t.Errorf("status = %q, want %q", e.Status, model.ExportStatusPending)
	}

	if err := es.UpdateStatus(e.ID, model.ExportStatusUploading, ""); err != nil {
		t.Fatalf("update status: %v", err)
	}
	if err := es.UpdateCompleted(e.ID, 1234, 7); err != nil {
		t.Fatalf("update completed: %v", err)
	}

	got, err := es.GetByID(e.ID)
	if err != nil {
		t.Fatalf("get export: %v", err)
	}
	if got.Status != model.ExportStatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.SizeBytes != 1234 || got.Documents != 7 {
		t.Errorf("size/documents = %d/%d, want 1234/7", got.SizeBytes, got.Documents)
	}
	if got.CompletedAt == nil {
		t.Error("expected completed_at")
	}

	latest, err := es.LatestCompleted()
	if err != nil {
		t.Fatalf("latest completed: %v", err)
	}
	if latest == nil || latest.ID != e.ID {
		t.Errorf("latest = %+v, want export %d", latest, e.ID)
	}
}

func TestExportFailed(t *testing.T) {
	es := NewExportStore(setupTestDB(t))

	e, err := es.Create("f", "k")
	if err != nil {
		t.Fatalf("create export: %v", err)
	}
	if err := es.UpdateStatus(e.ID, model.ExportStatusFailed, "upload: boom"); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err := es.GetByID(e.ID)
	if err != nil {
		t.Fatalf("get export: %v", err)
	}
	if got.ErrorMessage != "upload: boom" {
		t.Errorf("error = %q, want %q", got.ErrorMessage, "upload: boom")
	}
	latest, err := es.LatestCompleted()
	if err != nil {
		t.Fatalf("latest completed: %v", err)
	}
	if latest != nil {
		t.Errorf("expected no completed export, got %+v", latest)
	}
}

func TestExportDeleteOlderThan(t *testing.T) {
	es := NewExportStore(setupTestDB(t))

	for _, key := range []string{"a", "b"} {
		if _, err := es.Create(key, "exports/"+key); err != nil {
			t.Fatalf("create export: %v", err)
		}
	}

	keys, err := es.DeleteOlderThan(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("delete older than: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("deleted %v, want none", keys)
	}

	keys, err = es.DeleteOlderThan(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("delete older than: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("deleted %v, want 2 keys", keys)
	}
	list, err := es.List(10)
	if err != nil {
		t.Fatalf("list exports: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("len(list) = %d, want 0", len(list))
	}
}
