package resourcestore_test

import (
	"errors"
	"strings"
	"testing"

	resourcestore "github.com/dalemusser/freshershub/internal/app/store/resources"
	"github.com/dalemusser/freshershub/internal/app/system/notify"
	"github.com/dalemusser/freshershub/internal/app/system/saga"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"github.com/dalemusser/freshershub/internal/testutil"
	"go.uber.org/zap"
)

func pdf(body string) *resourcestore.FileUpload {
	return &resourcestore.FileUpload{Name: "Notes.PDF", ContentType: "application/pdf", Size: int64(len(body)), Body: strings.NewReader(body)}
}

func TestValidateUpload(t *testing.T) {
	base := resourcestore.UploadInput{Title: "Week 1", DepartmentID: "d1"}

	tests := []struct {
		name      string
		typ       string
		url       string
		file      *resourcestore.FileUpload
		wantFile  bool
		wantURL   bool
		wantValid bool
	}{
		{"link without file", models.ResourceTypeLink, "https://example.com", nil, false, false, true},
		{"link without url", models.ResourceTypeLink, "", nil, false, true, false},
		{"link with bad url", models.ResourceTypeLink, "ftp://example.com", nil, false, true, false},
		{"pdf without file", models.ResourceTypePDF, "", nil, true, false, false},
		{"video without file", models.ResourceTypeVideo, "", nil, true, false, false},
		{"pdf with file", models.ResourceTypePDF, "", pdf("x"), false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			in.Type, in.URL, in.File = tt.typ, tt.url, tt.file
			res := resourcestore.ValidateUpload(in)
			if got := res.Field("file") != ""; got != tt.wantFile {
				t.Errorf("file error = %v, want %v (%s)", got, tt.wantFile, res.All())
			}
			if got := res.Field("url") != ""; got != tt.wantURL {
				t.Errorf("url error = %v, want %v (%s)", got, tt.wantURL, res.All())
			}
			if res.HasErrors() == tt.wantValid {
				t.Errorf("HasErrors = %v (%s)", res.HasErrors(), res.All())
			}
		})
	}
}

func TestValidateUpload_UnknownType(t *testing.T) {
	res := resourcestore.ValidateUpload(resourcestore.UploadInput{Title: "x", DepartmentID: "d", Type: "zip", File: pdf("x")})
	if res.Field("type") == "" {
		t.Errorf("expected type error, got %q", res.All())
	}
}

func TestUploadResource_LinkSkipsStorage(t *testing.T) {
	b := testutil.NewBackend(t)
	f := testutil.NewFixtures(t, b)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	dept := f.CreateDepartment(ctx, "CS", "Computer Science")
	uploader, sess := f.CreateAccount(ctx, "Ada Lovelace", "ada@example.com", models.RoleUser, dept.ID)
	store := resourcestore.New(f.Client(sess), zap.NewNop())

	out, err := store.UploadResource(ctx, resourcestore.UploadInput{
		Title: "Campus map", Type: models.ResourceTypeLink, DepartmentID: dept.ID, URL: "https://example.com/map",
	})
	if err != nil {
		t.Fatalf("UploadResource failed: %v", err)
	}
	up, _ := out.Report.Step(resourcestore.StepUpload)
	ins, _ := out.Report.Step(resourcestore.StepInsert)
	if up.Status != saga.StatusSkipped || ins.Status != saga.StatusOK {
		t.Errorf("steps = %+v", out.Report.Steps)
	}
	r := out.Resource
	if r.Status != models.StatusPending || r.Flow != models.FlowResources || r.UploaderID != uploader.ID {
		t.Errorf("unexpected resource: %+v", r)
	}
	if r.ContentURL != "https://example.com/map" || r.StoragePath != "" {
		t.Errorf("content = %q path = %q", r.ContentURL, r.StoragePath)
	}
	if n := f.CountRows(ctx, resourcestore.ResourcesTable, "_id", r.ID); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestUploadResource_StoresFileThenRow(t *testing.T) {
	b := testutil.NewBackend(t)
	f := testutil.NewFixtures(t, b)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	dept := f.CreateDepartment(ctx, "CS", "Computer Science")
	_, sess := f.CreateAccount(ctx, "Ada Lovelace", "ada@example.com", models.RoleUser, dept.ID)
	store := resourcestore.New(f.Client(sess), zap.NewNop())

	out, err := store.UploadResource(ctx, resourcestore.UploadInput{
		Title: "Notes", Type: models.ResourceTypePDF, DepartmentID: dept.ID, File: pdf("%PDF"),
	})
	if err != nil {
		t.Fatalf("UploadResource failed: %v", err)
	}
	r := out.Resource
	if !strings.HasPrefix(r.StoragePath, dept.ID+"/") || !strings.HasSuffix(r.StoragePath, ".pdf") {
		t.Errorf("storage path = %q", r.StoragePath)
	}
	if !b.Storage().Has(resourcestore.Bucket, r.StoragePath) {
		t.Error("expected file to be stored")
	}
	if r.ContentURL != b.Storage().PublicURL(resourcestore.Bucket, r.StoragePath) {
		t.Errorf("content url = %q", r.ContentURL)
	}
	if !out.Report.OK() || out.OrphanPath != "" {
		t.Errorf("report = %+v orphan = %q", out.Report, out.OrphanPath)
	}
}

func TestUploadResource_InsertFailureLeavesOrphan(t *testing.T) {
	b := testutil.NewBackend(t)
	f := testutil.NewFixtures(t, b)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	dept := f.CreateDepartment(ctx, "CS", "Computer Science")
	_, sess := f.CreateAccount(ctx, "Ada Lovelace", "ada@example.com", models.RoleUser, dept.ID)
	b.FailWrites(resourcestore.ResourcesTable, errors.New("write refused"))
	store := resourcestore.New(f.Client(sess), zap.NewNop())

	out, err := store.UploadResource(ctx, resourcestore.UploadInput{
		Title: "Notes", Type: models.ResourceTypePDF, DepartmentID: dept.ID, File: pdf("%PDF"),
	})
	if err == nil {
		t.Fatal("expected UploadResource to fail")
	}
	if out == nil || out.OrphanPath == "" {
		t.Fatalf("expected an orphan path, got %+v", out)
	}
	if !b.Storage().Has(resourcestore.Bucket, out.OrphanPath) {
		t.Error("orphaned file should remain until removed")
	}
	if failed := out.Report.Failed(); len(failed) != 1 || failed[0] != resourcestore.StepInsert {
		t.Errorf("failed steps = %v", failed)
	}
	if store.Snapshot().Error == "" {
		t.Error("expected error to be recorded")
	}

	if err := store.RemoveOrphan(ctx, out.OrphanPath); err != nil {
		t.Fatalf("RemoveOrphan failed: %v", err)
	}
	if b.Storage().Has(resourcestore.Bucket, out.OrphanPath) {
		t.Error("expected orphan to be removed")
	}
}

func TestUploadResource_StorageFailureSkipsInsert(t *testing.T) {
	b := testutil.NewBackend(t)
	f := testutil.NewFixtures(t, b)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	dept := f.CreateDepartment(ctx, "CS", "Computer Science")
	_, sess := f.CreateAccount(ctx, "Ada Lovelace", "ada@example.com", models.RoleUser, dept.ID)
	b.Storage().FailUploads(errors.New("bucket unavailable"))
	store := resourcestore.New(f.Client(sess), zap.NewNop())

	out, err := store.UploadResource(ctx, resourcestore.UploadInput{
		Title: "Notes", Type: models.ResourceTypePDF, DepartmentID: dept.ID, File: pdf("%PDF"),
	})
	if err == nil {
		t.Fatal("expected UploadResource to fail")
	}
	ins, _ := out.Report.Step(resourcestore.StepInsert)
	if ins.Status != saga.StatusSkipped {
		t.Errorf("insert status = %q, want skipped", ins.Status)
	}
	if n := b.InsertAttempts(resourcestore.ResourcesTable); n != 0 {
		t.Errorf("insert attempts = %d, want 0", n)
	}
	if out.OrphanPath != "" {
		t.Errorf("unexpected orphan %q", out.OrphanPath)
	}
}

func TestUploadResource_RequiresSessionAndValidInput(t *testing.T) {
	b := testutil.NewBackend(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := resourcestore.New(b.Client(), zap.NewNop())
	_, err := store.UploadResource(ctx, resourcestore.UploadInput{
		Title: "Map", Type: models.ResourceTypeLink, DepartmentID: "d1", URL: "https://example.com",
	})
	if !errors.Is(err, backend.ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}

	_, err = store.UploadResource(ctx, resourcestore.UploadInput{Title: "Notes", Type: models.ResourceTypePDF, DepartmentID: "d1"})
	if !errors.Is(err, resourcestore.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFetchResourcesByDepartment_ApprovedLibraryOnly(t *testing.T) {
	b := testutil.NewBackend(t)
	f := testutil.NewFixtures(t, b)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cs := f.CreateDepartment(ctx, "CS", "Computer Science")
	ee := f.CreateDepartment(ctx, "EE", "Electrical")
	want := f.CreateResource(ctx, cs.ID, "approved", models.ResourceTypePDF, models.FlowResources, models.StatusApproved)
	f.CreateResource(ctx, cs.ID, "pending", models.ResourceTypePDF, models.FlowResources, models.StatusPending)
	f.CreateResource(ctx, cs.ID, "orientation", models.ResourceTypePDF, models.FlowOrientation, models.StatusApproved)
	other := f.CreateResource(ctx, ee.ID, "other", models.ResourceTypePDF, models.FlowResources, models.StatusApproved)

	store := resourcestore.New(b.Client(), zap.NewNop())
	if err := store.FetchResourcesByDepartment(ctx, cs.ID); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if got := store.Resources(); len(got) != 1 || got[0].ID != want.ID {
		t.Fatalf("resources = %+v", got)
	}

	if err := store.FetchResourcesByDepartment(ctx, ee.ID); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if got := store.Resources(); len(got) != 1 || got[0].ID != other.ID {
		t.Fatalf("snapshot not replaced: %+v", got)
	}
}

func TestFetchMyResources_UsesOwnDepartment(t *testing.T) {
	b := testutil.NewBackend(t)
	f := testutil.NewFixtures(t, b)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cs := f.CreateDepartment(ctx, "CS", "Computer Science")
	ee := f.CreateDepartment(ctx, "EE", "Electrical")
	mine := f.CreateResource(ctx, cs.ID, "mine", models.ResourceTypePDF, models.FlowResources, models.StatusApproved)
	f.CreateResource(ctx, ee.ID, "theirs", models.ResourceTypePDF, models.FlowResources, models.StatusApproved)

	_, sess := f.CreateAccount(ctx, "Ada Lovelace", "ada@example.com", models.RoleUser, cs.ID)
	store := resourcestore.New(f.Client(sess), zap.NewNop())
	if err := store.FetchMyResources(ctx); err != nil {
		t.Fatalf("FetchMyResources failed: %v", err)
	}
	if got := store.Resources(); len(got) != 1 || got[0].ID != mine.ID {
		t.Fatalf("resources = %+v", got)
	}

	_, loose := f.CreateAccount(ctx, "No Dept", "nodept@example.com", models.RoleUser, "")
	store = resourcestore.New(f.Client(loose), zap.NewNop())
	if err := store.FetchMyResources(ctx); err != nil {
		t.Fatalf("FetchMyResources failed: %v", err)
	}
	if got := store.Resources(); len(got) != 0 {
		t.Errorf("expected nothing without a department, got %d", len(got))
	}
}

func TestFetchOrientationAndReview(t *testing.T) {
	b := testutil.NewBackend(t)
	f := testutil.NewFixtures(t, b)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cs := f.CreateDepartment(ctx, "CS", "Computer Science")
	orient := f.CreateResource(ctx, cs.ID, "welcome", models.ResourceTypeVideo, models.FlowOrientation, models.StatusApproved)
	pending := f.CreateResource(ctx, cs.ID, "pending", models.ResourceTypePDF, models.FlowResources, models.StatusPending)
	rejected := f.CreateResource(ctx, cs.ID, "rejected", models.ResourceTypePDF, models.FlowResources, models.StatusRejected)

	store := resourcestore.New(b.Client(), zap.NewNop())
	if err := store.FetchOrientation(ctx); err != nil {
		t.Fatalf("FetchOrientation failed: %v", err)
	}
	if got := store.Resources(); len(got) != 1 || got[0].ID != orient.ID {
		t.Errorf("orientation = %+v", got)
	}

	if err := store.FetchForReview(ctx, ""); err != nil {
		t.Fatalf("FetchForReview failed: %v", err)
	}
	if got := store.Resources(); len(got) != 1 || got[0].ID != pending.ID {
		t.Errorf("pending = %+v", got)
	}
	if err := store.FetchForReview(ctx, models.StatusRejected); err != nil {
		t.Fatalf("FetchForReview failed: %v", err)
	}
	if got := store.Resources(); len(got) != 1 || got[0].ID != rejected.ID {
		t.Errorf("rejected = %+v", got)
	}
	if err := store.FetchForReview(ctx, "archived"); !errors.Is(err, resourcestore.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestSetStatus_NotifiesUploader(t *testing.T) {
	b := testutil.NewBackend(t)
	f := testutil.NewFixtures(t, b)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cs := f.CreateDepartment(ctx, "CS", "Computer Science")
	uploader := f.CreateProfile(ctx, "Ada Lovelace", "ada@example.com", models.RoleUser, cs.ID)
	r := f.CreateResource(ctx, cs.ID, "notes", models.ResourceTypePDF, models.FlowResources, models.StatusPending)
	if _, err := b.Update(ctx, backend.From(resourcestore.ResourcesTable).Eq("_id", r.ID), backend.Set{"uploader_id": uploader.ID}); err != nil {
		t.Fatalf("seed uploader: %v", err)
	}

	store := resourcestore.New(b.Client(), zap.NewNop())
	if err := store.SetStatus(ctx, r.ID, models.StatusApproved); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if n := f.CountRows(ctx, resourcestore.ResourcesTable, "status", models.StatusApproved); n != 1 {
		t.Errorf("approved rows = %d, want 1", n)
	}
	if n := f.CountRows(ctx, notify.NotificationsTable, "user_id", uploader.ID); n != 1 {
		t.Errorf("notifications = %d, want 1", n)
	}

	if err := store.SetStatus(ctx, r.ID, "archived"); !errors.Is(err, resourcestore.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if err := store.SetStatus(ctx, "missing", models.StatusApproved); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetStatus_NotificationFailureDoesNotFail(t *testing.T) {
	b := testutil.NewBackend(t)
	f := testutil.NewFixtures(t, b)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cs := f.CreateDepartment(ctx, "CS", "Computer Science")
	r := f.CreateResource(ctx, cs.ID, "notes", models.ResourceTypePDF, models.FlowResources, models.StatusPending)
	if _, err := b.Update(ctx, backend.From(resourcestore.ResourcesTable).Eq("_id", r.ID), backend.Set{"uploader_id": "someone"}); err != nil {
		t.Fatalf("seed uploader: %v", err)
	}
	b.FailWrites(notify.NotificationsTable, errors.New("write refused"))

	store := resourcestore.New(b.Client(), zap.NewNop())
	if err := store.SetStatus(ctx, r.ID, models.StatusRejected); err != nil {
		t.Fatalf("SetStatus should ignore notification failure, got %v", err)
	}
	if b.InsertAttempts(notify.NotificationsTable) != 1 {
		t.Errorf("expected one notification attempt")
	}
}

func TestDeleteResource_RemovesStoredFile(t *testing.T) {
	b := testutil.NewBackend(t)
	f := testutil.NewFixtures(t, b)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	dept := f.CreateDepartment(ctx, "CS", "Computer Science")
	_, sess := f.CreateAccount(ctx, "Ada Lovelace", "ada@example.com", models.RoleUser, dept.ID)
	store := resourcestore.New(f.Client(sess), zap.NewNop())
	out, err := store.UploadResource(ctx, resourcestore.UploadInput{
		Title: "Notes", Type: models.ResourceTypePDF, DepartmentID: dept.ID, File: pdf("%PDF"),
	})
	if err != nil {
		t.Fatalf("UploadResource failed: %v", err)
	}

	if err := store.DeleteResource(ctx, out.Resource.ID); err != nil {
		t.Fatalf("DeleteResource failed: %v", err)
	}
	if b.Storage().Has(resourcestore.Bucket, out.Resource.StoragePath) {
		t.Error("expected stored file to be removed")
	}
	if n := f.CountRows(ctx, resourcestore.ResourcesTable, "_id", out.Resource.ID); n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}
	if err := store.DeleteResource(ctx, out.Resource.ID); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRecordDownload(t *testing.T) {
	b := testutil.NewBackend(t)
	f := testutil.NewFixtures(t, b)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cs := f.CreateDepartment(ctx, "CS", "Computer Science")
	r := f.CreateResource(ctx, cs.ID, "notes", models.ResourceTypePDF, models.FlowResources, models.StatusApproved)
	store := resourcestore.New(b.Client(), zap.NewNop())
	if err := store.FetchResourcesByDepartment(ctx, cs.ID); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := store.RecordDownload(ctx, r.ID); err != nil {
			t.Fatalf("RecordDownload failed: %v", err)
		}
	}
	if got := store.Resources()[0].Downloads; got != 3 {
		t.Errorf("snapshot downloads = %d, want 3", got)
	}
	if err := store.FetchResourcesByDepartment(ctx, cs.ID); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if got := store.Resources()[0].Downloads; got != 3 {
		t.Errorf("stored downloads = %d, want 3", got)
	}
	if err := store.RecordDownload(ctx, "missing"); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDepartments(t *testing.T) {
	b := testutil.NewBackend(t)
	f := testutil.NewFixtures(t, b)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := resourcestore.New(b.Client(), zap.NewNop())
	d, err := store.CreateDepartment(ctx, " me ", "Mechanical")
	if err != nil {
		t.Fatalf("CreateDepartment failed: %v", err)
	}
	if d.Code != "ME" {
		t.Errorf("code = %q, want ME", d.Code)
	}
	if _, err := store.CreateDepartment(ctx, "ME", "Duplicate"); !errors.Is(err, resourcestore.ErrDepartmentExists) {
		t.Errorf("expected ErrDepartmentExists, got %v", err)
	}
	if _, err := store.CreateDepartment(ctx, "", ""); !errors.Is(err, resourcestore.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := store.CreateDepartment(ctx, "AR", "Architecture"); err != nil {
		t.Fatalf("CreateDepartment failed: %v", err)
	}

	if err := store.FetchDepartments(ctx); err != nil {
		t.Fatalf("FetchDepartments failed: %v", err)
	}
	depts := store.Departments()
	if len(depts) != 2 || depts[0].Name != "Architecture" || depts[1].Name != "Mechanical" {
		t.Errorf("departments = %+v", depts)
	}

	f.CreateResource(ctx, d.ID, "gears", models.ResourceTypePDF, models.FlowResources, models.StatusApproved)
	if err := store.DeleteDepartment(ctx, d.ID); !errors.Is(err, resourcestore.ErrDepartmentInUse) {
		t.Errorf("expected ErrDepartmentInUse, got %v", err)
	}
	if err := store.DeleteDepartment(ctx, depts[0].ID); err != nil {
		t.Fatalf("DeleteDepartment failed: %v", err)
	}
	if got := store.Departments(); len(got) != 1 {
		t.Errorf("departments after delete = %+v", got)
	}
	if err := store.DeleteDepartment(ctx, "missing"); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteDepartment_RefetchFailureKeepsWrite(t *testing.T) {
	b := testutil.NewBackend(t)
	f := testutil.NewFixtures(t, b)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	store := resourcestore.New(b.Client(), zap.NewNop())
	d, err := store.CreateDepartment(ctx, "CS", "Computer Science")
	if err != nil {
		t.Fatalf("CreateDepartment failed: %v", err)
	}
	b.FailReads(resourcestore.DepartmentsTable, errors.New("read timeout"))

	if err := store.DeleteDepartment(ctx, d.ID); err != nil {
		t.Fatalf("DeleteDepartment failed: %v", err)
	}
	if st := store.Snapshot(); st.Loading || !strings.Contains(st.Error, "read timeout") {
		t.Errorf("unexpected state: loading=%v error=%q", st.Loading, st.Error)
	}

	b.FailReads(resourcestore.DepartmentsTable, nil)
	if n := f.CountRows(ctx, resourcestore.DepartmentsTable, "", nil); n != 0 {
		t.Errorf("rows = %d, want 0", n)
	}
}
