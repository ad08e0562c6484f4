package dataloader

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cmgvisor/internal/config"
	"cmgvisor/internal/services/normalize"
	"cmgvisor/internal/services/storage"
	"cmgvisor/internal/services/workbook"
	"cmgvisor/internal/testutil"
)

var day = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newLoader(t *testing.T, dir string) (*DataLoader, *storage.Storage) {
	t.Helper()
	store, err := storage.New(dir)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig: %v", err)
	}
	return New(store, opts), store
}

func TestLoadDataSampleWorkbook(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteSampleWorkbook(t, dir, day, 20)
	dl, _ := newLoader(t, dir)

	ds, err := dl.LoadData(3)
	if err != nil {
		t.Fatalf("LoadData: %v", err)
	}

	if ds.ID == "" || ds.Generation != 3 || ds.SourceFile != "Fuente.xlsx" {
		t.Errorf("dataset header = %q/%d/%q", ds.ID, ds.Generation, ds.SourceFile)
	}
	if errs := ds.Errors(); len(errs) != 0 {
		t.Fatalf("unexpected source errors: %v", errs)
	}

	if got := ds.Cost.PDO.Len(); got != 96 {
		t.Errorf("PDO records = %d, want 96", got)
	}
	if got := ds.Cost.PDOBarras; len(got) != 2 || got[0] != "Santa Rosa" || got[1] != "Chavarria" {
		t.Errorf("PDO barras = %v", got)
	}
	if got := ds.Cost.COSBarras; len(got) != 2 || got[1] != "Oroya" {
		t.Errorf("COS barras = %v", got)
	}
	if got := ds.Barras(); len(got) != 3 {
		t.Errorf("catalog = %v, want 3 barras", got)
	}

	// Entity-major order: the first 48 records are Santa Rosa slots.
	first, last := ds.Cost.PDO.Records[0], ds.Cost.PDO.Records[47]
	if first.Barra != "Santa Rosa" || !first.DateTime.Equal(day) || first.Valor != 100 {
		t.Errorf("first PDO record = %+v", first)
	}
	if last.Barra != "Santa Rosa" || !last.DateTime.Equal(day.Add(47*30*time.Minute)) {
		t.Errorf("48th PDO record = %+v", last)
	}

	if got := ds.Flow.Measured.Len(); got != 20 {
		t.Errorf("measured records = %d, want 20", got)
	}
	if got := ds.Flow.Forecast.Len(); got != 24 {
		t.Errorf("forecast records = %d, want 24", got)
	}
	m := ds.Flow.Measured.Records[3]
	if !m.DateTime.Equal(day.Add(3*time.Hour)) || m.Valor != 21.5 {
		t.Errorf("measured[3] = %+v", m)
	}
	if ds.Flow.Status.RowsRead != 24 || ds.Cost.PDOStatus.RowsRead != 48 {
		t.Errorf("status rows = %d/%d", ds.Flow.Status.RowsRead, ds.Cost.PDOStatus.RowsRead)
	}
}

func TestLoadDataFlowSchemaError(t *testing.T) {
	dir := t.TempDir()
	sheets := testutil.SampleSheets(day, 5)
	// Drop the forecast column from the flow sheet.
	for i, row := range sheets[2].Rows {
		sheets[2].Rows[i] = row[:3]
	}
	testutil.WriteWorkbook(t, filepath.Join(dir, "Fuente.xlsx"), sheets...)
	dl, _ := newLoader(t, dir)

	ds, err := dl.LoadData(0)
	if err != nil {
		t.Fatalf("LoadData: %v", err)
	}

	var se *normalize.SchemaError
	if !errors.As(ds.Flow.Err, &se) || !errors.Is(ds.Flow.Err, normalize.ErrMissingColumn) {
		t.Fatalf("flow error = %v, want missing column schema error", ds.Flow.Err)
	}
	if ds.Flow.Status.OK() {
		t.Error("flow status should carry the error")
	}
	if ds.Flow.Measured != nil || ds.Flow.Forecast != nil {
		t.Error("no flow series may be produced after a schema error")
	}
	if ds.Cost.Err != nil || ds.Cost.PDO.Len() == 0 {
		t.Errorf("cost source should still load: err=%v", ds.Cost.Err)
	}
}

func TestLoadDataAmbiguousMeasuredColumn(t *testing.T) {
	dir := t.TempDir()
	sheets := testutil.SampleSheets(day, 5)
	sheets[2].Rows[0] = []interface{}{"Fecha", "Hora", "Caudal Medido", "Proyección", "Medido Anterior"}
	testutil.WriteWorkbook(t, filepath.Join(dir, "Fuente.xlsx"), sheets...)
	dl, _ := newLoader(t, dir)

	ds, err := dl.LoadData(0)
	if err != nil {
		t.Fatalf("LoadData: %v", err)
	}
	if !errors.Is(ds.Flow.Err, normalize.ErrAmbiguousColumn) {
		t.Errorf("flow error = %v, want ErrAmbiguousColumn", ds.Flow.Err)
	}
}

func TestLoadDataMissingSheet(t *testing.T) {
	dir := t.TempDir()
	sheets := testutil.SampleSheets(day, 5)
	testutil.WriteWorkbook(t, filepath.Join(dir, "Fuente.xlsx"), sheets[0], sheets[2])
	dl, _ := newLoader(t, dir)

	ds, err := dl.LoadData(0)
	if err != nil {
		t.Fatalf("LoadData: %v", err)
	}
	if !errors.Is(ds.Cost.Err, workbook.ErrSheetNotFound) {
		t.Errorf("cost error = %v, want ErrSheetNotFound", ds.Cost.Err)
	}
	if ds.Cost.PDO.Len() != 96 || ds.Cost.COS.Len() != 0 {
		t.Errorf("PDO/COS = %d/%d, want 96/0", ds.Cost.PDO.Len(), ds.Cost.COS.Len())
	}
	if ds.Cost.COSStatus.OK() || !ds.Cost.PDOStatus.OK() {
		t.Errorf("statuses = %+v / %+v", ds.Cost.PDOStatus, ds.Cost.COSStatus)
	}
}

func TestLoadDataDropsBadRows(t *testing.T) {
	dir := t.TempDir()
	sheets := testutil.SampleSheets(day, 24)
	sheets[0].Rows[2][0] = "not a date"
	sheets[0].Rows[3][1] = "n/a"
	testutil.WriteWorkbook(t, filepath.Join(dir, "Fuente.xlsx"), sheets...)
	dl, _ := newLoader(t, dir)

	ds, err := dl.LoadData(0)
	if err != nil {
		t.Fatalf("LoadData: %v", err)
	}
	if ds.Cost.PDOStatus.RowsDropped != 1 {
		t.Errorf("rows dropped = %d, want 1", ds.Cost.PDOStatus.RowsDropped)
	}
	// 47 dated rows x 2 barras, minus one non-numeric cell.
	if got := ds.Cost.PDO.Len(); got != 93 {
		t.Errorf("PDO records = %d, want 93", got)
	}
}

func TestLoadDataUnreadableWorkbook(t *testing.T) {
	dl, _ := newLoader(t, t.TempDir())
	if _, err := dl.LoadData(0); err == nil {
		t.Error("expected an error for a missing workbook")
	}
}

func TestLoadDataEncryptedStorage(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteSampleWorkbook(t, dir, day, 10)
	dl, store := newLoader(t, dir)

	if err := store.EnableEncryption("visor-password"); err != nil {
		t.Fatalf("EnableEncryption: %v", err)
	}
	ds, err := dl.LoadData(0)
	if err != nil {
		t.Fatalf("LoadData on unlocked storage: %v", err)
	}
	if ds.Flow.Measured.Len() != 10 {
		t.Errorf("measured records = %d, want 10", ds.Flow.Measured.Len())
	}

	store.Lock()
	if _, err := dl.LoadData(0); !errors.Is(err, storage.ErrLocked) {
		t.Errorf("err = %v, want ErrLocked", err)
	}
}

func TestSourceInfo(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteSampleWorkbook(t, dir, day, 10)
	dl, _ := newLoader(t, dir)

	info, err := dl.SourceInfo()
	if err != nil {
		t.Fatalf("SourceInfo: %v", err)
	}
	if info.Name != "Fuente.xlsx" || info.Size == 0 || info.Encrypted {
		t.Errorf("info = %+v", info)
	}
	if len(info.Sheets) != 3 || info.Sheets[2] != "Hidro-ELP" {
		t.Errorf("sheets = %v", info.Sheets)
	}
}
