package writer_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LearnedVector/denoising-wavenet/writer"
)

func TestAddScalarAndClose(t *testing.T) {
	dir := t.TempDir()
	w, err := writer.NewLogWriter(dir, 16000)
	if err != nil {
		t.Fatalf("NewLogWriter failed: %v", err)
	}

	if err := w.AddScalar("loss/train", 1.25, 0); err != nil {
		t.Fatalf("AddScalar failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "scalars.csv"))
	if err != nil {
		t.Fatalf("reading scalar file failed: %v", err)
	}
	if !strings.Contains(string(raw), "loss/train,0,1.25") {
		t.Errorf("scalar record missing, got %q", string(raw))
	}
}

func TestWriteOneExportsAndFlagsReuse(t *testing.T) {
	dir := t.TempDir()
	w, err := writer.NewLogWriter(dir, 16000)
	if err != nil {
		t.Fatalf("NewLogWriter failed: %v", err)
	}
	defer w.Close()

	if w.ReusedSample() {
		t.Fatalf("fresh writer reports a reused sample")
	}

	arrays := map[string][][]float64{
		"out": {{0.1, 0.2, 0.3}},
		"x":   {{0.2, 0.3, 0.4}},
		"y":   {{0.1, 0.2, 0.3}},
	}
	measure, err := w.WriteOne(0, arrays)
	if err != nil {
		t.Fatalf("WriteOne failed: %v", err)
	}
	if len(measure) != 2 {
		t.Fatalf("expected 2 measure entries, got %v", measure)
	}

	for _, name := range []string{"out_0.wav", "x_0.wav", "y_0.wav"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected exported file %s: %v", name, err)
		}
	}

	if !w.ReusedSample() {
		t.Errorf("writer should report the sample as reused after a raw export")
	}

	// A subsequent output-only export produces no measure for the
	// missing target and leaves the reuse flag set.
	if _, err := w.WriteOne(1, map[string][][]float64{"out": {{0.5}}}); err != nil {
		t.Fatalf("output-only WriteOne failed: %v", err)
	}
	if !w.ReusedSample() {
		t.Errorf("reuse flag lost after output-only export")
	}
}

func TestAddText(t *testing.T) {
	dir := t.TempDir()
	w, err := writer.NewLogWriter(dir, 16000)
	if err != nil {
		t.Fatalf("NewLogWriter failed: %v", err)
	}
	defer w.Close()

	if err := w.AddText("test/Average Measure", "hello"); err != nil {
		t.Fatalf("AddText failed: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "test_Average Measure.txt"))
	if err != nil {
		t.Fatalf("reading text file failed: %v", err)
	}
	if string(raw) != "hello" {
		t.Errorf("text content %q, expected %q", string(raw), "hello")
	}
}
