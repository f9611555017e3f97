// Package writer persists training metrics and inspection samples to
// a log directory: scalar series as CSV, free text as files, and
// waveform arrays as 16-bit WAV.
package writer

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"gonum.org/v1/gonum/floats"
)

// Writer is the metric and sample sink the trainer reports through.
type Writer interface {
	AddScalar(tag string, value float64, step int) error
	// WriteOne exports one named group of channels x time waveform
	// arrays for the given step and returns an optional measure
	// vector over them.
	WriteOne(step int, arrays map[string][][]float64) ([]float64, error)
	AddText(tag, text string) error
	Close() error
	// ReusedSample reports whether the raw input/target arrays of the
	// previous export are still representative, letting the caller
	// skip redundant decollation and I/O.
	ReusedSample() bool
}

// LogWriter writes into a log directory.
type LogWriter struct {
	logdir     string
	sampleRate int

	scalarFile *os.File
	scalars    *csv.Writer
	reused     bool
}

// NewLogWriter creates the log directory if needed and opens the
// scalar event file for appending.
func NewLogWriter(logdir string, sampleRate int) (*LogWriter, error) {
	if err := os.MkdirAll(logdir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(logdir, "scalars.csv"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open scalar file: %w", err)
	}
	return &LogWriter{
		logdir:     logdir,
		sampleRate: sampleRate,
		scalarFile: f,
		scalars:    csv.NewWriter(f),
	}, nil
}

// AddScalar appends one (tag, step, value) record.
func (w *LogWriter) AddScalar(tag string, value float64, step int) error {
	return w.scalars.Write([]string{tag, strconv.Itoa(step), strconv.FormatFloat(value, 'g', -1, 64)})
}

// WriteOne exports each named array as <name>_<step>.wav. When both a
// model output ("out") and a raw target ("y") are present, the
// returned measure holds the output's and the raw input's SNR against
// the target, in dB. Raw arrays ("x", "y") only need to be written
// once per run; after the first export the writer reports the sample
// as reused.
func (w *LogWriter) WriteOne(step int, arrays map[string][][]float64) ([]float64, error) {
	names := make([]string, 0, len(arrays))
	for name := range arrays {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(w.logdir, fmt.Sprintf("%s_%d.wav", name, step))
		if err := writeWav(path, arrays[name], w.sampleRate); err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", name, err)
		}
		if name != "out" {
			w.reused = true
		}
	}

	out, haveOut := arrays["out"]
	y, haveY := arrays["y"]
	if !haveOut || !haveY {
		return nil, nil
	}
	measure := []float64{snr(out, y)}
	if x, ok := arrays["x"]; ok {
		measure = append(measure, snr(x, y))
	}
	return measure, nil
}

// AddText writes the text under a file named after the tag.
func (w *LogWriter) AddText(tag, text string) error {
	name := strings.ReplaceAll(tag, "/", "_") + ".txt"
	return os.WriteFile(filepath.Join(w.logdir, name), []byte(text), 0o644)
}

// ReusedSample reports whether raw sample arrays were already exported.
func (w *LogWriter) ReusedSample() bool {
	return w.reused
}

// Close flushes and closes the scalar event file.
func (w *LogWriter) Close() error {
	w.scalars.Flush()
	if err := w.scalars.Error(); err != nil {
		w.scalarFile.Close()
		return err
	}
	return w.scalarFile.Close()
}

// snr computes the signal-to-noise ratio of a against reference ref in
// dB, comparing only the overlapping extent.
func snr(a, ref [][]float64) float64 {
	var sigEnergy, errEnergy float64
	for c := range ref {
		if c >= len(a) {
			break
		}
		n := len(ref[c])
		if len(a[c]) < n {
			n = len(a[c])
		}
		r := ref[c][:n]
		sigEnergy += floats.Dot(r, r)
		for i := 0; i < n; i++ {
			d := a[c][i] - r[i]
			errEnergy += d * d
		}
	}
	if errEnergy == 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(sigEnergy/errEnergy)
}

// writeWav encodes a channels x time array as a 16-bit PCM WAV file.
// Values are expected in [-1, 1]; anything outside is clipped.
func writeWav(path string, samples [][]float64, sampleRate int) error {
	if len(samples) == 0 {
		return fmt.Errorf("no channels to write")
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	channels := len(samples)
	frames := len(samples[0])

	ints := make([]int, 0, channels*frames)
	for t := 0; t < frames; t++ {
		for c := 0; c < channels; c++ {
			v := samples[c][t]
			if v > 1 {
				v = 1
			} else if v < -1 {
				v = -1
			}
			ints = append(ints, int(v*math.MaxInt16))
		}
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}
