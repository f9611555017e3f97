package trainer

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/LearnedVector/denoising-wavenet/model"
	"github.com/LearnedVector/denoising-wavenet/writer"
)

// Test evaluates the model over a test set, exporting every batch's
// first sample through the writer and accumulating the measure vectors
// the writer reports. The accumulated measure is averaged over the
// dataset size and recorded as summary text under the group named
// after the log directory.
func (t *Trainer) Test(loader Loader, logdir string) error {
	group := strings.SplitN(filepath.Base(logdir), "_", 2)[0]

	if t.Writer == nil {
		w, err := writer.NewLogWriter(logdir, t.cfg.SampleRate)
		if err != nil {
			return err
		}
		t.Writer = w
	}
	defer t.Writer.Close()

	t.model.SetMode(model.Eval)
	defer t.model.SetMode(model.Train)

	var avgMeasure []float64

	for iIter := 0; iIter < loader.NumBatches(); iIter++ {
		batch, err := loader.Batch(iIter)
		if err != nil {
			return err
		}
		x, y := t.preBatch(batch, loader)

		output, err := t.model.Predict(x)
		if err != nil {
			return err
		}
		output, err = truncateToWindow(output, y.Shape[2])
		if err != nil {
			return err
		}

		_, normOut := loader.Normalization()
		out, err := postOne(output, batch.TYs, 0, normOut)
		if err != nil {
			return err
		}
		raw, err := batch.Decollate(0)
		if err != nil {
			return err
		}

		measure, err := t.Writer.WriteOne(iIter, map[string][][]float64{
			"out": out,
			"x":   raw.X,
			"y":   raw.Y,
		})
		if err != nil {
			return err
		}
		if measure != nil {
			if avgMeasure == nil {
				avgMeasure = append([]float64(nil), measure...)
			} else {
				floats.Add(avgMeasure, measure)
			}
			log.Printf("%s batch %d: %s", group, iIter, fmtLoss(measure))
		}
	}

	if avgMeasure == nil {
		return nil
	}
	floats.Scale(1/float64(loader.NumSamples()), avgMeasure)

	if err := t.Writer.AddText(fmt.Sprintf("%s/Average Measure/Proposed", group),
		fmt.Sprintf("%.4f", avgMeasure[0])); err != nil {
		return err
	}
	if len(avgMeasure) > 1 {
		if err := t.Writer.AddText(fmt.Sprintf("%s/Average Measure/Input", group),
			fmt.Sprintf("%.4f", avgMeasure[1])); err != nil {
			return err
		}
	}
	log.Printf("%s average: %s", group, fmtLoss(avgMeasure))
	return nil
}
