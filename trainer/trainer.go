// Package trainer implements segment-wise truncated training of a
// sequence-to-sequence regression model over variable-length batches.
// Each batch is traversed in fixed-size temporal windows; the active
// sub-batch shrinks as shorter sequences complete, the multi-term loss
// is normalized by true valid lengths, and a cyclical learning rate
// advances on fractional epoch positions.
package trainer

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"github.com/LearnedVector/denoising-wavenet/checkpoint"
	"github.com/LearnedVector/denoising-wavenet/data"
	"github.com/LearnedVector/denoising-wavenet/model"
	"github.com/LearnedVector/denoising-wavenet/neural/nn"
	"github.com/LearnedVector/denoising-wavenet/neural/tensor"
	"github.com/LearnedVector/denoising-wavenet/schedule"
	"github.com/LearnedVector/denoising-wavenet/writer"
)

// minWindowLen is the smallest viable target window. A window shorter
// than this ends the batch's traversal: the remaining tail is too
// short to be worth a gradient step.
const minWindowLen = 5

// Loader is the data-loading collaborator. Batches carry padded
// tensors with descending valid target lengths.
type Loader interface {
	NumBatches() int
	NumSamples() int
	// Batch returns the i-th batch with freshly allocated tensors on
	// every call: the trainer normalizes them in place, so a cached
	// tensor would be transformed again on each epoch.
	Batch(i int) (*data.Batch, error)
	// Normalization returns the input and target transforms fit from
	// training statistics. Either may be nil, meaning identity.
	Normalization() (in, out *data.Normalization)
}

// Config holds the training hyperparameters.
type Config struct {
	ModelName      string
	ChannelsIn     int
	ChannelsOut    int
	CriterionNames []string
	WeightLoss     []float64

	LTarget int // target window length
	LInput  int // input window length (may exceed LTarget for context)

	NEpochs         int
	BatchSize       int
	LearningRate    float64
	WeightDecay     float64
	PeriodSaveState int
	SampleRate      int

	SchedulerT0     float64
	SchedulerTMult  float64
	SchedulerEtaMin float64
}

// Trainer owns the training loop state: model, criteria, optimizer and
// metric writer.
type Trainer struct {
	cfg   Config
	model model.Model
	loss  *WeightedLoss
	opt   nn.Optimizer
	rng   *rand.Rand

	// Writer receives metrics and inspection samples. Train creates a
	// LogWriter under the log directory when none was injected.
	Writer writer.Writer
}

// NewTrainer constructs the model, criteria and optimizer from the
// configuration, optionally restoring a saved (model, optimizer) pair.
// A checkpoint whose shapes do not match the constructed model is a
// fatal configuration error.
func NewTrainer(cfg Config, pathStateDict string) (*Trainer, error) {
	m, err := model.New(cfg.ModelName, cfg.ChannelsIn, cfg.ChannelsOut)
	if err != nil {
		return nil, err
	}
	loss, err := NewWeightedLoss(cfg.CriterionNames, cfg.WeightLoss)
	if err != nil {
		return nil, err
	}
	if cfg.LTarget < minWindowLen {
		return nil, fmt.Errorf("target window length %d below the minimum viable %d", cfg.LTarget, minWindowLen)
	}
	if cfg.LInput < cfg.LTarget {
		return nil, fmt.Errorf("input window length %d shorter than target window length %d", cfg.LInput, cfg.LTarget)
	}

	opt := nn.NewOptimizer(m.Parameters(), cfg.LearningRate, cfg.WeightDecay)

	if pathStateDict != "" {
		if err := checkpoint.Load(pathStateDict, m, opt); err != nil {
			return nil, err
		}
		log.Printf("Restored state from %s", pathStateDict)
	}

	return &Trainer{
		cfg:   cfg,
		model: m,
		loss:  loss,
		opt:   opt,
		rng:   rand.New(rand.NewSource(1)),
	}, nil
}

// Model returns the trained model.
func (t *Trainer) Model() model.Model {
	return t.model
}

// Train runs the full training loop: for each epoch, every training
// batch is traversed in windows, then the validation set is evaluated
// and the state is periodically checkpointed.
func (t *Trainer) Train(loaderTrain, loaderValid Loader, logdir string, firstEpoch int) error {
	if t.Writer == nil {
		w, err := writer.NewLogWriter(logdir, t.cfg.SampleRate)
		if err != nil {
			return err
		}
		t.Writer = w
	}
	defer t.Writer.Close()

	if err := t.writeRunSummary(); err != nil {
		return err
	}

	sched, err := schedule.NewCosineWarmRestarts(t.opt,
		t.cfg.LearningRate, t.cfg.SchedulerT0, t.cfg.SchedulerTMult, t.cfg.SchedulerEtaMin)
	if err != nil {
		return err
	}

	nTrain := loaderTrain.NumSamples()

	for epoch := firstEpoch; epoch < t.cfg.NEpochs; epoch++ {
		if s, ok := loaderTrain.(interface{ Shuffle(*rand.Rand) }); ok {
			s.Shuffle(t.rng)
		}

		avgLoss := make([]float64, t.loss.NumCriteria())
		bar := progressbar.NewOptions(loaderTrain.NumBatches(),
			progressbar.OptionSetDescription(fmt.Sprintf("epoch %3d", epoch)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)

		for iIter := 0; iIter < loaderTrain.NumBatches(); iIter++ {
			batch, err := loaderTrain.Batch(iIter)
			if err != nil {
				return err
			}

			lastLoss, activeN, err := t.trainBatch(batch, loaderTrain, avgLoss)
			if err != nil {
				return err
			}

			// Advance the learning rate on the fractional epoch
			// position so restarts need not align to epoch bounds.
			sched.Step(float64(epoch) + float64(iIter)*float64(t.cfg.BatchSize)/float64(nTrain))

			if lastLoss != nil && activeN > 0 {
				perSample := append([]float64(nil), lastLoss...)
				floats.Scale(1/float64(activeN), perSample)
				bar.Describe(fmt.Sprintf("epoch %3d %s", epoch, fmtLoss(perSample)))
			}
			bar.Add(1)
		}
		fmt.Fprintln(os.Stderr)

		floats.Scale(1/float64(nTrain), avgLoss)
		if err := t.writeLossScalars("loss/train", avgLoss, epoch); err != nil {
			return err
		}

		if _, err := t.Validate(loaderValid, epoch); err != nil {
			return err
		}

		if t.cfg.PeriodSaveState > 0 && epoch%t.cfg.PeriodSaveState == t.cfg.PeriodSaveState-1 {
			path := filepath.Join(logdir, fmt.Sprintf("%s_%d.ckpt", t.cfg.ModelName, epoch))
			if err := checkpoint.Save(path, t.model, t.opt); err != nil {
				return err
			}
			log.Printf("Saved state to %s", path)
		}
	}
	return nil
}

// trainBatch traverses one batch in windows of LTarget timesteps,
// shrinking the active sub-batch as sequences end. It returns the last
// window's loss values and active sub-batch size for progress
// feedback, and accumulates every window's loss into avgLoss.
func (t *Trainer) trainBatch(batch *data.Batch, loader Loader, avgLoss []float64) ([]float64, int, error) {
	x, y := t.preBatch(batch, loader)
	tys := batch.TYs

	var lastLoss []float64
	iFirst := 0
	activeN := 0
	tMax := y.Shape[2]

	for wt := 0; wt < tMax; wt += t.cfg.LTarget {
		// All samples before iFirst have finished; the descending
		// length order makes this a single advancing cursor.
		for iFirst < len(tys) && tys[iFirst] <= wt {
			iFirst++
		}
		if iFirst >= len(tys) {
			break
		}

		segEnd := wt + t.cfg.LTarget
		if segEnd > tMax {
			segEnd = tMax
		}
		if segEnd-wt < minWindowLen {
			// Remaining tail too short for a useful gradient step.
			break
		}

		segY, err := sliceWindow(y, iFirst, len(tys), wt, segEnd)
		if err != nil {
			return nil, 0, err
		}

		inEnd := wt + t.cfg.LInput
		if inEnd > x.Shape[2] {
			inEnd = x.Shape[2]
		}
		segX, err := sliceWindow(x, iFirst, len(tys), wt, inEnd)
		if err != nil {
			return nil, 0, err
		}

		segTYs := ClipLengths(tys[iFirst:], wt, t.cfg.LTarget)

		t.opt.ZeroGrad()

		output, err := t.model.Predict(segX)
		if err != nil {
			return nil, 0, err
		}
		output, err = truncateToWindow(output, segY.Shape[2])
		if err != nil {
			return nil, 0, err
		}

		lossVec, err := t.loss.Calc(segY, output, segTYs)
		if err != nil {
			return nil, 0, err
		}
		lossSum, err := lossVec.Sum()
		if err != nil {
			return nil, 0, err
		}
		if err := lossSum.Backward(tensor.NewTensor([]int{1}, []float64{1.0}, false)); err != nil {
			return nil, 0, err
		}
		t.opt.Step()

		lastLoss = lossVec.Values()
		activeN = len(tys) - iFirst
		floats.Add(avgLoss, lastLoss)
	}

	return lastLoss, activeN, nil
}

// preBatch applies the training normalization statistics to the batch
// tensors in place. Batches are re-collated per access, so in-place
// transforms never leak across epochs.
func (t *Trainer) preBatch(batch *data.Batch, loader Loader) (x, y *tensor.Tensor) {
	normIn, normOut := loader.Normalization()
	if normIn != nil {
		normIn.Normalize(batch.X)
	}
	if normOut != nil {
		normOut.Normalize(batch.Y)
	}
	return batch.X, batch.Y
}

// sliceWindow restricts a (batch, channels, time) tensor to the active
// sub-batch [iFirst, n) and the time window [start, end).
func sliceWindow(t *tensor.Tensor, iFirst, n, start, end int) (*tensor.Tensor, error) {
	sub, err := t.Slice(0, iFirst, n)
	if err != nil {
		return nil, err
	}
	return sub.Slice(2, start, end)
}

// truncateToWindow trims model output that overproduces past the
// target window. Underproduction is a contract violation and
// propagates as an error.
func truncateToWindow(output *tensor.Tensor, windowLen int) (*tensor.Tensor, error) {
	if output.Shape[2] < windowLen {
		return nil, fmt.Errorf("model produced %d timesteps for a window of %d", output.Shape[2], windowLen)
	}
	if output.Shape[2] == windowLen {
		return output, nil
	}
	return output.Slice(2, 0, windowLen)
}

// writeLossScalars emits the summed loss under tag, plus per-criterion
// subtags when more than one criterion is configured.
func (t *Trainer) writeLossScalars(tag string, lossVals []float64, epoch int) error {
	if err := t.Writer.AddScalar(tag, floats.Sum(lossVals), epoch); err != nil {
		return err
	}
	if t.loss.NumCriteria() > 1 {
		for i, name := range t.loss.Names() {
			sub := fmt.Sprintf("%s/%d_%s", tag, i+1, name)
			if err := t.Writer.AddScalar(sub, lossVals[i], epoch); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeRunSummary records the model size and hyperparameters once per
// log directory.
func (t *Trainer) writeRunSummary() error {
	nParams := 0
	for _, p := range t.model.Parameters() {
		nParams += len(p.Data)
	}
	summary := fmt.Sprintf("model: %s\nparameters: %d\n", t.cfg.ModelName, nParams)
	if err := t.Writer.AddText("summary", summary); err != nil {
		return err
	}
	return t.Writer.AddText("hparams", spew.Sdump(t.cfg))
}

// fmtLoss renders a loss vector compactly for progress output.
func fmtLoss(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%.1e", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}
