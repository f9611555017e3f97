package main

import (
	"flag"
	"log"
	"strconv"
	"strings"

	"github.com/LearnedVector/denoising-wavenet/data"
	"github.com/LearnedVector/denoising-wavenet/trainer"
)

var (
	trainDataPath = flag.String("train_data", "datasets/train.gob", "Path to the training sample gob file")
	validDataPath = flag.String("valid_data", "datasets/valid.gob", "Path to the validation sample gob file")
	logdir        = flag.String("logdir", "runs/train", "Directory for metrics, exported samples and checkpoints")
	stateDict     = flag.String("state", "", "Checkpoint to resume from")
	firstEpoch    = flag.Int("first_epoch", 0, "Epoch to resume counting from")

	modelName   = flag.String("model", "ChannelAffine", "Registered model identifier")
	channelsIn  = flag.Int("channels_in", 1, "Input channels")
	channelsOut = flag.Int("channels_out", 1, "Output channels")
	criteria    = flag.String("criteria", "MSELoss,L1Loss", "Comma-separated criterion identifiers")
	weights     = flag.String("weight_loss", "1.0,0.0", "Comma-separated per-criterion loss weights")

	lTarget = flag.Int("l_target", 6144, "Target window length in timesteps")
	lInput  = flag.Int("l_input", 8192, "Input window length in timesteps")

	epochs          = flag.Int("epochs", 60, "Number of training epochs")
	batchSize       = flag.Int("batch_size", 4, "Batch size")
	learningRate    = flag.Float64("learning_rate", 5e-4, "Base learning rate")
	weightDecay     = flag.Float64("weight_decay", 1e-5, "Weight decay")
	periodSaveState = flag.Int("period_save_state", 5, "Checkpoint every this many epochs")
	sampleRate      = flag.Int("sample_rate", 16000, "Sample rate of exported waveforms")

	schedulerT0     = flag.Float64("scheduler_t0", 10, "Restart period in epochs")
	schedulerTMult  = flag.Float64("scheduler_t_mult", 2, "Period growth per restart")
	schedulerEtaMin = flag.Float64("scheduler_eta_min", 1e-6, "Learning rate floor")
)

func main() {
	flag.Parse()

	criterionNames := strings.Split(*criteria, ",")
	weightLoss, err := parseFloats(*weights)
	if err != nil {
		log.Fatalf("Invalid loss weights: %v", err)
	}

	log.Printf("Loading training samples from %s", *trainDataPath)
	trainSamples, err := data.LoadSamples(*trainDataPath)
	if err != nil {
		log.Fatalf("Failed to load training samples: %v", err)
	}
	log.Printf("Loading validation samples from %s", *validDataPath)
	validSamples, err := data.LoadSamples(*validDataPath)
	if err != nil {
		log.Fatalf("Failed to load validation samples: %v", err)
	}

	loaderTrain, err := data.NewLoader(trainSamples, *batchSize)
	if err != nil {
		log.Fatalf("Failed to create training loader: %v", err)
	}
	loaderValid, err := data.NewLoader(validSamples, *batchSize)
	if err != nil {
		log.Fatalf("Failed to create validation loader: %v", err)
	}

	// Normalization statistics are fit once, on the training data,
	// and shared with the validation loader.
	if err := loaderTrain.FitNormalization(); err != nil {
		log.Fatalf("Failed to fit normalization: %v", err)
	}
	loaderValid.NormIn = loaderTrain.NormIn
	loaderValid.NormOut = loaderTrain.NormOut

	cfg := trainer.Config{
		ModelName:      *modelName,
		ChannelsIn:     *channelsIn,
		ChannelsOut:    *channelsOut,
		CriterionNames: criterionNames,
		WeightLoss:     weightLoss,

		LTarget: *lTarget,
		LInput:  *lInput,

		NEpochs:         *epochs,
		BatchSize:       *batchSize,
		LearningRate:    *learningRate,
		WeightDecay:     *weightDecay,
		PeriodSaveState: *periodSaveState,
		SampleRate:      *sampleRate,

		SchedulerT0:     *schedulerT0,
		SchedulerTMult:  *schedulerTMult,
		SchedulerEtaMin: *schedulerEtaMin,
	}

	t, err := trainer.NewTrainer(cfg, *stateDict)
	if err != nil {
		log.Fatalf("Failed to create trainer: %v", err)
	}

	log.Printf("Starting training (%d samples, %d epochs)", loaderTrain.NumSamples(), *epochs)
	if err := t.Train(loaderTrain, loaderValid, *logdir, *firstEpoch); err != nil {
		log.Fatalf("Training failed: %v", err)
	}
	log.Printf("Training complete, logs in %s", *logdir)
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}
