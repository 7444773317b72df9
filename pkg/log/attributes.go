// Package log defines standard attribute keys for machine learning operations.
//
// These keys follow a hierarchical naming convention (e.g., "model.name",
// "data.samples") to enable structured log analysis and filtering.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of machine learning model.
	// Examples: "RandomForestRegressor", "GaussianProcessRegressor", "PCA"
	ModelNameKey = "model.name"

	// ModelKindKey identifies the experiment-level model kind selected by the user.
	ModelKindKey = "model.kind"

	// OperationKey specifies the machine learning operation being performed.
	// Standard values: "fit", "predict", "transform", "score"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component or package is performing the operation.
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the experiment lifecycle.
	PhaseKey = "ml.phase"
)

// Data Shape and Characteristics
const (
	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// TargetsKey indicates the number of target columns.
	TargetsKey = "data.targets"

	// ColumnKey names a single dataset column.
	ColumnKey = "data.column"

	// DroppedKey counts rows or columns removed by a preprocessing step.
	DroppedKey = "data.dropped"
)

// Experiment Context
const (
	// RunIDKey correlates every record emitted by one discovery run.
	RunIDKey = "run.id"

	// TargetKey names the target column currently being modelled.
	TargetKey = "experiment.target"

	// CuriosityKey records the curiosity weighting of a run.
	CuriosityKey = "experiment.curiosity"

	// CandidatesKey counts rows that receive a prediction.
	CandidatesKey = "experiment.candidates"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// LossKey records a loss value, e.g. negative log marginal likelihood.
	LossKey = "metrics.loss"

	// ScoreKey records a cross-validation score.
	ScoreKey = "metrics.score"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"
)

// Error Context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute value constants for common operations.
const (
	OperationFit       = "fit"
	OperationPredict   = "predict"
	OperationTransform = "transform"
	OperationScore     = "score"

	PhasePreprocessing = "preprocessing"
	PhaseTraining      = "training"
	PhaseInference     = "inference"
	PhaseScoring       = "scoring"
)
