package nn

// Log keys written after every epoch.
const (
	LogLoss        = "loss"
	LogAccuracy    = "accuracy"
	LogValLoss     = "val_loss"
	LogValAccuracy = "val_accuracy"
)

// Logs holds the metrics of one epoch.
type Logs map[string]float64

// Callback observes training. OnEpochEnd returns true to stop training.
type Callback interface {
	OnTrainBegin(m *Sequential)
	OnEpochEnd(m *Sequential, epoch int, logs Logs) bool
	OnTrainEnd(m *Sequential)
}

// History records per-epoch metrics.
type History struct {
	Loss        []float64 `json:"loss"`
	Accuracy    []float64 `json:"accuracy"`
	ValLoss     []float64 `json:"val_loss,omitempty"`
	ValAccuracy []float64 `json:"val_accuracy,omitempty"`
}

// Epochs returns the number of completed epochs.
func (h *History) Epochs() int {
	return len(h.Loss)
}

func (h *History) append(logs Logs) {
	h.Loss = append(h.Loss, logs[LogLoss])
	h.Accuracy = append(h.Accuracy, logs[LogAccuracy])
	if v, ok := logs[LogValLoss]; ok {
		h.ValLoss = append(h.ValLoss, v)
		h.ValAccuracy = append(h.ValAccuracy, logs[LogValAccuracy])
	}
}

// Series returns the recorded values for a log key.
func (h *History) Series(key string) []float64 {
	switch key {
	case LogLoss:
		return h.Loss
	case LogAccuracy:
		return h.Accuracy
	case LogValLoss:
		return h.ValLoss
	case LogValAccuracy:
		return h.ValAccuracy
	default:
		return nil
	}
}
