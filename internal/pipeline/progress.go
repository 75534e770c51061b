package pipeline

// ProgressEvent reports a state transition or the start of one entity's
// analysis. Index is 1-based and only set while analyzing.
type ProgressEvent struct {
	Stage   State  `json:"stage"`
	Message string `json:"message"`
	Entity  string `json:"entity,omitempty"`
	Index   int    `json:"index,omitempty"`
	Total   int    `json:"total,omitempty"`
}

// Observer receives progress events in the order the run emits them.
type Observer interface {
	OnProgress(ev ProgressEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev ProgressEvent)

// OnProgress implements Observer.
func (f ObserverFunc) OnProgress(ev ProgressEvent) { f(ev) }
