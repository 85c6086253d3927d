package scan

import "github.com/buemura/reconcraft/pkg/types"

// Observer receives scan events. Calls for one scan are serialized, so
// implementations need no locking of their own, but they must not block
// for long: every worker waits on them.
type Observer interface {
	Progress(percent int)
	Log(line string)
	Status(status types.Status)
}

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) Progress(int)        {}
func (NopObserver) Log(string)          {}
func (NopObserver) Status(types.Status) {}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnProgress func(int)
	OnLog      func(string)
	OnStatus   func(types.Status)
}

func (o ObserverFuncs) Progress(percent int) {
	if o.OnProgress != nil {
		o.OnProgress(percent)
	}
}

func (o ObserverFuncs) Log(line string) {
	if o.OnLog != nil {
		o.OnLog(line)
	}
}

func (o ObserverFuncs) Status(status types.Status) {
	if o.OnStatus != nil {
		o.OnStatus(status)
	}
}
