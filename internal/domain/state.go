package domain

import "context"

// State is the progress of a single extraction.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateRendering
	StateMediaResolving
	StateWriting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateRendering:
		return "rendering"
	case StateMediaResolving:
		return "media_resolving"
	case StateWriting:
		return "writing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type extraction struct {
	e     *Extractor
	uid   string
	state State
}

// begin shows the pending indicator and moves a new extraction to fetching.
func (e *Extractor) begin(ctx context.Context, uid string) *extraction {
	e.indicator.Show(ctx, uid)
	x := &extraction{e: e, uid: uid, state: StateIdle}
	x.to(StateFetching)
	return x
}

func (x *extraction) to(s State) {
	from := x.state
	x.state = s
	if x.e.onState != nil {
		x.e.onState(x.uid, from, s)
	}
}

func (x *extraction) fail(err error) error {
	x.to(StateFailed)
	x.e.logger.Error("extraction failed", "uid", x.uid, "error", err)
	return err
}
