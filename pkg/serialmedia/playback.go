package serialmedia

import "context"

// LoopMode is the playlist repeat/shuffle mode.
type LoopMode string

const (
	LoopRepeatAll     LoopMode = "Repeat All"
	LoopRepeatOne     LoopMode = "Repeat One"
	LoopRepeatShuffle LoopMode = "Repeat & Shuffle"
	LoopShuffle       LoopMode = "Shuffle"
	LoopSequence      LoopMode = "Sequence"
)

func (a *API) PlayPause(ctx context.Context) error {
	return request(ctx, a, "requestPlayPause")
}

func (a *API) Next(ctx context.Context) error {
	return request(ctx, a, "requestNext")
}

func (a *API) Previous(ctx context.Context) error {
	return request(ctx, a, "requestPrevious")
}

func (a *API) Stop(ctx context.Context) error {
	return request(ctx, a, "requestStop")
}

func (a *API) GetLoopMode(ctx context.Context) (LoopMode, error) {
	return get[LoopMode](ctx, a, "getLoopMode")
}

func (a *API) SetLoopMode(ctx context.Context, mode LoopMode) (LoopMode, error) {
	return set(ctx, a, "setLoopMode", mode)
}
