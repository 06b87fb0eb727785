package serialmedia

import (
	"context"

	"github.com/lightforgemedia/go-arylicrpc/pkg/subscription"
)

// Metadata describes the track currently playing.
type Metadata struct {
	Title     string `json:"title" yaml:"title"`
	Artist    string `json:"artist" yaml:"artist"`
	Album     string `json:"album" yaml:"album"`
	Vendor    string `json:"vendor" yaml:"vendor"`
	SkipLimit int    `json:"skiplimit" yaml:"skiplimit"`
}

// Stream names accepted by serialmedia_subscribe.
const (
	StreamMetadata = "metadataChanges"
	StreamVolume   = "volumeChanges"
	StreamMute     = "muteChanges"
)

// SubscribeMetadata calls fn for every track change on the active endpoint.
func (a *API) SubscribeMetadata(ctx context.Context, fn func(Metadata)) (*subscription.Subscription, error) {
	return a.scope.Subscribe(ctx, StreamMetadata, subscription.Decode(a.logger, fn))
}

// SubscribeVolume calls fn with the new level whenever the volume changes.
func (a *API) SubscribeVolume(ctx context.Context, fn func(float32)) (*subscription.Subscription, error) {
	return a.scope.Subscribe(ctx, StreamVolume, subscription.Decode(a.logger, fn))
}

// SubscribeMute calls fn whenever the mute state changes.
func (a *API) SubscribeMute(ctx context.Context, fn func(bool)) (*subscription.Subscription, error) {
	return a.scope.Subscribe(ctx, StreamMute, subscription.Decode(a.logger, fn))
}

// Unsubscribe cancels a stream opened by one of the Subscribe methods.
func (a *API) Unsubscribe(ctx context.Context, sub *subscription.Subscription) error {
	return a.scope.Unsubscribe(ctx, sub)
}
