package devicesim

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/lightforgemedia/go-arylicrpc/pkg/endpoint"
	"github.com/lightforgemedia/go-arylicrpc/pkg/websocketmedia"
)

// websocketMediaService is registered as "websocketmedia".
type websocketMediaService struct {
	sim *Simulator
}

func (s *websocketMediaService) ConnectedEndpoints() []endpoint.Info {
	return s.sim.Endpoints()
}

func (s *websocketMediaService) GetStatus(target string) (websocketmedia.Status, error) {
	return read(s.sim, target, func(d *Device) websocketmedia.Status { return d.Status })
}

func (s *websocketMediaService) RequestPlayPause(target string) error {
	return s.changeStatus(target, func(st *websocketmedia.Status) {
		if st.State == "play" {
			st.State = "pause"
		} else {
			st.State = "play"
		}
	})
}

func (s *websocketMediaService) RequestNext(target string) error {
	return s.changeStatus(target, func(st *websocketmedia.Status) {
		st.Index++
		st.Elapsed = 0
	})
}

func (s *websocketMediaService) RequestPrevious(target string) error {
	return s.changeStatus(target, func(st *websocketmedia.Status) {
		if st.Index > 0 {
			st.Index--
		}
		st.Elapsed = 0
	})
}

func (s *websocketMediaService) SetVolume(target string, percent int) (int, error) {
	if percent < 0 || percent > 100 {
		return 0, fmt.Errorf("volume %d out of range", percent)
	}
	var out int
	err := s.changeStatus(target, func(st *websocketmedia.Status) {
		st.Volume = percent
		out = percent
	})
	return out, err
}

func (s *websocketMediaService) changeStatus(target string, fn func(*websocketmedia.Status)) error {
	st, err := write(s.sim, target, func(d *Device) websocketmedia.Status {
		fn(&d.Status)
		return d.Status
	})
	if err != nil {
		return err
	}
	s.sim.publish(websocketmedia.StreamStatus, target, st)
	return nil
}

// StatusChanges sends the current status first, then every change.
func (s *websocketMediaService) StatusChanges(ctx context.Context, target string) (*rpc.Subscription, error) {
	st, err := s.GetStatus(target)
	if err != nil {
		return nil, err
	}
	return s.sim.subscribe(ctx, websocketmedia.StreamStatus, target, st)
}
