package mirror

import (
	"context"
	"encoding/json"
	"time"
)

// ChangeNotice announces that a mirrored collection changed remotely.
// Subscribers re-read the collection rather than diffing payloads.
type ChangeNotice struct {
	Collection string    `json:"collection"`
	At         time.Time `json:"at"`
}

// Subscribe delivers change notices for the given collection until the
// returned cancel func runs or ctx ends. The returned channel closes once
// the subscription drains.
func (s *Store) Subscribe(ctx context.Context, collection string) (<-chan ChangeNotice, func(), error) {
	if err := s.ready(); err != nil {
		return nil, nil, err
	}
	sub := s.client.Subscribe(ctx, s.client.ChannelKey(collection))
	out := make(chan ChangeNotice, 8)

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var notice ChangeNotice
				if err := json.Unmarshal([]byte(msg.Payload), &notice); err != nil {
					continue
				}
				select {
				case out <- notice:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}
