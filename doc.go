// Package wavelet is a hosted pub/sub messaging client library built
// around a generic Event Engine runtime (pkg/ee) specialized to drive a
// Subscribe Event Engine (pkg/subscribe) over an entity graph of
// channels, channel groups, and metadata objects (pkg/entity), fanning
// real-time messages and connection status out through an Event
// Listener (pkg/listener).
//
// A minimal client:
//
//	c, err := wavelet.New(
//		wavelet.WithTransport(tr),
//		wavelet.WithHeartbeat(60),
//	)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	ch, err := c.NewEntity(entity.KindChannel, "room.general")
//	if err != nil {
//		return err
//	}
//	sub := c.RegisterSubscription(ch, entity.Options{})
//	c.AddStatusListener(func(_ any, status listener.Status, _ listener.StatusEvent) {
//		log.Println("status:", status)
//	})
//	if err := c.SubscribeWith(sub, nil); err != nil {
//		return err
//	}
package wavelet
