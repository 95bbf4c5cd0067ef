/*
Package events is an in-memory, best-effort pub/sub broker for
control-plane notifications: node membership changes and action/prewarm
revisions. It is fire-and-forget — a full subscriber buffer drops the
event rather than blocking the publisher. A worker rebuilds its pool from
the current action manifests and prewarm config only when it receives an
action or prewarm event (or restarts), so a dropped event leaves that
worker on its previous configuration until the next such event arrives.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)
	go func() {
		for ev := range sub {
			log.Info().Str("type", string(ev.Type)).Msg(ev.Message)
		}
	}()

	broker.Publish(&events.Event{Type: events.EventActionRevised, Message: "tenant-a/hello revised"})
*/
package events
