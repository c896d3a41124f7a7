// Package mqtt provides MQTT client connectivity for the Gray Logic hub.
//
// The hub uses MQTT in two directions:
//   - Inbound: devices and external scanners announce themselves on
//     graylogic/discovery/{source}.
//   - Outbound: discovery and loader events are mirrored to
//     graylogic/hub/event/{event_type}.
//
// The client reconnects automatically, restores its subscriptions, and keeps
// a retained status on graylogic/system/status backed by a Last Will.
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllAnnouncements(), 1,
//	    func(topic string, payload []byte) error {
//	        return handleAnnouncement(topic, payload)
//	    })
//
// Broker-backed tests live behind the integration build tag.
package mqtt
