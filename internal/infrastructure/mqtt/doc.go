// Package mqtt publishes CityWalk events to an MQTT broker.
//
// Core is a publisher only: AR session, scan, navigation and recognition
// events go to citywalk/events/{type} so campus dashboards and analytics
// jobs can follow activity without polling the API. A retained status
// message on citywalk/system/status, backed by a Last Will, tells
// subscribers whether Core is online.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Publish(mqtt.Topics{}.Event("navigation_start"), payload, 1, false)
package mqtt
