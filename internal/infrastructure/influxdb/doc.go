// Package influxdb writes CityWalk telemetry to InfluxDB 2.x.
//
// Session, navigation, scan and recognition events become points whose
// measurement is the event type, tagged with the user and session and
// carrying the event's numeric fields (positions, headings, confidences,
// durations). Dashboards read them to show campus foot traffic and
// recognition quality over time.
//
// Writes are non-blocking and batched per the batch_size and
// flush_interval settings; failures surface through SetOnError.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	client.WritePoint("navigation_update", tags, fields, time.Now())
package influxdb
