// Package monitor runs the reconnecting state-change monitor.
//
// A Monitor owns the connect, authenticate, subscribe, receive loop: it
// opens a session to the hub, subscribes a state trigger per configured
// entity and hands every decoded change to the application callback.
// When the connection fails for any reason the monitor tears the
// session down and retries with capped exponential backoff; all
// subscriptions are re-established on the fresh session.
//
//	m, err := monitor.New(monitor.Config{
//		URL:      "ws://homeassistant.local:8123",
//		Token:    token,
//		Entities: map[string]convert.DataType{"sensor.temperature": convert.TypeNumeric},
//		Callback: func(ev model.StateChangeEvent) { ... },
//	})
//	if err != nil { ... }
//	m.Start()
//	defer m.Stop(5 * time.Second)
//
// Start, Stop and State are safe to call from any goroutine. The
// callback runs on the monitor's read goroutine: a blocking callback
// stalls frame processing, and a panicking callback is recovered and
// logged without ending the run.
package monitor
