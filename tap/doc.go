// Package tap streams driver events to WebSocket observers.
//
// Every event the driver emits is encoded once as a JSON Message and queued
// to each connected client. A client that falls more than Config.SendQueue
// frames behind is disconnected rather than slowing the driver down. Idle
// connections are kept alive with pings and time out after two missed pongs.
//
// Register the server as a driver handler and run it alongside the driver:
//
//	tp := tap.New(tap.DefaultConfig(), tap.WithLogger(logger))
//	d.OnEvent(tp.HandleEvent)
//	go tp.Run(ctx)
package tap
