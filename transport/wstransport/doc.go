// Package wstransport carries store requests over a single WebSocket
// connection using github.com/gorilla/websocket.
//
// Every request is one JSON Frame tagged with a fresh id. The engine
// answers with "result" frames carrying the same id and a status of
// running, done or error. Cancels are frames with the cancel op and the id
// of the operation to stop.
//
// Basic usage:
//
//	t, err := wstransport.Dial(ctx, "ws://localhost:8080/store", nil,
//	    wstransport.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer t.Close()
//
//	c := client.New(t)
//
// A lost connection ends the transport: every open operation receives one
// Error and later sends fail with ErrClosed. Reconnecting means dialing a
// new transport.
package wstransport
