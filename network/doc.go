// Package network carries hotfix and core packages between the host and a
// remote peer.
//
// # Threading
//
// Transports read on their own goroutine, but subscriber callbacks never run
// there. Inbound packages are decoded and queued; the host's logic thread
// calls [Manager.Pump] once per frame to deliver them. Everything that
// touches the interpreter therefore stays on one thread.
//
//	mgr := network.NewManager(transport, network.WithQueueSize(256))
//	mgr.SubscribeHotfix(func(p network.Package) { ... })
//	mgr.Start(ctx)
//	defer mgr.Close()
//
//	for range frames {
//	    mgr.Pump()
//	    ...
//	}
//
// # Wire format
//
// Each WebSocket binary message is one CBOR-encoded frame holding the
// message ID, the hotfix flag and the body. Delivery guarantees are the
// transport's; the manager sends each package exactly once and never retries.
package network
