// Package host drives modules through a fixed lifecycle on a single logic
// thread.
//
// A [Runner] creates and starts each registered [Module] once, in
// registration order, then steps frames: network inboxes are pumped first so
// message callbacks run on the logic thread, every module is updated, and on
// the GUI interval each module writes diagnostic labels into a [Console].
// [Runner.Stop] destroys modules in reverse order.
//
//	runner := host.NewRunner(host.WithFPS(60), host.WithPumper(netManager))
//	runner.Register("lua", bridge, nil)
//	if err := runner.Start(); err != nil {
//	    return err
//	}
//	defer runner.Stop()
//	return runner.Run(ctx, 0)
package host
