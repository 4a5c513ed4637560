// Package router ties the path subsystem to a running node.
//
// A Router owns the serialized logic thread, the crypto worker pool, the
// clock, the link transport, and the PathContext. Inbound link messages are
// decoded on the transport's delivery goroutine and handled on the logic
// thread in the order they arrived. A tick loop expires transit hops and
// owned paths.
//
// # Usage Example
//
//	r, err := router.New(router.Options{
//	    Config:     config.Defaults(),
//	    Transports: []transport.Transport{node},
//	})
//	if err != nil {
//	    return err
//	}
//	r.Start()
//	defer r.Close()
//
//	p, err := r.BuildPath(hops, func(p *path.Path, err error) {
//	    // runs on the logic thread
//	})
package router
