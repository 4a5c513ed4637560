package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/go-i2p/logger"
	"github.com/spf13/cobra"

	"github.com/go-i2p/go-onionpath/lib/config"
	"github.com/go-i2p/go-onionpath/lib/path"
	"github.com/go-i2p/go-onionpath/lib/sim"
	"github.com/go-i2p/go-onionpath/lib/tui"
	"github.com/go-i2p/go-onionpath/lib/util"
	"github.com/go-i2p/go-onionpath/lib/util/signals"
)

type simulateFlags struct {
	routers int
	hops    int
	paths   int
	message string
	timeout time.Duration
	tui     bool
}

func simulateCmd() *cobra.Command {
	var f simulateFlags
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Build paths through in-memory routers and echo a message over them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(cmd.Context(), cmd.OutOrStdout(), config.CurrentConfig(), f)
		},
	}
	cmd.Flags().IntVar(&f.routers, "routers", 6, "number of routers")
	cmd.Flags().IntVar(&f.hops, "hops", 0, "hops per path (default path.hops)")
	cmd.Flags().IntVar(&f.paths, "paths", 1, "paths to build without --tui")
	cmd.Flags().StringVar(&f.message, "message", "hello", "payload echoed by each path's terminus")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 10*time.Second, "time allowed per build and echo")
	cmd.Flags().BoolVar(&f.tui, "tui", false, "show a live dashboard")
	return cmd
}

func runSimulate(ctx context.Context, out io.Writer, cfg config.ConfigDefaults, f simulateFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if f.hops == 0 {
		f.hops = cfg.Path.Hops
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	s, err := sim.New(sim.Options{
		Routers: f.routers,
		Config:  cfg,
		KeyDir:  filepath.Join(cfg.Router.WorkingDir, "sim"),
	})
	if err != nil {
		return err
	}
	util.RegisterCloser(s)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	signals.RegisterPreShutdownHandler(func() {
		for _, r := range s.Routers() {
			r.Paths().RejectTransit()
		}
	})
	signals.RegisterInterruptHandler(signals.Handler(cancel))
	s.Start()

	once := func() (string, error) {
		ctx, done := context.WithTimeout(ctx, f.timeout)
		defer done()
		return buildAndEcho(ctx, s, f)
	}

	if f.tui {
		return tui.Run(tui.New(s.Stats, once, 500*time.Millisecond))
	}
	for i := 0; i < f.paths; i++ {
		line, err := once()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, line)
	}
	writeSummary(out, s)
	return nil
}

func buildAndEcho(ctx context.Context, s *sim.Simulation, f simulateFlags) (string, error) {
	hops, err := s.SelectHops(0, f.hops)
	if err != nil {
		return "", err
	}
	start := time.Now()
	p, err := s.BuildPath(ctx, 0, hops)
	if err != nil {
		return "", err
	}
	built := time.Since(start)
	reply, err := s.Echo(ctx, 0, p, []byte(f.message))
	if err != nil {
		return "", err
	}
	log.WithFields(logger.Fields{
		"at":      "buildAndEcho",
		"path_id": p.PathID().String(),
		"hops":    len(p.Hops),
	}).Debug("simulated path round trip")
	return fmt.Sprintf("path %s: %d hops built in %s, echoed %q",
		p.PathID().String()[:8], len(p.Hops), built.Round(time.Microsecond), reply), nil
}

func writeSummary(out io.Writer, s *sim.Simulation) {
	for _, st := range s.Stats() {
		fmt.Fprintf(out, "%s  established=%d transit=%d sent=%d received=%d rejected=%d\n",
			st.ID.Short(), st.Paths[path.Established], st.TransitHops, st.Sent, st.Received, st.BuildRejections)
	}
}
