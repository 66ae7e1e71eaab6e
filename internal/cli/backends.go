package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"expenses/internal/backend"
	applog "expenses/internal/log"
)

// Each command runs in its own process, so memory records die with it.
const memoryNote = "ok (not kept between commands)"

// Probe is the outcome of opening one backend.
type Probe struct {
	Type  backend.BackendType
	Count int
	Err   error
}

// ProbeBackends opens every backend type concurrently and counts its
// records. A failing backend is reported in its Probe and does not stop
// the others.
func ProbeBackends(ctx context.Context, f backend.Factory, base backend.Config) []Probe {
	types := backend.GetBackendTypes()
	probes := make([]Probe, len(types))

	var g errgroup.Group
	for i, bt := range types {
		g.Go(func() error {
			probes[i] = probe(ctx, f, base.WithType(bt))
			return nil
		})
	}
	_ = g.Wait()

	return probes
}

func probe(ctx context.Context, f backend.Factory, cfg backend.Config) Probe {
	p := Probe{Type: cfg.Type}

	res, err := f.CreateBackend(ctx, cfg)
	if err != nil {
		p.Err = err
		return p
	}
	defer res.Close()

	all, err := res.Store.GetAll(ctx)
	if err != nil {
		p.Err = err
		return p
	}
	p.Count = len(all)
	return p
}

func newBackendsCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "Check which storage backends can be opened",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			base, err := backend.FromAppConfig(o.cfg)
			if err != nil {
				return err
			}

			logger := o.logger.WithComponent(applog.ComponentBackend)
			probes := ProbeBackends(cmd.Context(), backend.NewFactory(logger.Logger), base)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "BACKEND\tSTATUS\tRECORDS")
			for _, p := range probes {
				marker := " "
				if p.Type == base.Type {
					marker = "*"
				}
				if p.Err != nil {
					fmt.Fprintf(w, "%s%s\terror: %v\t-\n", marker, p.Type, p.Err)
					continue
				}
				status := "ok"
				if p.Type == backend.MemoryBackend {
					status = memoryNote
				}
				fmt.Fprintf(w, "%s%s\t%s\t%d\n", marker, p.Type, status, p.Count)
			}
			return w.Flush()
		},
	}
}
