package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/labelcheck/internal/backend"
)

// BackendInfo describes one available backend.
type BackendInfo struct {
	Identity   backend.Identity `json:"identity"`
	Required   []string         `json:"required"`
	Configured bool             `json:"configured"`
	Missing    []string         `json:"missing,omitempty"`
}

// NewBackendsCommand creates the backends command.
func NewBackendsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List backends and whether their credentials are present",
		Long: `List every backend with the credential keys it needs.

Only the presence of each key is checked. Nothing is sent over the network.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackends(rootOpts, cmd)
		},
	}
}

func runBackends(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	infos := []BackendInfo{}
	for _, a := range opts.adapters(cfg) {
		info := BackendInfo{Identity: a.Identity(), Required: []string{}, Configured: a.Configured()}
		if d, ok := backend.DescriptorFor(a.Identity()); ok && d.Required != nil {
			info.Required = d.Required
		}
		if !info.Configured {
			info.Missing = backend.NotConfigured(a).Missing
		}
		infos = append(infos, info)
	}

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		return writeJSON(w, CLIResponse{Status: "ok", Data: infos})
	}
	for _, info := range infos {
		state := "configured"
		if !info.Configured {
			state = "not configured"
			if len(info.Missing) > 0 {
				state += " (missing " + strings.Join(info.Missing, ", ") + ")"
			}
		}
		required := "none"
		if len(info.Required) > 0 {
			required = strings.Join(info.Required, ", ")
		}
		fmt.Fprintf(w, "%-8s %s\n", info.Identity, state)
		fmt.Fprintf(w, "         requires: %s\n", required)
	}
	return nil
}
