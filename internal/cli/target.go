package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ZJvandeWeg/rust-red/internal/target"
)

// TargetOptions holds flags for the target command.
type TargetOptions struct {
	*RootOptions
	Root    string
	Triple  string
	Profile string
}

// TargetReport is the JSON payload of a target command.
type TargetReport struct {
	Path    string `json:"path"`
	Exists  bool   `json:"exists"`
	Root    string `json:"root"`
	Triple  string `json:"triple,omitempty"`
	Profile string `json:"profile"`
}

// NewTargetCommand creates the target command.
func NewTargetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TargetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "target",
		Short: "Show where the target binary is resolved from",
		Long: `Print the rust-red binary path computed from the build layout and
whether a binary exists there. Flags override the RUSTRED_ROOT,
RUSTRED_BUILD_TARGET and RUSTRED_BUILD_PROFILE environment variables.

Exit codes:
  0 - Binary found at the resolved path
  2 - No binary at the resolved path`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showTarget(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Root, "root", "", "checkout directory containing target/")
	cmd.Flags().StringVar(&opts.Triple, "triple", "", "cross-compilation target triple")
	cmd.Flags().StringVar(&opts.Profile, "profile", "", "cargo profile (debug, release)")

	return cmd
}

func showTarget(opts *TargetOptions, cmd *cobra.Command) error {
	cfg := target.FromEnv()
	if opts.Root != "" {
		cfg.Root = opts.Root
	}
	if opts.Triple != "" {
		cfg.Triple = opts.Triple
	}
	if opts.Profile != "" {
		cfg.Profile = opts.Profile
	}

	path, resolveErr := cfg.Resolve()
	exists := resolveErr == nil
	if !exists {
		path = cfg.ExecutablePath()
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		if err := formatter.Success(TargetReport{
			Path:    path,
			Exists:  exists,
			Root:    cfg.Root,
			Triple:  cfg.Triple,
			Profile: cfg.Profile,
		}); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		fmt.Fprintln(w, path)
		if !exists {
			fmt.Fprintln(w, "(not found, build the target first)")
		}
	}

	if !exists {
		return WrapExitError(ExitCommandError, "target binary not found", resolveErr)
	}
	return nil
}
