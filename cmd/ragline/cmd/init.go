package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ragline/ragline/configs"
	"github.com/ragline/ragline/internal/config"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration file",
		Long: `Init writes an annotated ragline.yaml into the current directory. All
values in the template are the defaults, so the file is safe to trim down
to just the settings you want to change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func runInit(force bool) error {
	path := config.DefaultFileName
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("%s %s\n", styleHeader("Wrote"), path)
	return nil
}
