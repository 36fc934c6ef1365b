package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	clog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"liteagent/internal/session"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List available configuration templates",
	Args:  cobra.NoArgs,
	RunE:  runTemplates,
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}

func runTemplates(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagTemplates != "" {
		cfg.TemplatesFile = flagTemplates
	}

	f := session.NewFactory(session.WithLogger(clog.NewWithOptions(io.Discard, clog.Options{})))
	if cfg.TemplatesFile != "" {
		if err := f.LoadTemplates(cfg.TemplatesFile); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMEMORY\tCPU\tTIMEOUT\tNETWORK\tFS\tPACKAGES")
	for _, name := range f.TemplateNames() {
		t, _ := f.Template(name)
		network := "off"
		if t.NetworkEnabled {
			network = "on"
		}
		fmt.Fprintf(w, "%s\t%s\t%g\t%ds\t%s\t%s\t%s\n",
			name, t.MemoryLimit, t.CPULimit, t.TimeoutSeconds,
			network, t.FilesystemMode, strings.Join(t.AuthorizedPackages, ","))
	}
	return w.Flush()
}
