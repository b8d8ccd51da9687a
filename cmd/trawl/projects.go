package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"loomworks/trawl/pkg/api"
	"loomworks/trawl/pkg/cli"
	"loomworks/trawl/pkg/config"
	"loomworks/trawl/pkg/telemetry/logging"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects visible to the API key",
	RunE:  runProjects,
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}

func runProjects(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigOrDefault(cfgFile)
	if err != nil {
		return cli.NewCommandError("projects", err)
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if _, err := logging.Setup(cfg.Telemetry.Logging); err != nil {
		return cli.NewCommandError("projects", err)
	}

	if cfg.API.BaseURL == "" || cfg.API.APIKey == "" {
		return cli.NewCommandError("projects",
			fmt.Errorf("api.base_url and api.api_key must be configured"))
	}

	client := api.NewClient(api.ClientConfig{
		BaseURL:   cfg.API.BaseURL,
		APIKey:    cfg.API.APIKey,
		Timeout:   cfg.API.Timeout,
		PageLimit: cfg.API.PageLimit,
	})

	ctx := cli.SetupSignalHandler()
	projects, err := client.ListProjects(ctx)
	if err != nil {
		return cli.NewCommandError("projects", err)
	}

	if len(projects) == 0 {
		fmt.Println("no projects found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME")
	for _, p := range projects {
		fmt.Fprintf(w, "%s\t%s\n", p.ID, p.Name)
	}
	return w.Flush()
}
