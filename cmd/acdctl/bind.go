package main

import (
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/vehicle-quality/acd-registry/pkg/investigation"
)

var bindCmd = &cobra.Command{
	Use:   "bind TYPE:ID PROJECT_ID",
	Short: "Bind an upstream source record to a project",
	Long: `Bind attaches a source record to a project. A source belongs to at most
one project; binding a source owned by another project fails with a conflict
naming the owner. Binding it again to its owner reaffirms the link.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := parseSourceRef(args[0])
		if err != nil {
			return err
		}
		in := investigation.BindInput{SourceID: ref.SourceID, SourceType: ref.SourceType, ProjectID: args[1]}

		var p investigation.Project
		if err := newClient().postJSON("/api/bin", in, &p); err != nil {
			return err
		}
		return printProject(cmd, &p)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status PROJECT_ID STATUS",
	Short: "Change a project's status (Ready, Active, Containment, Closed)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{"status": args[1]}
		var p investigation.Project
		if err := newClient().postJSON("/api/projects/"+url.PathEscape(args[0])+"/status", body, &p); err != nil {
			return err
		}
		return printProject(cmd, &p)
	},
}

var sourceCmd = &cobra.Command{
	Use:   "source TYPE:ID",
	Short: "Show which project owns a source record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := parseSourceRef(args[0])
		if err != nil {
			return err
		}
		var link investigation.SourceLink
		path := "/api/sources/" + url.PathEscape(ref.SourceType) + "/" + url.PathEscape(ref.SourceID)
		if err := newClient().getJSON(path, &link); err != nil {
			return err
		}
		if structured() {
			return printOutput(cmd.OutOrStdout(), link)
		}
		printTable(cmd.OutOrStdout(), []string{"Source", "Project", "Linked By", "Linked At"}, [][]string{{
			link.SourceType + ":" + link.SourceID,
			link.OwnerProjectID,
			link.LinkedBy,
			link.LinkedAt.Format("2006-01-02 15:04"),
		}})
		return nil
	},
}

var exportFile string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download the filtered project list as CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := cmd.OutOrStdout()
		if exportFile != "" && exportFile != "-" {
			f, err := os.Create(exportFile)
			if err != nil {
				return fmt.Errorf("create %s: %w", exportFile, err)
			}
			defer f.Close()
			w = f
		}
		return newClient().download("/api/export"+filterQuery(), w)
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportFile, "file", "f", "", "Write to this file instead of stdout")
	f.StringVarP(&listQuery, "query", "q", "", "Case-insensitive match on ID, VIN, part number or title")
	f.StringVar(&listStatus, "status", "", "Exact status")
	f.StringVar(&listModel, "model", "", "Exact vehicle model")
	f.StringVar(&listMarket, "market", "", "Exact market")
}
