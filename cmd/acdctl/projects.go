package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vehicle-quality/acd-registry/pkg/investigation"
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"project", "p"},
	Short:   "List, show and create investigation projects",
}

var (
	listQuery  string
	listStatus string
	listModel  string
	listMarket string
)

var projectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var list investigation.ProjectList
		if err := newClient().getJSON("/api/projects"+filterQuery(), &list); err != nil {
			return err
		}
		if structured() {
			return printOutput(cmd.OutOrStdout(), list)
		}
		rows := make([][]string, 0, len(list.Projects))
		for _, p := range list.Projects {
			rows = append(rows, []string{
				p.ProjectID,
				truncate(p.Title, 40),
				p.Market,
				p.Model,
				string(p.Status),
				strconv.Itoa(p.Severity),
				strconv.Itoa(p.AgeDays),
				fmt.Sprintf("%.2f", p.CoverageRatio),
			})
		}
		printTable(cmd.OutOrStdout(), []string{"ID", "Title", "Market", "Model", "Status", "Sev", "Age", "Coverage"}, rows)
		return nil
	},
}

func filterQuery() string {
	q := url.Values{}
	for key, val := range map[string]string{
		"q":      listQuery,
		"status": listStatus,
		"model":  listModel,
		"market": listMarket,
	} {
		if val != "" {
			q.Set(key, val)
		}
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

var projectsGetCmd = &cobra.Command{
	Use:   "get PROJECT_ID",
	Short: "Show one project with its linked sources",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var p investigation.Project
		if err := newClient().getJSON("/api/projects/"+url.PathEscape(args[0]), &p); err != nil {
			return err
		}
		return printProject(cmd, &p)
	},
}

var (
	createInput    investigation.CreateProjectInput
	createSeverity int
	createSource   string
)

var projectsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a project, optionally with an initial source (TYPE:ID)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		in := createInput
		if cmd.Flags().Changed("severity") {
			sev := createSeverity
			in.Severity = &sev
		}
		if createSource != "" {
			ref, err := parseSourceRef(createSource)
			if err != nil {
				return err
			}
			in.SourceType, in.SourceID = ref.SourceType, ref.SourceID
		}

		var p investigation.Project
		if err := newClient().postJSON("/api/projects", in, &p); err != nil {
			return err
		}
		return printProject(cmd, &p)
	},
}

func init() {
	f := projectsListCmd.Flags()
	f.StringVarP(&listQuery, "query", "q", "", "Case-insensitive match on ID, VIN, part number or title")
	f.StringVar(&listStatus, "status", "", "Exact status")
	f.StringVar(&listModel, "model", "", "Exact vehicle model")
	f.StringVar(&listMarket, "market", "", "Exact market")

	f = projectsCreateCmd.Flags()
	f.StringVar(&createInput.Title, "title", "", "Title (required)")
	f.StringVar(&createInput.SymptomCode, "symptom-code", "", "Symptom code (required)")
	f.StringVar(&createInput.Market, "market", "", "Market (required)")
	f.StringVar(&createInput.Model, "model", "", "Vehicle model (required)")
	f.StringVar(&createInput.Description, "description", "", "Description")
	f.StringVar(&createInput.Region, "region", "", "Region")
	f.StringVar(&createInput.Platform, "platform", "", "Platform")
	f.StringVar(&createInput.PartNo, "part-no", "", "Part number")
	f.StringVar(&createInput.VIN, "vin", "", "VIN")
	f.IntVar(&createSeverity, "severity", investigation.DefaultSeverity, "Severity")
	f.StringSliceVar(&createInput.Labels, "label", nil, "Label (repeatable)")
	f.StringVar(&createSource, "source", "", "Initial source as TYPE:ID, e.g. Warranty:W99887")

	projectsCmd.AddCommand(projectsListCmd)
	projectsCmd.AddCommand(projectsGetCmd)
	projectsCmd.AddCommand(projectsCreateCmd)
}

func parseSourceRef(s string) (investigation.SourceRef, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok || typ == "" || id == "" {
		return investigation.SourceRef{}, fmt.Errorf("source %q must be TYPE:ID", s)
	}
	return investigation.SourceRef{SourceType: typ, SourceID: id}, nil
}

func printProject(cmd *cobra.Command, p *investigation.Project) error {
	if structured() {
		return printOutput(cmd.OutOrStdout(), p)
	}
	sources := make([]string, len(p.Sources))
	for i, s := range p.Sources {
		sources[i] = s.SourceType + ":" + s.SourceID
	}
	rows := [][]string{
		{"ID", p.ProjectID},
		{"Title", p.Title},
		{"Status", string(p.Status)},
		{"Market", strings.TrimSpace(p.Market + " " + p.Region)},
		{"Model", strings.TrimSpace(p.Model + " " + p.Platform)},
		{"Symptom", p.SymptomCode},
		{"Severity", strconv.Itoa(p.Severity)},
		{"VIN", p.VIN},
		{"Part No", p.PartNo},
		{"Labels", strings.Join(p.Labels, ", ")},
		{"Created", p.CreatedAt + " by " + p.CreatedBy},
		{"Age (days)", strconv.Itoa(p.AgeDays)},
		{"Coverage", fmt.Sprintf("%.2f", p.CoverageRatio)},
		{"Sources", strings.Join(sources, ", ")},
	}
	printTable(cmd.OutOrStdout(), []string{"Field", "Value"}, rows)
	return nil
}
