package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/commerce-client/cli/internal/ui"
	"github.com/satishbabariya/commerce-client/schema"
)

var describeCmd = &cobra.Command{
	Use:   "describe [model]",
	Short: "Describe a model's fields and relations",
	Long:  "Describe one model, or list every model when none is named.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runDescribe,
}

var describeJSON bool

func init() {
	describeCmd.Flags().BoolVar(&describeJSON, "json", false, "Print the description as JSON")
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	reg, err := registry()
	if err != nil {
		return err
	}

	if len(args) == 0 {
		rows := make([][]string, 0)
		for _, m := range reg.Models() {
			rows = append(rows, []string{m.Name, fmt.Sprint(len(m.Fields)), fmt.Sprint(len(m.Relations))})
		}
		return ui.PrintTable([]string{"Model", "Fields", "Relations"}, rows)
	}

	m, err := reg.DescribeModel(args[0])
	if err != nil {
		return err
	}
	if describeJSON {
		return printJSON(cmd, describeModel(m))
	}
	return ui.PrintMarkdown(modelMarkdown(m))
}

type fieldInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
	ID       bool   `json:"id,omitempty"`
	Unique   bool   `json:"unique,omitempty"`
	Default  string `json:"default,omitempty"`
}

type relationInfo struct {
	Name     string `json:"name"`
	Target   string `json:"target"`
	ToMany   bool   `json:"toMany"`
	Fields   string `json:"fields"`
	OnDelete string `json:"onDelete,omitempty"`
}

type modelInfo struct {
	Name      string         `json:"name"`
	Fields    []fieldInfo    `json:"fields"`
	Relations []relationInfo `json:"relations"`
}

func describeModel(m *schema.Model) modelInfo {
	info := modelInfo{Name: m.Name, Fields: []fieldInfo{}, Relations: []relationInfo{}}
	for _, f := range m.Fields {
		info.Fields = append(info.Fields, fieldInfo{
			Name:     f.Name,
			Type:     string(f.Type),
			Nullable: f.Nullable,
			ID:       f.ID,
			Unique:   f.Unique,
			Default:  defaultString(f.Default),
		})
	}
	for _, r := range m.Relations {
		ri := relationInfo{
			Name:   r.Name,
			Target: r.Target,
			ToMany: r.ToMany,
			Fields: fmt.Sprintf("%s.%s -> %s.%s", m.Name, r.LocalField, r.Target, r.ForeignField),
		}
		if !r.ToMany {
			ri.OnDelete = string(r.OnDelete)
		}
		info.Relations = append(info.Relations, ri)
	}
	return info
}

func defaultString(d *schema.Default) string {
	if d == nil {
		return ""
	}
	switch d.Kind {
	case schema.DefaultAutoincrement:
		return "autoincrement()"
	case schema.DefaultNow:
		return "now()"
	}
	return fmt.Sprint(d.Value)
}

// modelMarkdown renders a model as markdown tables.
func modelMarkdown(m *schema.Model) string {
	info := describeModel(m)
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n## Fields\n\n| Field | Type | Attributes |\n|---|---|---|\n", info.Name)
	for _, f := range info.Fields {
		var attrs []string
		if f.ID {
			attrs = append(attrs, "@id")
		}
		if f.Unique && !f.ID {
			attrs = append(attrs, "@unique")
		}
		if f.Default != "" {
			attrs = append(attrs, "@default("+f.Default+")")
		}
		typ := f.Type
		if f.Nullable {
			typ += "?"
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", f.Name, typ, strings.Join(attrs, " "))
	}
	if len(info.Relations) > 0 {
		b.WriteString("\n## Relations\n\n| Relation | Target | Keys | On delete |\n|---|---|---|---|\n")
		for _, r := range info.Relations {
			target := r.Target
			if r.ToMany {
				target += "[]"
			}
			fmt.Fprintf(&b, "| %s | %s | `%s` | %s |\n", r.Name, target, r.Fields, r.OnDelete)
		}
	}
	return b.String()
}
