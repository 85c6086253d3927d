package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/buemura/reconcraft/internal/profile"
	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect scan profiles and edit the custom profile",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scan profiles",
	Run: func(cmd *cobra.Command, args []string) {
		current := profile.Canonical(appConfig.Profile)
		for _, n := range profile.Names {
			marker := "  "
			if n == current {
				marker = color.GreenString("* ")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\n", marker, n)
		}
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the custom args per tool",
	RunE: func(cmd *cobra.Command, args []string) error {
		custom, err := customArgs(appConfig, nil)
		if err != nil {
			return err
		}
		if len(custom) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No custom args in %s\n", customFilePath(appConfig))
			return nil
		}

		tools := make([]string, 0, len(custom))
		for t := range custom {
			tools = append(tools, t)
		}
		sort.Strings(tools)
		for _, t := range tools {
			fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s\n", t, custom[t])
		}
		return nil
	},
}

var profileSetCmd = &cobra.Command{
	Use:   "set <tool> <args>...",
	Short: "Set the custom args for a tool",
	Long: `Stores args for tool in the custom profile file. Use {target} or
{{target}} where the target goes; DISABLED turns the tool off.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editCustomArgs(cmd, func(m map[string]string) {
			m[strings.ToLower(args[0])] = strings.Join(args[1:], " ")
		})
	},
}

var profileUnsetCmd = &cobra.Command{
	Use:   "unset <tool>",
	Short: "Remove a tool from the custom profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return editCustomArgs(cmd, func(m map[string]string) {
			delete(m, strings.ToLower(args[0]))
		})
	},
}

func init() {
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSetCmd)
	profileCmd.AddCommand(profileUnsetCmd)
	rootCmd.AddCommand(profileCmd)
}

func editCustomArgs(cmd *cobra.Command, edit func(map[string]string)) error {
	fsys := afero.NewOsFs()
	path := customFilePath(appConfig)

	args, err := profile.LoadCustomArgs(fsys, path)
	if err != nil {
		return err
	}
	edit(args)
	if err := profile.SaveCustomArgs(fsys, path, args); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
	return nil
}
