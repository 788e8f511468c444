package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/lanscan/internal/discovery"
	"github.com/anstrom/lanscan/internal/services"
)

var (
	networksClearForce bool
	networksSeed       bool
)

// networksCmd represents the networks command.
var networksCmd = &cobra.Command{
	Use:   "networks",
	Short: "Manage the stored network list",
	Long: `View and manage the ranges scanned when a session is started without
explicit ranges. The list is stored as a JSON array in networks_file and every
range is kept in canonical form with host bits cleared.`,
	Example: `  lanscan networks list
  lanscan networks add 192.168.1.0/24
  lanscan networks remove 192.168.1.0/24
  lanscan networks import ranges.txt
  lanscan networks validate 10.0.0.7/24`,
}

var networksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored networks",
	Args:  cobra.NoArgs,
	RunE:  runNetworksList,
}

var networksAddCmd = &cobra.Command{
	Use:     "add <cidr>",
	Short:   "Add a network",
	Example: `  lanscan networks add 192.168.1.0/24`,
	Args:    cobra.ExactArgs(1),
	RunE:    runNetworksAdd,
}

var networksRemoveCmd = &cobra.Command{
	Use:   "remove <cidr>",
	Short: "Remove a network",
	Args:  cobra.ExactArgs(1),
	RunE:  runNetworksRemove,
}

var networksClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every stored network",
	Args:  cobra.NoArgs,
	RunE:  runNetworksClear,
}

var networksImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Import networks, one per line",
	Long: `Merge ranges read from a file, or stdin when the file is "-", into the
stored list. Blank lines and lines starting with '#' are ignored. Invalid
ranges are reported and skipped.`,
	Example: `  lanscan networks import ranges.txt
  cat ranges.txt | lanscan networks import -`,
	Args: cobra.ExactArgs(1),
	RunE: runNetworksImport,
}

var networksValidateCmd = &cobra.Command{
	Use:   "validate <cidr>",
	Short: "Check a range without storing it",
	Args:  cobra.ExactArgs(1),
	RunE:  runNetworksValidate,
}

func init() {
	rootCmd.AddCommand(networksCmd)
	networksCmd.AddCommand(networksListCmd)
	networksCmd.AddCommand(networksAddCmd)
	networksCmd.AddCommand(networksRemoveCmd)
	networksCmd.AddCommand(networksClearCmd)
	networksCmd.AddCommand(networksImportCmd)
	networksCmd.AddCommand(networksValidateCmd)

	networksListCmd.Flags().BoolVar(&networksSeed, "seed", false, "Write the default networks when no list exists yet")
	networksClearCmd.Flags().BoolVar(&networksClearForce, "force", false, "Confirm removal of every network")
}

func networkService() (*services.NetworkService, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return services.NewNetworkService(cfg.NetworksFile), nil
}

func runNetworksList(cmd *cobra.Command, _ []string) error {
	svc, err := networkService()
	if err != nil {
		return err
	}

	if networksSeed {
		seeded, err := svc.Seed(services.DefaultNetworks)
		if err != nil {
			return err
		}
		if seeded {
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %s with default networks\n", svc.Path())
		}
	}

	networks, err := svc.List()
	if err != nil {
		return err
	}
	printNetworks(cmd.OutOrStdout(), networks)
	return nil
}

func runNetworksAdd(cmd *cobra.Command, args []string) error {
	svc, err := networkService()
	if err != nil {
		return err
	}

	canonical, added, err := svc.Add(args[0])
	if err != nil {
		return err
	}
	if added {
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", canonical)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is already stored\n", canonical)
	}
	return nil
}

func runNetworksRemove(cmd *cobra.Command, args []string) error {
	svc, err := networkService()
	if err != nil {
		return err
	}

	removed, err := svc.Remove(args[0])
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("network %s is not stored", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
	return nil
}

func runNetworksClear(cmd *cobra.Command, _ []string) error {
	if !networksClearForce {
		return fmt.Errorf("refusing to clear the network list without --force")
	}

	svc, err := networkService()
	if err != nil {
		return err
	}
	if err := svc.Clear(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Cleared all networks")
	return nil
}

func runNetworksImport(cmd *cobra.Command, args []string) error {
	svc, err := networkService()
	if err != nil {
		return err
	}

	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", args[0], err)
		}
		defer f.Close()
		r = f
	}

	result, err := svc.Import(r)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %d network(s), %d already stored, %d invalid\n",
		len(result.Added), len(result.Skipped), len(result.Invalid))
	for _, n := range result.Invalid {
		fmt.Fprintf(out, "  invalid: %s\n", n)
	}
	return nil
}

func runNetworksValidate(cmd *cobra.Command, args []string) error {
	canonical, err := services.Canonical(args[0])
	if err != nil {
		return err
	}

	prefix, _ := discovery.ParseRange(canonical)
	fmt.Fprintf(cmd.OutOrStdout(), "%s is valid (%s, %d host address(es))\n",
		args[0], canonical, discovery.HostCount(prefix))
	return nil
}

// printNetworks renders the stored list with the host count of each range.
func printNetworks(w io.Writer, networks []string) {
	if len(networks) == 0 {
		fmt.Fprintln(w, "No networks stored. Add one with 'lanscan networks add <cidr>'.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("#", "Network", "Hosts")
	for i, n := range networks {
		hosts := "-"
		if prefix, err := discovery.ParseRange(n); err == nil {
			hosts = strconv.Itoa(discovery.HostCount(prefix))
		}
		_ = table.Append([]string{strconv.Itoa(i + 1), n, hosts})
	}
	_ = table.Render()
}
