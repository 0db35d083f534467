package main

import (
	"fmt"
	"strings"

	"github.com/fgeck/wakelaunch/internal/services/netif"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces [host-ip-prefix]",
	Short: "List network interfaces",
	Long: `List the local network interfaces and their addresses. With a host IP prefix
the interface the service would capture on is marked with '*'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: listInterfaces,
}

func listInterfaces(cmd *cobra.Command, args []string) error {
	ifaces, err := netif.New(log.Logger).List()
	if err != nil {
		log.Error().Err(err).Msg("failed to list interfaces")
		return err
	}

	var prefix string
	if len(args) > 0 {
		prefix = args[0]
	}
	selected := netif.Match(ifaces, prefix)

	for _, iface := range ifaces {
		mark := " "
		if selected != nil && selected.Index == iface.Index {
			mark = "*"
		}
		fmt.Printf("%s %-16s %-17s %s\n", mark, iface.Name, iface.HardwareAddr, strings.Join(iface.Addrs, ", "))
	}

	if prefix != "" && selected == nil {
		return fmt.Errorf("%w: %q", netif.ErrNoMatchingInterface, prefix)
	}

	return nil
}
