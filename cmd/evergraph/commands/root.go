package commands

import (
	"github.com/evergraph/evergraph/src/config"
	"github.com/spf13/cobra"
)

var _config = config.NewDefaultConfig()

//RootCmd is the root command for Evergraph
var RootCmd = &cobra.Command{
	Use:              "evergraph",
	Short:            "evergraph p2p event graph",
	TraverseChildren: true,
}
