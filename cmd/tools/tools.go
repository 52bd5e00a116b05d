package tools

import (
	"github.com/spf13/cobra"
)

// ToolsCmd groups miscellaneous subsecond tooling that doesn't belong
// under build/apply/serve/watch.
var ToolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "subsecond miscellaneous tools",
}

func init() {
}
