package tools

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/subsecond-dev/subsecond/pkg/subserr"
	"github.com/subsecond-dev/subsecond/pkg/utils"
)

var docsTopic string

// supportedTopics mirrors cucaracha's module->doc-string map, one entry
// per thing an operator might need a quick reference for while setting
// up a patch session.
var supportedTopics = map[string]func() string{
	"errors": errorTaxonomyDoc,
	"wire":   wireProtocolDoc,
}

var docsCmd = &cobra.Command{
	Use:   "docs topic",
	Short: "Show subsecond reference documentation",
	Long: `Dumps reference documentation for one topic. By default the tool
dumps to stdout; use --output to redirect to a file.

Supported topics:
` + topicList(),
	Args:      cobra.MatchAll(cobra.OnlyValidArgs, cobra.ExactArgs(1)),
	ValidArgs: topicNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		docsTopic = args[0]
		outputFile, _ := cmd.Flags().GetString("output")
		text := supportedTopics[docsTopic]()
		if outputFile == "" {
			fmt.Println(text)
			return nil
		}
		if err := os.WriteFile(outputFile, []byte(text+"\n"), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", outputFile, err)
		}
		return nil
	},
}

func topicNames() []string {
	names := make([]string, 0, len(supportedTopics))
	for name := range supportedTopics {
		names = append(names, name)
	}
	return names
}

func topicList() string {
	names := topicNames()
	lines := make([]string, len(names))
	for i, n := range names {
		lines[i] = "  " + n
	}
	return strings.Join(lines, "\n")
}

func errorTaxonomyDoc() string {
	return strings.Join([]string{
		"subserr.ErrInvalidObject: " + subserr.ErrInvalidObject.Error(),
		"subserr.ErrUnsupportedRelocation: " + subserr.ErrUnsupportedRelocation.Error(),
		"subserr.ErrChangedDataRequiresReload: " + subserr.ErrChangedDataRequiresReload.Error(),
		"subserr.ErrBuilderVerificationFailed: " + subserr.ErrBuilderVerificationFailed.Error(),
		"subserr.ErrAslrReconciliationFailed: " + subserr.ErrAslrReconciliationFailed.Error(),
		"subserr.ErrPatchLoadFailed: " + subserr.ErrPatchLoadFailed.Error(),
		"subserr.ErrUnwindTimeout: " + subserr.ErrUnwindTimeout.Error(),
		"subserr.ErrFullReloadRequired: " + subserr.ErrFullReloadRequired.Error(),
	}, "\n")
}

func wireProtocolDoc() string {
	header := utils.AsciiFrame([]utils.AsciiFrameField{
		{Name: "length", Begin: 0, Width: 4},
		{Name: "kind", Begin: 4, Width: 1},
		{Name: "payload", Begin: 5, Width: 3},
	}, 8, "byte", utils.AsciiFrameUnitLayout_LeftToRight, 0)

	return header + `length is big-endian, payload width shown above is illustrative; the
real payload runs to the frame's declared length.
kind 1: handshake (runtime_anchor_addr uint64, pid uint32)
kind 2: patch message (sequence, target pid filter, artifact bytes, jump table)
kind 3: diagnostic (kind string, sequence, message)`
}

func init() {
	ToolsCmd.AddCommand(docsCmd)
	docsCmd.Flags().StringP("output", "o", "", "Output file. If not specified, dumps to stdout.")
}
