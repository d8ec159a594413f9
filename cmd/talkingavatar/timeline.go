package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hgittham/talkingavatar/internal/mouth"
)

var flagHintMs float64

var timelineCmd = &cobra.Command{
	Use:   "timeline [text...]",
	Short: "Print the heuristic viseme timeline for text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		tl := mouth.Build(text, flagHintMs)

		fmt.Printf("duration %.0fms, %d events\n", tl.DurationMs, len(tl.Events))
		for _, ev := range tl.Events {
			fmt.Printf("%8.1fms  %-9s  intensity %.2f  hold %.1fms\n",
				ev.TimeMs, ev.Shape, ev.Intensity, ev.DurationMs)
		}
		return nil
	},
}

func init() {
	timelineCmd.Flags().Float64Var(&flagHintMs, "duration-ms", 0, "override the estimated total duration")
}
