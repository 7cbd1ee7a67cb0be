package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"lectern/internal/deck"
	"lectern/internal/timing"
)

func newTimingCommand(ctx *commandContext) *cobra.Command {
	var minutes float64

	cmd := &cobra.Command{
		Use:         "timing <deck.yaml>",
		Short:       "Show how the webinar duration is split across slides",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := deck.Load(args[0])
			if err != nil {
				return err
			}
			if minutes > 0 {
				d.DurationMinutes = minutes
			}
			if len(d.Slides) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Deck has no slides")
				return nil
			}

			slides := deck.Prepare(d.Slides)
			durations := timing.AllocateDurations(slides, d.TotalSeconds())
			offsets := timing.Offsets(durations)

			rows := make([][]string, len(slides))
			for i, slide := range slides {
				rows[i] = []string{
					strconv.Itoa(i + 1),
					slide.Title,
					slide.Type.Label(),
					fmt.Sprintf("%.2f", timing.Complexity(slide)),
					clock(offsets[i]),
					clock(durations[i]),
				}
			}
			table := renderTable(
				[]string{"#", "Title", "Type", "Complexity", "Starts", "Length"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight},
				"", "", "", "", "Total", clock(timing.Total(durations)),
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().Float64Var(&minutes, "minutes", 0, "Override the deck's duration in minutes")
	return cmd
}
