package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newLiveCommand(ctx *commandContext) *cobra.Command {
	var recordPath string

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Talk with the model using the microphone and speakers",
		Long:  "Requires ffmpeg for microphone capture and ffplay for playback.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			obs := newTerminalObserver(out, true)
			obs.record = recordPath != ""
			s := ctx.newStudio(obs, true)
			defer s.Close()

			if err := s.StartLiveSession(cmd.Context()); err != nil {
				return err
			}

			enter := make(chan struct{})
			go func() {
				_, _ = bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				close(enter)
			}()
			select {
			case <-enter:
			case <-obs.liveEnded:
			case <-cmd.Context().Done():
			}

			s.StopLiveSession()
			if obs.record {
				ok, err := obs.writeRecording(recordPath)
				if err != nil {
					return err
				}
				if ok {
					fmt.Fprintf(out, "Saved model audio to %s\n", recordPath)
				}
			}

			if err := cmd.Context().Err(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&recordPath, "record", "", "Save the model's spoken audio to this WAV file")
	return cmd
}
