package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file>",
	Short: "Transcribe an audio file and print the text",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscribe,
}

func init() {
	transcribeCmd.Flags().String("language", "", "Language hint")
	transcribeCmd.Flags().
		Bool("gemini", false, "Transcribe with Gemini instead of the local whisper server")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	transcriber, err := newTranscriber(cmd)
	if err != nil {
		return err
	}

	language, _ := cmd.Flags().GetString("language")
	result, err := transcriber.Transcribe(cmd.Context(), args[0], language)
	if err != nil {
		return err
	}

	fmt.Println(result.Text)
	return nil
}
