package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"studium/session"
	"studium/subject"
	"studium/tui"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Analyze a class recording or transcript",
	Long: `Analyze reads an audio file (transcribing it first) or a plain
text transcript, saves it as a session, and runs the analysis pipeline,
showing progress until the study material is ready.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().String("subject", "", "Subject id (english, sgbd)")
	analyzeCmd.Flags().String("title", "", "Session title")
	analyzeCmd.Flags().String("language", "", "Language hint for transcription")
	analyzeCmd.Flags().
		Bool("gemini", false, "Transcribe with Gemini instead of the local whisper server")
}

var audioExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".ogg":  true,
	".opus": true,
	".flac": true,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	path := args[0]

	text, duration, err := loadTranscript(cmd, path)
	if err != nil {
		return err
	}

	subjectID := subjectFlagValue(cmd)
	if subjectID == "" {
		subjectID, err = pickSubject()
		if err != nil {
			return err
		}
	}

	title, _ := cmd.Flags().GetString("title")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	manager := newManager(store)
	obs, events := session.NewEventChannel(64)

	classID, err := manager.SaveSession(
		cmd.Context(),
		text,
		title,
		duration,
		subjectID,
		path,
		obs,
	)
	if err != nil {
		return err
	}

	logger.Info("session saved", "class_id", classID, "subject", subjectID)

	if err := tui.Run(events); err != nil {
		return fmt.Errorf("progress UI: %w", err)
	}

	fmt.Printf("Session %d analyzed. Run `studium serve` to browse it.\n", classID)
	return nil
}

func loadTranscript(
	cmd *cobra.Command,
	path string,
) (text string, durationSec int, err error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !audioExtensions[ext] {
		raw, err := os.ReadFile(path)
		if err != nil {
			return "", 0, fmt.Errorf("read transcript: %w", err)
		}
		return string(raw), 0, nil
	}

	transcriber, err := newTranscriber(cmd)
	if err != nil {
		return "", 0, err
	}

	language, _ := cmd.Flags().GetString("language")
	logger.Info("transcribing audio", "file", path)

	result, err := transcriber.Transcribe(cmd.Context(), path, language)
	if err != nil {
		return "", 0, fmt.Errorf("transcribe %s: %w", path, err)
	}
	return result.Text, int(result.Duration), nil
}

func pickSubject() (string, error) {
	options := make([]huh.Option[string], 0)
	for _, cfg := range subject.All() {
		options = append(options, huh.NewOption(
			fmt.Sprintf("%s %s", cfg.Icon, cfg.Name),
			cfg.ID,
		))
	}

	var subjectID string
	err := huh.NewSelect[string]().
		Title("What kind of class is this?").
		Options(options...).
		Value(&subjectID).
		Run()
	if err != nil {
		return "", fmt.Errorf("select subject: %w", err)
	}
	return subjectID, nil
}
