package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"studium/agent"
	"studium/db"
	"studium/llm"
	"studium/session"
	"studium/stt"
	"studium/subject"
)

var logger *log.Logger

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(dbCmd)

	rootCmd.PersistentFlags().
		String("db", "studium.db", "Path to the sqlite database")
	rootCmd.PersistentFlags().
		String("ollama-url", llm.DefaultOllamaURL, "Ollama server URL")
	rootCmd.PersistentFlags().
		String("ollama-model", llm.DefaultOllamaModel, "Ollama model name")
	rootCmd.PersistentFlags().
		String("whisper-url", stt.DefaultWhisperURL, "Whisper server URL")
	rootCmd.PersistentFlags().
		String("gemini-api-key", "", "Gemini API key (cloud transcription fallback)")

	viper.BindPFlag("db_path", rootCmd.PersistentFlags().Lookup("db"))
	viper.BindPFlag(
		"ollama_url",
		rootCmd.PersistentFlags().Lookup("ollama-url"),
	)
	viper.BindPFlag(
		"ollama_model",
		rootCmd.PersistentFlags().Lookup("ollama-model"),
	)
	viper.BindPFlag(
		"whisper_url",
		rootCmd.PersistentFlags().Lookup("whisper-url"),
	)
	viper.BindPFlag(
		"gemini_api_key",
		rootCmd.PersistentFlags().Lookup("gemini-api-key"),
	)
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Printf("Error reading config file: %s\n", err)
		}
	}

	logger = log.New(os.Stderr)
}

var rootCmd = &cobra.Command{
	Use:   "studium",
	Short: "Studium turns class recordings into study material",
	Long: `Studium transcribes class recordings, runs a local LLM analysis
pipeline over the transcript, and builds a summary, vocabulary, a quiz,
flashcards, and grammar notes you can review later.`,
}

func openStore() (*db.DB, error) {
	return db.Open(viper.GetString("db_path"), logger)
}

func newLanguageModel() *llm.OllamaLanguageModel {
	return llm.NewOllamaLanguageModel(
		viper.GetString("ollama_url"),
		viper.GetString("ollama_model"),
		logger,
	)
}

func newManager(store *db.DB) *session.Manager {
	model := newLanguageModel()
	return session.NewManager(store, model, agent.New(model, logger), logger)
}

func newTranscriber(cmd *cobra.Command) (stt.Transcriber, error) {
	useGemini, _ := cmd.Flags().GetBool("gemini")
	if useGemini {
		apiKey := viper.GetString("gemini_api_key")
		if apiKey == "" {
			return nil, fmt.Errorf("gemini transcription requires --gemini-api-key")
		}
		return stt.NewGeminiTranscriber(cmd.Context(), apiKey)
	}
	return stt.NewWhisperClient(viper.GetString("whisper_url")), nil
}

func subjectFlagValue(cmd *cobra.Command) string {
	id, _ := cmd.Flags().GetString("subject")
	if id == "" {
		id = viper.GetString("default_subject")
	}
	if id != "" && !subject.Known(id) {
		logger.Warn(
			"unknown subject, using default",
			"subject", id,
			"default", subject.DefaultID,
		)
		return subject.DefaultID
	}
	return id
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
