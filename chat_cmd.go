package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"studium/agent"
	"studium/llm"
	"studium/subject"
)

var chatCmd = &cobra.Command{
	Use:   "chat <session-id>",
	Short: "Chat about a session with the AI tutor",
	Long: `Chat starts a roleplay conversation grounded in a saved session's
transcript. The tutor persona depends on the session's subject.`,
	Args: cobra.ExactArgs(1),
	RunE: runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	classID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid session id: %s", args[0])
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	class, err := store.GetClass(cmd.Context(), classID)
	if err != nil {
		return err
	}

	model := newLanguageModel()
	if !model.EnsureAvailable(cmd.Context(), func(status string) {
		fmt.Println(status)
	}) {
		return fmt.Errorf("LLM backend is not available")
	}

	tutor := agent.New(model, logger)
	subj := subject.Lookup(class.Subject)

	fmt.Printf(
		"%s %s: chatting about %q. Type 'exit' to quit.\n",
		subj.Icon,
		subj.Name,
		class.Title,
	)

	var history []llm.Message
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}

		reply, err := tutor.Chat(
			cmd.Context(),
			class.RawText,
			question,
			subj,
			history,
		)
		if err != nil {
			logger.Error("chat failed", "error", err)
			continue
		}

		fmt.Println(reply)
		history = append(history,
			llm.Message{Role: llm.RoleUser, Content: question},
			llm.Message{Role: llm.RoleAssistant, Content: reply},
		)
	}

	return scanner.Err()
}
