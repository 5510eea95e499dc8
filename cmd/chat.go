package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hire-intake/internal/intake"
	"github.com/spigell/hire-intake/internal/logger"
	"github.com/spigell/hire-intake/internal/store"
)

const chatExit = "exit"

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the intake assistant in the terminal",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return chat(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func chat(ctx context.Context, out io.Writer) error {
	// stdout belongs to the prompt.
	rt, err := setup(ctx, "memory", logger.WithOutput("stderr"))
	if err != nil {
		return err
	}
	defer rt.close()

	cid, err := rt.store.EnsureConversation(ctx, "local", "cli", uuid.NewString())
	if err != nil {
		return fmt.Errorf("starting conversation: %w", err)
	}
	log := logger.WithFields(rt.logger, logger.ConversationFields(cid, "cli", "")...)

	fmt.Fprintf(out, "Describe the role you are hiring for. Type %q to leave.\n", chatExit)

	input := promptui.Prompt{Label: "You"}
	for {
		text, err := input.Run()
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if strings.EqualFold(text, chatExit) {
			return nil
		}

		if _, err := rt.store.IngestMessage(ctx, cid, store.Message{Role: store.RoleUser, Text: text}, ""); err != nil {
			return fmt.Errorf("storing message: %w", err)
		}

		res, err := rt.engine.Turn(ctx, intake.TurnInput{ConversationID: cid, Text: text})
		if err != nil {
			return fmt.Errorf("running turn: %w", err)
		}

		reply := store.Message{
			Role: store.RoleAssistant,
			Text: res.Text,
			Meta: store.Meta{Stage: res.Stage.String(), Slots: &res.Slots, Intent: res.Intent},
		}
		if _, err := rt.store.IngestMessage(ctx, cid, reply, ""); err != nil {
			return fmt.Errorf("storing reply: %w", err)
		}

		log.Debug("turn finished",
			zap.String(logger.FieldStage, res.Stage.String()),
			zap.Strings("missing", logger.KeyNames(res.Missing)),
		)

		fmt.Fprintf(out, "\nAssistant: %s\n", res.Text)
		if len(res.Suggestions) > 0 {
			fmt.Fprintf(out, "Suggestions: %s\n", strings.Join(res.Suggestions, " | "))
		}
		fmt.Fprintf(out, "[stage: %s]\n\n", res.Stage)
	}
}
