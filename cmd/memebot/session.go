package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/m3rciful/memebot/core/bootstrap"
	"github.com/m3rciful/memebot/core/config"
	"github.com/m3rciful/memebot/meme/conversation"
	"github.com/m3rciful/memebot/meme/session"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or reset a chat's persisted conversation",
}

var sessionGetCmd = &cobra.Command{
	Use:   "get <chat-id>",
	Short: "Print the session record of a chat",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, args[0], func(store session.Store, key string) error {
			data, err := store.Get(cmd.Context(), key)
			if err != nil && !errors.Is(err, session.ErrNotFound) {
				return err
			}
			state, _ := conversation.Decode(data)
			out, err := json.MarshalIndent(conversation.ToRecord(state), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		})
	},
}

var sessionResetCmd = &cobra.Command{
	Use:   "reset <chat-id>",
	Short: "Put a chat back to the idle state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, args[0], func(store session.Store, key string) error {
			data, err := conversation.Encode(conversation.Idle{})
			if err != nil {
				return err
			}
			if err := store.Set(cmd.Context(), key, data); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset session %s\n", key)
			return nil
		})
	},
}

func withStore(cmd *cobra.Command, rawChatID string, fn func(session.Store, string) error) error {
	chatID, err := strconv.ParseInt(rawChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q", rawChatID)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	res, err := bootstrap.Run(cmd.Context(), bootstrap.Options{
		Config:     cfg,
		LoggerInit: func(*config.Config) error { return nil },
	})
	if err != nil {
		return err
	}
	defer res.Close()
	return fn(res.Store, conversation.ChatKey(chatID))
}

func init() {
	sessionCmd.AddCommand(sessionGetCmd, sessionResetCmd)
	rootCmd.AddCommand(sessionCmd)
}
