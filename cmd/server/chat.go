package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"clinical-intake-agent/internal/intake"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run one interview in the terminal",
	RunE:  runChatCmd,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChatCmd(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := buildApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return runChat(cmd.Context(), a.service, cmd.InOrStdin(), cmd.OutOrStdout())
}

// runChat drives a single session over line-oriented input until it completes.
func runChat(ctx context.Context, svc intake.Service, in io.Reader, out io.Writer) error {
	res, err := svc.Start(ctx, "")
	if err != nil {
		return err
	}
	printTurn(out, res)

	scanner := bufio.NewScanner(in)
	for !res.IsComplete {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			fmt.Fprintln(out)
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		next, err := svc.Reply(ctx, res.SessionID, line)
		switch {
		case errors.Is(err, intake.ErrOracleUnavailable):
			fmt.Fprintln(out, "(assistant unavailable, please send that again)")
			continue
		case err != nil:
			return err
		}
		res = next
		printTurn(out, res)
	}

	fmt.Fprintln(out, "\n--- Intake record ---")
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res.State)
}

func printTurn(out io.Writer, res *intake.TurnResult) {
	if res.AssistantMessage != nil {
		fmt.Fprintf(out, "[%s] %s\n", res.Phase, *res.AssistantMessage)
	}
}
