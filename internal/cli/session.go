package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const commandTimeout = 30 * time.Second

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage linking sessions",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a new linking session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, err := clientFor(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		hint, _ := cmd.Flags().GetString("institution")
		result, err := client.StartSession(ctx, hint)
		if err != nil {
			return err
		}
		return RenderStartResult(result, viper.GetString("output"))
	},
}

var sessionSelectCmd = &cobra.Command{
	Use:   "select <session-token>",
	Short: "Submit the provider public token and chosen account IDs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := clientFor(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		publicToken, _ := cmd.Flags().GetString("public-token")
		accounts, _ := cmd.Flags().GetStringSlice("accounts")
		if publicToken == "" || len(accounts) == 0 {
			return fmt.Errorf("--public-token and --accounts are required")
		}

		next, err := client.SelectAccounts(ctx, args[0], publicToken, accounts)
		if err != nil {
			return err
		}
		return RenderNextStep(next, viper.GetString("output"))
	},
}

var sessionMfaCmd = &cobra.Command{
	Use:   "mfa <session-token>",
	Short: "Show or answer the pending MFA challenge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := clientFor(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		answers, _ := cmd.Flags().GetStringSlice("answers")
		if len(answers) == 0 {
			challenge, err := client.GetMfaChallenge(ctx, args[0])
			if err != nil {
				return err
			}
			return RenderChallenge(challenge, viper.GetString("output"))
		}

		next, err := client.CompleteMfa(ctx, args[0], answers)
		if err != nil {
			return err
		}
		return RenderNextStep(next, viper.GetString("output"))
	},
}

var sessionVerifyCmd = &cobra.Command{
	Use:   "verify <session-token>",
	Short: "Submit ownership verification",
	Long: `Submit ownership verification for a session.

Micro-deposit sessions take --amounts with the two observed deposit
amounts in minor units (cents). Phone and document sessions take --code.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := clientFor(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		amountsFlag, _ := cmd.Flags().GetString("amounts")
		code, _ := cmd.Flags().GetString("code")

		var amounts []int64
		if amountsFlag != "" {
			for _, part := range strings.Split(amountsFlag, ",") {
				v, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
				if err != nil {
					return fmt.Errorf("invalid amount %q: %w", part, err)
				}
				amounts = append(amounts, v)
			}
		}
		if len(amounts) == 0 && code == "" {
			return fmt.Errorf("either --amounts or --code is required")
		}

		next, err := client.CompleteVerification(ctx, args[0], amounts, code)
		if err != nil {
			return err
		}
		return RenderNextStep(next, viper.GetString("output"))
	},
}

var sessionFinalizeCmd = &cobra.Command{
	Use:   "finalize <session-token>",
	Short: "Persist the linked connection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := clientFor(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		result, err := client.Finalize(ctx, args[0])
		if err != nil {
			return err
		}
		return RenderConnection(result, viper.GetString("output"))
	},
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status <session-token>",
	Short: "Show session status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := clientFor(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		status, err := client.GetStatus(ctx, args[0])
		if err != nil {
			return err
		}
		return RenderStatus(status, viper.GetString("output"))
	},
}

var sessionCancelCmd = &cobra.Command{
	Use:   "cancel <session-token>",
	Short: "Cancel an in-flight session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := clientFor(cmd)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		if err := client.Cancel(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("Session cancelled")
		return nil
	},
}

// clientFor builds an API client from the active profile.
func clientFor(cmd *cobra.Command) (*APIClient, error) {
	config, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	profile, err := currentProfile(cmd, config)
	if err != nil {
		return nil, err
	}
	return NewAPIClientFromProfile(profile), nil
}

func init() {
	sessionCmd.PersistentFlags().String("profile", "", "profile to use")

	sessionStartCmd.Flags().String("institution", "", "institution hint")
	sessionSelectCmd.Flags().String("public-token", "", "provider public token")
	sessionSelectCmd.Flags().StringSlice("accounts", nil, "account IDs to link")
	sessionMfaCmd.Flags().StringSlice("answers", nil, "MFA answers")
	sessionVerifyCmd.Flags().String("amounts", "", "micro-deposit amounts in cents, comma separated")
	sessionVerifyCmd.Flags().String("code", "", "verification code")

	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionSelectCmd)
	sessionCmd.AddCommand(sessionMfaCmd)
	sessionCmd.AddCommand(sessionVerifyCmd)
	sessionCmd.AddCommand(sessionFinalizeCmd)
	sessionCmd.AddCommand(sessionStatusCmd)
	sessionCmd.AddCommand(sessionCancelCmd)
	rootCmd.AddCommand(sessionCmd)
}
