package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatYML  = "yml"
)

// RenderStartResult renders the start-session response.
func RenderStartResult(result *StartSessionOutput, format string) error {
	switch strings.ToLower(format) {
	case formatJSON:
		return renderJSON(result)
	case formatYAML, formatYML:
		return renderYAML(result)
	default:
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendRow(table.Row{"Session Token", result.SessionToken})
		t.AppendRow(table.Row{"Handshake Token", result.HandshakeToken})
		t.AppendRow(table.Row{"Expires At", result.ExpiresAt.Format(time.RFC3339)})
		if len(result.UpgradeOffer) > 0 {
			t.AppendRow(table.Row{"Upgrade Offer", string(result.UpgradeOffer)})
		}
		t.Render()
		return nil
	}
}

// RenderNextStep renders the next-step response.
func RenderNextStep(next *NextStepOutput, format string) error {
	switch strings.ToLower(format) {
	case formatJSON:
		return renderJSON(next)
	case formatYAML, formatYML:
		return renderYAML(next)
	default:
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendRow(table.Row{"State", next.State})
		t.AppendRow(table.Row{"Ready To Finalize", next.ReadyToFinalize})
		if next.Mfa != nil {
			t.AppendRow(table.Row{"MFA Type", next.Mfa.Type})
			t.AppendRow(table.Row{"MFA Attempts Left", next.Mfa.AttemptsRemaining})
			for i, prompt := range next.Mfa.Prompts {
				t.AppendRow(table.Row{fmt.Sprintf("MFA Prompt %d", i+1), prompt})
			}
		}
		if next.Verification != nil {
			t.AppendRow(table.Row{"Verification Method", next.Verification.Method})
			t.AppendRow(table.Row{"Verification Attempts Left", next.Verification.AttemptsRemaining})
		}
		t.Render()
		return nil
	}
}

// RenderChallenge renders an MFA or verification challenge.
func RenderChallenge(challenge *ChallengeOutput, format string) error {
	switch strings.ToLower(format) {
	case formatJSON:
		return renderJSON(challenge)
	case formatYAML, formatYML:
		return renderYAML(challenge)
	default:
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		if challenge.Type != "" {
			t.AppendRow(table.Row{"Type", challenge.Type})
		}
		if challenge.Method != "" {
			t.AppendRow(table.Row{"Method", challenge.Method})
		}
		for i, prompt := range challenge.Prompts {
			t.AppendRow(table.Row{fmt.Sprintf("Prompt %d", i+1), prompt})
		}
		t.AppendRow(table.Row{"Attempts Remaining", challenge.AttemptsRemaining})
		t.AppendRow(table.Row{"Expires At", challenge.ExpiresAt.Format(time.RFC3339)})
		t.Render()
		return nil
	}
}

// RenderConnection renders the finalize response.
func RenderConnection(conn *ConnectionOutput, format string) error {
	switch strings.ToLower(format) {
	case formatJSON:
		return renderJSON(conn)
	case formatYAML, formatYML:
		return renderYAML(conn)
	default:
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendRow(table.Row{"Connection ID", conn.ConnectionID})
		t.AppendRow(table.Row{"Linked Accounts", strings.Join(conn.AccountIDs, ", ")})
		t.Render()
		return nil
	}
}

// RenderStatus renders a session status.
func RenderStatus(status *StatusOutput, format string) error {
	switch strings.ToLower(format) {
	case formatJSON:
		return renderJSON(status)
	case formatYAML, formatYML:
		return renderYAML(status)
	default:
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendRow(table.Row{"Token", status.Token})
		t.AppendRow(table.Row{"State", status.State})
		t.AppendRow(table.Row{"Progress", fmt.Sprintf("%d%%", status.ProgressPercent)})
		if status.InstitutionName != "" {
			t.AppendRow(table.Row{"Institution", status.InstitutionName})
		}
		t.AppendRow(table.Row{"Accounts Selected", status.AccountCount})
		if status.FailureCode != "" {
			t.AppendRow(table.Row{"Failure Code", status.FailureCode})
		}
		t.AppendRow(table.Row{"Expired", status.Expired})
		t.AppendRow(table.Row{"Created At", status.CreatedAt.Format(time.RFC3339)})
		t.AppendRow(table.Row{"Expires At", status.ExpiresAt.Format(time.RFC3339)})
		t.Render()
		return nil
	}
}

func renderJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func renderYAML(v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Print(string(data))
	return nil
}
