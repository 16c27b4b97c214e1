package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-bot-builder/internal/prompt"
)

var (
	renderStep1    string
	renderStep2    string
	renderQuestion string
)

var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Prompt document tooling",
}

var promptRenderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render step contents into the sectioned prompt document",
	Long: `render reads step 1 and step 2 contents from files ("-" for stdin),
validates them like the dashboard does and prints the five-section
document. With --question it prints the full message list sent to the
model for that question instead.

Examples:
  botbuilder prompt render --step1 step1.json --step2 rules.txt
  botbuilder prompt render --step1 step1.json --question "Opening hours?"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var steps []prompt.StepContent
		for i, path := range []string{renderStep1, renderStep2} {
			if path == "" {
				continue
			}
			content, err := readInput(cmd.InOrStdin(), path)
			if err != nil {
				return err
			}
			if err := prompt.ValidateStepContent(i+1, content); err != nil {
				return fmt.Errorf("step %d: %w", i+1, err)
			}
			steps = append(steps, prompt.StepContent{Step: i + 1, Content: content})
		}
		doc := prompt.DocumentFromSteps(steps)

		if renderQuestion == "" {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), prompt.Serialize(doc))
			return err
		}
		var preset string
		if !doc.IsEmpty() {
			preset = prompt.Serialize(doc)
		}
		msgs := prompt.Assemble(prompt.GuardrailPreamble, preset, nil, renderQuestion)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(msgs)
	},
}

var promptValidateCmd = &cobra.Command{
	Use:   "validate FILE",
	Short: "Check that a generated document has all five sections in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		doc, err := prompt.ValidateDocument(text)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

func init() {
	promptRenderCmd.Flags().StringVar(&renderStep1, "step1", "", "file with step 1 content (personality/purpose/tone JSON)")
	promptRenderCmd.Flags().StringVar(&renderStep2, "step2", "", "file with step 2 content (rules/faq JSON or plain text)")
	promptRenderCmd.Flags().StringVar(&renderQuestion, "question", "", "print the assembled messages for this user message")
	promptCmd.AddCommand(promptRenderCmd, promptValidateCmd)
}

func readInput(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}
