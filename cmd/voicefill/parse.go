package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voicefill/internal/formfill"
	"github.com/MrWong99/voicefill/pkg/slotfill"
)

// parseOutput is what "voicefill parse" prints.
type parseOutput struct {
	Patch   slotfill.Patch             `json:"patch"`
	Form    *slotfill.FormState        `json:"form,omitempty"`
	Explain []formfill.SlotExplanation `json:"explain,omitempty"`
}

func newParseCmd() *cobra.Command {
	var (
		formPath string
		explain  bool
	)
	cmd := &cobra.Command{
		Use:   "parse <transcript>",
		Short: "Extract form fields from a transcript and print them as JSON",
		Long: "Extract form fields from a transcript and print them as JSON.\n" +
			"Multiple arguments are joined with a space. With --form the patch\n" +
			"is applied to the form read from the given JSON file.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := parse(strings.Join(args, " "), formPath, explain)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVarP(&formPath, "form", "f", "", "JSON file holding the current form")
	cmd.Flags().BoolVar(&explain, "explain", false, "include per-slot match details")
	return cmd
}

func parse(transcript, formPath string, explain bool) (parseOutput, error) {
	results := slotfill.New().Explain(transcript)
	out := parseOutput{Patch: slotfill.PatchOf(results)}
	if explain {
		out.Explain = formfill.Explain(results)
	}
	if formPath != "" {
		form, err := readForm(formPath)
		if err != nil {
			return parseOutput{}, err
		}
		form.Apply(out.Patch)
		out.Form = &form
	}
	return out, nil
}

func readForm(path string) (slotfill.FormState, error) {
	var form slotfill.FormState
	data, err := os.ReadFile(path)
	if err != nil {
		return form, fmt.Errorf("read form: %w", err)
	}
	if err := json.Unmarshal(data, &form); err != nil {
		return form, fmt.Errorf("decode form %q: %w", path, err)
	}
	return form, nil
}
