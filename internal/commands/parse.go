package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/prudhvinik1/smsledger/internal/models"
	"github.com/prudhvinik1/smsledger/internal/parser"
)

func newParseCommand() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "parse [text]",
		Short: "Parse an SMS body and print the extracted transaction",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts := models.Timestamp{Raw: date}
			parsed, err := parser.Parse(strings.Join(args, " "), ts.Time(time.Now()))
			if err != nil {
				if reason, ok := parser.IsParseError(err); ok {
					return fmt.Errorf("not a transaction: %s", reason)
				}
				return err
			}
			return printJSON(cmd.OutOrStdout(), parsed)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "message date (epoch milliseconds or ISO-8601), defaults to now")

	return cmd
}
