package runs

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/cywujeremy/ai-crawling-strategist/pkg/db"
)

// ListAction prints recent runs as a table.
func ListAction(c *cli.Context) error {
	database, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer database.Close()

	records, err := database.ListRuns(c.Int("limit"))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTAGE\tSEGMENTS\tCONFIDENCE\tTOKENS\tQUERY")
	for _, r := range records {
		query := r.Query
		if len(query) > 48 {
			query = query[:45] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%d\t%s\n",
			r.RunID, r.Stage, r.Segments, r.Confidence,
			r.InputTokens+r.OutputTokens, query)
	}
	return w.Flush()
}

// ShowAction prints one run's stored schema and its oracle call accounting.
func ShowAction(c *cli.Context) error {
	runID := c.Args().First()
	if runID == "" {
		return fmt.Errorf("usage: runs show <run-id>")
	}

	database, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer database.Close()

	record, err := database.GetRun(runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run:        %s\n", record.RunID)
	fmt.Printf("Query:      %s\n", record.Query)
	fmt.Printf("Stage:      %s\n", record.Stage)
	fmt.Printf("Segments:   %d\n", record.Segments)
	fmt.Printf("Confidence: %.2f\n", record.Confidence)
	fmt.Printf("Tokens:     %d in / %d out\n", record.InputTokens, record.OutputTokens)
	fmt.Printf("Created:    %s\n", record.CreatedAt.Format("2006-01-02 15:04:05"))

	var pretty json.RawMessage = []byte(record.SchemaJSON)
	indented, err := json.MarshalIndent(pretty, "", "  ")
	if err == nil {
		fmt.Printf("\nSchema:\n%s\n", indented)
	} else {
		fmt.Printf("\nSchema:\n%s\n", record.SchemaJSON)
	}

	calls, err := database.ListOracleCalls(runID)
	if err != nil {
		return err
	}
	if len(calls) > 0 {
		fmt.Println("\nOracle calls:")
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PURPOSE\tTOKENS IN\tTOKENS OUT\tLATENCY MS\tSTATUS")
		for _, call := range calls {
			status := "ok"
			if !call.Success {
				status = "failed: " + call.Error
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n",
				call.Purpose, call.InputTokens, call.OutputTokens, call.LatencyMS, status)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func openDatabase(c *cli.Context) (*db.DB, error) {
	if path := c.String("db"); path != "" {
		return db.OpenAt(path)
	}
	return db.Open()
}
