package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/ValentinKolb/dcov/lib/coverage"
	"github.com/ValentinKolb/dcov/lib/covstore"
	"github.com/spf13/cobra"
)

var (
	showJSON bool

	saveCmd = &cobra.Command{
		Use:   "save [file.json]",
		Short: "Merges a coverage report into the store",
		Long:  `Merges a coverage report of the form {"path": [0, null, 3], ...} into the records of --type. Use - to read the report from stdin. Files with malformed line arrays are skipped and reported, all other files are saved.`,
		Args:  cobra.ExactArgs(1),
		RunE:  runSave,
	}
	showCmd = &cobra.Command{
		Use:   "show",
		Short: "Prints the stored coverage of --type (or merged)",
		Args:  cobra.NoArgs,
		RunE:  runShow,
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Deletes all records of the namespace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := coverageStore.Clear(); err != nil {
				return err
			}
			fmt.Println("cleared successfully")
			return nil
		},
	}
	clearFileCmd = &cobra.Command{
		Use:   "clear-file [path]",
		Short: "Deletes the records of a single file for all types",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := coverageStore.ClearFile(args[0]); err != nil {
				return err
			}
			fmt.Println("cleared successfully")
			return nil
		},
	}
)

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "Print the records as JSON")
}

func runSave(_ *cobra.Command, args []string) error {
	t, err := readType()
	if err != nil {
		return err
	}

	var data []byte
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read report: %w", err)
	}

	files, rejected, err := coverage.DecodeReport(data)
	if err != nil {
		return err
	}
	for path, reason := range rejected {
		fmt.Fprintf(os.Stderr, "skipped %s: %v\n", path, reason)
	}

	err = coverageStore.SaveReportFor(t, files)
	fmt.Printf("%s, rejected=%d, type=%s\n", saveSummary(len(files), err), len(rejected), t)
	return err
}

func runShow(_ *cobra.Command, _ []string) error {
	t, err := readType()
	if err != nil {
		return err
	}

	if showJSON && t == coverage.TypeMerged {
		report, err := coverageStore.GetCoverageReport()
		if err != nil {
			return err
		}
		return writeJSON(report)
	}

	records, err := coverageStore.CoverageFor(t)
	if err != nil {
		return err
	}
	if showJSON {
		return writeJSON(records)
	}

	paths := make([]string, 0, len(records))
	for path := range records {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tRELEVANT\tHIT\tCOVERED\tFIRST UPDATE\tLAST UPDATE")
	var totalRelevant, totalHit int
	for _, path := range paths {
		record := records[path]
		relevant, hit := record.Covered()
		totalRelevant += relevant
		totalHit += hit
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\n", path, relevant, hit, percent(hit, relevant),
			formatUnix(record.FirstUpdatedAt), formatUnix(record.LastUpdatedAt))
	}
	fmt.Fprintf(w, "TOTAL (%s)\t%d\t%d\t%s\t\t\n", t, totalRelevant, totalHit, percent(totalHit, totalRelevant))
	return w.Flush()
}

func writeJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func percent(hit, relevant int) string {
	if relevant == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(hit)/float64(relevant))
}

// saveSummary counts saved and failed files. Errors that aren't per file mean that
// nothing was saved.
func saveSummary(files int, err error) string {
	failed := len(covstore.FailedFiles(err))
	if err != nil && failed == 0 {
		failed = files
	}
	return fmt.Sprintf("saved=%d, failed=%d", files-failed, failed)
}
