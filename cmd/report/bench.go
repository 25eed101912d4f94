package report

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ValentinKolb/dcov/cmd/util"
	"github.com/ValentinKolb/dcov/lib/coverage"
	"github.com/ValentinKolb/dcov/lib/covstore"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Concurrent save load generator",
		Long: `Saves the same report from several workers concurrently and checks that the stored
counts equal the sum of all saves afterwards. Uses the namespace given by --namespace,
which is cleared before and after the run (unless --keep is set).`,
		Args: cobra.NoArgs,
		RunE: runBench,
	}
)

func init() {
	key := "workers"
	benchCmd.Flags().Int(key, 8, util.WrapString("Number of concurrent workers"))
	key = "reports"
	benchCmd.Flags().Int(key, 50, util.WrapString("Reports saved per worker"))
	key = "files"
	benchCmd.Flags().Int(key, 20, util.WrapString("Files per report"))
	key = "lines"
	benchCmd.Flags().Int(key, 100, util.WrapString("Lines per file"))
	key = "keep"
	benchCmd.Flags().Bool(key, false, util.WrapString("Keep the records after the run"))
}

// benchLine is the value of line i in every benchmark report
func benchLine(i int) coverage.Line {
	if i%5 == 0 {
		return coverage.NoData
	}
	return coverage.Line(i % 3)
}

func benchReport(files, lines int) map[string][]coverage.Line {
	report := make(map[string][]coverage.Line, files)
	for f := 0; f < files; f++ {
		data := make([]coverage.Line, lines)
		for i := range data {
			data[i] = benchLine(i)
		}
		report[fmt.Sprintf("./bench/file_%03d.rb", f)] = data
	}
	return report
}

func runBench(cmd *cobra.Command, _ []string) error {
	workers := viper.GetInt("workers")
	reports := viper.GetInt("reports")
	files := viper.GetInt("files")
	lines := viper.GetInt("lines")
	if workers <= 0 || reports <= 0 || files <= 0 || lines <= 0 {
		return fmt.Errorf("workers, reports, files and lines must be positive")
	}
	t, err := readType()
	if err != nil {
		return err
	}

	if err := coverageStore.Clear(); err != nil {
		return err
	}

	registry := gometrics.NewRegistry()
	saveTimer := gometrics.NewRegisteredTimer("save", registry)
	fileMeter := gometrics.NewRegisteredMeter("files", registry)
	failures := gometrics.NewRegisteredCounter("failed_files", registry)
	defer fileMeter.Stop()

	fmt.Printf("Saving %d reports of %d files from %d workers (namespace=%q, type=%s)\n",
		workers*reports, files, workers, coverageStore.Namespace(), t)

	report := benchReport(files, lines)
	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < reports; i++ {
				began := time.Now()
				err := coverageStore.SaveReportFor(t, report)
				saveTimer.UpdateSince(began)

				failed := len(covstore.FailedFiles(err))
				failures.Inc(int64(failed))
				fileMeter.Mark(int64(files - failed))
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	gometrics.WriteOnce(registry, os.Stdout)
	fmt.Printf("elapsed: %s, files/s: %.1f\n", elapsed, float64(fileMeter.Count())/elapsed.Seconds())

	// verify the merged counts
	mismatches, err := verifyBench(t, report, int64(workers*reports))
	if err != nil {
		return err
	}
	if !viper.GetBool("keep") {
		if err := coverageStore.Clear(); err != nil {
			return err
		}
	}

	if failures.Count() > 0 {
		fmt.Printf("%d file saves failed, stored counts can't be verified\n", failures.Count())
		return fmt.Errorf("%d file saves failed", failures.Count())
	}
	if mismatches > 0 {
		return fmt.Errorf("%d files have unexpected counts", mismatches)
	}
	fmt.Println("all counts converged")
	return nil
}

// verifyBench compares the stored records with saves times the benchmark report
func verifyBench(t coverage.Type, report map[string][]coverage.Line, saves int64) (int, error) {
	records, err := coverageStore.CoverageFor(t)
	if err != nil {
		return 0, err
	}

	mismatches := 0
	for path, data := range report {
		record, ok := records[path]
		if !ok || len(record.Data) != len(data) {
			mismatches++
			continue
		}
		for i, line := range data {
			want := line
			if !line.IsNoData() {
				want = coverage.Line(int64(line) * saves)
			}
			if record.Data[i] != want {
				fmt.Printf("%s line %d: got %s, want %s\n", path, i+1, record.Data[i], want)
				mismatches++
				break
			}
		}
	}
	return mismatches, nil
}
