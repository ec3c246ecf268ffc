package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/newsquant/internal/api/handlers"
	"github.com/wonny/newsquant/internal/brain"
	"github.com/wonny/newsquant/internal/contracts"
)

// runCmd runs the pipeline once
var runCmd = &cobra.Command{
	Use:   "run [all|prices|mentions|sentiment|technical|features|sequences]...",
	Short: "파이프라인 실행",
	Long: `선택한 단계를 DAG 순서대로 실행합니다 (기본: 전체).

S0 → S1 → S2 → S3 → S4 → S5

각 단계:
- S0 prices:     일봉 가격 수집
- S1 mentions:   기사 → 종목 멘션
- S2 sentiment:  멘션 감성 점수 (append)
- S3 technical:  기술 지표
- S4 features:   피처 매트릭스 + 익일 라벨
- S5 sequences:  윈도우, 시계열 분할, 데이터셋 export

상위 단계가 데이터를 만들지 못하면 하위 단계는 skip 됩니다.

Example:
  go run ./cmd/quant run
  go run ./cmd/quant run technical features sequences
  go run ./cmd/quant run --date 2024-01-15`,
	RunE: runPipeline,
}

var (
	runDate string
	runID   string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDate, "date", "", "실행 날짜 (YYYY-MM-DD, 기본: 오늘)")
	runCmd.Flags().StringVar(&runID, "run-id", "", "run id (기본: uuid)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	stages, err := handlers.ParseStages(strings.Join(args, ","))
	if err != nil {
		return err
	}

	var date time.Time
	if runDate != "" {
		date, err = time.Parse(contracts.DateLayout, runDate)
		if err != nil {
			return fmt.Errorf("invalid date format: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result, runErr := a.orchestrator.Run(ctx, brain.RunConfig{
		Date:   date,
		RunID:  runID,
		Stages: stages,
	})
	if result != nil {
		printRunResult(result)
	}
	if runErr != nil {
		return fmt.Errorf("pipeline run failed: %w", runErr)
	}
	return nil
}

func printRunResult(result *brain.RunResult) {
	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  Run %s  (%s)\n", result.RunID, result.Date.Format(contracts.DateLayout))
	fmt.Println("───────────────────────────────────────────────────────────")
	for _, r := range result.Results {
		status := "✅"
		switch {
		case r.Skipped:
			status = "⏭ "
		case r.NoData:
			status = "∅ "
		case !r.Success:
			status = "❌"
		}
		fmt.Printf("  %s %-13s in=%-6d out=%-6d stored=%-6d skipped=%-4d %dms\n",
			status, r.Stage, r.InputCount, r.OutputCount, r.Stored, r.Skips.Count, r.Duration)
		if !r.Skips.Empty() {
			fmt.Printf("      skips: %s\n", r.Skips.String())
		}
		if r.Error != "" {
			fmt.Printf("      error: %s\n", r.Error)
		}
	}
	fmt.Println("───────────────────────────────────────────────────────────")
	if result.DatasetDir != "" {
		fmt.Printf("  Dataset : %s\n", result.DatasetDir)
	}
	fmt.Printf("  Duration: %.2fs\n", result.Duration.Seconds())
	fmt.Println("═══════════════════════════════════════════════════════════")
}
