package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/newsquant/internal/external/aliases"
	"github.com/wonny/newsquant/internal/s0_data"
)

// aliasesCmd represents the aliases command
var aliasesCmd = &cobra.Command{
	Use:   "aliases",
	Short: "별칭 → 티커 매핑 조회",
	Long: `S1 엔티티 매칭에 쓰이는 별칭 집합을 출력합니다.

ALIAS_FILE이 설정되어 있으면 YAML 파일을, 아니면 assets 테이블을 읽습니다.
--sync를 주면 ALIAS_FILE의 종목을 assets 테이블에 먼저 반영합니다.

Example:
  go run ./cmd/quant aliases
  ALIAS_FILE=configs/aliases.yaml go run ./cmd/quant aliases --sync`,
	RunE: runAliases,
}

var (
	aliasesSync bool
)

func init() {
	rootCmd.AddCommand(aliasesCmd)

	aliasesCmd.Flags().BoolVar(&aliasesSync, "sync", false, "ALIAS_FILE 종목을 assets 테이블에 반영")
}

// assetWriter is implemented by both store backends
type assetWriter interface {
	UpsertAssets(ctx context.Context, assets []s0_data.Asset) (int, error)
}

func runAliases(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if aliasesSync {
		if err := syncAssets(ctx, a); err != nil {
			return err
		}
	}

	set, err := aliasSource(a.cfg, a.store).LoadAliases(ctx)
	if err != nil {
		return fmt.Errorf("load aliases: %w", err)
	}

	fmt.Printf("Aliases: %d (tickers: %d)\n", len(set), len(set.Tickers()))
	for _, alias := range set.Aliases() {
		fmt.Printf("  %-30s → %s\n", alias, set[alias])
	}
	fmt.Printf("\nhash: %s\n", aliases.Hash(set))
	return nil
}

func syncAssets(ctx context.Context, a *app) error {
	if a.cfg.Sources.AliasFile == "" {
		return fmt.Errorf("--sync requires ALIAS_FILE")
	}
	writer, ok := a.store.(assetWriter)
	if !ok {
		return fmt.Errorf("store %T cannot write assets", a.store)
	}

	data, err := os.ReadFile(a.cfg.Sources.AliasFile)
	if err != nil {
		return fmt.Errorf("read alias file: %w", err)
	}
	file, err := aliases.Decode(data)
	if err != nil {
		return err
	}

	assets := make([]s0_data.Asset, 0, len(file.Assets))
	for _, asset := range file.Assets {
		assets = append(assets, s0_data.Asset{
			Ticker:    asset.Ticker,
			Name:      asset.Name,
			Pseudonym: asset.Pseudonym,
		})
	}

	n, err := writer.UpsertAssets(ctx, assets)
	if err != nil {
		return fmt.Errorf("upsert assets: %w", err)
	}
	a.log.WithFields(map[string]interface{}{
		"file":     a.cfg.Sources.AliasFile,
		"assets":   len(assets),
		"inserted": n,
	}).Info("Synced assets from alias file")
	return nil
}
