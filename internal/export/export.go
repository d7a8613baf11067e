package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rovshanmuradov/solana-keeper/internal/store"
	"go.uber.org/zap"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ErrNoTrades is returned when the filters exclude every history record.
var ErrNoTrades = errors.New("no trades match the export criteria")

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format       ExportFormat
	StartTime    time.Time
	EndTime      time.Time
	TokenFilter  string          // Filter by token mint address
	KindFilter   store.TradeKind // Filter by trade kind (buy/sell)
	ReasonFilter string          // Filter by exit/entry reason
	OutputDir    string
}

// TradeExporter writes filtered trade history to disk
type TradeExporter struct {
	logger *zap.Logger
}

// NewTradeExporter creates a new trade exporter
func NewTradeExporter(logger *zap.Logger) *TradeExporter {
	return &TradeExporter{
		logger: logger,
	}
}

// ExportTrades exports trade records based on the provided options
func (te *TradeExporter) ExportTrades(records []*store.TradeRecord, options ExportOptions) (string, error) {
	// Filter records
	filtered := te.filterRecords(records, options)

	if len(filtered) == 0 {
		return "", ErrNoTrades
	}

	// Sort by timestamp
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].Timestamp.Before(filtered[j].Timestamp)
	})

	// Generate filename
	filename := te.generateFilename(options)
	outputPath := filepath.Join(options.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	// Export based on format
	var err error
	switch options.Format {
	case FormatCSV:
		err = te.exportToCSV(filtered, outputPath)
	case FormatJSON:
		err = te.exportToJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}

	if err != nil {
		return "", err
	}

	te.logger.Info("Trades exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

// filterRecords applies filters to the history
func (te *TradeExporter) filterRecords(records []*store.TradeRecord, options ExportOptions) []*store.TradeRecord {
	var filtered []*store.TradeRecord

	for _, record := range records {
		// Time filter
		if !options.StartTime.IsZero() && record.Timestamp.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && record.Timestamp.After(options.EndTime) {
			continue
		}

		// Token filter
		if options.TokenFilter != "" && store.NormalizeAddress(record.Address) != store.NormalizeAddress(options.TokenFilter) {
			continue
		}

		// Kind filter
		if options.KindFilter != "" && record.Kind != options.KindFilter {
			continue
		}

		// Reason filter
		if options.ReasonFilter != "" && record.Reason != options.ReasonFilter {
			continue
		}

		filtered = append(filtered, record)
	}

	return filtered
}

// generateFilename creates a filename based on export options
func (te *TradeExporter) generateFilename(options ExportOptions) string {
	timestamp := time.Now().Format("20060102_150405")

	var prefix string
	if options.KindFilter != "" {
		prefix = fmt.Sprintf("trades_%s", options.KindFilter)
	} else {
		prefix = "trades_all"
	}

	if options.TokenFilter != "" {
		token := options.TokenFilter
		if len(token) > 8 {
			token = token[:8]
		}
		prefix += "_" + token
	}

	return fmt.Sprintf("%s_%s.%s", prefix, timestamp, options.Format)
}

// exportToCSV exports records to CSV format
func (te *TradeExporter) exportToCSV(records []*store.TradeRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write headers
	if err := writer.Write(store.TradeCSVHeader()); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	// Write records
	for _, record := range records {
		if err := writer.Write(record.ToCSV()); err != nil {
			return fmt.Errorf("failed to write trade: %w", err)
		}
	}

	return nil
}

// exportToJSON exports records to JSON format
func (te *TradeExporter) exportToJSON(records []*store.TradeRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	// Create export data with metadata
	exportData := struct {
		ExportTime time.Time            `json:"export_time"`
		TradeCount int                  `json:"trade_count"`
		Trades     []*store.TradeRecord `json:"trades"`
		Summary    ExportSummary        `json:"summary"`
	}{
		ExportTime: time.Now(),
		TradeCount: len(records),
		Trades:     records,
		Summary:    te.calculateSummary(records),
	}

	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}

	return nil
}

// calculateSummary calculates summary statistics for the export
func (te *TradeExporter) calculateSummary(records []*store.TradeRecord) ExportSummary {
	summary := ExportSummary{
		TotalTrades: len(records),
	}

	if len(records) == 0 {
		return summary
	}

	// Calculate date range
	summary.StartDate = records[0].Timestamp
	summary.EndDate = records[len(records)-1].Timestamp

	// Calculate statistics
	tokenSet := make(map[string]bool)
	var sellPercentSum float64

	for _, record := range records {
		tokenSet[store.NormalizeAddress(record.Address)] = true

		switch record.Kind {
		case store.TradeBuy:
			summary.BuyCount++
			summary.BuyVolumeUSDC += record.AmountUSDC
		case store.TradeSell:
			summary.SellCount++
			summary.SellVolumeUSDC += record.AmountUSDC
			summary.RealizedUSDC += realizedUSDC(record)
			sellPercentSum += record.ProfitPercent

			if record.ProfitPercent > 0 {
				summary.WinCount++
			} else if record.ProfitPercent < 0 {
				summary.LossCount++
			}
		}
	}

	summary.UniqueTokens = len(tokenSet)
	summary.TotalVolumeUSDC = summary.BuyVolumeUSDC + summary.SellVolumeUSDC

	if summary.SellCount > 0 {
		summary.WinRate = float64(summary.WinCount) / float64(summary.SellCount) * 100
		summary.AvgProfitPercent = sellPercentSum / float64(summary.SellCount)
	}

	return summary
}

// realizedUSDC derives the absolute result of a sell from its recorded
// percent: proceeds P at +x% mean P*x/(100+x) was gained over the entry.
func realizedUSDC(record *store.TradeRecord) float64 {
	if record.Kind != store.TradeSell || record.ProfitPercent <= -100 {
		return 0
	}
	return record.AmountUSDC * record.ProfitPercent / (100 + record.ProfitPercent)
}

// ExportSummary contains summary statistics for exported trades
type ExportSummary struct {
	TotalTrades      int       `json:"total_trades"`
	BuyCount         int       `json:"buy_count"`
	SellCount        int       `json:"sell_count"`
	UniqueTokens     int       `json:"unique_tokens"`
	TotalVolumeUSDC  float64   `json:"total_volume_usdc"`
	BuyVolumeUSDC    float64   `json:"buy_volume_usdc"`
	SellVolumeUSDC   float64   `json:"sell_volume_usdc"`
	RealizedUSDC     float64   `json:"realized_usdc"`
	WinCount         int       `json:"win_count"`
	LossCount        int       `json:"loss_count"`
	WinRate          float64   `json:"win_rate"`
	AvgProfitPercent float64   `json:"avg_profit_percent"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
}

// ExportDailyReport exports a daily summary report
func (te *TradeExporter) ExportDailyReport(records []*store.TradeRecord, date time.Time, outputDir string) (string, error) {
	// Filter records for the specific day
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	options := ExportOptions{
		Format:    FormatJSON,
		StartTime: startOfDay,
		EndTime:   endOfDay,
		OutputDir: outputDir,
	}

	// Use a custom filename for daily reports
	filename := fmt.Sprintf("daily_report_%s.json", startOfDay.Format("20060102"))
	outputPath := filepath.Join(outputDir, filename)

	// Filter records for the day
	filtered := te.filterRecords(records, options)

	if len(filtered) == 0 {
		te.logger.Info("No trades for daily report",
			zap.Time("date", startOfDay))
		return "", nil
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	// Create daily report
	report := DailyReport{
		Date:            startOfDay,
		TradeCount:      len(filtered),
		Trades:          filtered,
		Summary:         te.calculateSummary(filtered),
		HourlyBreakdown: te.calculateHourlyBreakdown(filtered),
	}

	// Write report
	file, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(report); err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	te.logger.Info("Daily report exported",
		zap.String("file", outputPath),
		zap.Time("date", startOfDay),
		zap.Int("trades", len(filtered)))

	return outputPath, nil
}

// DailyReport represents a daily trading report
type DailyReport struct {
	Date            time.Time            `json:"date"`
	TradeCount      int                  `json:"trade_count"`
	Summary         ExportSummary        `json:"summary"`
	HourlyBreakdown []HourlyStats        `json:"hourly_breakdown"`
	Trades          []*store.TradeRecord `json:"trades"`
}

// HourlyStats represents trading statistics for an hour
type HourlyStats struct {
	Hour         int     `json:"hour"`
	TradeCount   int     `json:"trade_count"`
	BuyCount     int     `json:"buy_count"`
	SellCount    int     `json:"sell_count"`
	VolumeUSDC   float64 `json:"volume_usdc"`
	RealizedUSDC float64 `json:"realized_usdc"`
}

// calculateHourlyBreakdown calculates hourly trading statistics
func (te *TradeExporter) calculateHourlyBreakdown(records []*store.TradeRecord) []HourlyStats {
	hourlyMap := make(map[int]*HourlyStats)

	for _, record := range records {
		hour := record.Timestamp.Hour()

		stats, exists := hourlyMap[hour]
		if !exists {
			stats = &HourlyStats{Hour: hour}
			hourlyMap[hour] = stats
		}

		stats.TradeCount++
		stats.VolumeUSDC += record.AmountUSDC

		switch record.Kind {
		case store.TradeBuy:
			stats.BuyCount++
		case store.TradeSell:
			stats.SellCount++
			stats.RealizedUSDC += realizedUSDC(record)
		}
	}

	// Convert map to sorted slice
	var breakdown []HourlyStats
	for hour := 0; hour < 24; hour++ {
		if stats, exists := hourlyMap[hour]; exists {
			breakdown = append(breakdown, *stats)
		}
	}

	return breakdown
}
